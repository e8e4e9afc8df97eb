// Package config loads service configuration from defaults, an optional YAML
// file and CAMPUSGIG_ environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)

type Config struct {
	// Addr is the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	DatabaseURL string `koanf:"database_url"`

	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// JWTSecret verifies HS256 session tokens from the identity provider.
	JWTSecret   string `koanf:"jwt_secret"`
	JWTAudience string `koanf:"jwt_audience"`

	AllowedOrigins []string `koanf:"allowed_origins"`

	// MinBudgetMinor is the smallest task budget in paise.
	MinBudgetMinor int64 `koanf:"min_budget_minor"`

	// RejectCompetingApplications closes out other pending applications when one is accepted.
	RejectCompetingApplications bool `koanf:"reject_competing_applications"`

	RiverWorkers int `koanf:"river_workers"`

	// ChatDedupeSize bounds the per-subscription set of recently delivered message IDs.
	ChatDedupeSize int `koanf:"chat_dedupe_size"`

	// ChatChannel is the Postgres NOTIFY channel carrying new messages.
	ChatChannel string `koanf:"chat_channel"`

	// OTelExporter selects the trace exporter: none or stdout.
	OTelExporter string `koanf:"otel_exporter"`
	ServiceName  string `koanf:"service_name"`
}

func New() *Config {
	return &Config{
		Addr:           ":8080",
		LogLevel:       "info",
		JWTAudience:    "authenticated",
		AllowedOrigins: []string{"http://localhost:5173"},
		MinBudgetMinor: 5000,
		RiverWorkers:   5,
		ChatDedupeSize: 512,
		ChatChannel:    "task_messages",
		OTelExporter:   "none",
		ServiceName:    "campusgig-api",
	}
}

// Validate checks required fields and ranges.
func (c *Config) Validate() error {
	var problems []string
	if c.Addr == "" {
		problems = append(problems, "addr must not be empty")
	}
	if c.DatabaseURL == "" {
		problems = append(problems, "database_url is required")
	}
	if c.JWTSecret == "" {
		problems = append(problems, "jwt_secret is required")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}
	if c.MinBudgetMinor < 1 {
		problems = append(problems, "min_budget_minor must be positive")
	}
	if c.RiverWorkers < 1 {
		problems = append(problems, "river_workers must be at least 1")
	}
	if c.ChatDedupeSize < 1 {
		problems = append(problems, "chat_dedupe_size must be at least 1")
	}
	if c.ChatChannel == "" {
		problems = append(problems, "chat_channel must not be empty")
	}
	switch c.OTelExporter {
	case "", "none", "stdout":
	default:
		problems = append(problems, fmt.Sprintf("otel_exporter %q is not one of none, stdout", c.OTelExporter))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
