package main

import (
	"log/slog"
	"net/http"

	"github.com/rs/cors"

	"github.com/campusgig/backend/internal/auth"
	"github.com/campusgig/backend/internal/bootstrap"
	"github.com/campusgig/backend/internal/chat"
	"github.com/campusgig/backend/internal/config"
	"github.com/campusgig/backend/internal/dashboard"
	"github.com/campusgig/backend/internal/handlers"
	"github.com/campusgig/backend/internal/metrics"
	"github.com/campusgig/backend/internal/middleware"
	"github.com/campusgig/backend/internal/router"
	"github.com/campusgig/backend/internal/schema"
)

type serverDeps struct {
	cfg         *config.Config
	logger      *slog.Logger
	verifier    auth.Service
	initializer *bootstrap.Initializer
	tasks       handlers.TaskService
	chat        handlers.ChatService
	hub         chat.Relay
	profiles    dashboard.ProfileStore
	wallets     dashboard.Wallets
	schemas     *schema.Validator
}

// newServer assembles the HTTP stack: CORS -> metrics -> mux -> per-route auth -> handler.
func newServer(d serverDeps) http.Handler {
	api := router.New(router.Deps{
		Authenticate: middleware.Authenticate(d.verifier, d.initializer, d.logger),
		Session:      auth.NewHandler(d.initializer, d.logger),
		Account:      dashboard.NewHandler(d.profiles, d.wallets, d.schemas, d.logger),
		Tasks:        &handlers.TaskHandler{Tasks: d.tasks, Schemas: d.schemas, Logger: d.logger},
		Chat:         &handlers.ChatHandler{Chat: d.chat, Relay: d.hub, Schemas: d.schemas, Logger: d.logger},
	})
	api.Handle("GET /metrics", metrics.Handler())

	return cors.New(cors.Options{
		AllowedOrigins:   d.cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(middleware.Metrics(api))
}
