// Package bootstrap creates the profile and wallet a user needs on first sign-in.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/campusgig/backend/internal/auth"
	"github.com/campusgig/backend/internal/metrics"
	"github.com/campusgig/backend/internal/models"
)

type ProfileStore interface {
	Ensure(ctx context.Context, p *models.Profile) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
}

type WalletStore interface {
	Ensure(ctx context.Context, userID uuid.UUID) (bool, error)
}

// Initializer inserts missing records with insert-if-absent semantics, so
// concurrent or repeated calls for the same user are harmless.
type Initializer struct {
	profiles ProfileStore
	wallets  WalletStore
	logger   *slog.Logger

	seen sync.Map // uuid.UUID -> struct{}
}

func NewInitializer(profiles ProfileStore, wallets WalletStore, logger *slog.Logger) *Initializer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Initializer{profiles: profiles, wallets: wallets, logger: logger}
}

// Ensure creates the user's profile and zero wallet if absent and returns the stored profile.
func (i *Initializer) Ensure(ctx context.Context, id auth.Identity) (*models.Profile, error) {
	if err := i.ensure(ctx, id); err != nil {
		return nil, err
	}
	i.seen.Store(id.UserID, struct{}{})
	return i.profiles.GetByID(ctx, id.UserID)
}

// EnsureOnce is Ensure without the read, skipped for users already handled by this process.
func (i *Initializer) EnsureOnce(ctx context.Context, id auth.Identity) error {
	if _, ok := i.seen.Load(id.UserID); ok {
		return nil
	}
	if err := i.ensure(ctx, id); err != nil {
		return err
	}
	i.seen.Store(id.UserID, struct{}{})
	return nil
}

func (i *Initializer) ensure(ctx context.Context, id auth.Identity) error {
	createdProfile, err := i.profiles.Ensure(ctx, &models.Profile{
		ID:           id.UserID,
		FullName:     DisplayName(id),
		CollegeEmail: id.Email,
	})
	if err != nil {
		return fmt.Errorf("ensure profile %s: %w", id.UserID, err)
	}
	createdWallet, err := i.wallets.Ensure(ctx, id.UserID)
	if err != nil {
		return fmt.Errorf("ensure wallet %s: %w", id.UserID, err)
	}
	if createdProfile || createdWallet {
		metrics.RecordProfileBootstrapped()
		i.logger.Info("user bootstrapped", "user_id", id.UserID,
			"profile_created", createdProfile, "wallet_created", createdWallet)
	}
	return nil
}

// DisplayName picks the name shown for a new profile: the provider's full
// name, else the local part of the email, else "User".
func DisplayName(id auth.Identity) string {
	if n := strings.TrimSpace(id.FullName); n != "" {
		return n
	}
	if local, _, ok := strings.Cut(id.Email, "@"); ok && local != "" {
		return local
	}
	return "User"
}
