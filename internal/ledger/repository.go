package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/campusgig/backend/internal/models"
)

// WalletStore is the wallet persistence the ledger needs. The conditional
// updates must return repository.ErrConditionFailed when their guard fails.
type WalletStore interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*models.Wallet, error)
	MoveToLocked(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) (*models.Wallet, error)
	DebitLocked(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) (*models.Wallet, error)
	CreditAvailable(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) (*models.Wallet, error)
}

// EntryStore appends and lists wallet history entries.
type EntryStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) error
	ListByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*models.LedgerEntry, error)
}
