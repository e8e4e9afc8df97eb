package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusgig/backend/internal/models"
)

type WalletRepo struct {
	pool *pgxpool.Pool
}

func NewWalletRepo(pool *pgxpool.Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

func scanWallet(row pgx.Row) (*models.Wallet, error) {
	var w models.Wallet
	if err := row.Scan(&w.UserID, &w.AvailableMinor, &w.LockedMinor, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &w, nil
}

// Ensure inserts a zero wallet for the user if none exists. It reports whether a row was created.
func (r *WalletRepo) Ensure(ctx context.Context, userID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO wallets (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *WalletRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	return scanWallet(r.pool.QueryRow(ctx, `
		SELECT user_id, available_minor, locked_minor, created_at, updated_at
		FROM wallets WHERE user_id = $1
	`, userID))
}

// GetForUpdate locks the wallet row for update. Call within a transaction.
func (r *WalletRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*models.Wallet, error) {
	return scanWallet(tx.QueryRow(ctx, `
		SELECT user_id, available_minor, locked_minor, created_at, updated_at
		FROM wallets WHERE user_id = $1 FOR UPDATE
	`, userID))
}

// MoveToLocked atomically moves amount from available to locked if available >= amount.
// Returns ErrConditionFailed when the balance is too low.
func (r *WalletRepo) MoveToLocked(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) (*models.Wallet, error) {
	w, err := scanWallet(tx.QueryRow(ctx, `
		UPDATE wallets
		SET available_minor = available_minor - $1, locked_minor = locked_minor + $1, updated_at = now()
		WHERE user_id = $2 AND available_minor >= $1
		RETURNING user_id, available_minor, locked_minor, created_at, updated_at
	`, amount, userID))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrConditionFailed
	}
	return w, err
}

// DebitLocked atomically removes amount from locked if locked >= amount.
// Returns ErrConditionFailed when not enough funds are locked.
func (r *WalletRepo) DebitLocked(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) (*models.Wallet, error) {
	w, err := scanWallet(tx.QueryRow(ctx, `
		UPDATE wallets
		SET locked_minor = locked_minor - $1, updated_at = now()
		WHERE user_id = $2 AND locked_minor >= $1
		RETURNING user_id, available_minor, locked_minor, created_at, updated_at
	`, amount, userID))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrConditionFailed
	}
	return w, err
}

// CreditAvailable adds amount to the user's available balance.
func (r *WalletRepo) CreditAvailable(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) (*models.Wallet, error) {
	return scanWallet(tx.QueryRow(ctx, `
		UPDATE wallets
		SET available_minor = available_minor + $1, updated_at = now()
		WHERE user_id = $2
		RETURNING user_id, available_minor, locked_minor, created_at, updated_at
	`, amount, userID))
}
