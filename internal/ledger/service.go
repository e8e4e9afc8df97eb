package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"

	"github.com/campusgig/backend/internal/metrics"
	"github.com/campusgig/backend/internal/models"
	"github.com/campusgig/backend/internal/observability"
	"github.com/campusgig/backend/internal/repository"
)

// Service moves money between available and locked balances. Lock and Release
// run inside the caller's transaction so they commit or roll back with the
// task transition that triggered them.
type Service interface {
	Lock(ctx context.Context, tx pgx.Tx, clientID, taskID uuid.UUID, amount int64) error
	Release(ctx context.Context, tx pgx.Tx, clientID, freelancerID, taskID uuid.UUID, amount int64) error
	Balance(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	History(ctx context.Context, userID uuid.UUID, limit int) ([]*models.LedgerEntry, error)
}

type service struct {
	wallets WalletStore
	entries EntryStore
	logger  *slog.Logger
}

func NewService(wallets WalletStore, entries EntryStore, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{wallets: wallets, entries: entries, logger: logger}
}

var _ Service = (*service)(nil)

// Lock locks the client's wallet row, checks the balance and moves amount to locked.
func (s *service) Lock(ctx context.Context, tx pgx.Tx, clientID, taskID uuid.UUID, amount int64) (err error) {
	ctx, span := observability.StartSpan(ctx, "ledger.lock",
		attribute.String("task_id", taskID.String()),
		attribute.Int64("amount_minor", amount),
	)
	defer func() {
		metrics.RecordLedgerMovement(models.LedgerEntryEscrowLock, outcome(err), amount)
		observability.EndSpan(span, err)
	}()

	if amount <= 0 {
		return ErrInvalidAmount
	}
	w, err := s.wallets.GetForUpdate(ctx, tx, clientID)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: client %s has no wallet", ErrInsufficientFunds, clientID)
	}
	if err != nil {
		return err
	}
	if _, err := ApplyLock(*w, amount); err != nil {
		return err
	}
	after, err := s.wallets.MoveToLocked(ctx, tx, clientID, amount)
	if errors.Is(err, repository.ErrConditionFailed) {
		return ErrInsufficientFunds
	}
	if err != nil {
		return err
	}
	return s.entries.CreateTx(ctx, tx, &models.LedgerEntry{
		ID:             uuid.New(),
		UserID:         clientID,
		TaskID:         &taskID,
		EntryType:      models.LedgerEntryEscrowLock,
		AmountMinor:    amount,
		AvailableAfter: after.AvailableMinor,
		LockedAfter:    after.LockedMinor,
	})
}

// Release pays amount from the client's locked funds to the freelancer's available funds.
// Both wallet rows are locked in deterministic order to avoid deadlock.
func (s *service) Release(ctx context.Context, tx pgx.Tx, clientID, freelancerID, taskID uuid.UUID, amount int64) (err error) {
	ctx, span := observability.StartSpan(ctx, "ledger.release",
		attribute.String("task_id", taskID.String()),
		attribute.Int64("amount_minor", amount),
	)
	defer func() {
		metrics.RecordLedgerMovement(models.LedgerEntryEscrowRelease, outcome(err), amount)
		observability.EndSpan(span, err)
	}()

	if amount <= 0 {
		return ErrInvalidAmount
	}
	if clientID == freelancerID {
		return ErrSameWallet
	}

	locked := make(map[uuid.UUID]*models.Wallet, 2)
	for _, id := range lockOrder(clientID, freelancerID) {
		w, err := s.wallets.GetForUpdate(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("lock wallet %s: %w", id, err)
		}
		locked[id] = w
	}
	if _, _, err := ApplyRelease(*locked[clientID], *locked[freelancerID], amount); err != nil {
		if errors.Is(err, ErrInsufficientLockedFunds) {
			s.logger.Error("escrow release exceeds locked funds",
				"task_id", taskID, "client_id", clientID,
				"locked_minor", locked[clientID].LockedMinor, "amount_minor", amount)
		}
		return err
	}

	clientAfter, err := s.wallets.DebitLocked(ctx, tx, clientID, amount)
	if errors.Is(err, repository.ErrConditionFailed) {
		return ErrInsufficientLockedFunds
	}
	if err != nil {
		return err
	}
	freelancerAfter, err := s.wallets.CreditAvailable(ctx, tx, freelancerID, amount)
	if err != nil {
		return err
	}

	if err := s.entries.CreateTx(ctx, tx, &models.LedgerEntry{
		ID: uuid.New(), UserID: clientID, TaskID: &taskID,
		EntryType: models.LedgerEntryEscrowRelease, AmountMinor: amount,
		AvailableAfter: clientAfter.AvailableMinor, LockedAfter: clientAfter.LockedMinor,
	}); err != nil {
		return err
	}
	return s.entries.CreateTx(ctx, tx, &models.LedgerEntry{
		ID: uuid.New(), UserID: freelancerID, TaskID: &taskID,
		EntryType: models.LedgerEntryTaskEarning, AmountMinor: amount,
		AvailableAfter: freelancerAfter.AvailableMinor, LockedAfter: freelancerAfter.LockedMinor,
	})
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	return s.wallets.GetByUserID(ctx, userID)
}

func (s *service) History(ctx context.Context, userID uuid.UUID, limit int) ([]*models.LedgerEntry, error) {
	return s.entries.ListByUserID(ctx, userID, limit)
}

func lockOrder(a, b uuid.UUID) []uuid.UUID {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return []uuid.UUID{a, b}
	}
	return []uuid.UUID{b, a}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrInsufficientLockedFunds):
		return "insufficient_locked_funds"
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrSameWallet):
		return "invalid"
	default:
		return "error"
	}
}
