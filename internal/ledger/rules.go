package ledger

import (
	"errors"

	"github.com/campusgig/backend/internal/models"
)

var (
	// ErrInsufficientFunds is returned when a client's available balance cannot cover an escrow lock.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInsufficientLockedFunds is returned when a release exceeds the client's locked balance.
	// Lifecycle invariants make this unreachable; seeing it means the store is inconsistent.
	ErrInsufficientLockedFunds = errors.New("insufficient locked funds")
	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrSameWallet is returned when a release would pay the client's own wallet.
	ErrSameWallet = errors.New("client and freelancer wallets must differ")
)

// ApplyLock moves amount from available to locked on w.
func ApplyLock(w models.Wallet, amount int64) (models.Wallet, error) {
	if amount <= 0 {
		return w, ErrInvalidAmount
	}
	if w.AvailableMinor < amount {
		return w, ErrInsufficientFunds
	}
	w.AvailableMinor -= amount
	w.LockedMinor += amount
	return w, nil
}

// ApplyRelease pays amount out of client's locked funds into freelancer's available funds.
// The combined total of both wallets is unchanged.
func ApplyRelease(client, freelancer models.Wallet, amount int64) (models.Wallet, models.Wallet, error) {
	if amount <= 0 {
		return client, freelancer, ErrInvalidAmount
	}
	if client.UserID == freelancer.UserID {
		return client, freelancer, ErrSameWallet
	}
	if client.LockedMinor < amount {
		return client, freelancer, ErrInsufficientLockedFunds
	}
	client.LockedMinor -= amount
	freelancer.AvailableMinor += amount
	return client, freelancer, nil
}
