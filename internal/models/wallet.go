package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Wallet holds a user's spendable and escrowed funds in minor units (paise).
type Wallet struct {
	UserID         uuid.UUID `json:"user_id"`
	AvailableMinor int64     `json:"available_minor"`
	LockedMinor    int64     `json:"locked_minor"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (w *Wallet) Validate() error {
	if w.UserID == uuid.Nil {
		return fmt.Errorf("%w: wallet has no owner", ErrInvalidRecord)
	}
	if w.AvailableMinor < 0 || w.LockedMinor < 0 {
		return fmt.Errorf("%w: wallet %s has negative balance (available=%d locked=%d)",
			ErrInvalidRecord, w.UserID, w.AvailableMinor, w.LockedMinor)
	}
	return nil
}

// Total is the sum of available and locked funds.
func (w Wallet) Total() int64 { return w.AvailableMinor + w.LockedMinor }
