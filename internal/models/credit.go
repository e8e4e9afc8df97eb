package models

import (
	"time"

	"github.com/google/uuid"
)

// Ledger entry_type enums. Every wallet movement writes one entry per wallet touched.
const (
	LedgerEntryEscrowLock    = "escrow_lock"
	LedgerEntryEscrowRelease = "escrow_release"
	LedgerEntryTaskEarning   = "task_earning"
)

type LedgerEntry struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"user_id"`
	TaskID         *uuid.UUID `json:"task_id,omitempty"`
	EntryType      string     `json:"entry_type"`
	AmountMinor    int64      `json:"amount_minor"`
	AvailableAfter int64      `json:"available_after"`
	LockedAfter    int64      `json:"locked_after"`
	CreatedAt      time.Time  `json:"created_at"`
}
