package models

import (
	"time"

	"github.com/google/uuid"
)

// Message kinds. System messages have no sender and are posted by the
// lifecycle notifier.
const (
	MessageKindUser   = "user"
	MessageKindSystem = "system"
)

type Message struct {
	ID        uuid.UUID  `json:"id"`
	TaskID    uuid.UUID  `json:"task_id"`
	SenderID  *uuid.UUID `json:"sender_id,omitempty"`
	Kind      string     `json:"kind"`
	Body      string     `json:"body"`
	CreatedAt time.Time  `json:"created_at"`
}
