package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Application status enums. REJECTED is only used when competing
// applications are closed out on assignment.
const (
	ApplicationStatusPending  = "PENDING"
	ApplicationStatusAccepted = "ACCEPTED"
	ApplicationStatusRejected = "REJECTED"
)

type Application struct {
	ID           uuid.UUID `json:"id"`
	TaskID       uuid.UUID `json:"task_id"`
	FreelancerID uuid.UUID `json:"freelancer_id"`
	Pitch        string    `json:"pitch"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (a *Application) Validate() error {
	if a.ID == uuid.Nil || a.TaskID == uuid.Nil || a.FreelancerID == uuid.Nil {
		return fmt.Errorf("%w: application is missing an id reference", ErrInvalidRecord)
	}
	switch a.Status {
	case ApplicationStatusPending, ApplicationStatusAccepted, ApplicationStatusRejected:
		return nil
	}
	return fmt.Errorf("%w: application %s has unknown status %q", ErrInvalidRecord, a.ID, a.Status)
}
