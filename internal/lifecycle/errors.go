package lifecycle

import (
	"errors"

	"github.com/campusgig/backend/internal/ledger"
	"github.com/campusgig/backend/internal/reliability"
	"github.com/campusgig/backend/internal/repository"
)

var (
	// ErrInvalidTransition is returned when the task or application is not in the status the operation requires.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrUnauthorized is returned when the actor is not allowed to perform the operation.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidInput is returned for malformed task or application input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDuplicateApplication is returned when a freelancer applies to the same task twice.
	ErrDuplicateApplication = errors.New("already applied to this task")

	ErrNotFound                = repository.ErrNotFound
	ErrInvalidRating           = reliability.ErrInvalidRating
	ErrInsufficientFunds       = ledger.ErrInsufficientFunds
	ErrInsufficientLockedFunds = ledger.ErrInsufficientLockedFunds
)

// ErrorKind classifies err for metrics and logs.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrDuplicateApplication):
		return "duplicate_application"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidRating):
		return "invalid_rating"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrInsufficientLockedFunds):
		return "insufficient_locked_funds"
	default:
		return "error"
	}
}
