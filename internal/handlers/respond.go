package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/campusgig/backend/internal/chat"
	"github.com/campusgig/backend/internal/lifecycle"
	"github.com/campusgig/backend/internal/money"
	"github.com/campusgig/backend/internal/schema"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps a domain error onto an HTTP status. Unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, lifecycle.ErrInvalidTransition), errors.Is(err, lifecycle.ErrDuplicateApplication):
		return http.StatusConflict
	case errors.Is(err, lifecycle.ErrUnauthorized), errors.Is(err, chat.ErrNotParticipant):
		return http.StatusForbidden
	case errors.Is(err, lifecycle.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, lifecycle.ErrInvalidInput), errors.Is(err, lifecycle.ErrInvalidRating),
		errors.Is(err, chat.ErrInvalidMessage), errors.Is(err, money.ErrInvalidAmount):
		return http.StatusUnprocessableEntity
	case errors.Is(err, lifecycle.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// fail writes err as a JSON error. Internal errors are logged and their cause hidden.
func fail(w http.ResponseWriter, log *slog.Logger, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error(op+" failed", "error", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

const maxBodyBytes = 1 << 20

// readRequest decodes the JSON body into v after checking it against the named
// schema when schemas is set. It writes the error response and returns false on failure.
func readRequest(w http.ResponseWriter, r *http.Request, schemas *schema.Validator, name string, v any) bool {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read body")
		return false
	}
	if schemas != nil {
		if err := schemas.Validate(name, data); err != nil {
			if errors.Is(err, schema.ErrValidation) {
				writeError(w, http.StatusUnprocessableEntity, err.Error())
			} else {
				writeError(w, http.StatusBadRequest, "invalid JSON")
			}
			return false
		}
	}
	if err := json.Unmarshal(data, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

func pathID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	return id, err == nil
}
