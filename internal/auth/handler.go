package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/campusgig/backend/internal/models"
)

// SessionStarter creates the records a new user needs and returns their profile.
type SessionStarter interface {
	Ensure(ctx context.Context, id Identity) (*models.Profile, error)
}

type SessionResponse struct {
	Profile          *models.Profile `json:"profile"`
	ReliabilityStars float64         `json:"reliability_stars"`
}

type Handler struct {
	starter SessionStarter
	log     *slog.Logger
}

func NewHandler(starter SessionStarter, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{starter: starter, log: log}
}

// Session ensures the caller's profile and wallet exist. Clients call it once after sign-in.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	id := FromContext(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	p, err := h.starter.Ensure(r.Context(), *id)
	if err != nil {
		h.log.Error("session bootstrap failed", "user_id", id.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not start session")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(SessionResponse{Profile: p, ReliabilityStars: p.ReliabilityStars()})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
