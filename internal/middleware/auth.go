package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/campusgig/backend/internal/auth"
)

// SessionEnsurer creates a user's profile and wallet on first sight.
type SessionEnsurer interface {
	EnsureOnce(ctx context.Context, id auth.Identity) error
}

// Authenticate verifies the Bearer session token, makes sure the user's
// records exist and stores the identity in the request context.
func Authenticate(tokens auth.Service, sessions SessionEnsurer, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractBearer(r)
			if raw == "" {
				writeError(w, http.StatusUnauthorized, "missing or malformed Authorization header")
				return
			}
			id, err := tokens.ValidateToken(r.Context(), raw)
			if err != nil {
				logger.Debug("token rejected", "error", err)
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			if sessions != nil {
				if err := sessions.EnsureOnce(r.Context(), *id); err != nil {
					logger.Error("bootstrap user records", "user_id", id.UserID, "error", err)
					writeError(w, http.StatusInternalServerError, "internal error")
					return
				}
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	// EventSource cannot set headers, so the chat stream may pass the token as a query parameter.
	if strings.HasSuffix(r.URL.Path, "/stream") {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
