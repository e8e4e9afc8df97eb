// Package dashboard serves the signed-in user's own profile and wallet.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/campusgig/backend/internal/auth"
	"github.com/campusgig/backend/internal/models"
	"github.com/campusgig/backend/internal/money"
	"github.com/campusgig/backend/internal/repository"
	"github.com/campusgig/backend/internal/schema"
)

const (
	maxNameLen       = 80
	maxBioLen        = 500
	maxProfileSkills = 20
	defaultLedgerLen = 50
	maxLedgerLen     = 200
)

var errInvalidProfile = errors.New("invalid profile")

type ProfileStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	UpdateDetails(ctx context.Context, p *models.Profile) error
}

// Wallets reads balances and ledger history. Satisfied by ledger.Service.
type Wallets interface {
	Balance(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	History(ctx context.Context, userID uuid.UUID, limit int) ([]*models.LedgerEntry, error)
}

type Handler struct {
	profiles ProfileStore
	wallets  Wallets
	schemas  *schema.Validator
	log      *slog.Logger
}

// NewHandler returns the account handler. schemas may be nil to skip request schema checks.
func NewHandler(profiles ProfileStore, wallets Wallets, schemas *schema.Validator, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{profiles: profiles, wallets: wallets, schemas: schemas, log: log}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id := auth.FromContext(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return uuid.Nil, false
	}
	return id.UserID, true
}

type profileView struct {
	*models.Profile
	ReliabilityStars float64 `json:"reliability_stars"`
}

// GET /api/v1/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	p, err := h.profiles.GetByID(r.Context(), userID)
	if err != nil {
		h.lookupFailed(w, "get profile", userID, err)
		return
	}
	writeJSON(w, http.StatusOK, profileView{Profile: p, ReliabilityStars: p.ReliabilityStars()})
}

type updateProfileRequest struct {
	FullName     *string   `json:"full_name"`
	Bio          *string   `json:"bio"`
	Skills       *[]string `json:"skills"`
	Availability *string   `json:"availability"`
}

// apply copies the set fields onto p and validates the result.
func (req updateProfileRequest) apply(p *models.Profile) error {
	if req.FullName != nil {
		p.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Bio != nil {
		p.Bio = strings.TrimSpace(*req.Bio)
	}
	if req.Skills != nil {
		p.Skills = models.NormalizeSkills(*req.Skills)
	}
	if req.Availability != nil {
		p.Availability = strings.ToLower(strings.TrimSpace(*req.Availability))
	}
	switch {
	case p.FullName == "" || utf8.RuneCountInString(p.FullName) > maxNameLen:
		return fmt.Errorf("%w: full_name must be 1-%d characters", errInvalidProfile, maxNameLen)
	case utf8.RuneCountInString(p.Bio) > maxBioLen:
		return fmt.Errorf("%w: bio must be at most %d characters", errInvalidProfile, maxBioLen)
	case len(p.Skills) > maxProfileSkills:
		return fmt.Errorf("%w: at most %d skills", errInvalidProfile, maxProfileSkills)
	case !models.ValidAvailability(p.Availability):
		return fmt.Errorf("%w: unknown availability %q", errInvalidProfile, p.Availability)
	}
	return nil
}

// PATCH /api/v1/me
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<16))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read body")
		return
	}
	if h.schemas != nil {
		if err := h.schemas.Validate(schema.UpdateProfile, data); err != nil {
			if errors.Is(err, schema.ErrValidation) {
				writeError(w, http.StatusUnprocessableEntity, err.Error())
			} else {
				writeError(w, http.StatusBadRequest, "invalid JSON")
			}
			return
		}
	}
	var req updateProfileRequest
	if err := json.Unmarshal(data, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	p, err := h.profiles.GetByID(r.Context(), userID)
	if err != nil {
		h.lookupFailed(w, "get profile", userID, err)
		return
	}
	if err := req.apply(p); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := h.profiles.UpdateDetails(r.Context(), p); err != nil {
		h.lookupFailed(w, "update profile", userID, err)
		return
	}
	writeJSON(w, http.StatusOK, profileView{Profile: p, ReliabilityStars: p.ReliabilityStars()})
}

type walletView struct {
	AvailableMinor int64     `json:"available_minor"`
	LockedMinor    int64     `json:"locked_minor"`
	Available      string    `json:"available"`
	Locked         string    `json:"locked"`
	Total          string    `json:"total"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// GET /api/v1/wallet
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	wal, err := h.wallets.Balance(r.Context(), userID)
	if err != nil {
		h.lookupFailed(w, "get wallet", userID, err)
		return
	}
	writeJSON(w, http.StatusOK, walletView{
		AvailableMinor: wal.AvailableMinor,
		LockedMinor:    wal.LockedMinor,
		Available:      money.Format(wal.AvailableMinor),
		Locked:         money.Format(wal.LockedMinor),
		Total:          money.Format(wal.Total()),
		UpdatedAt:      wal.UpdatedAt,
	})
}

type ledgerEntryView struct {
	*models.LedgerEntry
	Amount string `json:"amount"`
}

// GET /api/v1/wallet/ledger
func (h *Handler) ListLedger(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	limit := defaultLedgerLen
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxLedgerLen)
	}
	entries, err := h.wallets.History(r.Context(), userID, limit)
	if err != nil {
		h.lookupFailed(w, "list ledger", userID, err)
		return
	}
	out := make([]ledgerEntryView, 0, len(entries))
	for _, e := range entries {
		out = append(out, ledgerEntryView{LedgerEntry: e, Amount: money.Format(e.AmountMinor)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) lookupFailed(w http.ResponseWriter, op string, userID uuid.UUID, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found; start a session first")
		return
	}
	h.log.Error(op+" failed", "user_id", userID, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}
