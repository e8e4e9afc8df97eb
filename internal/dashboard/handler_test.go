package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/campusgig/backend/internal/auth"
	"github.com/campusgig/backend/internal/models"
	"github.com/campusgig/backend/internal/repository"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeProfiles struct {
	byID    map[uuid.UUID]*models.Profile
	updated *models.Profile
}

func (f *fakeProfiles) GetByID(_ context.Context, id uuid.UUID) (*models.Profile, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProfiles) UpdateDetails(_ context.Context, p *models.Profile) error {
	f.updated = p
	return nil
}

type fakeWallets struct {
	wallet  *models.Wallet
	entries []*models.LedgerEntry
	limit   int
}

func (f *fakeWallets) Balance(context.Context, uuid.UUID) (*models.Wallet, error) {
	if f.wallet == nil {
		return nil, repository.ErrNotFound
	}
	return f.wallet, nil
}

func (f *fakeWallets) History(_ context.Context, _ uuid.UUID, limit int) ([]*models.LedgerEntry, error) {
	f.limit = limit
	return f.entries, nil
}

func request(method, target, body string, user uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	return req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UserID: user}))
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestGetMe(t *testing.T) {
	user := uuid.New()
	profiles := &fakeProfiles{byID: map[uuid.UUID]*models.Profile{
		user: {ID: user, FullName: "Asha", ReliabilityScore: 80, Availability: models.AvailabilityFreeNow},
	}}
	h := NewHandler(profiles, &fakeWallets{}, nil, slog.Default())

	rec := httptest.NewRecorder()
	h.GetMe(rec, request(http.MethodGet, "/api/v1/me", "", user))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var out map[string]any
	_ = json.NewDecoder(rec.Body).Decode(&out)
	if out["reliability_stars"] != 4.0 {
		t.Errorf("reliability_stars = %v, want 4", out["reliability_stars"])
	}
	if out["full_name"] != "Asha" {
		t.Errorf("full_name = %v", out["full_name"])
	}
}

func TestGetMe_NoProfile(t *testing.T) {
	h := NewHandler(&fakeProfiles{byID: map[uuid.UUID]*models.Profile{}}, &fakeWallets{}, nil, slog.Default())
	rec := httptest.NewRecorder()
	h.GetMe(rec, request(http.MethodGet, "/api/v1/me", "", uuid.New()))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGetMe_Unauthenticated(t *testing.T) {
	h := NewHandler(&fakeProfiles{}, &fakeWallets{}, nil, slog.Default())
	rec := httptest.NewRecorder()
	h.GetMe(rec, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestUpdateMe(t *testing.T) {
	user := uuid.New()
	profiles := &fakeProfiles{byID: map[uuid.UUID]*models.Profile{
		user: {ID: user, FullName: "Asha", Availability: models.AvailabilityBusy},
	}}
	h := NewHandler(profiles, &fakeWallets{}, nil, slog.Default())

	body := `{"bio":"  3rd year CSE ","skills":["Go"," go","React"],"availability":"FreeNow"}`
	rec := httptest.NewRecorder()
	h.UpdateMe(rec, request(http.MethodPatch, "/api/v1/me", body, user))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body=%s)", rec.Code, rec.Body.String())
	}
	p := profiles.updated
	if p == nil {
		t.Fatal("profile not saved")
	}
	if p.FullName != "Asha" || p.Bio != "3rd year CSE" || p.Availability != models.AvailabilityFreeNow {
		t.Errorf("profile = %+v", p)
	}
	if len(p.Skills) != 2 || p.Skills[0] != "go" || p.Skills[1] != "react" {
		t.Errorf("skills = %v, want [go react]", p.Skills)
	}
}

func TestUpdateMe_Invalid(t *testing.T) {
	user := uuid.New()
	cases := map[string]string{
		"empty name":           `{"full_name":"   "}`,
		"unknown availability": `{"availability":"asleep"}`,
		"long bio":             `{"bio":"` + strings.Repeat("x", maxBioLen+1) + `"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			profiles := &fakeProfiles{byID: map[uuid.UUID]*models.Profile{
				user: {ID: user, FullName: "Asha", Availability: models.AvailabilityBusy},
			}}
			h := NewHandler(profiles, &fakeWallets{}, nil, slog.Default())
			rec := httptest.NewRecorder()
			h.UpdateMe(rec, request(http.MethodPatch, "/api/v1/me", body, user))
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422", rec.Code)
			}
			if profiles.updated != nil {
				t.Error("invalid profile was saved")
			}
		})
	}
}

func TestGetWallet(t *testing.T) {
	user := uuid.New()
	h := NewHandler(&fakeProfiles{}, &fakeWallets{wallet: &models.Wallet{UserID: user, AvailableMinor: 50000, LockedMinor: 25050}}, nil, slog.Default())

	rec := httptest.NewRecorder()
	h.GetWallet(rec, request(http.MethodGet, "/api/v1/wallet", "", user))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var out walletView
	_ = json.NewDecoder(rec.Body).Decode(&out)
	if out.Available != "500.00" || out.Locked != "250.50" || out.Total != "750.50" {
		t.Errorf("wallet = %+v", out)
	}
}

func TestListLedger_ClampsLimit(t *testing.T) {
	user := uuid.New()
	task := uuid.New()
	wallets := &fakeWallets{entries: []*models.LedgerEntry{
		{ID: uuid.New(), UserID: user, TaskID: &task, EntryType: models.LedgerEntryEscrowLock, AmountMinor: 50000},
	}}
	h := NewHandler(&fakeProfiles{}, wallets, nil, slog.Default())

	rec := httptest.NewRecorder()
	h.ListLedger(rec, request(http.MethodGet, "/api/v1/wallet/ledger?limit=10000", "", user))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if wallets.limit != maxLedgerLen {
		t.Errorf("limit = %d, want %d", wallets.limit, maxLedgerLen)
	}
	var out []map[string]any
	_ = json.NewDecoder(rec.Body).Decode(&out)
	if len(out) != 1 || out[0]["amount"] != "500.00" || out[0]["entry_type"] != models.LedgerEntryEscrowLock {
		t.Errorf("entries = %v", out)
	}
}
