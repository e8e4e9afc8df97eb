package ledger

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/uuid"
)

func TestApplyLock_NeverNegative(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		w := wallet(uuid.New(), r.Int63n(10_000), r.Int63n(10_000))
		amount := r.Int63n(12_000) - 1_000

		got, err := ApplyLock(w, amount)
		switch {
		case amount <= 0:
			if !errors.Is(err, ErrInvalidAmount) {
				t.Fatalf("amount %d: expected ErrInvalidAmount, got %v", amount, err)
			}
		case amount > w.AvailableMinor:
			if !errors.Is(err, ErrInsufficientFunds) {
				t.Fatalf("amount %d > available %d: expected ErrInsufficientFunds, got %v", amount, w.AvailableMinor, err)
			}
		default:
			if err != nil {
				t.Fatalf("ApplyLock: %v", err)
			}
		}
		if err != nil && got != w {
			t.Fatalf("failed lock modified wallet: %+v -> %+v", w, got)
		}
		if got.AvailableMinor < 0 || got.LockedMinor < 0 {
			t.Fatalf("negative balance after lock: %+v", got)
		}
		if got.Total() != w.Total() {
			t.Fatalf("lock changed wallet total: %d -> %d", w.Total(), got.Total())
		}
	}
}

func TestApplyRelease_Conserves(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for i := 0; i < 1000; i++ {
		c := wallet(uuid.New(), r.Int63n(10_000), r.Int63n(10_000))
		f := wallet(uuid.New(), r.Int63n(10_000), r.Int63n(10_000))
		amount := r.Int63n(11_000) + 1

		c2, f2, err := ApplyRelease(c, f, amount)
		if amount > c.LockedMinor {
			if !errors.Is(err, ErrInsufficientLockedFunds) {
				t.Fatalf("expected ErrInsufficientLockedFunds, got %v", err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ApplyRelease: %v", err)
		}
		if c2.Total()+f2.Total() != c.Total()+f.Total() {
			t.Fatalf("release did not conserve value: %d -> %d", c.Total()+f.Total(), c2.Total()+f2.Total())
		}
		if c2.LockedMinor < 0 || f2.AvailableMinor < 0 {
			t.Fatalf("negative balance after release: %+v %+v", c2, f2)
		}
		if c2.AvailableMinor != c.AvailableMinor || f2.LockedMinor != f.LockedMinor {
			t.Fatalf("release touched the wrong buckets: %+v %+v", c2, f2)
		}
	}
}
