package reliability

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/campusgig/backend/internal/metrics"
	"github.com/campusgig/backend/internal/models"
)

// ProfileStore reads and writes the reliability columns of a profile.
type ProfileStore interface {
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Profile, error)
	UpdateReliability(ctx context.Context, tx pgx.Tx, id uuid.UUID, score, count int, pointsTotal int64) error
}

type Updater struct {
	profiles ProfileStore
}

func NewUpdater(profiles ProfileStore) *Updater {
	return &Updater{profiles: profiles}
}

// Apply records a rating for the freelancer inside tx and returns the updated state.
func (u *Updater) Apply(ctx context.Context, tx pgx.Tx, freelancerID uuid.UUID, rating int) (State, error) {
	p, err := u.profiles.GetForUpdate(ctx, tx, freelancerID)
	if err != nil {
		return State{}, fmt.Errorf("load profile %s: %w", freelancerID, err)
	}
	next, err := Next(State{
		Score:       p.ReliabilityScore,
		Count:       p.CompletedTasksCount,
		PointsTotal: p.RatingPointsTotal,
	}, rating)
	if err != nil {
		return State{}, err
	}
	if err := u.profiles.UpdateReliability(ctx, tx, freelancerID, next.Score, next.Count, next.PointsTotal); err != nil {
		return State{}, fmt.Errorf("update reliability %s: %w", freelancerID, err)
	}
	metrics.ObserveReliabilityScore(next.Score)
	return next, nil
}
