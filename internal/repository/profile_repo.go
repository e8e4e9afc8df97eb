package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusgig/backend/internal/models"
)

const profileColumns = `id, full_name, college_email, bio, skills, availability,
	reliability_score, completed_tasks_count, rating_points_total, created_at, updated_at`

type ProfileRepo struct {
	pool *pgxpool.Pool
}

func NewProfileRepo(pool *pgxpool.Pool) *ProfileRepo {
	return &ProfileRepo{pool: pool}
}

func scanProfile(row pgx.Row) (*models.Profile, error) {
	var p models.Profile
	err := row.Scan(&p.ID, &p.FullName, &p.CollegeEmail, &p.Bio, &p.Skills, &p.Availability,
		&p.ReliabilityScore, &p.CompletedTasksCount, &p.RatingPointsTotal, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Ensure inserts the profile if no row with its id exists. It reports whether a row was created.
func (r *ProfileRepo) Ensure(ctx context.Context, p *models.Profile) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO profiles (id, full_name, college_email)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`, p.ID, p.FullName, p.CollegeEmail)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ProfileRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	return scanProfile(r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
}

// GetForUpdate locks the profile row. Call within a transaction.
func (r *ProfileRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Profile, error) {
	return scanProfile(tx.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1 FOR UPDATE`, id))
}

// UpdateReliability writes the recomputed score. The count may only grow.
func (r *ProfileRepo) UpdateReliability(ctx context.Context, tx pgx.Tx, id uuid.UUID, score, count int, pointsTotal int64) error {
	tag, err := tx.Exec(ctx, `
		UPDATE profiles
		SET reliability_score = $2, completed_tasks_count = $3, rating_points_total = $4, updated_at = now()
		WHERE id = $1 AND completed_tasks_count <= $3
	`, id, score, count, pointsTotal)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConditionFailed
	}
	return nil
}

// UpdateDetails saves the user-editable profile fields.
func (r *ProfileRepo) UpdateDetails(ctx context.Context, p *models.Profile) error {
	return mapErr(r.pool.QueryRow(ctx, `
		UPDATE profiles SET full_name = $2, bio = $3, skills = $4, availability = $5, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, p.ID, p.FullName, p.Bio, p.Skills, p.Availability).Scan(&p.UpdatedAt))
}
