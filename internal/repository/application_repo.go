package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusgig/backend/internal/models"
)

type ApplicationRepo struct {
	pool *pgxpool.Pool
}

func NewApplicationRepo(pool *pgxpool.Pool) *ApplicationRepo {
	return &ApplicationRepo{pool: pool}
}

func scanApplication(row pgx.Row) (*models.Application, error) {
	var a models.Application
	if err := row.Scan(&a.ID, &a.TaskID, &a.FreelancerID, &a.Pitch, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateTx inserts a new application while the task is still OPEN, holding a
// share lock on the task row until tx ends so a concurrent assign waits for it.
// Returns ErrConditionFailed when the task is not OPEN and ErrDuplicate when
// the freelancer already applied.
func (r *ApplicationRepo) CreateTx(ctx context.Context, tx pgx.Tx, a *models.Application) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO applications (id, task_id, freelancer_id, pitch, status)
		SELECT $1, $2, $3, $4, $5
		WHERE EXISTS (
			SELECT 1 FROM tasks WHERE id = $2 AND status = $6 FOR SHARE
		)
		RETURNING created_at, updated_at
	`, a.ID, a.TaskID, a.FreelancerID, a.Pitch, a.Status, models.TaskStatusOpen).Scan(&a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrConditionFailed
	}
	return mapErr(err)
}

func (r *ApplicationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	return scanApplication(r.pool.QueryRow(ctx, `
		SELECT id, task_id, freelancer_id, pitch, status, created_at, updated_at
		FROM applications WHERE id = $1
	`, id))
}

func (r *ApplicationRepo) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*models.Application, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, task_id, freelancer_id, pitch, status, created_at, updated_at
		FROM applications WHERE task_id = $1 ORDER BY created_at ASC
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// HasApplied reports whether the freelancer has an application on the task.
func (r *ApplicationRepo) HasApplied(ctx context.Context, taskID, freelancerID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM applications WHERE task_id = $1 AND freelancer_id = $2)
	`, taskID, freelancerID).Scan(&exists)
	return exists, err
}

// CompareAndSetStatus updates the application status only if it still has the expected one.
func (r *ApplicationRepo) CompareAndSetStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to string) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE applications SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

// RejectPending moves every remaining PENDING application of the task to REJECTED.
func (r *ApplicationRepo) RejectPending(ctx context.Context, tx pgx.Tx, taskID uuid.UUID) (int64, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE applications SET status = 'REJECTED', updated_at = now()
		WHERE task_id = $1 AND status = 'PENDING'
	`, taskID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
