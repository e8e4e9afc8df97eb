package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusgig/backend/internal/models"
)

const taskColumns = `id, client_id, assigned_freelancer_id, title, description, category, priority,
	budget_minor, deadline, status, required_skills, rating, created_at, updated_at`

type TaskRepo struct {
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

// TaskFilter narrows the open-task feed. Zero values match everything.
type TaskFilter struct {
	Category string
	Priority string
	Search   string
	Skill    string
	Limit    int
}

// StatusUpdate carries the columns a transition sets alongside status.
type StatusUpdate struct {
	AssignedFreelancerID *uuid.UUID
	Rating               *int
}

func scanTask(row pgx.Row) (*models.Task, error) {
	var t models.Task
	err := row.Scan(&t.ID, &t.ClientID, &t.AssignedFreelancerID, &t.Title, &t.Description, &t.Category, &t.Priority,
		&t.BudgetMinor, &t.Deadline, &t.Status, &t.RequiredSkills, &t.Rating, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

func collectTasks(rows pgx.Rows) ([]*models.Task, error) {
	defer rows.Close()
	var list []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

func (r *TaskRepo) Create(ctx context.Context, t *models.Task) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO tasks (id, client_id, title, description, category, priority, budget_minor, deadline, status, required_skills)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`, t.ID, t.ClientID, t.Title, t.Description, t.Category, t.Priority, t.BudgetMinor, t.Deadline, t.Status, t.RequiredSkills).
		Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
}

// ListOpen returns OPEN tasks matching f, soonest deadline first.
func (r *TaskRepo) ListOpen(ctx context.Context, f TaskFilter) ([]*models.Task, error) {
	where := []string{"status = 'OPEN'"}
	args := []any{}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Category != "" {
		add("category = $%d", f.Category)
	}
	if f.Priority != "" {
		add("priority = $%d", f.Priority)
	}
	if f.Search != "" {
		add("(title ILIKE '%%' || $%[1]d || '%%' OR description ILIKE '%%' || $%[1]d || '%%')", f.Search)
	}
	if f.Skill != "" {
		add("$%d = ANY(required_skills)", strings.ToLower(f.Skill))
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit)
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE %s ORDER BY deadline ASC LIMIT $%d`,
		taskColumns, strings.Join(where, " AND "), len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

// ListByParticipant returns tasks the user posted or is assigned to, newest first.
func (r *TaskRepo) ListByParticipant(ctx context.Context, userID uuid.UUID) ([]*models.Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE client_id = $1 OR assigned_freelancer_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

// CompareAndSetStatus moves the task from one status to another only if it
// is still in the expected status. It reports whether the row was updated.
func (r *TaskRepo) CompareAndSetStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to string, set StatusUpdate) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE tasks
		SET status = $3,
			assigned_freelancer_id = COALESCE($4, assigned_freelancer_id),
			rating = COALESCE($5, rating),
			updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, from, to, set.AssignedFreelancerID, set.Rating)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
