package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusgig/backend/internal/models"
)

type MessageRepo struct {
	pool    *pgxpool.Pool
	channel string
}

// NewMessageRepo returns a repo that announces inserted messages on the given NOTIFY channel.
func NewMessageRepo(pool *pgxpool.Pool, channel string) *MessageRepo {
	return &MessageRepo{pool: pool, channel: channel}
}

func (r *MessageRepo) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// CreateTx appends the message and queues a notification carrying it.
// Postgres delivers the notification only if the transaction commits.
// NOTIFY payloads are capped at 8000 bytes, so callers bound the body length.
func (r *MessageRepo) CreateTx(ctx context.Context, tx pgx.Tx, m *models.Message) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO messages (id, task_id, sender_id, kind, body)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, m.ID, m.TaskID, m.SenderID, m.Kind, m.Body).Scan(&m.CreatedAt)
	if err != nil {
		return mapErr(err)
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `SELECT pg_notify($1, $2)`, r.channel, string(payload))
	return err
}

func (r *MessageRepo) ListByTask(ctx context.Context, taskID uuid.UUID, limit int) ([]*models.Message, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, task_id, sender_id, kind, body, created_at FROM (
			SELECT id, task_id, sender_id, kind, body, created_at
			FROM messages WHERE task_id = $1 ORDER BY created_at DESC LIMIT $2
		) recent ORDER BY created_at ASC
	`, taskID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.TaskID, &m.SenderID, &m.Kind, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &m)
	}
	return list, rows.Err()
}
