package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusgig/backend/internal/models"
)

// Publisher accepts messages decoded from the change feed.
type Publisher interface {
	Publish(ctx context.Context, msg models.Message)
}

// Listener holds a dedicated connection LISTENing on the message channel and
// publishes every notification into the hub. It reconnects with backoff.
type Listener struct {
	pool       *pgxpool.Pool
	channel    string
	publisher  Publisher
	logger     *slog.Logger
	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewListener(pool *pgxpool.Pool, channel string, publisher Publisher, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		pool:       pool,
		channel:    channel,
		publisher:  publisher,
		logger:     logger,
		minBackoff: 500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
	}
}

// Run blocks until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	backoff := l.minBackoff
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		l.logger.Warn("chat listener disconnected", "channel", l.channel, "error", err, "retry_in", backoff)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = nextBackoff(backoff, l.maxBackoff)
	}
}

func (l *Listener) listen(ctx context.Context) error {
	pc, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire: %w", err)
	}
	// A LISTENing connection must not go back to the pool.
	conn := pc.Hijack()
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	l.logger.Info("chat listener connected", "channel", l.channel)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		msg, err := DecodeNotification([]byte(n.Payload))
		if err != nil {
			l.logger.Error("dropping malformed chat notification", "error", err)
			continue
		}
		l.publisher.Publish(ctx, msg)
	}
}

// DecodeNotification parses a message notification payload.
func DecodeNotification(payload []byte) (models.Message, error) {
	var msg models.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, err
	}
	if msg.ID == uuid.Nil || msg.TaskID == uuid.Nil {
		return msg, errors.New("notification is missing message or task id")
	}
	return msg, nil
}

func nextBackoff(cur, max time.Duration) time.Duration {
	cur *= 2
	if cur > max {
		return max
	}
	return cur
}
