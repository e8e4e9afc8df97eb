package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/campusgig/backend/internal/models"
)

var (
	// ErrNotParticipant is returned when the actor is neither the client, the
	// assigned freelancer nor an applicant of the task.
	ErrNotParticipant = errors.New("not a participant in this task")
	// ErrInvalidMessage is returned for empty or oversized message bodies.
	ErrInvalidMessage = errors.New("invalid message")
)

const maxBodyLen = 1000

type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type MessageStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, m *models.Message) error
	ListByTask(ctx context.Context, taskID uuid.UUID, limit int) ([]*models.Message, error)
}

type TaskReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
}

type ApplicantChecker interface {
	HasApplied(ctx context.Context, taskID, freelancerID uuid.UUID) (bool, error)
}

type Service struct {
	db       TxBeginner
	messages MessageStore
	tasks    TaskReader
	apps     ApplicantChecker
	logger   *slog.Logger
}

func NewService(db TxBeginner, messages MessageStore, tasks TaskReader, apps ApplicantChecker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, messages: messages, tasks: tasks, apps: apps, logger: logger}
}

// Authorize returns nil if actor may read and post in the task's chat.
func (s *Service) Authorize(ctx context.Context, actor, taskID uuid.UUID) error {
	t, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return err
	}
	if t.ClientID == actor || t.IsAssignedTo(actor) {
		return nil
	}
	applied, err := s.apps.HasApplied(ctx, taskID, actor)
	if err != nil {
		return err
	}
	if !applied {
		return ErrNotParticipant
	}
	return nil
}

// Send appends a user message; subscribers receive it once the insert commits.
func (s *Service) Send(ctx context.Context, actor, taskID uuid.UUID, body string) (*models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" || utf8.RuneCountInString(body) > maxBodyLen {
		return nil, fmt.Errorf("%w: body must be 1-%d characters", ErrInvalidMessage, maxBodyLen)
	}
	if err := s.Authorize(ctx, actor, taskID); err != nil {
		return nil, err
	}
	sender := actor
	m := &models.Message{ID: uuid.New(), TaskID: taskID, SenderID: &sender, Kind: models.MessageKindUser, Body: body}
	if err := s.append(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// PostSystem appends a system message with a caller-chosen ID.
func (s *Service) PostSystem(ctx context.Context, messageID, taskID uuid.UUID, body string) error {
	return s.append(ctx, &models.Message{ID: messageID, TaskID: taskID, Kind: models.MessageKindSystem, Body: body})
}

func (s *Service) append(ctx context.Context, m *models.Message) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := s.messages.CreateTx(ctx, tx, m); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// History returns up to limit of the task's most recent messages, oldest first.
func (s *Service) History(ctx context.Context, actor, taskID uuid.UUID, limit int) ([]*models.Message, error) {
	if err := s.Authorize(ctx, actor, taskID); err != nil {
		return nil, err
	}
	return s.messages.ListByTask(ctx, taskID, limit)
}
