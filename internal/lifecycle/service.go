package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/campusgig/backend/internal/execution"
	"github.com/campusgig/backend/internal/metrics"
	"github.com/campusgig/backend/internal/models"
	"github.com/campusgig/backend/internal/observability"
	"github.com/campusgig/backend/internal/reliability"
	"github.com/campusgig/backend/internal/repository"
)

// TxBeginner starts a database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type TaskStore interface {
	Create(ctx context.Context, t *models.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	ListOpen(ctx context.Context, f repository.TaskFilter) ([]*models.Task, error)
	ListByParticipant(ctx context.Context, userID uuid.UUID) ([]*models.Task, error)
	CompareAndSetStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to string, set repository.StatusUpdate) (bool, error)
}

type ApplicationStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, a *models.Application) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error)
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*models.Application, error)
	CompareAndSetStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to string) (bool, error)
	RejectPending(ctx context.Context, tx pgx.Tx, taskID uuid.UUID) (int64, error)
}

// Escrow is the part of the ledger the lifecycle drives.
type Escrow interface {
	Lock(ctx context.Context, tx pgx.Tx, clientID, taskID uuid.UUID, amount int64) error
	Release(ctx context.Context, tx pgx.Tx, clientID, freelancerID, taskID uuid.UUID, amount int64) error
}

// Rater folds a completion rating into the freelancer's reliability score.
type Rater interface {
	Apply(ctx context.Context, tx pgx.Tx, freelancerID uuid.UUID, rating int) (reliability.State, error)
}

// InsertNoticeTxFunc enqueues a transition notice within the given transaction.
// Provided by main using river.Client.InsertTx.
type InsertNoticeTxFunc func(ctx context.Context, tx pgx.Tx, args execution.TransitionNoticeArgs) error

type Options struct {
	// MinBudgetMinor is the smallest budget a new task may carry.
	MinBudgetMinor int64
	// RejectCompetingApplications moves the other pending applications to
	// REJECTED when one is accepted.
	RejectCompetingApplications bool
}

const (
	maxTitleLen       = 120
	maxDescriptionLen = 4000
	maxPitchLen       = 2000
	maxSkills         = 10
)

type Service struct {
	db     TxBeginner
	tasks  TaskStore
	apps   ApplicationStore
	escrow Escrow
	rater  Rater
	notify InsertNoticeTxFunc
	logger *slog.Logger
	opts   Options
	now    func() time.Time
}

func NewService(db TxBeginner, tasks TaskStore, apps ApplicationStore, escrow Escrow, rater Rater,
	notify InsertNoticeTxFunc, logger *slog.Logger, opts Options) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db: db, tasks: tasks, apps: apps, escrow: escrow, rater: rater,
		notify: notify, logger: logger, opts: opts, now: time.Now,
	}
}

type CreateInput struct {
	Title          string
	Description    string
	Category       string
	Priority       string
	BudgetMinor    int64
	Deadline       time.Time
	RequiredSkills []string
}

func (s *Service) Create(ctx context.Context, actor uuid.UUID, in CreateInput) (task *models.Task, err error) {
	ctx, span := s.start(ctx, OpCreate, uuid.Nil)
	defer func() {
		id := uuid.Nil
		if task != nil {
			id = task.ID
		}
		s.finish(span, OpCreate, id, actor, err)
	}()

	t := &models.Task{
		ID:             uuid.New(),
		ClientID:       actor,
		Title:          strings.TrimSpace(in.Title),
		Description:    strings.TrimSpace(in.Description),
		Category:       strings.ToLower(strings.TrimSpace(in.Category)),
		Priority:       strings.ToLower(strings.TrimSpace(in.Priority)),
		BudgetMinor:    in.BudgetMinor,
		Deadline:       in.Deadline,
		Status:         models.TaskStatusOpen,
		RequiredSkills: models.NormalizeSkills(in.RequiredSkills),
	}
	if t.Priority == "" {
		t.Priority = models.PriorityMedium
	}
	if err := s.validateNew(t); err != nil {
		return nil, err
	}
	if err := s.tasks.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) validateNew(t *models.Task) error {
	switch {
	case t.Title == "" || utf8.RuneCountInString(t.Title) > maxTitleLen:
		return fmt.Errorf("%w: title must be 1-%d characters", ErrInvalidInput, maxTitleLen)
	case t.Description == "" || utf8.RuneCountInString(t.Description) > maxDescriptionLen:
		return fmt.Errorf("%w: description must be 1-%d characters", ErrInvalidInput, maxDescriptionLen)
	case !models.ValidCategory(t.Category):
		return fmt.Errorf("%w: unknown category %q", ErrInvalidInput, t.Category)
	case !models.ValidPriority(t.Priority):
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, t.Priority)
	case t.BudgetMinor <= 0 || t.BudgetMinor < s.opts.MinBudgetMinor:
		return fmt.Errorf("%w: budget must be at least %d", ErrInvalidInput, max(s.opts.MinBudgetMinor, 1))
	case !t.Deadline.After(s.now()):
		return fmt.Errorf("%w: deadline must be in the future", ErrInvalidInput)
	case len(t.RequiredSkills) > maxSkills:
		return fmt.Errorf("%w: at most %d skills", ErrInvalidInput, maxSkills)
	}
	return nil
}

// Apply records a freelancer's pitch for an open task. It does not change the task.
func (s *Service) Apply(ctx context.Context, actor, taskID uuid.UUID, pitch string) (app *models.Application, err error) {
	ctx, span := s.start(ctx, OpApply, taskID)
	defer func() { s.finish(span, OpApply, taskID, actor, err) }()

	t, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.Status != models.TaskStatusOpen {
		return nil, fmt.Errorf("%w: task is %s", ErrInvalidTransition, t.Status)
	}
	if t.ClientID == actor {
		return nil, fmt.Errorf("%w: clients cannot apply to their own task", ErrUnauthorized)
	}
	pitch = strings.TrimSpace(pitch)
	if pitch == "" || utf8.RuneCountInString(pitch) > maxPitchLen {
		return nil, fmt.Errorf("%w: pitch must be 1-%d characters", ErrInvalidInput, maxPitchLen)
	}

	a := &models.Application{
		ID:           uuid.New(),
		TaskID:       taskID,
		FreelancerID: actor,
		Pitch:        pitch,
		Status:       models.ApplicationStatusPending,
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := s.apps.CreateTx(ctx, tx, a); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, ErrDuplicateApplication
		case errors.Is(err, repository.ErrConditionFailed):
			return nil, fmt.Errorf("%w: task is no longer %s", ErrInvalidTransition, models.TaskStatusOpen)
		}
		return nil, err
	}
	if err := s.notify(ctx, tx, execution.TransitionNoticeArgs{TaskID: taskID, Event: execution.EventApplicationReceived}); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// Assign accepts one application and locks the task budget in the client's
// wallet. The task, the application and the wallet change together or not at all.
func (s *Service) Assign(ctx context.Context, actor, taskID, applicationID uuid.UUID) (task *models.Task, err error) {
	ctx, span := s.start(ctx, OpAssign, taskID)
	defer func() { s.finish(span, OpAssign, taskID, actor, err) }()

	edge := transitionFor(OpAssign)
	t, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.ClientID != actor {
		return nil, fmt.Errorf("%w: only the client can assign", ErrUnauthorized)
	}
	if t.Status != edge.From {
		return nil, fmt.Errorf("%w: task is %s", ErrInvalidTransition, t.Status)
	}
	a, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if a.TaskID != taskID {
		return nil, fmt.Errorf("%w: application belongs to another task", ErrInvalidTransition)
	}
	if a.Status != models.ApplicationStatusPending {
		return nil, fmt.Errorf("%w: application is %s", ErrInvalidTransition, a.Status)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	freelancer := a.FreelancerID
	ok, err := s.tasks.CompareAndSetStatus(ctx, tx, taskID, edge.From, edge.To, repository.StatusUpdate{AssignedFreelancerID: &freelancer})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: task is no longer %s", ErrInvalidTransition, edge.From)
	}
	ok, err = s.apps.CompareAndSetStatus(ctx, tx, applicationID, models.ApplicationStatusPending, models.ApplicationStatusAccepted)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: application is no longer pending", ErrInvalidTransition)
	}
	if err := s.escrow.Lock(ctx, tx, t.ClientID, taskID, t.BudgetMinor); err != nil {
		return nil, err
	}
	if s.opts.RejectCompetingApplications {
		n, err := s.apps.RejectPending(ctx, tx, taskID)
		if err != nil {
			return nil, err
		}
		span.SetAttributes(attribute.Int64("applications.rejected", n))
	}
	if err := s.notify(ctx, tx, execution.TransitionNoticeArgs{TaskID: taskID, Event: execution.EventAssigned}); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.tasks.GetByID(ctx, taskID)
}

// Submit marks the assigned freelancer's work as delivered.
func (s *Service) Submit(ctx context.Context, actor, taskID uuid.UUID) (task *models.Task, err error) {
	ctx, span := s.start(ctx, OpSubmit, taskID)
	defer func() { s.finish(span, OpSubmit, taskID, actor, err) }()

	edge := transitionFor(OpSubmit)
	t, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.Status != edge.From || t.AssignedFreelancerID == nil {
		return nil, fmt.Errorf("%w: task is %s", ErrInvalidTransition, t.Status)
	}
	if !t.IsAssignedTo(actor) {
		return nil, fmt.Errorf("%w: only the assigned freelancer can submit", ErrUnauthorized)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ok, err := s.tasks.CompareAndSetStatus(ctx, tx, taskID, edge.From, edge.To, repository.StatusUpdate{})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: task is no longer %s", ErrInvalidTransition, edge.From)
	}
	if err := s.notify(ctx, tx, execution.TransitionNoticeArgs{TaskID: taskID, Event: execution.EventSubmitted}); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.tasks.GetByID(ctx, taskID)
}

// Complete accepts submitted work: it records the rating, pays the freelancer
// out of escrow and updates their reliability score in one transaction.
func (s *Service) Complete(ctx context.Context, actor, taskID uuid.UUID, rating int) (task *models.Task, err error) {
	ctx, span := s.start(ctx, OpComplete, taskID)
	defer func() { s.finish(span, OpComplete, taskID, actor, err) }()

	edge := transitionFor(OpComplete)
	t, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.ClientID != actor {
		return nil, fmt.Errorf("%w: only the client can complete", ErrUnauthorized)
	}
	if t.Status != edge.From || t.AssignedFreelancerID == nil {
		return nil, fmt.Errorf("%w: task is %s", ErrInvalidTransition, t.Status)
	}
	if _, err := reliability.Points(rating); err != nil {
		return nil, err
	}
	freelancer := *t.AssignedFreelancerID

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ok, err := s.tasks.CompareAndSetStatus(ctx, tx, taskID, edge.From, edge.To, repository.StatusUpdate{Rating: &rating})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: task is no longer %s", ErrInvalidTransition, edge.From)
	}
	if err := s.escrow.Release(ctx, tx, t.ClientID, freelancer, taskID, t.BudgetMinor); err != nil {
		return nil, err
	}
	state, err := s.rater.Apply(ctx, tx, freelancer, rating)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("reliability.score", state.Score))
	if err := s.notify(ctx, tx, execution.TransitionNoticeArgs{TaskID: taskID, Event: execution.EventCompleted, Rating: &rating}); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.tasks.GetByID(ctx, taskID)
}

func (s *Service) Get(ctx context.Context, taskID uuid.UUID) (*models.Task, error) {
	return s.tasks.GetByID(ctx, taskID)
}

func (s *Service) ListOpen(ctx context.Context, f repository.TaskFilter) ([]*models.Task, error) {
	f.Category = strings.ToLower(strings.TrimSpace(f.Category))
	f.Priority = strings.ToLower(strings.TrimSpace(f.Priority))
	f.Skill = strings.ToLower(strings.TrimSpace(f.Skill))
	f.Search = strings.TrimSpace(f.Search)
	if f.Category != "" && !models.ValidCategory(f.Category) {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, f.Category)
	}
	if f.Priority != "" && !models.ValidPriority(f.Priority) {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, f.Priority)
	}
	return s.tasks.ListOpen(ctx, f)
}

// ListMine returns the tasks the actor posted or is assigned to.
func (s *Service) ListMine(ctx context.Context, actor uuid.UUID) ([]*models.Task, error) {
	return s.tasks.ListByParticipant(ctx, actor)
}

// ListApplications returns a task's applications. Only the client may list them.
func (s *Service) ListApplications(ctx context.Context, actor, taskID uuid.UUID) ([]*models.Application, error) {
	t, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.ClientID != actor {
		return nil, fmt.Errorf("%w: only the client can view applications", ErrUnauthorized)
	}
	return s.apps.ListByTask(ctx, taskID)
}

func (s *Service) start(ctx context.Context, op string, taskID uuid.UUID) (context.Context, trace.Span) {
	return observability.StartSpan(ctx, "lifecycle."+op, attribute.String("task_id", taskID.String()))
}

func (s *Service) finish(span trace.Span, op string, taskID, actor uuid.UUID, err error) {
	kind := ErrorKind(err)
	metrics.RecordTransition(op, kind)
	switch kind {
	case "ok":
		s.logger.Info("task "+op, "task_id", taskID, "actor", actor)
	case "error", "insufficient_locked_funds":
		s.logger.Error("task "+op+" failed", "task_id", taskID, "actor", actor, "error", err)
	default:
		s.logger.Debug("task "+op+" rejected", "task_id", taskID, "actor", actor, "reason", kind)
	}
	observability.EndSpan(span, err)
}
