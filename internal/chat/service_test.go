package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/campusgig/backend/internal/models"
	"github.com/campusgig/backend/internal/repository"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

// --- recordingTx satisfies pgx.Tx; it records whether it was committed. ---

type recordingTx struct{ committed, rolledBack bool }

func (tx *recordingTx) Begin(context.Context) (pgx.Tx, error) { return tx, nil }
func (tx *recordingTx) Commit(context.Context) error {
	tx.committed = true
	return nil
}
func (tx *recordingTx) Rollback(context.Context) error {
	if !tx.committed {
		tx.rolledBack = true
	}
	return nil
}
func (*recordingTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (*recordingTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (*recordingTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (*recordingTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (*recordingTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (*recordingTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (*recordingTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (*recordingTx) Conn() *pgx.Conn { return nil }

type mockDB struct{ txs []*recordingTx }

func (m *mockDB) Begin(context.Context) (pgx.Tx, error) {
	tx := &recordingTx{}
	m.txs = append(m.txs, tx)
	return tx, nil
}

// mockMessages publishes each insert straight into a hub in place of the
// NOTIFY round trip.
type mockMessages struct {
	msgs map[uuid.UUID]models.Message
	hub  *Hub
}

func (m *mockMessages) CreateTx(ctx context.Context, _ pgx.Tx, msg *models.Message) error {
	if _, ok := m.msgs[msg.ID]; ok {
		return repository.ErrDuplicate
	}
	m.msgs[msg.ID] = *msg
	if m.hub != nil {
		m.hub.Publish(ctx, *msg)
	}
	return nil
}

func (m *mockMessages) ListByTask(_ context.Context, taskID uuid.UUID, _ int) ([]*models.Message, error) {
	var out []*models.Message
	for _, msg := range m.msgs {
		if msg.TaskID == taskID {
			msg := msg
			out = append(out, &msg)
		}
	}
	return out, nil
}

type mockTasks struct{ tasks map[uuid.UUID]*models.Task }

func (m *mockTasks) GetByID(_ context.Context, id uuid.UUID) (*models.Task, error) {
	t, ok := m.tasks[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return t, nil
}

type mockApplicants struct{ applied map[[2]uuid.UUID]bool }

func (m *mockApplicants) HasApplied(_ context.Context, taskID, userID uuid.UUID) (bool, error) {
	return m.applied[[2]uuid.UUID{taskID, userID}], nil
}

type fixture struct {
	svc                                  *Service
	db                                   *mockDB
	msgs                                 *mockMessages
	hub                                  *Hub
	task                                 *models.Task
	client, freelancer, applicant, other uuid.UUID
}

func newFixture() *fixture {
	f := &fixture{
		db:         &mockDB{},
		hub:        NewHub(64),
		client:     uuid.New(),
		freelancer: uuid.New(),
		applicant:  uuid.New(),
		other:      uuid.New(),
	}
	fl := f.freelancer
	f.task = &models.Task{ID: uuid.New(), ClientID: f.client, AssignedFreelancerID: &fl, Status: models.TaskStatusAssigned}
	f.msgs = &mockMessages{msgs: map[uuid.UUID]models.Message{}, hub: f.hub}
	f.svc = NewService(f.db, f.msgs,
		&mockTasks{tasks: map[uuid.UUID]*models.Task{f.task.ID: f.task}},
		&mockApplicants{applied: map[[2]uuid.UUID]bool{{f.task.ID, f.applicant}: true}},
		nil)
	return f
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestSend_ParticipantsOnly(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for name, actor := range map[string]uuid.UUID{"client": f.client, "freelancer": f.freelancer, "applicant": f.applicant} {
		m, err := f.svc.Send(ctx, actor, f.task.ID, "  hi from "+name+"  ")
		if err != nil {
			t.Errorf("%s: Send: %v", name, err)
			continue
		}
		if m.SenderID == nil || *m.SenderID != actor || m.Kind != models.MessageKindUser || strings.HasPrefix(m.Body, " ") {
			t.Errorf("%s: message: %+v", name, m)
		}
	}
	if _, err := f.svc.Send(ctx, f.other, f.task.ID, "let me in"); !errors.Is(err, ErrNotParticipant) {
		t.Errorf("stranger: expected ErrNotParticipant, got %v", err)
	}
	if _, err := f.svc.Send(ctx, f.client, uuid.New(), "anyone?"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("unknown task: expected ErrNotFound, got %v", err)
	}
	for _, tx := range f.db.txs {
		if !tx.committed {
			t.Error("send transaction was not committed")
		}
	}
}

func TestSend_RejectsBadBodies(t *testing.T) {
	f := newFixture()
	for _, body := range []string{"", "   ", strings.Repeat("a", maxBodyLen+1)} {
		if _, err := f.svc.Send(context.Background(), f.client, f.task.ID, body); !errors.Is(err, ErrInvalidMessage) {
			t.Errorf("body len %d: expected ErrInvalidMessage, got %v", len(body), err)
		}
	}
	if len(f.db.txs) != 0 {
		t.Error("invalid message should not open a transaction")
	}
}

func TestSend_ReachesSubscribers(t *testing.T) {
	f := newFixture()
	got := &collector{}
	cancel := f.hub.Subscribe(f.task.ID, got.consume)
	defer cancel()

	m, err := f.svc.Send(context.Background(), f.freelancer, f.task.ID, "draft attached")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.count() != 1 || got.msgs[0].ID != m.ID {
		t.Fatalf("subscriber got %+v", got.msgs)
	}
}

func TestPostSystem_DuplicateIDRollsBack(t *testing.T) {
	f := newFixture()
	id := uuid.New()
	if err := f.svc.PostSystem(context.Background(), id, f.task.ID, "Task assigned"); err != nil {
		t.Fatalf("PostSystem: %v", err)
	}
	err := f.svc.PostSystem(context.Background(), id, f.task.ID, "Task assigned")
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if last := f.db.txs[len(f.db.txs)-1]; !last.rolledBack {
		t.Error("failed post should roll back")
	}
	if m := f.msgs.msgs[id]; m.SenderID != nil || m.Kind != models.MessageKindSystem {
		t.Errorf("system message: %+v", m)
	}
}

func TestHistory(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, err := f.svc.Send(ctx, f.client, f.task.ID, "first"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	hist, err := f.svc.History(ctx, f.applicant, f.task.ID, 50)
	if err != nil || len(hist) != 1 {
		t.Fatalf("History: %+v, %v", hist, err)
	}
	if _, err := f.svc.History(ctx, f.other, f.task.ID, 50); !errors.Is(err, ErrNotParticipant) {
		t.Errorf("stranger history: expected ErrNotParticipant, got %v", err)
	}
}
