package lifecycle

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/campusgig/backend/internal/execution"
	"github.com/campusgig/backend/internal/ledger"
	"github.com/campusgig/backend/internal/models"
	"github.com/campusgig/backend/internal/reliability"
	"github.com/campusgig/backend/internal/repository"
)

// ---------------------------------------------------------------------------
// In-memory store. A transaction holds the store mutex from Begin until
// Commit or Rollback, which serialises transactions the way row locks would
// for the rows these tests touch. Rollback restores the snapshot taken at Begin.
// Methods that take a pgx.Tx run under that lock; the others lock briefly.
// ---------------------------------------------------------------------------

type state struct {
	tasks    map[uuid.UUID]models.Task
	apps     map[uuid.UUID]models.Application
	wallets  map[uuid.UUID]models.Wallet
	profiles map[uuid.UUID]models.Profile
	entries  []models.LedgerEntry
	notices  []execution.TransitionNoticeArgs
}

func (s state) clone() state {
	c := state{
		tasks:    make(map[uuid.UUID]models.Task, len(s.tasks)),
		apps:     make(map[uuid.UUID]models.Application, len(s.apps)),
		wallets:  make(map[uuid.UUID]models.Wallet, len(s.wallets)),
		profiles: make(map[uuid.UUID]models.Profile, len(s.profiles)),
		entries:  slices.Clone(s.entries),
		notices:  slices.Clone(s.notices),
	}
	for k, v := range s.tasks {
		c.tasks[k] = v
	}
	for k, v := range s.apps {
		c.apps[k] = v
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.profiles {
		c.profiles[k] = v
	}
	return c
}

type memDB struct {
	mu sync.Mutex
	state
}

func newMemDB() *memDB {
	return &memDB{state: state{
		tasks:    map[uuid.UUID]models.Task{},
		apps:     map[uuid.UUID]models.Application{},
		wallets:  map[uuid.UUID]models.Wallet{},
		profiles: map[uuid.UUID]models.Profile{},
	}}
}

func (db *memDB) Begin(context.Context) (pgx.Tx, error) {
	db.mu.Lock()
	return &memTx{db: db, snap: db.state.clone()}, nil
}

func (db *memDB) addUser(available int64) uuid.UUID {
	id := uuid.New()
	db.mu.Lock()
	defer db.mu.Unlock()
	db.wallets[id] = models.Wallet{UserID: id, AvailableMinor: available}
	db.profiles[id] = models.Profile{ID: id, FullName: "User", Availability: models.AvailabilityFreeNow}
	return id
}

func (db *memDB) wallet(id uuid.UUID) models.Wallet {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.wallets[id]
}

func (db *memDB) profile(id uuid.UUID) models.Profile {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.profiles[id]
}

func (db *memDB) task(id uuid.UUID) models.Task {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.tasks[id]
}

func (db *memDB) app(id uuid.UUID) models.Application {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.apps[id]
}

func (db *memDB) noticeEvents() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []string
	for _, n := range db.notices {
		out = append(out, n.Event)
	}
	return out
}

// notify is the InsertNoticeTxFunc; it runs under the transaction's lock.
func (db *memDB) notify(_ context.Context, _ pgx.Tx, args execution.TransitionNoticeArgs) error {
	db.notices = append(db.notices, args)
	return nil
}

// --- memTx satisfies pgx.Tx; only Commit and Rollback do anything. ---

type memTx struct {
	db   *memDB
	snap state
	done bool
}

func (tx *memTx) Commit(context.Context) error {
	if !tx.done {
		tx.done = true
		tx.db.mu.Unlock()
	}
	return nil
}

func (tx *memTx) Rollback(context.Context) error {
	if !tx.done {
		tx.done = true
		tx.db.state = tx.snap
		tx.db.mu.Unlock()
	}
	return nil
}

func (tx *memTx) Begin(context.Context) (pgx.Tx, error) { return tx, nil }
func (*memTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (*memTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (*memTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (*memTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (*memTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (*memTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (*memTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (*memTx) Conn() *pgx.Conn { return nil }

// --- TaskStore ---

type memTasks struct{ db *memDB }

func (m memTasks) Create(_ context.Context, t *models.Task) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.tasks[t.ID] = *t
	return nil
}

func (m memTasks) GetByID(_ context.Context, id uuid.UUID) (*models.Task, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	t, ok := m.db.tasks[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (m memTasks) ListOpen(_ context.Context, f repository.TaskFilter) ([]*models.Task, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []*models.Task
	for _, t := range m.db.tasks {
		if t.Status != models.TaskStatusOpen {
			continue
		}
		if f.Category != "" && t.Category != f.Category {
			continue
		}
		if f.Priority != "" && t.Priority != f.Priority {
			continue
		}
		if f.Skill != "" && !slices.Contains(t.RequiredSkills, f.Skill) {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(t.Title+" "+t.Description), strings.ToLower(f.Search)) {
			continue
		}
		t := t
		out = append(out, &t)
	}
	return out, nil
}

func (m memTasks) ListByParticipant(_ context.Context, userID uuid.UUID) ([]*models.Task, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []*models.Task
	for _, t := range m.db.tasks {
		if t.ClientID == userID || t.IsAssignedTo(userID) {
			t := t
			out = append(out, &t)
		}
	}
	return out, nil
}

func (m memTasks) CompareAndSetStatus(_ context.Context, _ pgx.Tx, id uuid.UUID, from, to string, set repository.StatusUpdate) (bool, error) {
	t, ok := m.db.tasks[id]
	if !ok || t.Status != from {
		return false, nil
	}
	t.Status = to
	if set.AssignedFreelancerID != nil {
		f := *set.AssignedFreelancerID
		t.AssignedFreelancerID = &f
	}
	if set.Rating != nil {
		r := *set.Rating
		t.Rating = &r
	}
	m.db.tasks[id] = t
	return true, nil
}

// --- ApplicationStore ---

type memApps struct{ db *memDB }

// CreateTx mirrors the insert guarded on the task still being OPEN.
func (m memApps) CreateTx(_ context.Context, _ pgx.Tx, a *models.Application) error {
	if t, ok := m.db.tasks[a.TaskID]; !ok || t.Status != models.TaskStatusOpen {
		return repository.ErrConditionFailed
	}
	for _, existing := range m.db.apps {
		if existing.TaskID == a.TaskID && existing.FreelancerID == a.FreelancerID {
			return repository.ErrDuplicate
		}
	}
	m.db.apps[a.ID] = *a
	return nil
}

func (m memApps) GetByID(_ context.Context, id uuid.UUID) (*models.Application, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	a, ok := m.db.apps[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (m memApps) ListByTask(_ context.Context, taskID uuid.UUID) ([]*models.Application, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []*models.Application
	for _, a := range m.db.apps {
		if a.TaskID == taskID {
			a := a
			out = append(out, &a)
		}
	}
	return out, nil
}

// CompareAndSetStatus mirrors the one-accepted-per-task unique index.
func (m memApps) CompareAndSetStatus(_ context.Context, _ pgx.Tx, id uuid.UUID, from, to string) (bool, error) {
	a, ok := m.db.apps[id]
	if !ok || a.Status != from {
		return false, nil
	}
	if to == models.ApplicationStatusAccepted {
		for _, other := range m.db.apps {
			if other.TaskID == a.TaskID && other.Status == models.ApplicationStatusAccepted {
				return false, repository.ErrDuplicate
			}
		}
	}
	a.Status = to
	m.db.apps[id] = a
	return true, nil
}

func (m memApps) RejectPending(_ context.Context, _ pgx.Tx, taskID uuid.UUID) (int64, error) {
	var n int64
	for id, a := range m.db.apps {
		if a.TaskID == taskID && a.Status == models.ApplicationStatusPending {
			a.Status = models.ApplicationStatusRejected
			m.db.apps[id] = a
			n++
		}
	}
	return n, nil
}

// --- ledger.WalletStore and ledger.EntryStore ---

type memWallets struct{ db *memDB }

func (m memWallets) GetByUserID(_ context.Context, id uuid.UUID) (*models.Wallet, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	return m.get(id)
}

func (m memWallets) get(id uuid.UUID) (*models.Wallet, error) {
	w, ok := m.db.wallets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &w, nil
}

func (m memWallets) GetForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*models.Wallet, error) {
	return m.get(id)
}

func (m memWallets) MoveToLocked(_ context.Context, _ pgx.Tx, id uuid.UUID, amount int64) (*models.Wallet, error) {
	w, ok := m.db.wallets[id]
	if !ok || w.AvailableMinor < amount {
		return nil, repository.ErrConditionFailed
	}
	w.AvailableMinor -= amount
	w.LockedMinor += amount
	m.db.wallets[id] = w
	return &w, nil
}

func (m memWallets) DebitLocked(_ context.Context, _ pgx.Tx, id uuid.UUID, amount int64) (*models.Wallet, error) {
	w, ok := m.db.wallets[id]
	if !ok || w.LockedMinor < amount {
		return nil, repository.ErrConditionFailed
	}
	w.LockedMinor -= amount
	m.db.wallets[id] = w
	return &w, nil
}

func (m memWallets) CreditAvailable(_ context.Context, _ pgx.Tx, id uuid.UUID, amount int64) (*models.Wallet, error) {
	w, ok := m.db.wallets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	w.AvailableMinor += amount
	m.db.wallets[id] = w
	return &w, nil
}

type memEntries struct{ db *memDB }

func (m memEntries) CreateTx(_ context.Context, _ pgx.Tx, e *models.LedgerEntry) error {
	m.db.entries = append(m.db.entries, *e)
	return nil
}

func (m memEntries) ListByUserID(_ context.Context, userID uuid.UUID, _ int) ([]*models.LedgerEntry, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []*models.LedgerEntry
	for _, e := range m.db.entries {
		if e.UserID == userID {
			e := e
			out = append(out, &e)
		}
	}
	return out, nil
}

// --- reliability.ProfileStore ---

type memProfiles struct{ db *memDB }

func (m memProfiles) GetForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*models.Profile, error) {
	p, ok := m.db.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (m memProfiles) UpdateReliability(_ context.Context, _ pgx.Tx, id uuid.UUID, score, count int, total int64) error {
	p, ok := m.db.profiles[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.ReliabilityScore, p.CompletedTasksCount, p.RatingPointsTotal = score, count, total
	m.db.profiles[id] = p
	return nil
}

// newTestService wires the real ledger and reliability services over the in-memory store.
func newTestService(db *memDB, opts Options) *Service {
	escrow := ledger.NewService(memWallets{db}, memEntries{db}, nil)
	rater := reliability.NewUpdater(memProfiles{db})
	return NewService(db, memTasks{db}, memApps{db}, escrow, rater, db.notify, nil, opts)
}
