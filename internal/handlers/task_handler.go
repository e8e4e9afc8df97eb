package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/campusgig/backend/internal/auth"
	"github.com/campusgig/backend/internal/lifecycle"
	"github.com/campusgig/backend/internal/models"
	"github.com/campusgig/backend/internal/money"
	"github.com/campusgig/backend/internal/repository"
	"github.com/campusgig/backend/internal/schema"
)

// TaskService is the lifecycle surface the task endpoints drive.
type TaskService interface {
	Create(ctx context.Context, actor uuid.UUID, in lifecycle.CreateInput) (*models.Task, error)
	Apply(ctx context.Context, actor, taskID uuid.UUID, pitch string) (*models.Application, error)
	Assign(ctx context.Context, actor, taskID, applicationID uuid.UUID) (*models.Task, error)
	Submit(ctx context.Context, actor, taskID uuid.UUID) (*models.Task, error)
	Complete(ctx context.Context, actor, taskID uuid.UUID, rating int) (*models.Task, error)
	Get(ctx context.Context, taskID uuid.UUID) (*models.Task, error)
	ListOpen(ctx context.Context, f repository.TaskFilter) ([]*models.Task, error)
	ListMine(ctx context.Context, actor uuid.UUID) ([]*models.Task, error)
	ListApplications(ctx context.Context, actor, taskID uuid.UUID) ([]*models.Application, error)
}

var _ TaskService = (*lifecycle.Service)(nil)

// TaskHandler serves /api/v1/tasks endpoints.
type TaskHandler struct {
	Tasks   TaskService
	Schemas *schema.Validator
	Logger  *slog.Logger
}

// taskView adds the rupee budget to the stored task.
type taskView struct {
	*models.Task
	Budget string `json:"budget"`
}

func viewOf(t *models.Task) taskView {
	return taskView{Task: t, Budget: money.Format(t.BudgetMinor)}
}

func viewsOf(ts []*models.Task) []taskView {
	out := make([]taskView, 0, len(ts))
	for _, t := range ts {
		out = append(out, viewOf(t))
	}
	return out
}

// --- POST /api/v1/tasks ---

type createTaskRequest struct {
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Category       string          `json:"category"`
	Priority       string          `json:"priority"`
	Budget         decimal.Decimal `json:"budget"`
	Deadline       time.Time       `json:"deadline"`
	RequiredSkills []string        `json:"required_skills"`
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req createTaskRequest
	if !readRequest(w, r, h.Schemas, schema.CreateTask, &req) {
		return
	}
	budget, err := money.ToMinor(req.Budget)
	if err != nil {
		fail(w, h.Logger, "create task", err)
		return
	}
	task, err := h.Tasks.Create(r.Context(), id.UserID, lifecycle.CreateInput{
		Title:          req.Title,
		Description:    req.Description,
		Category:       req.Category,
		Priority:       req.Priority,
		BudgetMinor:    budget,
		Deadline:       req.Deadline,
		RequiredSkills: req.RequiredSkills,
	})
	if err != nil {
		fail(w, h.Logger, "create task", err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(task))
}

// --- GET /api/v1/tasks ---

// ListOpen serves the open-task feed. Filters: category, priority, q, skill, limit.
func (h *TaskHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := repository.TaskFilter{
		Category: q.Get("category"),
		Priority: q.Get("priority"),
		Search:   q.Get("q"),
		Skill:    q.Get("skill"),
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		f.Limit = n
	}
	tasks, err := h.Tasks.ListOpen(r.Context(), f)
	if err != nil {
		fail(w, h.Logger, "list open tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, viewsOf(tasks))
}

// --- GET /api/v1/tasks/mine ---

func (h *TaskHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	tasks, err := h.Tasks.ListMine(r.Context(), id.UserID)
	if err != nil {
		fail(w, h.Logger, "list my tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, viewsOf(tasks))
}

// --- GET /api/v1/tasks/{id} ---

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	task, err := h.Tasks.Get(r.Context(), taskID)
	if err != nil {
		fail(w, h.Logger, "get task", err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(task))
}

// --- POST /api/v1/tasks/{id}/applications ---

type applyRequest struct {
	Pitch string `json:"pitch"`
}

func (h *TaskHandler) Apply(w http.ResponseWriter, r *http.Request) {
	id, taskID, ok := actorAndTask(w, r)
	if !ok {
		return
	}
	var req applyRequest
	if !readRequest(w, r, h.Schemas, schema.Apply, &req) {
		return
	}
	app, err := h.Tasks.Apply(r.Context(), id.UserID, taskID, req.Pitch)
	if err != nil {
		fail(w, h.Logger, "apply", err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

// --- GET /api/v1/tasks/{id}/applications ---

func (h *TaskHandler) ListApplications(w http.ResponseWriter, r *http.Request) {
	id, taskID, ok := actorAndTask(w, r)
	if !ok {
		return
	}
	apps, err := h.Tasks.ListApplications(r.Context(), id.UserID, taskID)
	if err != nil {
		fail(w, h.Logger, "list applications", err)
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

// --- POST /api/v1/tasks/{id}/assign ---

type assignRequest struct {
	ApplicationID string `json:"application_id"`
}

func (h *TaskHandler) Assign(w http.ResponseWriter, r *http.Request) {
	id, taskID, ok := actorAndTask(w, r)
	if !ok {
		return
	}
	var req assignRequest
	if !readRequest(w, r, h.Schemas, schema.Assign, &req) {
		return
	}
	appID, err := uuid.Parse(req.ApplicationID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid application_id")
		return
	}
	task, err := h.Tasks.Assign(r.Context(), id.UserID, taskID, appID)
	if err != nil {
		fail(w, h.Logger, "assign", err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(task))
}

// --- POST /api/v1/tasks/{id}/submit ---

func (h *TaskHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, taskID, ok := actorAndTask(w, r)
	if !ok {
		return
	}
	task, err := h.Tasks.Submit(r.Context(), id.UserID, taskID)
	if err != nil {
		fail(w, h.Logger, "submit", err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(task))
}

// --- POST /api/v1/tasks/{id}/complete ---

type completeRequest struct {
	Rating int `json:"rating"`
}

func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, taskID, ok := actorAndTask(w, r)
	if !ok {
		return
	}
	var req completeRequest
	if !readRequest(w, r, h.Schemas, schema.Complete, &req) {
		return
	}
	task, err := h.Tasks.Complete(r.Context(), id.UserID, taskID, req.Rating)
	if err != nil {
		fail(w, h.Logger, "complete", err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(task))
}

// --- helpers ---

func actorAndTask(w http.ResponseWriter, r *http.Request) (*auth.Identity, uuid.UUID, bool) {
	id := auth.FromContext(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, uuid.Nil, false
	}
	taskID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return nil, uuid.Nil, false
	}
	return id, taskID, true
}
