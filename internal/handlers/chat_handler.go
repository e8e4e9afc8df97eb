package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/campusgig/backend/internal/chat"
	"github.com/campusgig/backend/internal/models"
	"github.com/campusgig/backend/internal/schema"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 500
	streamBuffer        = 64
	heartbeatInterval   = 25 * time.Second
)

// ChatService is the chat surface the message endpoints drive.
type ChatService interface {
	Authorize(ctx context.Context, actor, taskID uuid.UUID) error
	Send(ctx context.Context, actor, taskID uuid.UUID, body string) (*models.Message, error)
	History(ctx context.Context, actor, taskID uuid.UUID, limit int) ([]*models.Message, error)
}

var _ ChatService = (*chat.Service)(nil)

// ChatHandler serves /api/v1/tasks/{id}/messages endpoints.
type ChatHandler struct {
	Chat      ChatService
	Relay     chat.Relay
	Schemas   *schema.Validator
	Logger    *slog.Logger
	Heartbeat time.Duration
}

// --- GET /api/v1/tasks/{id}/messages ---

func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	id, taskID, ok := actorAndTask(w, r)
	if !ok {
		return
	}
	limit, ok := historyLimit(w, r)
	if !ok {
		return
	}
	msgs, err := h.Chat.History(r.Context(), id.UserID, taskID, limit)
	if err != nil {
		fail(w, h.Logger, "chat history", err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// --- POST /api/v1/tasks/{id}/messages ---

type sendRequest struct {
	Body string `json:"body"`
}

func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	id, taskID, ok := actorAndTask(w, r)
	if !ok {
		return
	}
	var req sendRequest
	if !readRequest(w, r, h.Schemas, schema.SendMessage, &req) {
		return
	}
	msg, err := h.Chat.Send(r.Context(), id.UserID, taskID, req.Body)
	if err != nil {
		fail(w, h.Logger, "chat send", err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// --- GET /api/v1/tasks/{id}/messages/stream ---

// Stream sends the task's history followed by live messages as Server-Sent
// Events. The subscription is opened before history is read so nothing
// committed in between is missed; messages already sent as history are skipped.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id, taskID, ok := actorAndTask(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	ctx := r.Context()
	if err := h.Chat.Authorize(ctx, id.UserID, taskID); err != nil {
		fail(w, h.Logger, "chat stream", err)
		return
	}

	live := make(chan models.Message, streamBuffer)
	overflow := make(chan struct{})
	var closeOnce sync.Once
	cancel := h.Relay.Subscribe(taskID, func(_ context.Context, m models.Message) {
		select {
		case live <- m:
		default:
			// A stalled reader loses its stream; it reconnects and replays history.
			closeOnce.Do(func() { close(overflow) })
		}
	})
	defer cancel()

	history, err := h.Chat.History(ctx, id.UserID, taskID, defaultHistoryLimit)
	if err != nil {
		fail(w, h.Logger, "chat stream", err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sent := make(map[uuid.UUID]struct{}, len(history))
	for _, m := range history {
		if err := writeEvent(w, m); err != nil {
			return
		}
		sent[m.ID] = struct{}{}
	}
	flusher.Flush()

	beat := h.Heartbeat
	if beat <= 0 {
		beat = heartbeatInterval
	}
	ticker := time.NewTicker(beat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-overflow:
			h.Logger.Warn("chat stream overflowed", "task_id", taskID, "user_id", id.UserID)
			return
		case m := <-live:
			if _, dup := sent[m.ID]; dup {
				continue
			}
			if err := writeEvent(w, &m); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, m *models.Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: message\ndata: %s\n\n", m.ID, data)
	return err
}

func historyLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultHistoryLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	return min(n, maxHistoryLimit), true
}
