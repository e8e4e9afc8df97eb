package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/campusgig/backend/internal/auth"
	"github.com/campusgig/backend/internal/chat"
	"github.com/campusgig/backend/internal/models"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type stubChat struct {
	history []*models.Message
	denied  bool
	sent    []string
}

func (s *stubChat) Authorize(context.Context, uuid.UUID, uuid.UUID) error {
	if s.denied {
		return chat.ErrNotParticipant
	}
	return nil
}

func (s *stubChat) Send(ctx context.Context, actor, taskID uuid.UUID, body string) (*models.Message, error) {
	if err := s.Authorize(ctx, actor, taskID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(body) == "" {
		return nil, chat.ErrInvalidMessage
	}
	s.sent = append(s.sent, body)
	sender := actor
	return &models.Message{ID: uuid.New(), TaskID: taskID, SenderID: &sender, Kind: models.MessageKindUser, Body: body}, nil
}

func (s *stubChat) History(ctx context.Context, actor, taskID uuid.UUID, _ int) ([]*models.Message, error) {
	if err := s.Authorize(ctx, actor, taskID); err != nil {
		return nil, err
	}
	return s.history, nil
}

// syncRecorder guards the recorder body so the test can read while the stream writes.
type syncRecorder struct {
	mu  sync.Mutex
	rec *httptest.ResponseRecorder
}

func (s *syncRecorder) Header() http.Header { return s.rec.Header() }
func (s *syncRecorder) WriteHeader(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.WriteHeader(code)
}
func (s *syncRecorder) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Write(p)
}
func (s *syncRecorder) Flush() {}
func (s *syncRecorder) body() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Body.String()
}

func chatRequest(method, body string, taskID uuid.UUID) *http.Request {
	req := authedRequest(method, "/api/v1/tasks/"+taskID.String()+"/messages", body, uuid.New())
	req.SetPathValue("id", taskID.String())
	return req
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestChatSend(t *testing.T) {
	s := &stubChat{}
	h := &ChatHandler{Chat: s, Relay: chat.NewHub(8), Logger: slog.Default()}

	rec := httptest.NewRecorder()
	h.Send(rec, chatRequest(http.MethodPost, `{"body":"hello"}`, uuid.New()))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	if len(s.sent) != 1 || s.sent[0] != "hello" {
		t.Fatalf("sent = %v", s.sent)
	}
}

func TestChatSend_EmptyBody(t *testing.T) {
	h := &ChatHandler{Chat: &stubChat{}, Relay: chat.NewHub(8), Logger: slog.Default()}
	rec := httptest.NewRecorder()
	h.Send(rec, chatRequest(http.MethodPost, `{"body":"  "}`, uuid.New()))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestChatHistory_NotParticipant(t *testing.T) {
	h := &ChatHandler{Chat: &stubChat{denied: true}, Relay: chat.NewHub(8), Logger: slog.Default()}
	rec := httptest.NewRecorder()
	h.History(rec, chatRequest(http.MethodGet, "", uuid.New()))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestChatStream_NotParticipantDoesNotSubscribe(t *testing.T) {
	hub := chat.NewHub(8)
	h := &ChatHandler{Chat: &stubChat{denied: true}, Relay: hub, Logger: slog.Default()}
	taskID := uuid.New()
	rec := httptest.NewRecorder()
	h.Stream(rec, chatRequest(http.MethodGet, "", taskID))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if n := hub.Subscribers(taskID); n != 0 {
		t.Fatalf("subscribers = %d, want 0", n)
	}
}

func TestChatStream_HistoryThenLiveWithoutDuplicates(t *testing.T) {
	taskID := uuid.New()
	old := &models.Message{ID: uuid.New(), TaskID: taskID, Kind: models.MessageKindUser, Body: "from history"}
	hub := chat.NewHub(8)
	h := &ChatHandler{Chat: &stubChat{history: []*models.Message{old}}, Relay: hub, Logger: slog.Default()}

	ctx, cancel := context.WithCancel(auth.WithIdentity(context.Background(), &auth.Identity{UserID: uuid.New()}))
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/"+taskID.String()+"/messages/stream", nil).WithContext(ctx)
	req.SetPathValue("id", taskID.String())
	w := &syncRecorder{rec: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Stream(w, req)
	}()

	waitFor(t, func() bool { return hub.Subscribers(taskID) == 1 && strings.Contains(w.body(), "from history") })

	live := models.Message{ID: uuid.New(), TaskID: taskID, Kind: models.MessageKindSystem, Body: "Task assigned"}
	hub.Publish(context.Background(), *old) // already sent as history
	hub.Publish(context.Background(), live)
	hub.Publish(context.Background(), live) // redelivery

	waitFor(t, func() bool { return strings.Contains(w.body(), "Task assigned") })
	cancel()
	<-done

	body := w.body()
	if n := strings.Count(body, "from history"); n != 1 {
		t.Errorf("history message sent %d times, want 1", n)
	}
	if n := strings.Count(body, "Task assigned"); n != 1 {
		t.Errorf("live message sent %d times, want 1", n)
	}
	if strings.Index(body, "from history") > strings.Index(body, "Task assigned") {
		t.Error("live message arrived before history")
	}
	if got := w.rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("content type = %q", got)
	}
	if n := hub.Subscribers(taskID); n != 0 {
		t.Errorf("subscribers after close = %d, want 0", n)
	}
}
