// Package chat relays task messages between participants. Messages are
// appended to the store first and fanned out from the store's change feed,
// so every delivered message is durable.
package chat

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/campusgig/backend/internal/metrics"
	"github.com/campusgig/backend/internal/models"
)

// Consumer receives messages for a subscribed task. It is called from the
// feed goroutine and must not block.
type Consumer func(ctx context.Context, msg models.Message)

// Relay delivers messages for a task until the returned cancel func is called.
type Relay interface {
	Subscribe(taskID uuid.UUID, consumer Consumer) (cancel func())
}

type subscription struct {
	consumer Consumer
	seen     *deduper
}

// Hub is the in-process fan-out. Each subscription drops messages it has
// already received, since the feed delivers at least once.
type Hub struct {
	mu         sync.RWMutex
	subs       map[uuid.UUID]map[uint64]*subscription
	nextID     uint64
	dedupeSize int
}

func NewHub(dedupeSize int) *Hub {
	if dedupeSize <= 0 {
		dedupeSize = 512
	}
	return &Hub{subs: make(map[uuid.UUID]map[uint64]*subscription), dedupeSize: dedupeSize}
}

var _ Relay = (*Hub)(nil)

func (h *Hub) Subscribe(taskID uuid.UUID, consumer Consumer) func() {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.subs[taskID] == nil {
		h.subs[taskID] = make(map[uint64]*subscription)
	}
	h.subs[taskID][id] = &subscription{consumer: consumer, seen: newDeduper(h.dedupeSize)}
	h.mu.Unlock()
	metrics.AddChatSubscribers(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[taskID], id)
			if len(h.subs[taskID]) == 0 {
				delete(h.subs, taskID)
			}
			h.mu.Unlock()
			metrics.AddChatSubscribers(-1)
		})
	}
}

// Publish hands msg to every subscriber of its task that has not seen it.
func (h *Hub) Publish(ctx context.Context, msg models.Message) {
	h.mu.RLock()
	subs := make([]*subscription, 0, len(h.subs[msg.TaskID]))
	for _, s := range h.subs[msg.TaskID] {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	for _, s := range subs {
		if s.seen.SeenAndRecord(msg.ID) {
			metrics.RecordChatDuplicate()
			continue
		}
		s.consumer(ctx, msg)
		metrics.RecordChatDelivered()
	}
}

// Subscribers returns the number of live subscriptions for a task.
func (h *Hub) Subscribers(taskID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[taskID])
}
