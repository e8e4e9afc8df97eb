package chat

import (
	"sync"

	"github.com/google/uuid"
)

// deduper remembers the most recent message IDs delivered to one subscription.
// Once full, recording a new ID forgets the oldest.
type deduper struct {
	mu   sync.Mutex
	seen map[uuid.UUID]struct{}
	ring []uuid.UUID
	next int
}

func newDeduper(size int) *deduper {
	if size <= 0 {
		size = 1
	}
	return &deduper{seen: make(map[uuid.UUID]struct{}, size), ring: make([]uuid.UUID, 0, size)}
}

// SeenAndRecord reports whether id was already recorded, recording it if not.
func (d *deduper) SeenAndRecord(id uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[id]; ok {
		return true
	}
	if len(d.ring) < cap(d.ring) {
		d.ring = append(d.ring, id)
	} else {
		delete(d.seen, d.ring[d.next])
		d.ring[d.next] = id
		d.next = (d.next + 1) % len(d.ring)
	}
	d.seen[id] = struct{}{}
	return false
}

func (d *deduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
