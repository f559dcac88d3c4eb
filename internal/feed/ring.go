package feed

import (
	"sync"
	"time"
)

const DefaultSize = 50

// Event announces one generated record. Events are never persisted.
type Event struct {
	JobID    string    `json:"job_id"`
	RecordID string    `json:"record_id"`
	Name     string    `json:"name"`
	HasEmail bool      `json:"has_email"`
	At       time.Time `json:"at"`
}

// Ring keeps the most recent events; once full, the oldest is overwritten.
type Ring struct {
	mu    sync.Mutex
	buf   []Event
	next  int
	count int
}

func NewRing(size int) *Ring {
	if size <= 0 {
		size = DefaultSize
	}
	return &Ring{buf: make([]Event, size)}
}

func (r *Ring) Push(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = e
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Snapshot returns the buffered events, oldest first.
func (r *Ring) Snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, 0, r.count)
	start := (r.next - r.count + len(r.buf)) % len(r.buf)
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}
