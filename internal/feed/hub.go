package feed

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	TypeActivity    = "activity"
	TypeJobUpdated  = "job_updated"
	TypeJobDeleted  = "job_deleted"
	TypeListUpdated = "list_updated"
	TypeListDeleted = "list_deleted"
	TypePing        = "ping"
)

// Message is the envelope sent to live subscribers.
type Message struct {
	Type    string          `json:"type"`
	Version int             `json:"v"`
	At      time.Time       `json:"at"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func NewMessage(typ string, data any) Message {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	return Message{Type: typ, Version: 1, At: time.Now().UTC(), Data: raw}
}

// ForJob reports whether msg concerns jobID. Activity and job messages match
// on their job id; every other type concerns all jobs. An empty jobID matches
// everything.
func (m Message) ForJob(jobID string) bool {
	if jobID == "" {
		return true
	}
	var ref struct {
		JobID string `json:"job_id"`
		ID    string `json:"id"`
	}
	switch m.Type {
	case TypeActivity:
		json.Unmarshal(m.Data, &ref)
		return ref.JobID == jobID
	case TypeJobUpdated, TypeJobDeleted:
		json.Unmarshal(m.Data, &ref)
		return ref.ID == jobID
	default:
		return true
	}
}

// Hub fans messages out to subscribers. Slow subscribers miss messages
// instead of blocking publishers.
type Hub struct {
	mu      sync.Mutex
	clients map[chan Message]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan Message]struct{})}
}

func (h *Hub) Subscribe() chan Message {
	ch := make(chan Message, 32)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan Message) {
	h.mu.Lock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
	h.mu.Unlock()
}

func (h *Hub) Publish(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
			// drop if slow
		}
	}
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Feed combines the recent-activity ring with the live hub.
type Feed struct {
	ring *Ring
	hub  *Hub
}

func New(size int) *Feed {
	return &Feed{ring: NewRing(size), hub: NewHub()}
}

func (f *Feed) Hub() *Hub { return f.hub }

// Activity stores the event and pushes it to live subscribers.
func (f *Feed) Activity(e Event) {
	f.ring.Push(e)
	f.hub.Publish(NewMessage(TypeActivity, e))
}

func (f *Feed) Publish(typ string, data any) {
	f.hub.Publish(NewMessage(typ, data))
}

// Recent returns buffered events, oldest first. A non-empty jobID limits the
// result to that job.
func (f *Feed) Recent(jobID string) []Event {
	all := f.ring.Snapshot()
	if jobID == "" {
		return all
	}
	out := []Event{}
	for _, e := range all {
		if e.JobID == jobID {
			out = append(out, e)
		}
	}
	return out
}
