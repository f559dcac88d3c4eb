package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

const (
	DefaultWindow    = time.Hour
	DefaultMaxStarts = 5
)

// CanStart reports whether another start fits in the window ending at now, and
// how many starts remain. Entries outside the window are ignored, not removed.
func CanStart(history []time.Time, now time.Time, window time.Duration, maxPerWindow int) (allowed bool, remaining int) {
	count := countInWindow(history, now, window)
	remaining = maxPerWindow - count
	if remaining < 0 {
		remaining = 0
	}
	return count < maxPerWindow, remaining
}

func countInWindow(history []time.Time, now time.Time, window time.Duration) int {
	n := 0
	for _, t := range history {
		if !t.After(now) && now.Sub(t) < window {
			n++
		}
	}
	return n
}

// Error is returned when the quota for the current window is used up.
type Error struct {
	Remaining int
	Limit     int
	RetryAt   time.Time
}

func (e *Error) Error() string {
	return fmt.Sprintf("rate limit exceeded: %d of %d starts remaining, retry at %s",
		e.Remaining, e.Limit, e.RetryAt.Format(time.RFC3339))
}

// HistoryStore persists the start history between restarts.
type HistoryStore interface {
	LoadHistory() ([]time.Time, error)
	SaveHistory(history []time.Time) error
}

type Status struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	Limit     int       `json:"limit"`
	Window    string    `json:"window"`
	RetryAt   time.Time `json:"retry_at,omitempty"`
}

// Limiter owns the start history. Check and Record are separate so that a
// rejected or failed start is never counted.
type Limiter struct {
	mu      sync.Mutex
	history []time.Time
	window  time.Duration
	max     int
	store   HistoryStore
}

func New(window time.Duration, maxPerWindow int) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if maxPerWindow <= 0 {
		maxPerWindow = DefaultMaxStarts
	}
	return &Limiter{window: window, max: maxPerWindow}
}

// WithStore loads any saved history and persists every later Record.
func (l *Limiter) WithStore(store HistoryStore) (*Limiter, error) {
	history, err := store.LoadHistory()
	if err != nil {
		return nil, fmt.Errorf("load rate limit history: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.store = store
	l.history = append(l.history, history...)
	return l, nil
}

// Check returns a *Error when no start is allowed at now.
func (l *Limiter) Check(now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.checkLocked(now)
}

func (l *Limiter) checkLocked(now time.Time) error {
	allowed, remaining := CanStart(l.history, now, l.window, l.max)
	if allowed {
		return nil
	}
	return &Error{Remaining: remaining, Limit: l.max, RetryAt: l.retryAtLocked(now)}
}

// Record counts a start at now. Entries that already left the window are
// dropped here to keep the history bounded.
func (l *Limiter) Record(now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.recordLocked(now)
}

func (l *Limiter) recordLocked(now time.Time) error {
	kept := l.history[:0]
	for _, t := range l.history {
		if now.Sub(t) < l.window {
			kept = append(kept, t)
		}
	}
	l.history = append(kept, now)

	if l.store != nil {
		snapshot := append([]time.Time(nil), l.history...)
		if err := l.store.SaveHistory(snapshot); err != nil {
			return fmt.Errorf("save rate limit history: %w", err)
		}
	}
	return nil
}

func (l *Limiter) Status(now time.Time) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	allowed, remaining := CanStart(l.history, now, l.window, l.max)
	st := Status{
		Allowed:   allowed,
		Remaining: remaining,
		Limit:     l.max,
		Window:    l.window.String(),
	}
	if !allowed {
		st.RetryAt = l.retryAtLocked(now)
	}
	return st
}

// retryAtLocked is when the oldest start still inside the window expires.
func (l *Limiter) retryAtLocked(now time.Time) time.Time {
	var oldest time.Time
	for _, t := range l.history {
		if t.After(now) || now.Sub(t) >= l.window {
			continue
		}
		if oldest.IsZero() || t.Before(oldest) {
			oldest = t
		}
	}
	if oldest.IsZero() {
		return now
	}
	return oldest.Add(l.window)
}

// Guard runs fn only if a start is allowed, and records the start only if fn
// succeeds. The limiter stays locked for the duration of fn, so concurrent
// callers cannot both pass the last free slot.
func (l *Limiter) Guard(now time.Time, fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.checkLocked(now); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	return l.recordLocked(now)
}
