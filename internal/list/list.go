package list

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("list not found")

// Contribution records one job attached to a list and the number of records it
// had when attached. Totals are computed from contributions, so they do not
// depend on the job still being in history.
type Contribution struct {
	JobID      string    `json:"job_id"`
	Found      int       `json:"found"`
	AttachedAt time.Time `json:"attached_at"`
}

// List is a named collection of job references. It never holds records.
type List struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	JobIDs        []string       `json:"job_ids"`
	Contributions []Contribution `json:"contributions"`
	TotalRecords  int            `json:"total_records"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func New(name string, now time.Time) *List {
	return &List{
		ID:            uuid.NewString(),
		Name:          name,
		JobIDs:        []string{},
		Contributions: []Contribution{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// attach adds jobID, or refreshes its count if it is already attached.
func (l *List) attach(jobID string, found int, now time.Time) {
	for i := range l.Contributions {
		if l.Contributions[i].JobID == jobID {
			l.Contributions[i].Found = found
			l.recompute(now)
			return
		}
	}
	l.Contributions = append(l.Contributions, Contribution{JobID: jobID, Found: found, AttachedAt: now})
	l.recompute(now)
}

func (l *List) detach(jobID string, now time.Time) bool {
	for i := range l.Contributions {
		if l.Contributions[i].JobID == jobID {
			l.Contributions = append(l.Contributions[:i], l.Contributions[i+1:]...)
			l.recompute(now)
			return true
		}
	}
	return false
}

// recompute derives JobIDs and TotalRecords from the contributions.
func (l *List) recompute(now time.Time) {
	ids := make([]string, 0, len(l.Contributions))
	total := 0
	for _, c := range l.Contributions {
		ids = append(ids, c.JobID)
		total += c.Found
	}
	l.JobIDs = ids
	l.TotalRecords = total
	l.UpdatedAt = now
}

func (l *List) clone() *List {
	c := *l
	c.JobIDs = append([]string(nil), l.JobIDs...)
	c.Contributions = append([]Contribution(nil), l.Contributions...)
	return &c
}

// Repository stores lists by name.
type Repository interface {
	Get(ctx context.Context, name string) (*List, error)
	Put(ctx context.Context, l *List) error
	Delete(ctx context.Context, name string) error
	All(ctx context.Context) ([]*List, error)
}
