package list

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/leadscout/engine/internal/lead"
)

var ErrEmptyName = errors.New("list name is required")

// RecordSource looks up the records of a retained job.
type RecordSource interface {
	Records(jobID string) ([]lead.Record, bool)
}

// Aggregator serializes read-recompute-write cycles on lists.
type Aggregator struct {
	mu     sync.Mutex
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

func NewAggregator(repo Repository, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		repo:   repo,
		logger: logger.With(zap.String("component", "lists")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Attach adds jobID with its found count to the list named name, creating the
// list on first use. Attaching a job twice refreshes its count instead of
// counting it again.
func (a *Aggregator) Attach(ctx context.Context, name, jobID string, found int) (*List, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	l, err := a.repo.Get(ctx, name)
	switch {
	case errors.Is(err, ErrNotFound):
		l = New(name, now)
		a.logger.Info("list created", zap.String("list", name))
	case err != nil:
		return nil, fmt.Errorf("load list %q: %w", name, err)
	}

	l.attach(jobID, found, now)
	if err := a.repo.Put(ctx, l); err != nil {
		return nil, fmt.Errorf("save list %q: %w", name, err)
	}

	a.logger.Info("job attached",
		zap.String("list", name),
		zap.String("job_id", jobID),
		zap.Int("found", found),
		zap.Int("total_records", l.TotalRecords),
	)
	return l, nil
}

func (a *Aggregator) Detach(ctx context.Context, name, jobID string) (*List, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	l, err := a.repo.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if !l.detach(jobID, a.now()) {
		return l, nil
	}
	if err := a.repo.Put(ctx, l); err != nil {
		return nil, fmt.Errorf("save list %q: %w", name, err)
	}
	return l, nil
}

func (a *Aggregator) Get(ctx context.Context, name string) (*List, error) {
	return a.repo.Get(ctx, strings.TrimSpace(name))
}

func (a *Aggregator) All(ctx context.Context) ([]*List, error) {
	return a.repo.All(ctx)
}

func (a *Aggregator) Delete(ctx context.Context, name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.repo.Delete(ctx, strings.TrimSpace(name)); err != nil {
		return err
	}
	a.logger.Info("list deleted", zap.String("list", name))
	return nil
}

// ResolveRecords concatenates, in attachment order, the records of every
// attached job that is still retained. Evicted jobs are skipped.
func (a *Aggregator) ResolveRecords(ctx context.Context, name string, source RecordSource) ([]lead.Record, error) {
	l, err := a.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	out := []lead.Record{}
	for _, id := range l.JobIDs {
		records, ok := source.Records(id)
		if !ok {
			continue
		}
		out = append(out, records...)
	}
	return out, nil
}
