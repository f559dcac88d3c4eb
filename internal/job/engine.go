package job

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/leadscout/engine/internal/feed"
	"github.com/leadscout/engine/internal/lead"
	"github.com/leadscout/engine/internal/list"
	"github.com/leadscout/engine/internal/metrics"
	"github.com/leadscout/engine/internal/query"
	"github.com/leadscout/engine/internal/ratelimit"
)

const (
	DefaultMaxDuration = 10 * time.Minute

	minStep = 5
	maxStep = 15

	// eventsPerTick caps the activity events emitted for one tick.
	eventsPerTick = 3
)

type Config struct {
	Store       JobStore
	Limiter     *ratelimit.Limiter
	Source      lead.Source
	Lists       *list.Aggregator
	Feed        *feed.Feed
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
	Rand        *rand.Rand
	Clock       func() time.Time
	MaxDuration time.Duration
}

// Engine owns every job state transition. All mutations run under one mutex.
type Engine struct {
	mu          sync.Mutex
	store       JobStore
	limiter     *ratelimit.Limiter
	source      lead.Source
	lists       *list.Aggregator
	feed        *feed.Feed
	metrics     *metrics.Metrics
	logger      *zap.Logger
	rng         *rand.Rand
	now         func() time.Time
	maxDuration time.Duration

	removeHooks []func(jobID string)
}

func NewEngine(cfg Config) *Engine {
	e := &Engine{
		store:       cfg.Store,
		limiter:     cfg.Limiter,
		source:      cfg.Source,
		lists:       cfg.Lists,
		feed:        cfg.Feed,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		rng:         cfg.Rand,
		now:         cfg.Clock,
		maxDuration: cfg.MaxDuration,
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	e.logger = e.logger.With(zap.String("component", "engine"))
	if e.store == nil {
		e.store = NewStore(DefaultHistoryCap)
	}
	if e.limiter == nil {
		e.limiter = ratelimit.New(ratelimit.DefaultWindow, ratelimit.DefaultMaxStarts)
	}
	if e.source == nil {
		e.source = lead.NewRandomGenerator()
	}
	if e.lists == nil {
		e.lists = list.NewAggregator(list.NewMemoryRepository(), cfg.Logger)
	}
	if e.feed == nil {
		e.feed = feed.New(feed.DefaultSize)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if e.now == nil {
		e.now = func() time.Time { return time.Now().UTC() }
	}
	if e.maxDuration <= 0 {
		e.maxDuration = DefaultMaxDuration
	}
	return e
}

func (e *Engine) Feed() *feed.Feed { return e.feed }

func (e *Engine) Lists() *list.Aggregator { return e.lists }

// OnRemove registers fn to run whenever a job leaves history, by eviction or
// deletion. fn runs with the engine lock held and must not call back into the
// engine.
func (e *Engine) OnRemove(fn func(jobID string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removeHooks = append(e.removeHooks, fn)
}

func (e *Engine) removed(id string) {
	for _, fn := range e.removeHooks {
		fn(id)
	}
	e.feed.Publish(feed.TypeJobDeleted, map[string]string{"id": id})
}

// Start validates req, checks the start quota and creates a pending job. The
// start is only counted against the quota once the job exists.
func (e *Engine) Start(ctx context.Context, req Request) (*Job, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	j := New(req, now)
	added := false
	err := e.limiter.Guard(now, func() error {
		if err := e.store.Add(j); err != nil {
			return fmt.Errorf("add job: %w", err)
		}
		added = true
		return nil
	})
	if err != nil {
		var rl *ratelimit.Error
		if errors.As(err, &rl) {
			e.metrics.Rejected()
			e.logger.Info("job start rejected",
				zap.Int("remaining", rl.Remaining),
				zap.Time("retry_at", rl.RetryAt),
			)
			return nil, fromLimiter(rl)
		}
		if !added {
			return nil, err
		}
		e.logger.Warn("job started but start history not saved", zap.String("job_id", j.ID), zap.Error(err))
	}

	e.metrics.JobStarted()
	e.logger.Info("job started",
		zap.String("job_id", j.ID),
		zap.String("location", j.Location),
		zap.String("keyword", j.Keyword),
		zap.Int("target_count", j.TargetCount),
	)
	e.prune()
	e.feed.Publish(feed.TypeJobUpdated, j.Summary())
	return j.Clone(), nil
}

// Tick advances a job by one step. Terminal jobs are returned unchanged.
func (e *Engine) Tick(ctx context.Context, id string) (*Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	j, err := e.store.Get(id)
	if err != nil {
		return nil, err
	}

	now := e.now()
	switch j.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return j, nil
	case StatusPending:
		j.Status = StatusRunning
		j.StartedAt = &now
		e.logger.Debug("job running", zap.String("job_id", j.ID))
	case StatusRunning:
	}

	if j.StartedAt != nil && now.Sub(*j.StartedAt) > e.maxDuration {
		return e.failLocked(j, errMaxDuration, now)
	}

	progress := j.Progress + minStep + e.rng.Intn(maxStep-minStep+1)
	if progress > 100 {
		progress = 100
	}
	target := progress * j.TargetCount / 100

	var fresh []lead.Record
	for idx := len(j.Records); idx < target; idx++ {
		r, err := e.source.Generate(j.ID, idx, j.Location, j.Keyword)
		if err != nil {
			j.Records = append(j.Records, fresh...)
			j.recomputeStats()
			e.metrics.Generated(len(fresh))
			return e.failLocked(j, &GenerationError{JobID: j.ID, Index: idx, Err: err}, now)
		}
		fresh = append(fresh, r)
	}

	j.Records = append(j.Records, fresh...)
	j.Progress = progress
	j.UpdatedAt = now
	j.recomputeStats()
	e.metrics.Generated(len(fresh))

	if progress == 100 {
		j.finish(StatusCompleted, now)
	}
	if err := e.store.Update(j); err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}
	e.emitActivity(j.ID, fresh, now)

	if j.Status == StatusCompleted {
		e.logger.Info("job completed",
			zap.String("job_id", j.ID),
			zap.Int("found", j.Found),
			zap.Int("with_email", j.WithEmail),
		)
		e.finished(j)
		if j.ListName != "" {
			e.attachLocked(ctx, j.ListName, j)
		}
	}
	e.feed.Publish(feed.TypeJobUpdated, j.Summary())
	return j, nil
}

func (e *Engine) emitActivity(jobID string, fresh []lead.Record, now time.Time) {
	from := len(fresh) - eventsPerTick
	if from < 0 {
		from = 0
	}
	for _, r := range fresh[from:] {
		e.feed.Activity(feed.Event{
			JobID:    jobID,
			RecordID: r.ID,
			Name:     r.Name,
			HasEmail: r.HasEmail(),
			At:       now,
		})
	}
}

// attachLocked adds a completed job to its list. Failures are logged and the
// job stays completed.
func (e *Engine) attachLocked(ctx context.Context, name string, j *Job) {
	l, err := e.lists.Attach(ctx, name, j.ID, j.Found)
	if err != nil {
		e.logger.Error("attach to list failed",
			zap.String("job_id", j.ID),
			zap.String("list", name),
			zap.Error(err),
		)
		return
	}
	e.metrics.Attached()
	e.feed.Publish(feed.TypeListUpdated, l)
}

// Cancel stops a pending or running job. The cancelled job stays in history
// with the records generated so far.
func (e *Engine) Cancel(ctx context.Context, id string) (*Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	j, err := e.store.Get(id)
	if err != nil {
		return nil, err
	}
	switch j.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return j, nil
	case StatusPending, StatusRunning:
	}

	j.finish(StatusCancelled, e.now())
	if err := e.store.Update(j); err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}
	e.logger.Info("job cancelled", zap.String("job_id", j.ID), zap.Int("found", j.Found))
	e.finished(j)
	e.feed.Publish(feed.TypeJobUpdated, j.Summary())
	return j, nil
}

// Fail marks a live job failed with cause as its diagnostic.
func (e *Engine) Fail(ctx context.Context, id string, cause error) (*Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	j, err := e.store.Get(id)
	if err != nil {
		return nil, err
	}
	if j.Status.IsTerminal() {
		return j, nil
	}
	return e.failLocked(j, cause, e.now())
}

func (e *Engine) failLocked(j *Job, cause error, now time.Time) (*Job, error) {
	j.Error = cause.Error()
	j.finish(StatusFailed, now)
	if err := e.store.Update(j); err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}
	e.logger.Warn("job failed", zap.String("job_id", j.ID), zap.Int("found", j.Found), zap.Error(cause))
	e.finished(j)
	e.feed.Publish(feed.TypeJobUpdated, j.Summary())
	return j, nil
}

// finished records metrics for a terminal job and evicts old history.
func (e *Engine) finished(j *Job) {
	seconds := 0.0
	if j.EndedAt != nil {
		seconds = j.EndedAt.Sub(j.CreatedAt).Seconds()
	}
	e.metrics.JobFinished(string(j.Status), seconds)
	e.prune()
}

func (e *Engine) prune() {
	evicted, err := e.store.Prune()
	if err != nil {
		e.logger.Error("prune job history failed", zap.Error(err))
		return
	}
	for _, id := range evicted {
		e.logger.Debug("job evicted", zap.String("job_id", id))
		e.removed(id)
	}
}

func (e *Engine) Get(ctx context.Context, id string) (*Job, error) {
	return e.store.Get(id)
}

// History returns up to limit jobs, most recent first.
func (e *Engine) History(ctx context.Context, limit int) ([]*Job, error) {
	return e.store.List(limit)
}

// Delete removes a job from history, cancelling it first if it is live.
func (e *Engine) Delete(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	j, err := e.store.Get(id)
	if err != nil {
		return err
	}
	if !j.Status.IsTerminal() {
		j.finish(StatusCancelled, e.now())
		e.metrics.JobFinished(string(j.Status), j.EndedAt.Sub(j.CreatedAt).Seconds())
	}
	if err := e.store.Delete(id); err != nil {
		return err
	}
	e.logger.Info("job deleted", zap.String("job_id", id))
	e.removed(id)
	return nil
}

// Records implements list.RecordSource over the retained history.
func (e *Engine) Records(jobID string) ([]lead.Record, bool) {
	j, err := e.store.Get(jobID)
	if err != nil {
		return nil, false
	}
	return j.Records, true
}

// Query runs q over the records of one job.
func (e *Engine) Query(ctx context.Context, id string, q query.Query) (query.Result, error) {
	j, err := e.store.Get(id)
	if err != nil {
		return query.Result{}, err
	}
	return query.Apply(j.Records, q), nil
}

// AttachToList attaches a retained terminal job to a list with its found
// count. Live jobs are rejected with ErrJobNotFinished.
func (e *Engine) AttachToList(ctx context.Context, name, jobID string) (*list.List, error) {
	name = strings.TrimSpace(name)
	if err := validateListName(name); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	j, err := e.store.Get(jobID)
	if err != nil {
		return nil, err
	}
	if !j.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrJobNotFinished, j.ID, j.Status)
	}
	l, err := e.lists.Attach(ctx, name, j.ID, j.Found)
	if err != nil {
		return nil, err
	}
	e.metrics.Attached()
	e.feed.Publish(feed.TypeListUpdated, l)
	return l, nil
}

func (e *Engine) DetachFromList(ctx context.Context, name, jobID string) (*list.List, error) {
	l, err := e.lists.Detach(ctx, name, jobID)
	if err != nil {
		return nil, err
	}
	e.feed.Publish(feed.TypeListUpdated, l)
	return l, nil
}

func (e *Engine) DeleteList(ctx context.Context, name string) error {
	if err := e.lists.Delete(ctx, name); err != nil {
		return err
	}
	e.feed.Publish(feed.TypeListDeleted, map[string]string{"name": name})
	return nil
}

// ResolveList returns the records of every retained job attached to name.
func (e *Engine) ResolveList(ctx context.Context, name string) ([]lead.Record, error) {
	return e.lists.ResolveRecords(ctx, name, e)
}

func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	return e.store.Stats()
}

func (e *Engine) RateLimit() ratelimit.Status {
	return e.limiter.Status(e.now())
}
