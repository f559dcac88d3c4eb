package job

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultTickInterval = 500 * time.Millisecond

// Runner drives started jobs: one goroutine with its own ticker per job.
type Runner struct {
	engine   *Engine
	interval time.Duration
	logger   *zap.Logger

	// gate spans the closed check, the start and the scheduling in Submit so
	// Shutdown cannot slip between them.
	gate sync.RWMutex

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	done    map[string]chan struct{}
	wg      sync.WaitGroup
	closed  bool
}

func NewRunner(engine *Engine, interval time.Duration, logger *zap.Logger) *Runner {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		engine:   engine,
		interval: interval,
		logger:   logger.With(zap.String("component", "runner")),
		cancels:  make(map[string]context.CancelFunc),
		done:     make(map[string]chan struct{}),
	}
}

var ErrRunnerClosed = errors.New("runner is shut down")

// Submit starts a job and schedules its ticks. The loop lives until the job
// is terminal or gone, ctx is cancelled, or the runner shuts down.
func (r *Runner) Submit(ctx context.Context, req Request) (*Job, error) {
	r.gate.RLock()
	defer r.gate.RUnlock()

	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return nil, ErrRunnerClosed
	}

	j, err := r.engine.Start(ctx, req)
	if err != nil {
		return nil, err
	}
	r.schedule(ctx, j.ID)
	return j, nil
}

// Resume schedules ticks for a job that already exists, such as a live job
// found in persistent history at startup.
func (r *Runner) Resume(ctx context.Context, id string) {
	r.schedule(ctx, id)
}

func (r *Runner) schedule(ctx context.Context, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if _, ok := r.cancels[id]; ok {
		return
	}

	// Job loops outlive the request that submitted them.
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	r.cancels[id] = cancel
	r.done[id] = done
	r.wg.Add(1)

	go r.loop(loopCtx, id, done)
}

func (r *Runner) loop(ctx context.Context, id string, done chan struct{}) {
	defer r.wg.Done()
	defer close(done)
	defer r.forget(id)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log := r.logger.With(zap.String("job_id", id))
	log.Debug("job loop started")

	for {
		select {
		case <-ctx.Done():
			log.Debug("job loop stopped")
			return
		case <-ticker.C:
			j, err := r.engine.Tick(ctx, id)
			if errors.Is(err, ErrJobNotFound) {
				log.Debug("job gone, loop stopped")
				return
			}
			if err != nil {
				log.Error("tick failed", zap.Error(err))
				continue
			}
			if j.Status.IsTerminal() {
				log.Debug("job loop finished", zap.String("status", string(j.Status)))
				return
			}
		}
	}
}

func (r *Runner) forget(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cancel, ok := r.cancels[id]; ok {
		cancel()
	}
	delete(r.cancels, id)
	delete(r.done, id)
}

// Cancel cancels the job through the engine and waits for its loop to stop.
// A tick already in progress completes first.
func (r *Runner) Cancel(ctx context.Context, id string) (*Job, error) {
	j, err := r.engine.Cancel(ctx, id)
	r.stop(id)
	return j, err
}

// Delete removes the job and stops its loop.
func (r *Runner) Delete(ctx context.Context, id string) error {
	err := r.engine.Delete(ctx, id)
	r.stop(id)
	return err
}

func (r *Runner) stop(id string) {
	r.mu.Lock()
	cancel, ok := r.cancels[id]
	done := r.done[id]
	r.mu.Unlock()
	if !ok {
		return
	}
	cancel()
	<-done
}

// Active returns how many job loops are running.
func (r *Runner) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cancels)
}

// Shutdown stops every loop and waits for them to exit. Jobs keep their
// current status.
func (r *Runner) Shutdown() {
	r.gate.Lock()
	r.mu.Lock()
	r.closed = true
	for _, cancel := range r.cancels {
		cancel()
	}
	r.mu.Unlock()
	r.gate.Unlock()
	r.wg.Wait()
}
