package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/leadscout/engine/internal/config"
	"github.com/leadscout/engine/internal/db"
	"github.com/leadscout/engine/internal/feed"
	"github.com/leadscout/engine/internal/job"
	"github.com/leadscout/engine/internal/lead"
	"github.com/leadscout/engine/internal/list"
	"github.com/leadscout/engine/internal/metrics"
	"github.com/leadscout/engine/internal/ratelimit"
)

const namespace = "leadengine/"

// app holds the wired engine and whatever backends need closing.
type app struct {
	engine  *job.Engine
	runner  *job.Runner
	metrics *metrics.Metrics
	closers []func() error
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{metrics: metrics.New()}

	var dbStore *db.Store
	if cfg.StoreBackend == "badger" || cfg.ListBackend == "badger" {
		s, err := db.NewStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open badger: %w", err)
		}
		dbStore = s
		a.closers = append(a.closers, s.Close)
	}

	var store job.JobStore = job.NewStore(cfg.HistoryCap)
	limiter := ratelimit.New(cfg.RateWindow, cfg.RateMaxStarts)
	if cfg.StoreBackend == "badger" {
		ps, err := job.NewPersistentStore(dbStore, namespace, cfg.HistoryCap)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open job history: %w", err)
		}
		store = ps
		limiter, err = limiter.WithStore(ratelimit.NewPersistentHistory(dbStore, namespace))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("load start history: %w", err)
		}
	}

	var repo list.Repository
	switch cfg.ListBackend {
	case "badger":
		repo = list.NewPersistentRepository(dbStore, namespace)
	case "sqlite":
		r, err := list.OpenSQLite(filepath.Join(cfg.DataDir, "lists.db"))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open list database: %w", err)
		}
		repo = r
		a.closers = append(a.closers, r.Close)
	default:
		repo = list.NewMemoryRepository()
	}

	a.engine = job.NewEngine(job.Config{
		Store:       store,
		Limiter:     limiter,
		Source:      lead.NewRandomGenerator().WithEmailProbability(cfg.EmailProbability),
		Lists:       list.NewAggregator(repo, logger),
		Feed:        feed.New(cfg.FeedSize),
		Metrics:     a.metrics,
		Logger:      logger,
		MaxDuration: cfg.MaxJobDuration,
	})
	a.runner = job.NewRunner(a.engine, cfg.TickInterval, logger)
	return a, nil
}

// resume schedules every live job found in history.
func (a *app) resume(ctx context.Context, logger *zap.Logger) error {
	jobs, err := a.engine.History(ctx, 0)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	for _, j := range jobs {
		if j.Status.IsTerminal() {
			continue
		}
		logger.Info("resuming job", zap.String("job_id", j.ID), zap.String("status", string(j.Status)))
		a.metrics.JobResumed()
		a.runner.Resume(ctx, j.ID)
	}
	return nil
}

// Close releases the backends in reverse order of opening.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
