package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/leadscout/engine/internal/config"
	"github.com/leadscout/engine/internal/job"
	"github.com/leadscout/engine/internal/metrics"
	"github.com/leadscout/engine/internal/ws"
)

type Deps struct {
	Config  *config.Config
	Engine  *job.Engine
	Runner  *job.Runner
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Runner == nil {
		d.Runner = job.NewRunner(d.Engine, d.Config.TickInterval, d.Logger)
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	wsServer := ws.NewServer(d.Engine.Feed(), d.Logger)
	h := NewHandlers(d)
	h.wsServer = wsServer
	throttle := NewClientThrottle(d.Config.APIRPS, d.Config.APIBurst)

	// Health & Info
	r.Get("/health", h.Health)
	r.Get("/info", h.Info)
	r.Get("/stats", h.Stats)
	r.Handle("/metrics", d.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(throttle.Middleware)

		// Jobs API
		r.Post("/jobs", h.StartJob)
		r.Get("/jobs", h.ListJobs)
		r.Get("/jobs/{id}", h.GetJob)
		r.Delete("/jobs/{id}", h.DeleteJob)
		r.Post("/jobs/{id}/tick", h.TickJob)
		r.Post("/jobs/{id}/cancel", h.CancelJob)

		// Results
		r.Get("/jobs/{id}/results", h.QueryResults)
		r.Get("/jobs/{id}/selection", h.GetSelection)
		r.Put("/jobs/{id}/selection", h.UpdateSelection)
		r.Delete("/jobs/{id}/selection", h.ClearSelection)
		r.Get("/jobs/{id}/export", h.ExportJob)

		// Lists
		r.Get("/lists", h.ListLists)
		r.Get("/lists/{name}", h.GetList)
		r.Delete("/lists/{name}", h.DeleteList)
		r.Post("/lists/{name}/jobs", h.AttachJob)
		r.Delete("/lists/{name}/jobs/{jobID}", h.DetachJob)
		r.Get("/lists/{name}/records", h.ListRecords)
		r.Get("/lists/{name}/export", h.ExportList)

		r.Get("/ratelimit", h.RateLimit)
		r.Get("/feed", h.RecentActivity)
	})

	// Live feed
	r.Get("/api/events", h.Events)
	r.Get("/ws/feed", wsServer.HandleFeed)

	return r
}
