package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/leadscout/engine/internal/config"
	"github.com/leadscout/engine/internal/job"
	"github.com/leadscout/engine/internal/metrics"
	"github.com/leadscout/engine/internal/query"
	"github.com/leadscout/engine/internal/ws"
)

var startTime = time.Now()

type Handlers struct {
	cfg     *config.Config
	engine  *job.Engine
	runner  *job.Runner
	metrics *metrics.Metrics
	logger  *zap.Logger

	wsServer *ws.Server

	selMu      sync.Mutex
	selections map[string]*query.Selection
}

func NewHandlers(d Deps) *Handlers {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	h := &Handlers{
		cfg:        d.Config,
		engine:     d.Engine,
		runner:     d.Runner,
		metrics:    d.Metrics,
		logger:     d.Logger.With(zap.String("component", "api")),
		selections: make(map[string]*query.Selection),
	}
	d.Engine.OnRemove(h.dropSelection)
	return h
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handlers) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"node_id":        h.cfg.NodeID,
		"version":        "0.1.0",
		"uptime_seconds": int(time.Since(startTime).Seconds()),
		"store_backend":  h.cfg.StoreBackend,
		"list_backend":   h.cfg.ListBackend,
	})
}

func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.engine.Stats(r.Context())
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	lists, err := h.engine.Lists().All(r.Context())
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"node_id":        h.cfg.NodeID,
		"uptime_seconds": int(time.Since(startTime).Seconds()),
		"jobs":           st,
		"active_loops":   h.runner.Active(),
		"lists":          len(lists),
		"feed": map[string]int{
			"subscribers": h.engine.Feed().Hub().Subscribers(),
			"ws_clients":  h.wsServer.Clients(),
		},
	})
}

func (h *Handlers) RateLimit(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.RateLimit())
}

func (h *Handlers) selection(jobID string, create bool) *query.Selection {
	h.selMu.Lock()
	defer h.selMu.Unlock()
	sel, ok := h.selections[jobID]
	if !ok && create {
		sel = query.NewSelection()
		h.selections[jobID] = sel
	}
	return sel
}

func (h *Handlers) dropSelection(jobID string) {
	h.selMu.Lock()
	defer h.selMu.Unlock()
	delete(h.selections, jobID)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

type apiError struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	Field     string `json:"field,omitempty"`
	Remaining *int   `json:"remaining,omitempty"`
	RetryAt   string `json:"retry_at,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, apiError{Error: errorBody{
		Code:      code,
		Message:   message,
		RequestID: middleware.GetReqID(r.Context()),
	}})
}

// writeEngineError maps engine errors to status codes.
func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	body := errorBody{Message: err.Error(), RequestID: middleware.GetReqID(r.Context())}
	status := http.StatusInternalServerError

	var (
		ve *job.ValidationError
		rl *job.RateLimitError
	)
	switch {
	case errors.As(err, &ve):
		status, body.Code, body.Field = http.StatusBadRequest, "invalid_request", ve.Field
	case errors.As(err, &rl):
		status, body.Code = http.StatusTooManyRequests, "rate_limited"
		remaining := rl.Remaining
		body.Remaining = &remaining
		body.RetryAt = rl.RetryAt.UTC().Format(time.RFC3339)
		w.Header().Set("Retry-After", retryAfter(rl.RetryAt))
	case errors.Is(err, job.ErrJobNotFound):
		status, body.Code = http.StatusNotFound, "job_not_found"
	case errors.Is(err, job.ErrListNotFound):
		status, body.Code = http.StatusNotFound, "list_not_found"
	case errors.Is(err, job.ErrJobNotFinished):
		status, body.Code = http.StatusConflict, "job_not_finished"
	case errors.Is(err, job.ErrRunnerClosed):
		status, body.Code = http.StatusServiceUnavailable, "shutting_down"
	default:
		body.Code = "internal"
	}
	writeJSON(w, status, apiError{Error: body})
}

func retryAfter(at time.Time) string {
	secs := int(time.Until(at).Seconds()) + 1
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
