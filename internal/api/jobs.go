package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/leadscout/engine/internal/job"
)

type StartJobRequest struct {
	job.Request
	// Manual leaves the job pending until ticked through the API.
	Manual bool `json:"manual,omitempty"`
}

func (h *Handlers) StartJob(w http.ResponseWriter, r *http.Request) {
	var req StartJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	var (
		j   *job.Job
		err error
	)
	if req.Manual {
		j, err = h.engine.Start(r.Context(), req.Request)
	} else {
		j, err = h.runner.Submit(r.Context(), req.Request)
	}
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, j)
}

func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.engine.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	if r.URL.Query().Get("records") == "false" {
		j = j.Summary()
	}
	writeJSON(w, http.StatusOK, j)
}

func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = job.DefaultHistoryCap
	}

	jobs, err := h.engine.History(r.Context(), limit)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	summaries := make([]*job.Job, len(jobs))
	for i, j := range jobs {
		summaries[i] = j.Summary()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":  summaries,
		"total": len(summaries),
	})
}

func (h *Handlers) TickJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.engine.Tick(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, j.Summary())
}

func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.runner.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, j.Summary())
}

func (h *Handlers) DeleteJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.runner.Delete(r.Context(), id); err != nil {
		writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
