package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/leadscout/engine/internal/export"
	"github.com/leadscout/engine/internal/list"
	"github.com/leadscout/engine/internal/query"
)

func (h *Handlers) ListLists(w http.ResponseWriter, r *http.Request) {
	lists, err := h.engine.Lists().All(r.Context())
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	if lists == nil {
		lists = []*list.List{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"lists": lists,
		"total": len(lists),
	})
}

func (h *Handlers) GetList(w http.ResponseWriter, r *http.Request) {
	l, err := h.engine.Lists().Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *Handlers) DeleteList(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteList(r.Context(), chi.URLParam(r, "name")); err != nil {
		writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type AttachRequest struct {
	JobID string `json:"job_id"`
}

func (h *Handlers) AttachJob(w http.ResponseWriter, r *http.Request) {
	var req AttachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.JobID == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_body", "job_id is required")
		return
	}
	l, err := h.engine.AttachToList(r.Context(), chi.URLParam(r, "name"), req.JobID)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *Handlers) DetachJob(w http.ResponseWriter, r *http.Request) {
	l, err := h.engine.DetachFromList(r.Context(), chi.URLParam(r, "name"), chi.URLParam(r, "jobID"))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// ListRecords pages through the records of a list's retained jobs.
func (h *Handlers) ListRecords(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	records, err := h.engine.ResolveList(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, query.Apply(records, q))
}

func (h *Handlers) ExportList(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	records, err := h.engine.ResolveList(r.Context(), name)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	h.writeCSV(w, r, export.Filename(name, "", "", time.Now()), records)
	h.metrics.Exported("list")
}
