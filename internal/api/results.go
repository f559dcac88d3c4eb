package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/leadscout/engine/internal/export"
	"github.com/leadscout/engine/internal/job"
	"github.com/leadscout/engine/internal/lead"
	"github.com/leadscout/engine/internal/query"
)

// parseQuery reads search, filter, sort, dir, page and page_size.
func (h *Handlers) parseQuery(r *http.Request) (query.Query, error) {
	v := r.URL.Query()

	filter, err := query.ParseFilter(v.Get("filter"))
	if err != nil {
		return query.Query{}, &job.ValidationError{Field: "filter", Reason: err.Error()}
	}
	sortKey, err := query.ParseSort(v.Get("sort"))
	if err != nil {
		return query.Query{}, &job.ValidationError{Field: "sort", Reason: err.Error()}
	}

	q := query.Query{
		Search:   v.Get("search"),
		Filter:   filter,
		Sort:     sortKey,
		Desc:     v.Get("dir") == "desc",
		Page:     1,
		PageSize: h.cfg.PageSize,
	}
	if s := v.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return query.Query{}, &job.ValidationError{Field: "page", Reason: "must be a positive integer"}
		}
		q.Page = n
	}
	if s := v.Get("page_size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return query.Query{}, &job.ValidationError{Field: "page_size", Reason: "must be a positive integer"}
		}
		q.PageSize = n
	}
	return q, nil
}

func (h *Handlers) QueryResults(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	res, err := h.engine.Query(r.Context(), chi.URLParam(r, "id"), q)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type selectionResponse struct {
	JobID string   `json:"job_id"`
	IDs   []string `json:"ids"`
	Count int      `json:"count"`
}

// SelectionUpdate adds and removes record ids. Toggle flips each listed id.
type SelectionUpdate struct {
	Add    []string `json:"add,omitempty"`
	Remove []string `json:"remove,omitempty"`
	Toggle []string `json:"toggle,omitempty"`
}

func (h *Handlers) GetSelection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.engine.Get(r.Context(), id); err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, selectionBody(id, h.selection(id, true)))
}

func (h *Handlers) UpdateSelection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.engine.Get(r.Context(), id); err != nil {
		writeEngineError(w, r, err)
		return
	}

	var upd SelectionUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	sel := h.selection(id, true)
	sel.Add(upd.Add...)
	sel.Remove(upd.Remove...)
	for _, rid := range upd.Toggle {
		sel.Toggle(rid)
	}
	writeJSON(w, http.StatusOK, selectionBody(id, sel))
}

func (h *Handlers) ClearSelection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if sel := h.selection(id, false); sel != nil {
		sel.Clear()
	}
	w.WriteHeader(http.StatusNoContent)
}

func selectionBody(jobID string, sel *query.Selection) selectionResponse {
	return selectionResponse{JobID: jobID, IDs: sel.IDs(), Count: sel.Len()}
}

func (h *Handlers) ExportJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	scope, err := query.ParseScope(r.URL.Query().Get("scope"))
	if err != nil {
		writeEngineError(w, r, &job.ValidationError{Field: "scope", Reason: err.Error()})
		return
	}
	q, err := h.parseQuery(r)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	j, err := h.engine.Get(r.Context(), id)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	records := query.Subset(j.Records, q, h.selection(id, false), scope)
	name := export.Filename(j.ListName, j.Location, j.Keyword, time.Now())
	h.writeCSV(w, r, name, records)
	h.metrics.Exported("job")
}

func (h *Handlers) writeCSV(w http.ResponseWriter, r *http.Request, filename string, records []lead.Record) {
	data, err := export.Bytes(records)
	if err != nil {
		writeEngineError(w, r, fmt.Errorf("export csv: %w", err))
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("X-Record-Count", strconv.Itoa(len(records)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
