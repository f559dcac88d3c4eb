package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/leadscout/engine/internal/feed"
)

const ssePingInterval = 25 * time.Second

// RecentActivity returns the buffered activity events, optionally for one job.
func (h *Handlers) RecentActivity(w http.ResponseWriter, r *http.Request) {
	events := h.engine.Feed().Recent(r.URL.Query().Get("job_id"))
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// Events streams feed messages as server-sent events.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "stream_unsupported", "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	hub := h.engine.Feed().Hub()
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	writeEvent(w, feed.NewMessage(feed.TypePing, nil))
	flusher.Flush()

	ping := time.NewTicker(ssePingInterval)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			writeEvent(w, feed.NewMessage(feed.TypePing, nil))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(w, msg)
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, msg feed.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
}
