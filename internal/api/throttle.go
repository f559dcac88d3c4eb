package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const throttleIdleTTL = 10 * time.Minute

// ClientThrottle keeps one token bucket per client address.
type ClientThrottle struct {
	mu      sync.Mutex
	clients map[string]*throttleEntry
	r       rate.Limit
	b       int
}

type throttleEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func NewClientThrottle(reqPerSec float64, burst int) *ClientThrottle {
	if reqPerSec <= 0 {
		reqPerSec = 20
	}
	if burst <= 0 {
		burst = 40
	}
	return &ClientThrottle{
		clients: make(map[string]*throttleEntry),
		r:       rate.Limit(reqPerSec),
		b:       burst,
	}
}

func (t *ClientThrottle) limiterFor(client string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if e, ok := t.clients[client]; ok {
		e.lastSeen = now
		return e.lim
	}

	// Drop idle clients.
	for k, e := range t.clients {
		if now.Sub(e.lastSeen) > throttleIdleTTL {
			delete(t.clients, k)
		}
	}

	lim := rate.NewLimiter(t.r, t.b)
	t.clients[client] = &throttleEntry{lim: lim, lastSeen: now}
	return lim
}

func (t *ClientThrottle) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lim := t.limiterFor(clientKey(r))
		if !lim.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, r, http.StatusTooManyRequests, "throttled", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
