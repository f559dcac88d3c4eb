package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/leadscout/engine/internal/feed"
)

const writeTimeout = 5 * time.Second

type Server struct {
	feed   *feed.Feed
	logger *zap.Logger

	connsMu sync.RWMutex
	conns   map[string]*websocket.Conn
}

func NewServer(f *feed.Feed, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		feed:   f,
		logger: logger.With(zap.String("component", "ws")),
		conns:  make(map[string]*websocket.Conn),
	}
}

// Clients returns the number of connected feed clients.
func (s *Server) Clients() int {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	return len(s.conns)
}

// HandleFeed streams feed messages to a websocket client until it leaves.
func (s *Server) HandleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // Allow all origins
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "goodbye")

	clientID := uuid.NewString()
	log := s.logger.With(zap.String("client_id", clientID))

	s.connsMu.Lock()
	s.conns[clientID] = conn
	s.connsMu.Unlock()
	defer func() {
		s.connsMu.Lock()
		delete(s.conns, clientID)
		s.connsMu.Unlock()
	}()

	hub := s.feed.Hub()
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Send ack
	ack := AckMessage{
		Type:     "ack",
		ClientID: clientID,
		Message:  "Welcome!",
		Recent:   s.feed.Recent(""),
	}
	if err := s.write(ctx, conn, ack); err != nil {
		log.Debug("failed to send ack", zap.Error(err))
		return
	}
	log.Info("feed client connected")

	f := &filter{}
	go func() {
		defer cancel()
		s.handleMessages(ctx, conn, f, log)
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info("feed client disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if !f.allows(msg) {
				continue
			}
			if err := s.write(ctx, conn, msg); err != nil {
				log.Debug("write failed", zap.Error(err))
				return
			}
		}
	}
}

func (s *Server) write(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}

func (s *Server) handleMessages(ctx context.Context, conn *websocket.Conn, f *filter, log *zap.Logger) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && ctx.Err() == nil {
				log.Debug("websocket read error", zap.Error(err))
			}
			return
		}

		var msg BaseMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Debug("invalid message format", zap.Error(err))
			continue
		}

		switch msg.Type {
		case "subscribe":
			var sub SubscribeMessage
			if err := json.Unmarshal(data, &sub); err != nil {
				log.Debug("invalid subscribe message", zap.Error(err))
				continue
			}
			f.set(sub.JobID)
			log.Debug("feed filter set", zap.String("job_id", sub.JobID))

		case "heartbeat":
			hb := HeartbeatMessage{Type: "heartbeat", Timestamp: time.Now().UTC()}
			s.write(ctx, conn, hb)

		case "quit":
			return

		default:
			log.Debug("unknown message type", zap.String("type", msg.Type))
		}
	}
}

// filter limits activity and job messages to one job id.
type filter struct {
	mu    sync.RWMutex
	jobID string
}

func (f *filter) set(jobID string) {
	f.mu.Lock()
	f.jobID = jobID
	f.mu.Unlock()
}

func (f *filter) allows(msg feed.Message) bool {
	f.mu.RLock()
	jobID := f.jobID
	f.mu.RUnlock()
	return msg.ForJob(jobID)
}
