package ws

import (
	"time"

	"github.com/leadscout/engine/internal/feed"
)

type BaseMessage struct {
	Type string `json:"type"`
}

// Client → Server

// SubscribeMessage narrows the stream to one job. An empty JobID restores
// the full stream.
type SubscribeMessage struct {
	Type  string `json:"type"`
	JobID string `json:"job_id"`
}

type HeartbeatMessage struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Server → Client

type AckMessage struct {
	Type     string       `json:"type"`
	ClientID string       `json:"client_id"`
	Message  string       `json:"message"`
	Recent   []feed.Event `json:"recent"`
}

// Feed messages are sent as feed.Message values.
