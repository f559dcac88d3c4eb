package feedclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/leadscout/engine/internal/feed"
	"github.com/leadscout/engine/internal/ws"
)

const (
	DefaultRetryDelay        = 5 * time.Second
	DefaultHeartbeatInterval = 30 * time.Second
)

// Handler receives every feed message. Buffered events from the server's ack
// are delivered first as activity messages.
type Handler func(msg feed.Message)

// Client tails the live feed over a websocket and reconnects on failure.
type Client struct {
	url       string
	jobID     string
	handler   Handler
	logger    *zap.Logger
	retry     time.Duration
	heartbeat time.Duration

	clientID atomic.Value // string
	received atomic.Int64
}

func New(url string, handler Handler, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		url:       url,
		handler:   handler,
		logger:    logger.With(zap.String("component", "feedclient")),
		retry:     DefaultRetryDelay,
		heartbeat: DefaultHeartbeatInterval,
	}
}

// WithJob limits the stream to one job.
func (c *Client) WithJob(jobID string) *Client {
	c.jobID = jobID
	return c
}

func (c *Client) WithRetryDelay(d time.Duration) *Client {
	if d > 0 {
		c.retry = d
	}
	return c
}

func (c *Client) WithHeartbeat(d time.Duration) *Client {
	if d > 0 {
		c.heartbeat = d
	}
	return c
}

// ClientID is the id the server assigned on the latest connection.
func (c *Client) ClientID() string {
	id, _ := c.clientID.Load().(string)
	return id
}

// Received counts messages handed to the handler.
func (c *Client) Received() int64 {
	return c.received.Load()
}

// Run connects and reconnects until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := c.connect(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.logger.Warn("feed connection lost, reconnecting",
					zap.Error(err),
					zap.Duration("retry_in", c.retry),
				)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(c.retry):
				}
			}
		}
	}
}

func (c *Client) connect(ctx context.Context) error {
	c.logger.Debug("connecting", zap.String("url", c.url))

	conn, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "goodbye")

	// Wait for ack
	var ack ws.AckMessage
	if err := wsjson.Read(ctx, conn, &ack); err != nil {
		return fmt.Errorf("read ack: %w", err)
	}
	c.clientID.Store(ack.ClientID)
	c.logger.Info("connected to feed", zap.String("client_id", ack.ClientID))

	if c.jobID != "" {
		sub := ws.SubscribeMessage{Type: "subscribe", JobID: c.jobID}
		if err := wsjson.Write(ctx, conn, sub); err != nil {
			return fmt.Errorf("send subscribe: %w", err)
		}
	}

	for _, e := range ack.Recent {
		if c.jobID != "" && e.JobID != c.jobID {
			continue
		}
		c.deliver(feed.NewMessage(feed.TypeActivity, e))
	}

	hbCtx, stop := context.WithCancel(ctx)
	defer stop()
	go c.sendHeartbeats(hbCtx, conn)

	return c.messageLoop(ctx, conn)
}

func (c *Client) messageLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		var msg feed.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug("invalid message", zap.Error(err))
			continue
		}

		switch msg.Type {
		case "heartbeat":
			// Server acknowledged
		case feed.TypeActivity, feed.TypeJobUpdated, feed.TypeJobDeleted,
			feed.TypeListUpdated, feed.TypeListDeleted, feed.TypePing:
			// The server filters only once it has read our subscribe.
			if msg.ForJob(c.jobID) {
				c.deliver(msg)
			}
		default:
			c.logger.Debug("unknown message type", zap.String("type", msg.Type))
		}
	}
}

func (c *Client) deliver(msg feed.Message) {
	c.received.Add(1)
	if c.handler != nil {
		c.handler(msg)
	}
}

func (c *Client) sendHeartbeats(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			msg := ws.HeartbeatMessage{Type: "heartbeat"}
			if err := wsjson.Write(ctx, conn, msg); err != nil {
				return
			}
		}
	}
}
