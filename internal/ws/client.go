package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/codephoenix86/ByteChat/internal/domain/models"
	"github.com/codephoenix86/ByteChat/internal/lib/logger/sl"
	"github.com/codephoenix86/ByteChat/internal/services/status"
)

const (
	// delivered/read reports are best-effort; don't hold the read loop
	// on a slow store for longer than this
	reportTimeout = 5 * time.Second

	sendBuffer = 16
)

const (
	eventMessageDelivered = "message:delivered"
	eventMessageRead      = "message:read"
)

type inboundEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type statusPayload struct {
	MessageID string `json:"messageId"`
}

// Client is one live websocket connection with its bound session.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	sess   models.ConnSession
	status *status.Service
	log    *slog.Logger
	opts   Options

	closeOnce sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn, sess models.ConnSession, statusSvc *status.Service, log *slog.Logger, opts Options) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		sess:   sess,
		status: statusSvc,
		log: log.With(
			slog.String("conn_id", sess.ConnID.String()),
			slog.String("user_uuid", sess.UserUUID.String()),
		),
		opts: opts,
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

// readPump reads events off the connection one at a time, which serializes
// status updates per connection. It owns teardown: on any read error the
// session is dropped from the hub and the connection closed.
func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c.sess.ConnID)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.opts.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("unexpected close", sl.Err(err))
			}
			return
		}

		c.handleEvent(raw)
	}
}

func (c *Client) handleEvent(raw []byte) {
	var ev inboundEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		c.log.Warn("malformed event", sl.Err(err))
		return
	}

	switch ev.Event {
	case eventMessageDelivered:
		c.reportStatus(ev.Data, models.StatusDelivered)
	case eventMessageRead:
		c.reportStatus(ev.Data, models.StatusRead)
	default:
		c.log.Debug("unknown event", slog.String("event", ev.Event))
	}
}

func (c *Client) reportStatus(data json.RawMessage, st models.MessageStatus) {
	var payload statusPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.log.Warn("malformed status payload", sl.Err(err))
		return
	}

	messageID, err := uuid.Parse(payload.MessageID)
	if err != nil {
		c.log.Warn("invalid message id", slog.String("message_id", payload.MessageID))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()

	if err := c.status.Report(ctx, c.sess, messageID, st); err != nil {
		// bad input from the client, not a connection-level problem
		c.log.Warn("status report rejected", sl.Err(err))
	}
}

// writePump drains the send channel and keeps the connection alive with
// pings. Exits when the send channel is closed or a write fails.
func (c *Client) writePump() {
	pingPeriod := c.opts.PongWait * 9 / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
