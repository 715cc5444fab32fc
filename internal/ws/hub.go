package ws

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/codephoenix86/ByteChat/internal/domain/models"
)

// Hub owns the live connection sessions. The map is mutated in exactly two
// places: add on a successful handshake and remove on disconnect.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*Client
	log     *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[uuid.UUID]*Client),
		log:     log,
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c.sess.ConnID] = c
	h.mu.Unlock()

	h.log.Debug("connection registered",
		slog.String("conn_id", c.sess.ConnID.String()),
		slog.String("user_uuid", c.sess.UserUUID.String()),
	)
}

func (h *Hub) remove(connID uuid.UUID) {
	h.mu.Lock()
	c, ok := h.clients[connID]
	if ok {
		delete(h.clients, connID)
	}
	h.mu.Unlock()

	if ok {
		c.closeSend()
		h.log.Debug("connection removed", slog.String("conn_id", connID.String()))
	}
}

// Session looks up the live session bound to a connection.
func (h *Hub) Session(connID uuid.UUID) (models.ConnSession, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.clients[connID]
	if !ok {
		return models.ConnSession{}, false
	}

	return c.sess, true
}

// SessionsByUser returns every live session for a user. Multiple
// simultaneous connections per user are supported.
func (h *Hub) SessionsByUser(userUUID uuid.UUID) []models.ConnSession {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []models.ConnSession
	for _, c := range h.clients {
		if c.sess.UserUUID == userUUID {
			out = append(out, c.sess)
		}
	}

	return out
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// CloseAll tears down every live connection; used during shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[uuid.UUID]*Client)
	h.mu.Unlock()

	for _, c := range clients {
		c.closeSend()
		_ = c.conn.Close()
	}
}
