package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/codephoenix86/ByteChat/internal/domain/models"
	"github.com/codephoenix86/ByteChat/internal/lib/logger/sl"
	"github.com/codephoenix86/ByteChat/internal/services/status"
)

type Options struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
}

func DefaultOptions() Options {
	return Options{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		MaxMessageSize: 1024,
	}
}

// Server upgrades authenticated requests to websocket connections and hands
// them to the hub.
type Server struct {
	log      *slog.Logger
	auth     *Authenticator
	status   *status.Service
	hub      *Hub
	opts     Options
	upgrader websocket.Upgrader
}

func NewServer(log *slog.Logger, auth *Authenticator, statusSvc *status.Service, hub *Hub, opts Options) *Server {
	if opts.WriteWait == 0 || opts.PongWait == 0 || opts.MaxMessageSize == 0 {
		opts = DefaultOptions()
	}

	return &Server{
		log:    log,
		auth:   auth,
		status: statusSvc,
		hub:    hub,
		opts:   opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// origin checks belong to the reverse proxy in this deployment
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleUpgrade authenticates the handshake and, only then, upgrades. A
// failed handshake is refused outright with a reason; there is no
// partially-established session.
func (s *Server) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	id, err := s.auth.Authenticate(r)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade failed", sl.Err(err))
		return
	}

	sess := models.ConnSession{
		ConnID:      uuid.New(),
		UserUUID:    id.UserUUID,
		Role:        id.Role,
		ConnectedAt: time.Now(),
	}

	client := newClient(s.hub, conn, sess, s.status, s.log, s.opts)
	s.hub.add(client)

	go client.writePump()
	go client.readPump()
}
