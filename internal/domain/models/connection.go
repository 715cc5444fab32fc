package models

import (
	"time"

	"github.com/google/uuid"
)

// ConnSession binds a verified identity to one live websocket connection.
// It exists only in memory: created at a successful handshake, dropped on
// disconnect, never persisted.
type ConnSession struct {
	ConnID      uuid.UUID
	UserUUID    uuid.UUID
	Role        string
	ConnectedAt time.Time
}
