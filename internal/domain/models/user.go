package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	UUID         uuid.UUID
	Username     string
	Email        string
	PasswordHash []byte
	Role         string
	IsActive     bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
