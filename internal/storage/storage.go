package storage

import (
	"errors"
)

var (
	ErrUserExists          = errors.New("user already exists")
	ErrUserNotFound        = errors.New("user not found")
	ErrMessageNotFound     = errors.New("message not found")
	ErrRefreshTokenExists  = errors.New("refresh token already exists")
	ErrRefreshTokenRevoked = errors.New("refresh token revoked or unknown")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidToken        = errors.New("invalid token")
)
