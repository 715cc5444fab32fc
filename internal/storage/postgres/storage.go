package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/codephoenix86/ByteChat/internal/domain/models"
	"github.com/codephoenix86/ByteChat/internal/storage"
)

type Storage struct {
	db  *sql.DB
	log *slog.Logger
}

func New(dsn string, log *slog.Logger) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db, log: log}, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	// fallback for errors wrapped in a way that hides PgError
	return strings.Contains(err.Error(), "SQLSTATE 23505")
}

func (s *Storage) SaveUser(ctx context.Context, username, email string, passHash []byte) (uuid.UUID, error) {
	const op = "storage.postgres.SaveUser"

	query := `
		INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING uuid
	`

	var userUUID uuid.UUID
	err := s.db.QueryRowContext(ctx, query, username, email, string(passHash)).Scan(&userUUID)
	if err != nil {
		if isUniqueViolation(err) {
			return uuid.Nil, fmt.Errorf("%s: %w", op, storage.ErrUserExists)
		}
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	return userUUID, nil
}

func (s *Storage) UserByEmailOrName(ctx context.Context, identifier string) (models.User, error) {
	const op = "storage.postgres.UserByEmailOrName"

	q := `
		SELECT uuid, username, email, password_hash, role, is_active, created_at, updated_at
		FROM users
		WHERE email = $1 OR username = $1
		LIMIT 1
	`

	return s.scanUser(ctx, op, q, identifier)
}

func (s *Storage) UserByUUID(ctx context.Context, userUUID uuid.UUID) (models.User, error) {
	const op = "storage.postgres.UserByUUID"

	q := `
		SELECT uuid, username, email, password_hash, role, is_active, created_at, updated_at
		FROM users
		WHERE uuid = $1
		LIMIT 1
	`

	return s.scanUser(ctx, op, q, userUUID)
}

func (s *Storage) scanUser(ctx context.Context, op, query string, arg any) (models.User, error) {
	var u models.User
	var passHash string

	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&u.UUID,
		&u.Username,
		&u.Email,
		&passHash,
		&u.Role,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	u.PasswordHash = []byte(passHash)

	return u, nil
}

// SetMessageStatus records a delivery state for a message as reported by a
// client. Statuses are written as given; a "read" arriving before any
// "delivered" is accepted, ordering is the reporter's business.
func (s *Storage) SetMessageStatus(ctx context.Context, messageID uuid.UUID, status models.MessageStatus) error {
	const op = "storage.postgres.SetMessageStatus"

	res, err := s.db.ExecContext(ctx, `
		UPDATE messages
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`, messageID, string(status))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrMessageNotFound)
	}

	return nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}
