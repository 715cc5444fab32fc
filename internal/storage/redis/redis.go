package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/codephoenix86/ByteChat/internal/storage"
)

// Storage keeps issued refresh-token records as individual keys with a TTL,
// so expired records are garbage-collected by Redis itself and no sweep is
// needed on our side.
type Storage struct {
	client *redis.Client
	log    *slog.Logger
}

func New(ctx context.Context, addr, password string, db int, log *slog.Logger) (*Storage, error) {
	const op = "storage.redis.New"

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{client: client, log: log}, nil
}

func key(userUUID uuid.UUID, tokenHash string) string {
	return "refresh:" + userUUID.String() + ":" + tokenHash
}

// Save inserts a new refresh-token record. A colliding token hash means the
// random generator produced a duplicate, which is an invariant violation,
// not a retryable condition.
func (s *Storage) Save(ctx context.Context, userUUID uuid.UUID, tokenHash string, ttl time.Duration) error {
	const op = "storage.redis.Save"

	ok, err := s.client.SetNX(ctx, key(userUUID, tokenHash), 1, ttl).Result()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrRefreshTokenExists)
	}

	return nil
}

// Exists reports whether the record is still live (not rotated, revoked or
// expired).
func (s *Storage) Exists(ctx context.Context, userUUID uuid.UUID, tokenHash string) (bool, error) {
	const op = "storage.redis.Exists"

	n, err := s.client.Exists(ctx, key(userUUID, tokenHash)).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return n > 0, nil
}

// Consume removes the record and reports whether this caller removed it.
// DEL is atomic, so of two refresh calls racing on the same token exactly
// one observes true; the loser must be refused.
func (s *Storage) Consume(ctx context.Context, userUUID uuid.UUID, tokenHash string) (bool, error) {
	const op = "storage.redis.Consume"

	n, err := s.client.Del(ctx, key(userUUID, tokenHash)).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return n > 0, nil
}

// Delete revokes one record. Deleting a record that is already gone is not
// an error; logout is idempotent.
func (s *Storage) Delete(ctx context.Context, userUUID uuid.UUID, tokenHash string) error {
	const op = "storage.redis.Delete"

	if err := s.client.Del(ctx, key(userUUID, tokenHash)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// DeleteAll revokes every live record owned by the user, e.g. after a
// password change.
func (s *Storage) DeleteAll(ctx context.Context, userUUID uuid.UUID) error {
	const op = "storage.redis.DeleteAll"

	iter := s.client.Scan(ctx, 0, "refresh:"+userUUID.String()+":*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) Close() error {
	return s.client.Close()
}
