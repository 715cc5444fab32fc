package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codephoenix86/ByteChat/internal/domain/models"
	"github.com/codephoenix86/ByteChat/internal/storage"
)

// Storage is an in-memory stand-in for the postgres and redis backends.
// It backs the test suites and local runs that have no infrastructure
// around; the mutex gives it the same one-winner Consume semantics the
// redis DEL provides.
type Storage struct {
	mu       sync.Mutex
	users    map[uuid.UUID]models.User
	refresh  map[string]refreshRecord
	statuses map[uuid.UUID]models.MessageStatus
}

type refreshRecord struct {
	userUUID  uuid.UUID
	expiresAt time.Time
}

func New() *Storage {
	return &Storage{
		users:    make(map[uuid.UUID]models.User),
		refresh:  make(map[string]refreshRecord),
		statuses: make(map[uuid.UUID]models.MessageStatus),
	}
}

func refreshKey(userUUID uuid.UUID, tokenHash string) string {
	return userUUID.String() + ":" + tokenHash
}

func (s *Storage) SaveUser(ctx context.Context, username, email string, passHash []byte) (uuid.UUID, error) {
	const op = "storage.memory.SaveUser"

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == username || u.Email == email {
			return uuid.Nil, fmt.Errorf("%s: %w", op, storage.ErrUserExists)
		}
	}

	now := time.Now()
	u := models.User{
		UUID:         uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: passHash,
		Role:         "user",
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[u.UUID] = u

	return u.UUID, nil
}

func (s *Storage) UserByEmailOrName(ctx context.Context, identifier string) (models.User, error) {
	const op = "storage.memory.UserByEmailOrName"

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == identifier || u.Email == identifier {
			return u, nil
		}
	}

	return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
}

func (s *Storage) UserByUUID(ctx context.Context, userUUID uuid.UUID) (models.User, error) {
	const op = "storage.memory.UserByUUID"

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userUUID]
	if !ok {
		return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	return u, nil
}

func (s *Storage) Save(ctx context.Context, userUUID uuid.UUID, tokenHash string, ttl time.Duration) error {
	const op = "storage.memory.Save"

	s.mu.Lock()
	defer s.mu.Unlock()

	k := refreshKey(userUUID, tokenHash)
	if rec, ok := s.refresh[k]; ok && time.Now().Before(rec.expiresAt) {
		return fmt.Errorf("%s: %w", op, storage.ErrRefreshTokenExists)
	}
	s.refresh[k] = refreshRecord{userUUID: userUUID, expiresAt: time.Now().Add(ttl)}

	return nil
}

func (s *Storage) Exists(ctx context.Context, userUUID uuid.UUID, tokenHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.refresh[refreshKey(userUUID, tokenHash)]

	return ok && time.Now().Before(rec.expiresAt), nil
}

func (s *Storage) Consume(ctx context.Context, userUUID uuid.UUID, tokenHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := refreshKey(userUUID, tokenHash)
	rec, ok := s.refresh[k]
	if !ok || time.Now().After(rec.expiresAt) {
		return false, nil
	}
	delete(s.refresh, k)

	return true, nil
}

func (s *Storage) Delete(ctx context.Context, userUUID uuid.UUID, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.refresh, refreshKey(userUUID, tokenHash))

	return nil
}

func (s *Storage) DeleteAll(ctx context.Context, userUUID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, rec := range s.refresh {
		if rec.userUUID == userUUID {
			delete(s.refresh, k)
		}
	}

	return nil
}

func (s *Storage) SetMessageStatus(ctx context.Context, messageID uuid.UUID, status models.MessageStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.statuses[messageID] = status

	return nil
}

// MessageStatus exposes recorded statuses to tests.
func (s *Storage) MessageStatus(messageID uuid.UUID) (models.MessageStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.statuses[messageID]

	return st, ok
}

// RefreshCount exposes the number of live refresh records to tests.
func (s *Storage) RefreshCount(userUUID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, rec := range s.refresh {
		if rec.userUUID == userUUID && time.Now().Before(rec.expiresAt) {
			n++
		}
	}

	return n
}
