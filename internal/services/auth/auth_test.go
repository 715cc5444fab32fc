package auth

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codephoenix86/ByteChat/internal/lib/jwt"
	"github.com/codephoenix86/ByteChat/internal/storage"
	"github.com/codephoenix86/ByteChat/internal/storage/memory"
)

func newTestAuth(t *testing.T) (*Auth, *memory.Storage) {
	t.Helper()

	store := memory.New()
	codec := jwt.NewCodec("test-access", "test-refresh", 15*time.Minute, time.Hour)
	log := slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelError}))

	return New(log, store, store, codec, store, time.Hour), store
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func registerUser(t *testing.T, a *Auth) (identifier, password string) {
	t.Helper()

	identifier = gofakeit.Email()
	password = gofakeit.Password(true, true, true, true, false, 12)

	_, err := a.Register(context.Background(), gofakeit.Username(), identifier, password)
	require.NoError(t, err)

	return identifier, password
}

func TestAuth_RegisterLogin_HappyPath(t *testing.T) {
	a, store := newTestAuth(t)
	email, pass := registerUser(t, a)

	pair, err := a.Login(context.Background(), email, pass)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	user, err := store.UserByEmailOrName(context.Background(), email)
	require.NoError(t, err)
	assert.Equal(t, 1, store.RefreshCount(user.UUID))
}

func TestAuth_Register_Duplicate(t *testing.T) {
	a, _ := newTestAuth(t)

	username := gofakeit.Username()
	email := gofakeit.Email()
	pass := gofakeit.Password(true, true, true, true, false, 12)

	_, err := a.Register(context.Background(), username, email, pass)
	require.NoError(t, err)

	_, err = a.Register(context.Background(), username, email, pass)
	assert.ErrorIs(t, err, storage.ErrUserExists)
}

func TestAuth_Login_WrongPassword(t *testing.T) {
	a, _ := newTestAuth(t)
	email, _ := registerUser(t, a)

	_, err := a.Login(context.Background(), email, "wrong-password")
	assert.ErrorIs(t, err, storage.ErrInvalidCredentials)
}

func TestAuth_Login_UnknownUser(t *testing.T) {
	a, _ := newTestAuth(t)

	_, err := a.Login(context.Background(), gofakeit.Email(), "whatever")
	assert.ErrorIs(t, err, storage.ErrInvalidCredentials)
}

func TestAuth_Refresh_RotatesAndInvalidatesOld(t *testing.T) {
	a, store := newTestAuth(t)
	email, pass := registerUser(t, a)

	pair, err := a.Login(context.Background(), email, pass)
	require.NoError(t, err)

	rotated, err := a.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, rotated.AccessToken)
	require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// old token is spent: signature still valid, record gone
	_, err = a.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, storage.ErrInvalidToken)

	user, err := store.UserByEmailOrName(context.Background(), email)
	require.NoError(t, err)

	live, err := store.Exists(context.Background(), user.UUID, sha256Hex(pair.RefreshToken))
	require.NoError(t, err)
	assert.False(t, live)
	assert.Equal(t, 1, store.RefreshCount(user.UUID))
}

func TestAuth_Refresh_GarbageToken(t *testing.T) {
	a, _ := newTestAuth(t)

	for _, token := range []string{"", "not-a-jwt"} {
		_, err := a.Refresh(context.Background(), token)
		assert.ErrorIs(t, err, storage.ErrInvalidToken)
	}
}

func TestAuth_Refresh_ConcurrentRace_OneWinner(t *testing.T) {
	a, store := newTestAuth(t)
	email, pass := registerUser(t, a)

	pair, err := a.Login(context.Background(), email, pass)
	require.NoError(t, err)

	const racers = 8

	var wg sync.WaitGroup
	errs := make([]error, racers)

	wg.Add(racers)
	for i := 0; i < racers; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = a.Refresh(context.Background(), pair.RefreshToken)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, storage.ErrInvalidToken)
		}
	}
	assert.Equal(t, 1, wins, "exactly one racer may rotate the token")

	user, err := store.UserByEmailOrName(context.Background(), email)
	require.NoError(t, err)
	assert.Equal(t, 1, store.RefreshCount(user.UUID), "one rotation must leave one live record")
}

func TestAuth_Logout_Idempotent(t *testing.T) {
	a, store := newTestAuth(t)
	email, pass := registerUser(t, a)

	pair, err := a.Login(context.Background(), email, pass)
	require.NoError(t, err)

	user, err := store.UserByEmailOrName(context.Background(), email)
	require.NoError(t, err)

	require.NoError(t, a.Logout(context.Background(), user.UUID, pair.RefreshToken))
	require.NoError(t, a.Logout(context.Background(), user.UUID, pair.RefreshToken))

	_, err = a.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, storage.ErrInvalidToken)
}

func TestAuth_LogoutAll(t *testing.T) {
	a, store := newTestAuth(t)
	email, pass := registerUser(t, a)

	first, err := a.Login(context.Background(), email, pass)
	require.NoError(t, err)
	second, err := a.Login(context.Background(), email, pass)
	require.NoError(t, err)

	user, err := store.UserByEmailOrName(context.Background(), email)
	require.NoError(t, err)
	require.Equal(t, 2, store.RefreshCount(user.UUID))

	require.NoError(t, a.LogoutAll(context.Background(), user.UUID))
	assert.Equal(t, 0, store.RefreshCount(user.UUID))

	_, err = a.Refresh(context.Background(), first.RefreshToken)
	assert.ErrorIs(t, err, storage.ErrInvalidToken)
	_, err = a.Refresh(context.Background(), second.RefreshToken)
	assert.ErrorIs(t, err, storage.ErrInvalidToken)
}
