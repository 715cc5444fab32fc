package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codephoenix86/ByteChat/internal/domain/models"
	"github.com/codephoenix86/ByteChat/internal/lib/jwt"
	"github.com/codephoenix86/ByteChat/internal/services/auth"
	"github.com/codephoenix86/ByteChat/internal/services/status"
	"github.com/codephoenix86/ByteChat/internal/storage/memory"
	"github.com/codephoenix86/ByteChat/internal/ws"
)

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
	store := memory.New()
	codec := jwt.NewCodec("handler-access", "handler-refresh", 15*time.Minute, time.Hour)

	authSvc := auth.New(log, store, store, codec, store, time.Hour)
	statusSvc := status.New(log, store)
	hub := ws.NewHub(log)
	wsServer := ws.NewServer(log, ws.NewAuthenticator(log, codec), statusSvc, hub, ws.DefaultOptions())

	return NewRouter(log, NewAuthHandler(log, authSvc, codec), wsServer)
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func registerAccount(t *testing.T, r *gin.Engine) (username, email, password string) {
	t.Helper()

	username = gofakeit.Username()
	email = gofakeit.Email()
	password = gofakeit.Password(true, true, true, true, false, 12)

	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", gin.H{
		"username": username,
		"email":    email,
		"password": password,
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	return username, email, password
}

func loginAccount(t *testing.T, r *gin.Engine, identifier, password string) models.TokenPair {
	t.Helper()

	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/login", gin.H{
		"username": identifier,
		"password": password,
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var pair models.TokenPair
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pair))
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	return pair
}

func TestRegister_Duplicate(t *testing.T) {
	r := newTestRouter(t)
	username, email, password := registerAccount(t, r)

	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", gin.H{
		"username": username,
		"email":    email,
		"password": password,
	}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRegister_BadBody(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", gin.H{"username": "x"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin_ByUsernameAndEmail(t *testing.T) {
	r := newTestRouter(t)
	username, email, password := registerAccount(t, r)

	loginAccount(t, r, username, password)

	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/login", gin.H{
		"email":    email,
		"password": password,
	}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogin_WrongPassword(t *testing.T) {
	r := newTestRouter(t)
	username, _, _ := registerAccount(t, r)

	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/login", gin.H{
		"username": username,
		"password": "definitely-wrong",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefresh_RotationFlow(t *testing.T) {
	r := newTestRouter(t)
	username, _, password := registerAccount(t, r)
	pair := loginAccount(t, r, username, password)

	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/refresh", gin.H{
		"refreshToken": pair.RefreshToken,
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var rotated models.TokenPair
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rotated))
	require.NotEmpty(t, rotated.RefreshToken)

	// the spent token is refused on a second attempt
	w = doJSON(t, r, http.MethodPost, "/api/v1/auth/refresh", gin.H{
		"refreshToken": pair.RefreshToken,
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefresh_GarbageToken(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/refresh", gin.H{
		"refreshToken": "not-a-jwt",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogout_RequiresAccessToken(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/logout", gin.H{
		"refreshToken": "whatever",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogout_Idempotent(t *testing.T) {
	r := newTestRouter(t)
	username, _, password := registerAccount(t, r)
	pair := loginAccount(t, r, username, password)

	header := http.Header{"Authorization": []string{"Bearer " + pair.AccessToken}}

	for i := 0; i < 2; i++ {
		w := doJSON(t, r, http.MethodPost, "/api/v1/auth/logout", gin.H{
			"refreshToken": pair.RefreshToken,
		}, header)
		assert.Equal(t, http.StatusOK, w.Code, "logout attempt %d", i+1)
	}

	// the revoked refresh token no longer rotates
	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/refresh", gin.H{
		"refreshToken": pair.RefreshToken,
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
