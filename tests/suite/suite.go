package suite

import (
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codephoenix86/ByteChat/internal/handler"
	"github.com/codephoenix86/ByteChat/internal/lib/jwt"
	"github.com/codephoenix86/ByteChat/internal/services/auth"
	"github.com/codephoenix86/ByteChat/internal/services/status"
	"github.com/codephoenix86/ByteChat/internal/storage/memory"
	"github.com/codephoenix86/ByteChat/internal/ws"
)

const (
	accessTTL  = 15 * time.Minute
	refreshTTL = time.Hour
)

// Suite wires the whole stack against the in-memory storage backend and
// serves it over httptest, so the flow tests exercise the real HTTP and
// websocket surfaces without external infrastructure.
type Suite struct {
	T       *testing.T
	Server  *httptest.Server
	Storage *memory.Storage
	Hub     *ws.Hub
	Codec   *jwt.Codec
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func New(t *testing.T) *Suite {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))

	store := memory.New()
	codec := jwt.NewCodec("suite-access-secret", "suite-refresh-secret", accessTTL, refreshTTL)

	authService := auth.New(log, store, store, codec, store, refreshTTL)
	statusService := status.New(log, store)

	hub := ws.NewHub(log)
	wsServer := ws.NewServer(log, ws.NewAuthenticator(log, codec), statusService, hub, ws.DefaultOptions())

	router := handler.NewRouter(log, handler.NewAuthHandler(log, authService, codec), wsServer)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &Suite{
		T:       t,
		Server:  srv,
		Storage: store,
		Hub:     hub,
		Codec:   codec,
	}
}

func (s *Suite) URL(path string) string {
	return s.Server.URL + path
}

func (s *Suite) WSURL() string {
	return "ws" + strings.TrimPrefix(s.Server.URL, "http") + "/ws"
}
