package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/codephoenix86/ByteChat/internal/config"
	"github.com/codephoenix86/ByteChat/internal/handler"
	"github.com/codephoenix86/ByteChat/internal/lib/jwt"
	"github.com/codephoenix86/ByteChat/internal/lib/logger/sl"
	"github.com/codephoenix86/ByteChat/internal/services/auth"
	"github.com/codephoenix86/ByteChat/internal/services/status"
	"github.com/codephoenix86/ByteChat/internal/storage/postgres"
	"github.com/codephoenix86/ByteChat/internal/storage/redis"
	"github.com/codephoenix86/ByteChat/internal/ws"
)

type App struct {
	log        *slog.Logger
	httpServer *http.Server
	hub        *ws.Hub
	pg         *postgres.Storage
	rd         *redis.Storage
}

func New(log *slog.Logger, cfg *config.Config) *App {
	pg, err := postgres.New(cfg.PostgresDSN, log)
	if err != nil {
		panic(err)
	}

	rd, err := redis.New(context.Background(), cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, log)
	if err != nil {
		panic(err)
	}

	codec := jwt.NewCodec(
		cfg.Token.AccessSecret,
		cfg.Token.RefreshSecret,
		cfg.Token.AccessTTL,
		cfg.Token.RefreshTTL,
	)

	authService := auth.New(
		log,
		pg, // UserSaver
		pg, // UserProvider
		codec,
		rd, // RefreshStore
		cfg.Token.RefreshTTL,
	)

	statusService := status.New(log, pg)

	hub := ws.NewHub(log)
	wsServer := ws.NewServer(
		log,
		ws.NewAuthenticator(log, codec),
		statusService,
		hub,
		ws.Options{
			WriteWait:      cfg.WS.WriteWait,
			PongWait:       cfg.WS.PongWait,
			MaxMessageSize: cfg.WS.MaxMessageSize,
		},
	)

	router := handler.NewRouter(log, handler.NewAuthHandler(log, authService, codec), wsServer)

	return &App{
		log: log,
		httpServer: &http.Server{
			Addr:         cfg.HTTP.Address,
			Handler:      router,
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
		},
		hub: hub,
		pg:  pg,
		rd:  rd,
	}
}

func (a *App) MustRun() {
	a.log.Info("http server starting", slog.String("addr", a.httpServer.Addr))

	if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic(err)
	}
}

// Stop shuts the pieces down in dependency order: stop accepting HTTP,
// drop live websocket sessions, then close the stores.
func (a *App) Stop(ctx context.Context) {
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.log.Error("http shutdown failed", sl.Err(err))
	}

	a.hub.CloseAll()

	if err := a.rd.Close(); err != nil {
		a.log.Error("redis close failed", sl.Err(err))
	}
	if err := a.pg.Close(); err != nil {
		a.log.Error("postgres close failed", sl.Err(err))
	}
}
