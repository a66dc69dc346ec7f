package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/kobopay/kobopay/internal/config"
	"github.com/kobopay/kobopay/internal/reconcile"
	"github.com/kobopay/kobopay/internal/routes"
)

// Server wraps the Fiber application, the background reconciler, and shared
// dependencies.
type Server struct {
	app        *fiber.App
	cfg        config.Config
	db         *pgxpool.Pool
	cache      *redis.Client
	reconciler *reconcile.Reconciler
	reconCtx   context.Context
	stopRecon  context.CancelFunc
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
// The reconciler's lifetime context is created here so Listen and Shutdown
// can run on different goroutines without coordinating.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	reconciler, err := routes.Setup(app, routes.Deps{Cfg: cfg, DB: db, Cache: cache, Logger: logger})
	if err != nil {
		return nil, err
	}

	s := &Server{app: app, cfg: cfg, db: db, cache: cache, reconciler: reconciler}
	if reconciler != nil {
		s.reconCtx, s.stopRecon = context.WithCancel(context.Background())
	}
	return s, nil
}

// Listen starts the background reconciler and the HTTP server.
func (s *Server) Listen() error {
	if s.reconciler != nil {
		go s.reconciler.Run(s.reconCtx)
	}
	return s.app.Listen(s.cfg.Address())
}

// Shutdown stops the reconciler and gracefully drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.stopRecon != nil {
		s.stopRecon()
	}
	return s.app.ShutdownWithContext(ctx)
}
