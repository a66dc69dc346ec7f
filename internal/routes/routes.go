package routes

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/kobopay/kobopay/internal/collection"
	"github.com/kobopay/kobopay/internal/config"
	"github.com/kobopay/kobopay/internal/customer"
	"github.com/kobopay/kobopay/internal/invoice"
	"github.com/kobopay/kobopay/internal/ledger"
	"github.com/kobopay/kobopay/internal/middleware"
	"github.com/kobopay/kobopay/internal/notification"
	"github.com/kobopay/kobopay/internal/payout"
	"github.com/kobopay/kobopay/internal/provider"
	"github.com/kobopay/kobopay/internal/reconcile"
	"github.com/kobopay/kobopay/internal/webhook"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes. It returns the
// reconciler so the server can run it alongside the listener.
func Setup(app *fiber.App, d Deps) (*reconcile.Reconciler, error) {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		// Webhook deliveries and operational endpoints carry no Idempotency-Key.
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger,
			"/webhooks", "/healthz", "/metrics"))
	}

	RegisterHealthRoutes(app, d)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Storage backends: Postgres when configured, in-memory for dev.
	var (
		ledgerBackend ledger.Ledger
		customers     customer.Repository
		invoices      invoice.Repository
		instruments   collection.Repository
	)
	if d.DB != nil {
		ledgerBackend = ledger.NewPostgres(d.DB)
		customers = customer.NewPostgresRepository(d.DB)
		invoices = invoice.NewPostgresRepository(d.DB)
		instruments = collection.NewPostgresRepository(d.DB)
	} else {
		ledgerBackend = ledger.NewInMemory()
		customers = customer.NewMemoryRepository()
		invoices = invoice.NewMemoryRepository()
		instruments = collection.NewMemoryRepository()
	}

	gateway := provider.New(provider.Config{
		BaseURL:    d.Cfg.Provider.BaseURL,
		Token:      d.Cfg.Provider.Token,
		SigningKey: d.Cfg.Provider.SigningKey,
		Timeout:    d.Cfg.Provider.Timeout,
	})
	notifier := notification.NewLoggerNotifier(d.Logger)

	payoutSvc := payout.NewService(ledgerBackend, gateway, d.Logger)
	payoutHandler := payout.NewHandler(payoutSvc, gateway)

	collectionSvc := collection.NewService(gateway, instruments, invoices, customers, d.Logger)
	collectionHandler := collection.NewHandler(collectionSvc)

	walletHandler := ledger.NewHandler(ledgerBackend)

	verifier := webhook.NewVerifier(d.Cfg.Webhook.Secret, d.Cfg.Webhook.SharedKey)
	processor := webhook.NewProcessor(ledgerBackend, customers, invoices, notifier, d.Logger)
	webhookHandler := webhook.NewHandler(verifier, processor)

	v1 := app.Group("/v1")
	v1.Post("/payouts", payoutHandler.Initiate)
	v1.Get("/banks", payoutHandler.ListBanks)
	v1.Post("/banks/verify", payoutHandler.VerifyAccount)
	v1.Post("/collections", collectionHandler.Create)
	v1.Get("/collections/:ref/status", collectionHandler.Status)
	v1.Get("/wallets/:userId/balances", walletHandler.Balances)

	app.Post("/webhooks/provider", webhookHandler.Receive)

	if !d.Cfg.Reconcile.Enabled {
		return nil, nil
	}
	reconciler := reconcile.New(ledgerBackend, gateway,
		d.Cfg.Reconcile.Interval, d.Cfg.Reconcile.MinAge, d.Logger)
	return reconciler, nil
}
