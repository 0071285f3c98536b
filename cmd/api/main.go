package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/eventdesk-backend/api/routes"
	"github.com/angelmondragon/eventdesk-backend/internal/events"
	"github.com/angelmondragon/eventdesk-backend/internal/inventory"
	"github.com/angelmondragon/eventdesk-backend/internal/issuance"
	"github.com/angelmondragon/eventdesk-backend/internal/ledger"
	"github.com/angelmondragon/eventdesk-backend/internal/notifications"
	"github.com/angelmondragon/eventdesk-backend/internal/orders"
	"github.com/angelmondragon/eventdesk-backend/internal/organizers"
	"github.com/angelmondragon/eventdesk-backend/internal/refunds"
	"github.com/angelmondragon/eventdesk-backend/internal/tickets"
	"github.com/angelmondragon/eventdesk-backend/pkg/config"
	"github.com/angelmondragon/eventdesk-backend/pkg/db"
	"github.com/angelmondragon/eventdesk-backend/pkg/logger"
	"github.com/angelmondragon/eventdesk-backend/pkg/metrics"
	"github.com/angelmondragon/eventdesk-backend/pkg/migrate"
	"github.com/angelmondragon/eventdesk-backend/pkg/outbox"
	"github.com/angelmondragon/eventdesk-backend/pkg/redis"
	"github.com/angelmondragon/eventdesk-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap stripe", err)
		os.Exit(1)
	}
	refundClient, err := stripe.NewRefundClient(stripeClient, cfg.Stripe, cfg.Refunds, logg)
	if err != nil {
		logg.Error(ctx, "failed to create refund client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	refundMetrics := metrics.NewRefundMetrics(registry)
	inventoryLedger := inventory.NewLedger(metrics.NewInventoryMetrics(registry))

	gormDB := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)
	ticketsRepo := tickets.NewRepository(gormDB, inventoryLedger)
	ordersRepo := orders.NewRepository(gormDB)
	eventsRepo := events.NewRepository(gormDB)

	ledgerService, err := ledger.NewService(ledger.NewRepository(gormDB))
	requireService(ctx, logg, "ledger", err)

	organizerService, err := organizers.NewService(organizers.NewRepository(gormDB))
	requireService(ctx, logg, "organizers", err)

	notifier, err := notifications.NewOutboxNotifier(dbClient, outboxService, cfg.Email, cfg.FeatureFlags.EmailsEnabled, logg)
	requireService(ctx, logg, "notifications", err)

	guard := refunds.NewGuard(redisClient, cfg.Refunds.GuardTTL, logg)

	refundService, err := refunds.NewService(refunds.ServiceParams{
		TransactionRunner: dbClient,
		Tickets:           ticketsRepo,
		Orders:            ordersRepo,
		Events:            eventsRepo,
		Inventory:         inventoryLedger,
		Ledger:            ledgerService,
		Outbox:            outboxService,
		Processor:         refundClient,
		Guard:             guard,
		Notifier:          notifier,
		Metrics:           refundMetrics,
		Logger:            logg,
	})
	requireService(ctx, logg, "refunds", err)

	eventService, err := events.NewService(events.ServiceParams{
		TransactionRunner: dbClient,
		Repo:              eventsRepo,
		Tickets:           ticketsRepo,
		Orders:            ordersRepo,
		Organizers:        organizerService,
		Inventory:         inventoryLedger,
		Ledger:            ledgerService,
		Outbox:            outboxService,
		Processor:         refundClient,
		Guard:             guard,
		Notifier:          notifier,
		Metrics:           refundMetrics,
		Logger:            logg,
	})
	requireService(ctx, logg, "events", err)

	issuanceService, err := issuance.NewService(issuance.ServiceParams{
		TransactionRunner: dbClient,
		Tickets:           ticketsRepo,
		Orders:            ordersRepo,
		Events:            eventsRepo,
		Inventory:         inventoryLedger,
		Ledger:            ledgerService,
		Outbox:            outboxService,
		Notifier:          notifier,
		Logger:            logg,
	})
	requireService(ctx, logg, "issuance", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"stripe_env": stripeClient.Environment(),
	})
	logg.Info(serverCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			registry,
			organizerService,
			eventService,
			refundService,
			issuanceService,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(serverCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(serverCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(serverCtx, "api server shutdown failed", err)
		}
	}
}

func requireService(ctx context.Context, logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "failed to create "+name+" service", err)
	os.Exit(1)
}
