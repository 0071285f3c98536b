package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/eventdesk-backend/internal/cron"
	"github.com/angelmondragon/eventdesk-backend/internal/events"
	"github.com/angelmondragon/eventdesk-backend/internal/inventory"
	"github.com/angelmondragon/eventdesk-backend/internal/ledger"
	"github.com/angelmondragon/eventdesk-backend/internal/orders"
	"github.com/angelmondragon/eventdesk-backend/internal/organizers"
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

func main() {
	runJob := flag.String("run", "", "run the named job once and exit (event-completion, outbox-retention)")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})

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

	eventService, err := buildEventService(ctx, cfg, logg, dbClient)
	if err != nil {
		logg.Error(ctx, "failed to create events service", err)
		os.Exit(1)
	}

	completionJob, err := cron.NewEventCompletionJob(cron.EventCompletionJobParams{
		Logger: logg,
		Events: eventService,
	})
	if err != nil {
		logg.Error(ctx, "failed to create event completion job", err)
		os.Exit(1)
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:       logg,
		Repository:   outbox.NewRepository(dbClient.DB()),
		Keep:         time.Duration(cfg.Cron.OutboxRetentionDays) * 24 * time.Hour,
		DeadAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		logg.Error(ctx, "failed to create outbox retention job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron"), cfg.Cron.Interval)
	if err != nil {
		logg.Error(ctx, "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(completionJob, retentionJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		os.Exit(1)
	}

	if *runJob != "" {
		if err := service.RunNamed(ctx, *runJob); err != nil {
			logg.Error(logg.WithField(ctx, "job", *runJob), "one-off cron job failed", err)
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

// buildEventService wires the events service the completion job drives. Refunds
// never run from cron, but the service still requires a processor.
func buildEventService(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (events.Service, error) {
	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return nil, err
	}
	refundClient, err := stripe.NewRefundClient(stripeClient, cfg.Stripe, cfg.Refunds, logg)
	if err != nil {
		return nil, err
	}

	gormDB := dbClient.DB()
	inventoryLedger := inventory.NewLedger(nil)
	ledgerService, err := ledger.NewService(ledger.NewRepository(gormDB))
	if err != nil {
		return nil, err
	}
	organizerService, err := organizers.NewService(organizers.NewRepository(gormDB))
	if err != nil {
		return nil, err
	}

	return events.NewService(events.ServiceParams{
		TransactionRunner: dbClient,
		Repo:              events.NewRepository(gormDB),
		Tickets:           tickets.NewRepository(gormDB, inventoryLedger),
		Orders:            orders.NewRepository(gormDB),
		Organizers:        organizerService,
		Inventory:         inventoryLedger,
		Ledger:            ledgerService,
		Outbox:            outbox.NewService(outbox.NewRepository(gormDB), logg),
		Processor:         refundClient,
		Logger:            logg,
	})
}
