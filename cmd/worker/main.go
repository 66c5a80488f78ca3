package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/flightnotify/internal/intake"
	"github.com/angelmondragon/flightnotify/internal/pipeline"
	"github.com/angelmondragon/flightnotify/pkg/config"
	"github.com/angelmondragon/flightnotify/pkg/db"
	"github.com/angelmondragon/flightnotify/pkg/idempotency"
	"github.com/angelmondragon/flightnotify/pkg/instance"
	"github.com/angelmondragon/flightnotify/pkg/logger"
	"github.com/angelmondragon/flightnotify/pkg/metrics"
	"github.com/angelmondragon/flightnotify/pkg/migrate"
	"github.com/angelmondragon/flightnotify/pkg/pubsub"
	"github.com/angelmondragon/flightnotify/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Environment: cfg.App.Env,
		Instance:    instance.GetID(),
		Format:      cfg.App.LogFormat,
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

	if err := migrate.RunOnStartup(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run startup migrations", err)
		os.Exit(1)
	}

	deps := []Dependency{{Name: "database", Ping: dbClient}}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		deps = append(deps, Dependency{Name: "redis", Ping: redisClient})
	}

	p, err := pipeline.Build(ctx, pipeline.Params{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient.DB(),
		Redis:      redisClient,
		Registerer: prometheus.DefaultRegisterer,
	})
	if err != nil {
		logg.Error(ctx, "failed to build delivery pipeline", err)
		os.Exit(1)
	}

	var intakeConsumer runner
	if cfg.FeatureFlags.PubSubIntake {
		if redisClient == nil {
			logg.Error(ctx, "pubsub intake requires redis", errors.New("redis not configured"))
			os.Exit(1)
		}
		pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		deps = append(deps, Dependency{Name: "pubsub", Ping: pubsubClient})

		manager, err := idempotency.NewManager(redisClient, cfg.PubSub.IdempotencyTTL)
		if err != nil {
			logg.Error(ctx, "failed to create idempotency manager", err)
			os.Exit(1)
		}
		consumer, err := intake.NewConsumer(p.Queue, pubsubClient.IntakeSubscription(), manager, logg)
		if err != nil {
			logg.Error(ctx, "failed to create intake consumer", err)
			os.Exit(1)
		}
		intakeConsumer = consumer
	}

	service, err := NewService(ServiceParams{
		Logger:         logg,
		Worker:         p.Worker,
		Intake:         intakeConsumer,
		Dependencies:   deps,
		MetricsHandler: metrics.Handler(nil),
		MetricsAddr:    ":" + cfg.Worker.MetricsPort,
	})
	if err != nil {
		logg.Error(ctx, "failed to create worker service", err)
		os.Exit(1)
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"service_kind": cfg.Service.Kind,
		"pubsub":       intakeConsumer != nil,
	})
	logg.Info(ctx, "starting notification worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "worker shutting down gracefully")
}
