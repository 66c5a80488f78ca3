package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/flightnotify/internal/audit"
	"github.com/angelmondragon/flightnotify/internal/cron"
	"github.com/angelmondragon/flightnotify/internal/notifications"
	"github.com/angelmondragon/flightnotify/internal/queue"
	"github.com/angelmondragon/flightnotify/pkg/config"
	"github.com/angelmondragon/flightnotify/pkg/db"
	"github.com/angelmondragon/flightnotify/pkg/instance"
	"github.com/angelmondragon/flightnotify/pkg/logger"
	"github.com/angelmondragon/flightnotify/pkg/metrics"
	"github.com/angelmondragon/flightnotify/pkg/migrate"
	"github.com/angelmondragon/flightnotify/pkg/redis"
)

const lockKeyFormat = "cron-worker:lock:%s"

func main() {
	once := flag.Bool("once", false, "run one maintenance cycle and exit")
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

	var lock cron.Lock = &cron.LocalLock{}
	if cfg.Redis.Enabled() {
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
		redisLock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockKey(cfg.App.Env)), cfg.Cron.LockTTL)
		if err != nil {
			logg.Error(ctx, "failed to create cron lock", err)
			os.Exit(1)
		}
		lock = redisLock
	} else {
		logg.Warn(ctx, "redis not configured; cron lock is process-local")
	}

	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	registry, err := buildRegistry(cfg, logg, dbClient, cronMetrics)
	if err != nil {
		logg.Error(ctx, "failed to register cron jobs", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    cronMetrics,
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		os.Exit(1)
	}

	ctx = logg.WithField(ctx, "service_kind", cfg.Service.Kind)

	if *once {
		logg.Info(ctx, "running single cron cycle")
		if err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "cron cycle failed", err)
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

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, cronMetrics *metrics.CronJobMetrics) (*cron.Registry, error) {
	store, err := queue.NewStore(queue.StoreParams{DB: dbClient.DB(), Lease: cfg.Queue.Lease})
	if err != nil {
		return nil, err
	}
	attempts, err := audit.NewLog(audit.LogParams{DB: dbClient.DB()})
	if err != nil {
		return nil, err
	}

	inbox, err := cron.NewInboxRetentionJob(cron.RetentionJobParams{
		Logger:        logg,
		DB:            dbClient,
		Metrics:       cronMetrics,
		RetentionDays: cfg.Retention.InboxDays,
	}, notifications.NewRepository(dbClient.DB()))
	if err != nil {
		return nil, err
	}
	attemptJob, err := cron.NewAttemptRetentionJob(cron.RetentionJobParams{
		Logger:        logg,
		DB:            dbClient,
		Metrics:       cronMetrics,
		RetentionDays: cfg.Retention.AttemptDays,
	}, attempts)
	if err != nil {
		return nil, err
	}
	deadLetters, err := cron.NewDeadLetterRetentionJob(cron.RetentionJobParams{
		Logger:        logg,
		DB:            dbClient,
		Metrics:       cronMetrics,
		RetentionDays: cfg.Retention.DeadLetterDays,
	}, store)
	if err != nil {
		return nil, err
	}

	return cron.NewRegistry(inbox, attemptJob, deadLetters), nil
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
