// Package pipeline assembles the delivery pipeline shared by the API and the
// worker binaries: queue store, preference and template services, senders,
// dispatcher and worker.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/angelmondragon/flightnotify/internal/audit"
	"github.com/angelmondragon/flightnotify/internal/contacts"
	"github.com/angelmondragon/flightnotify/internal/dispatch"
	"github.com/angelmondragon/flightnotify/internal/notifications"
	"github.com/angelmondragon/flightnotify/internal/preferences"
	"github.com/angelmondragon/flightnotify/internal/queue"
	"github.com/angelmondragon/flightnotify/internal/senders/email"
	"github.com/angelmondragon/flightnotify/internal/senders/inapp"
	"github.com/angelmondragon/flightnotify/internal/senders/push"
	"github.com/angelmondragon/flightnotify/internal/senders/sms"
	"github.com/angelmondragon/flightnotify/internal/templates"
	"github.com/angelmondragon/flightnotify/internal/worker"
	"github.com/angelmondragon/flightnotify/pkg/awssns"
	"github.com/angelmondragon/flightnotify/pkg/config"
	"github.com/angelmondragon/flightnotify/pkg/enums"
	"github.com/angelmondragon/flightnotify/pkg/idempotency"
	"github.com/angelmondragon/flightnotify/pkg/jobs/payloads"
	"github.com/angelmondragon/flightnotify/pkg/logger"
	"github.com/angelmondragon/flightnotify/pkg/metrics"
	"github.com/angelmondragon/flightnotify/pkg/redis"
)

// Params wires a Pipeline. Redis and Registerer are optional. Senders
// replaces the config-driven sender set when non-empty.
type Params struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         *gorm.DB
	Redis      *redis.Client
	Registerer prometheus.Registerer
	Senders    map[enums.Channel]dispatch.Sender
}

// Pipeline holds the assembled components.
type Pipeline struct {
	Queue         *queue.Store
	Audit         *audit.Log
	Templates     templates.Service
	Preferences   preferences.Service
	Contacts      contacts.Service
	Inbox         notifications.Service
	Dispatcher    *dispatch.Dispatcher
	Worker        *worker.Worker
	WorkerMetrics *metrics.WorkerMetrics
}

// Build constructs every component over one database handle.
func Build(ctx context.Context, p Params) (*Pipeline, error) {
	if p.Config == nil {
		return nil, errors.New("config is required")
	}
	if p.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if p.DB == nil {
		return nil, errors.New("database is required")
	}
	cfg := p.Config

	store, err := queue.NewStore(queue.StoreParams{DB: p.DB, Lease: cfg.Queue.Lease})
	if err != nil {
		return nil, fmt.Errorf("queue store: %w", err)
	}
	attempts, err := audit.NewLog(audit.LogParams{DB: p.DB, Metrics: metrics.NewDeliveryMetrics(p.Registerer)})
	if err != nil {
		return nil, fmt.Errorf("delivery log: %w", err)
	}
	tplSvc, err := templates.NewService(templates.ServiceParams{
		Repo:     templates.NewRepository(p.DB),
		Registry: payloads.Default(),
		Logger:   p.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("template service: %w", err)
	}
	prefRepo := preferences.NewRepository(p.DB)
	prefSvc, err := preferences.NewService(prefRepo)
	if err != nil {
		return nil, fmt.Errorf("preference service: %w", err)
	}
	contactSvc, err := contacts.NewService(contacts.NewRepository(p.DB))
	if err != nil {
		return nil, fmt.Errorf("contact service: %w", err)
	}
	inboxRepo := notifications.NewRepository(p.DB)
	inboxSvc, err := notifications.NewService(inboxRepo)
	if err != nil {
		return nil, fmt.Errorf("inbox service: %w", err)
	}

	senderSet := p.Senders
	if len(senderSet) == 0 {
		senderSet, err = BuildSenders(ctx, cfg, inboxRepo, p.Logger)
		if err != nil {
			return nil, err
		}
	}

	dispatchParams := dispatch.Params{
		Senders:       senderSet,
		Templates:     tplSvc,
		Contacts:      contactSvc,
		Audit:         attempts,
		Logger:        p.Logger,
		SendTimeout:   cfg.Dispatch.SendTimeout,
		RatePerSecond: cfg.Dispatch.RatePerSecond,
		RateBurst:     cfg.Dispatch.RateBurst,
	}
	if p.Redis != nil && cfg.FeatureFlags.DeliveryDedupe {
		dedupe, err := idempotency.NewManager(p.Redis, cfg.Dispatch.DedupeTTL)
		if err != nil {
			return nil, fmt.Errorf("delivery dedupe: %w", err)
		}
		dispatchParams.Dedupe = dedupe
	}
	dispatcher, err := dispatch.New(dispatchParams)
	if err != nil {
		return nil, fmt.Errorf("dispatcher: %w", err)
	}

	workerMetrics := metrics.NewWorkerMetrics(p.Registerer)
	w, err := worker.New(worker.Params{
		Store:         store,
		Preferences:   prefRepo,
		Dispatcher:    dispatcher,
		Logger:        p.Logger,
		Metrics:       workerMetrics,
		BatchSize:     cfg.Worker.BatchSize,
		Concurrency:   cfg.Worker.Concurrency,
		MaxRetries:    cfg.Worker.MaxRetries,
		PollInterval:  cfg.Worker.PollInterval,
		StatsInterval: cfg.Worker.StatsInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("worker: %w", err)
	}

	return &Pipeline{
		Queue:         store,
		Audit:         attempts,
		Templates:     tplSvc,
		Preferences:   prefSvc,
		Contacts:      contactSvc,
		Inbox:         inboxSvc,
		Dispatcher:    dispatcher,
		Worker:        w,
		WorkerMetrics: workerMetrics,
	}, nil
}

// BuildSenders returns the in-app sender plus every provider enabled in cfg.
// SMS and push share one SNS client.
func BuildSenders(ctx context.Context, cfg *config.Config, inbox notifications.Repository, logg *logger.Logger) (map[enums.Channel]dispatch.Sender, error) {
	out := make(map[enums.Channel]dispatch.Sender, 4)

	inappSender, err := inapp.New(inbox)
	if err != nil {
		return nil, fmt.Errorf("in-app sender: %w", err)
	}
	out[enums.ChannelInApp] = inappSender

	if cfg.SMTP.Enabled() {
		emailSender, err := email.New(cfg.SMTP)
		if err != nil {
			return nil, fmt.Errorf("email sender: %w", err)
		}
		out[enums.ChannelEmail] = emailSender
	}

	if cfg.AWS.SMSEnabled || cfg.AWS.PushEnabled {
		client, err := awssns.NewClient(ctx, cfg.AWS)
		if err != nil {
			return nil, fmt.Errorf("sns client: %w", err)
		}
		if cfg.AWS.SMSEnabled {
			smsSender, err := sms.New(client, cfg.AWS.SMSSenderID)
			if err != nil {
				return nil, fmt.Errorf("sms sender: %w", err)
			}
			out[enums.ChannelSMS] = smsSender
		}
		if cfg.AWS.PushEnabled {
			pushSender, err := push.New(client)
			if err != nil {
				return nil, fmt.Errorf("push sender: %w", err)
			}
			out[enums.ChannelPush] = pushSender
		}
	}

	if logg != nil {
		channels := make([]string, 0, len(out))
		for channel := range out {
			channels = append(channels, string(channel))
		}
		logg.Info(logg.WithField(ctx, "channels", channels), "senders configured")
	}
	return out, nil
}
