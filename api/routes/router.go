package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/flightnotify/api/controllers"
	"github.com/angelmondragon/flightnotify/api/middleware"
	"github.com/angelmondragon/flightnotify/internal/audit"
	"github.com/angelmondragon/flightnotify/internal/contacts"
	"github.com/angelmondragon/flightnotify/internal/notifications"
	"github.com/angelmondragon/flightnotify/internal/preferences"
	"github.com/angelmondragon/flightnotify/internal/queue"
	"github.com/angelmondragon/flightnotify/internal/templates"
	"github.com/angelmondragon/flightnotify/internal/worker"
	"github.com/angelmondragon/flightnotify/pkg/config"
	"github.com/angelmondragon/flightnotify/pkg/db"
	"github.com/angelmondragon/flightnotify/pkg/enums"
	"github.com/angelmondragon/flightnotify/pkg/logger"
	"github.com/angelmondragon/flightnotify/pkg/redis"
)

// Params carries everything the HTTP surface is wired to. Redis is optional;
// without it idempotency keys and rate limits are not enforced.
type Params struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            db.Pinger
	Redis         *redis.Client
	Metrics       http.Handler
	Queue         *queue.Store
	Worker        *worker.Worker
	Templates     templates.Service
	Preferences   preferences.Service
	Contacts      contacts.Service
	Audit         *audit.Log
	Notifications notifications.Service
}

func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.HTTP.CORSOrigins),
	)

	// A nil *redis.Client must not reach the middleware as a non-nil interface.
	var (
		idempotencyStore middleware.IdempotencyKeyStore
		rateStore        *redis.Client
		readyDeps        = map[string]controllers.Pinger{"database": p.DB}
	)
	if p.Redis != nil {
		idempotencyStore = p.Redis
		rateStore = p.Redis
		readyDeps["redis"] = p.Redis
	}
	submitPolicy := middleware.NewRateLimitPolicy(
		"jobs",
		cfg.HTTP.SubmitRateWindow,
		cfg.HTTP.SubmitIPLimit,
		cfg.HTTP.SubmitSubjectLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readyDeps))
	})
	if p.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", p.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.With(
			middleware.RequireRole(logg, enums.RoleProducer, enums.RoleOperator),
			rateLimit(submitPolicy, rateStore, logg),
		).Post("/jobs", controllers.SubmitJob(p.Queue, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.RoleOperator))

			r.Post("/worker/run", controllers.RunWorkerStep(p.Worker, logg))
			r.Get("/queues/stats", controllers.QueueStats(p.Queue, logg))

			r.Get("/dead-letters", controllers.ListDeadLetters(p.Queue, logg))
			r.Post("/dead-letters/{deadLetterId}/replay", controllers.ReplayDeadLetter(p.Queue, logg))

			r.Route("/templates", func(r chi.Router) {
				r.Get("/", controllers.ListTemplates(p.Templates, logg))
				r.Post("/", controllers.RegisterTemplate(p.Templates, logg))
				r.Post("/{templateId}/activate", controllers.SetTemplateActive(p.Templates, true, logg))
				r.Post("/{templateId}/deactivate", controllers.SetTemplateActive(p.Templates, false, logg))
			})

			r.Get("/notifications/{notificationId}/attempts", controllers.ListDeliveryAttempts(p.Audit, logg))

			r.Route("/users/{userId}", func(r chi.Router) {
				r.Get("/preferences", controllers.GetPreferences(p.Preferences, logg))
				r.Put("/preferences", controllers.PutPreferences(p.Preferences, logg))
				r.Get("/contact", controllers.GetContact(p.Contacts, logg))
				r.Put("/contact", controllers.PutContact(p.Contacts, logg))
				r.Get("/notifications", controllers.ListNotifications(p.Notifications, logg))
				r.Post("/notifications/read-all", controllers.MarkAllNotificationsRead(p.Notifications, logg))
				r.Post("/notifications/{notificationId}/read", controllers.MarkNotificationRead(p.Notifications, logg))
			})
		})
	})

	return r
}

func rateLimit(policy middleware.RateLimitPolicy, store *redis.Client, logg *logger.Logger) func(http.Handler) http.Handler {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.RateLimit(policy, store, logg)
}
