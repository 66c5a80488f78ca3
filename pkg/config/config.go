package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	HTTP         HTTPConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Queue        QueueConfig
	Worker       WorkerConfig
	Dispatch     DispatchConfig
	SMTP         SMTPConfig
	AWS          AWSConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Cron         CronConfig
	Retention    RetentionConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadJWT reads only the signing settings, for tools that mint tokens
// without the rest of the service environment.
func LoadJWT() (JWTConfig, error) {
	var cfg JWTConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return JWTConfig{}, fmt.Errorf("parsing jwt config: %w", err)
	}
	return cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FLIGHTNOTIFY_APP_ENV" required:"true"`
	Port         string `envconfig:"FLIGHTNOTIFY_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"FLIGHTNOTIFY_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"FLIGHTNOTIFY_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"FLIGHTNOTIFY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"FLIGHTNOTIFY_SERVICE_KIND" default:"api"`
}

// HTTPConfig tunes the API surface. Rate limits need Redis and are skipped
// without it.
type HTTPConfig struct {
	CORSOrigins        []string      `envconfig:"FLIGHTNOTIFY_HTTP_CORS_ORIGINS"`
	ReadTimeout        time.Duration `envconfig:"FLIGHTNOTIFY_HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout       time.Duration `envconfig:"FLIGHTNOTIFY_HTTP_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout    time.Duration `envconfig:"FLIGHTNOTIFY_HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
	SubmitRateWindow   time.Duration `envconfig:"FLIGHTNOTIFY_HTTP_SUBMIT_RATE_WINDOW" default:"1m"`
	SubmitIPLimit      int           `envconfig:"FLIGHTNOTIFY_HTTP_SUBMIT_IP_LIMIT" default:"600"`
	SubmitSubjectLimit int           `envconfig:"FLIGHTNOTIFY_HTTP_SUBMIT_SUBJECT_LIMIT" default:"1200"`
}

type DBConfig struct {
	DSN    string `envconfig:"FLIGHTNOTIFY_DB_DSN"`
	Driver string `envconfig:"FLIGHTNOTIFY_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"FLIGHTNOTIFY_DB_HOST"`
	Port     int    `envconfig:"FLIGHTNOTIFY_DB_PORT" default:"5432"`
	User     string `envconfig:"FLIGHTNOTIFY_DB_USER"`
	Password string `envconfig:"FLIGHTNOTIFY_DB_PASSWORD"`
	Name     string `envconfig:"FLIGHTNOTIFY_DB_NAME"`
	SSLMode  string `envconfig:"FLIGHTNOTIFY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FLIGHTNOTIFY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FLIGHTNOTIFY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FLIGHTNOTIFY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FLIGHTNOTIFY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"FLIGHTNOTIFY_DB_SLOW_QUERY" default:"500ms"`
}

// IsSQLite reports whether the configured driver targets SQLite.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"FLIGHTNOTIFY_REDIS_URL"`
	Address      string        `envconfig:"FLIGHTNOTIFY_REDIS_ADDR"`
	Password     string        `envconfig:"FLIGHTNOTIFY_REDIS_PASSWORD"`
	DB           int           `envconfig:"FLIGHTNOTIFY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FLIGHTNOTIFY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FLIGHTNOTIFY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FLIGHTNOTIFY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FLIGHTNOTIFY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FLIGHTNOTIFY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"FLIGHTNOTIFY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"FLIGHTNOTIFY_JWT_ISSUER" default:"flightnotify"`
	ExpirationMinutes int    `envconfig:"FLIGHTNOTIFY_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite      bool `envconfig:"FLIGHTNOTIFY_USE_SQLITE" default:"false"`
	AutoMigrate    bool `envconfig:"FLIGHTNOTIFY_AUTO_MIGRATE" default:"true"`
	PubSubIntake   bool `envconfig:"FLIGHTNOTIFY_FEATURE_PUBSUB_INTAKE" default:"false"`
	DeliveryDedupe bool `envconfig:"FLIGHTNOTIFY_FEATURE_DELIVERY_DEDUPE" default:"true"`
}

type QueueConfig struct {
	Lease time.Duration `envconfig:"FLIGHTNOTIFY_QUEUE_LEASE" default:"60s"`
}

type WorkerConfig struct {
	BatchSize     int           `envconfig:"FLIGHTNOTIFY_WORKER_BATCH_SIZE" default:"10"`
	Concurrency   int           `envconfig:"FLIGHTNOTIFY_WORKER_CONCURRENCY" default:"4"`
	PollInterval  time.Duration `envconfig:"FLIGHTNOTIFY_WORKER_POLL_INTERVAL" default:"2s"`
	MaxRetries    int           `envconfig:"FLIGHTNOTIFY_WORKER_MAX_RETRIES" default:"5"`
	MetricsPort   string        `envconfig:"FLIGHTNOTIFY_WORKER_METRICS_PORT" default:"9090"`
	StatsInterval time.Duration `envconfig:"FLIGHTNOTIFY_WORKER_STATS_INTERVAL" default:"30s"`
}

type DispatchConfig struct {
	SendTimeout   time.Duration `envconfig:"FLIGHTNOTIFY_DISPATCH_SEND_TIMEOUT" default:"10s"`
	RatePerSecond float64       `envconfig:"FLIGHTNOTIFY_DISPATCH_RATE_PER_SECOND" default:"20"`
	RateBurst     int           `envconfig:"FLIGHTNOTIFY_DISPATCH_RATE_BURST" default:"40"`
	DedupeTTL     time.Duration `envconfig:"FLIGHTNOTIFY_DISPATCH_DEDUPE_TTL" default:"72h"`
}

type SMTPConfig struct {
	Host     string `envconfig:"FLIGHTNOTIFY_SMTP_HOST"`
	Port     string `envconfig:"FLIGHTNOTIFY_SMTP_PORT" default:"587"`
	From     string `envconfig:"FLIGHTNOTIFY_SMTP_FROM"`
	Username string `envconfig:"FLIGHTNOTIFY_SMTP_USERNAME"`
	Password string `envconfig:"FLIGHTNOTIFY_SMTP_PASSWORD"`
}

// Enabled reports whether the SMTP relay was configured.
func (s SMTPConfig) Enabled() bool {
	return strings.TrimSpace(s.Host) != "" && strings.TrimSpace(s.From) != ""
}

type AWSConfig struct {
	Region      string `envconfig:"FLIGHTNOTIFY_AWS_REGION" default:"us-east-1"`
	AccessKeyID string `envconfig:"FLIGHTNOTIFY_AWS_ACCESS_KEY_ID"`
	SecretKey   string `envconfig:"FLIGHTNOTIFY_AWS_SECRET_ACCESS_KEY"`
	EndpointURL string `envconfig:"FLIGHTNOTIFY_AWS_ENDPOINT_URL"`
	SMSSenderID string `envconfig:"FLIGHTNOTIFY_SNS_SMS_SENDER_ID"`
	SMSEnabled  bool   `envconfig:"FLIGHTNOTIFY_SNS_SMS_ENABLED" default:"false"`
	PushEnabled bool   `envconfig:"FLIGHTNOTIFY_SNS_PUSH_ENABLED" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"FLIGHTNOTIFY_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	IntakeSubscription string        `envconfig:"FLIGHTNOTIFY_PUBSUB_INTAKE_SUBSCRIPTION"`
	IdempotencyTTL     time.Duration `envconfig:"FLIGHTNOTIFY_PUBSUB_IDEMPOTENCY_TTL" default:"720h"`
	MaxOutstanding     int           `envconfig:"FLIGHTNOTIFY_PUBSUB_MAX_OUTSTANDING" default:"100"`
	ReceiveGoroutines  int           `envconfig:"FLIGHTNOTIFY_PUBSUB_RECEIVE_GOROUTINES" default:"2"`
}

type CronConfig struct {
	Interval   time.Duration `envconfig:"FLIGHTNOTIFY_CRON_INTERVAL" default:"24h"`
	LockTTL    time.Duration `envconfig:"FLIGHTNOTIFY_CRON_LOCK_TTL" default:"25h"`
	JobTimeout time.Duration `envconfig:"FLIGHTNOTIFY_CRON_JOB_TIMEOUT" default:"1h"`
}

type RetentionConfig struct {
	InboxDays      int `envconfig:"FLIGHTNOTIFY_RETENTION_INBOX_DAYS" default:"30"`
	AttemptDays    int `envconfig:"FLIGHTNOTIFY_RETENTION_ATTEMPT_DAYS" default:"90"`
	DeadLetterDays int `envconfig:"FLIGHTNOTIFY_RETENTION_DEAD_LETTER_DAYS" default:"30"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DBDriverSQLite
		if db.DSN == "" {
			db.DSN = defaultSQLiteDSN
		}
		return nil
	}
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range componentDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
