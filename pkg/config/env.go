package config

const (
	// EnvPrefix is empty; envconfig falls back to the fully qualified tag names.
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	defaultSQLiteDSN = "file:flightnotify.db?_busy_timeout=5000"
)

const (
	EnvAppEnv      = "FLIGHTNOTIFY_APP_ENV"
	EnvPort        = "FLIGHTNOTIFY_APP_PORT"
	EnvDBDSN       = "FLIGHTNOTIFY_DB_DSN"
	EnvDBHost      = "FLIGHTNOTIFY_DB_HOST"
	EnvDBUser      = "FLIGHTNOTIFY_DB_USER"
	EnvDBName      = "FLIGHTNOTIFY_DB_NAME"
	EnvRedisURL    = "FLIGHTNOTIFY_REDIS_URL"
	EnvJWTSecret   = "FLIGHTNOTIFY_JWT_SECRET"
	EnvJWTIssuer   = "FLIGHTNOTIFY_JWT_ISSUER"
	EnvUseSQLite   = "FLIGHTNOTIFY_USE_SQLITE"
	EnvQueueLease  = "FLIGHTNOTIFY_QUEUE_LEASE"
	EnvWorkerBatch = "FLIGHTNOTIFY_WORKER_BATCH_SIZE"
)

var componentDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
