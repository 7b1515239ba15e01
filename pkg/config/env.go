package config

const (
	EnvPrefix = "STOCKHOLD"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "STOCKHOLD_APP_ENV"
	EnvPort     = "STOCKHOLD_APP_PORT"
	EnvLogLevel = "STOCKHOLD_LOG_LEVEL"

	EnvDBDSN  = "STOCKHOLD_DB_DSN"
	EnvDBHost = "STOCKHOLD_DB_HOST"
	EnvDBUser = "STOCKHOLD_DB_USER"
	EnvDBName = "STOCKHOLD_DB_NAME"

	EnvRedisURL  = "STOCKHOLD_REDIS_URL"
	EnvJWTSecret = "STOCKHOLD_JWT_SECRET"
	EnvJWTIssuer = "STOCKHOLD_JWT_ISSUER"

	EnvUseSQLite = "STOCKHOLD_USE_SQLITE"

	EnvGCPProjectID = "STOCKHOLD_GCP_PROJECT_ID"

	EnvReservationDefaultTTL  = "STOCKHOLD_RESERVATION_DEFAULT_TTL"
	EnvReservationExpiryBatch = "STOCKHOLD_RESERVATION_EXPIRY_BATCH_SIZE"
	EnvDefaultReorderLevel    = "STOCKHOLD_DEFAULT_REORDER_LEVEL"
	EnvCronInterval           = "STOCKHOLD_CRON_INTERVAL"
	EnvCronLockTTL            = "STOCKHOLD_CRON_LOCK_TTL"
	EnvCronJobTimeout         = "STOCKHOLD_CRON_JOB_TIMEOUT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
