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
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
	Inventory    InventoryConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Inventory.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Cron.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"STOCKHOLD_APP_ENV" required:"true"`
	Port         string   `envconfig:"STOCKHOLD_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"STOCKHOLD_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"STOCKHOLD_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"STOCKHOLD_CORS_ORIGINS" default:"http://localhost:5173"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"STOCKHOLD_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN        string `envconfig:"STOCKHOLD_DB_DSN"`
	Driver     string `envconfig:"STOCKHOLD_DB_DRIVER" default:"postgres"`
	SQLitePath string `envconfig:"STOCKHOLD_SQLITE_PATH" default:"stockhold.db"`

	LegacyHost     string `envconfig:"STOCKHOLD_DB_HOST"`
	LegacyPort     int    `envconfig:"STOCKHOLD_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOCKHOLD_DB_USER"`
	LegacyPassword string `envconfig:"STOCKHOLD_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOCKHOLD_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOCKHOLD_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOCKHOLD_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOCKHOLD_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOCKHOLD_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOCKHOLD_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// SlowQuery is the duration above which statements are logged as warnings.
	SlowQuery time.Duration `envconfig:"STOCKHOLD_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOCKHOLD_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOCKHOLD_REDIS_ADDR"`
	Password     string        `envconfig:"STOCKHOLD_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOCKHOLD_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOCKHOLD_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOCKHOLD_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOCKHOLD_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOCKHOLD_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOCKHOLD_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies access tokens minted by the identity service.
type JWTConfig struct {
	Secret            string `envconfig:"STOCKHOLD_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"STOCKHOLD_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"STOCKHOLD_JWT_EXPIRATION_MINUTES" default:"60"`
}

type RateLimitConfig struct {
	AffiliateOrderWindow time.Duration `envconfig:"STOCKHOLD_RATE_LIMIT_AFFILIATE_ORDER_WINDOW" default:"1m"`
	AffiliateOrderLimit  int           `envconfig:"STOCKHOLD_RATE_LIMIT_AFFILIATE_ORDER_LIMIT" default:"30"`
	WriteWindow          time.Duration `envconfig:"STOCKHOLD_RATE_LIMIT_WRITE_WINDOW" default:"1m"`
	WriteLimit           int           `envconfig:"STOCKHOLD_RATE_LIMIT_WRITE_LIMIT" default:"120"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"STOCKHOLD_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"STOCKHOLD_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"STOCKHOLD_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	HTTPIdempotencyTTL   time.Duration `envconfig:"STOCKHOLD_HTTP_IDEMPOTENCY_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"STOCKHOLD_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"STOCKHOLD_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"STOCKHOLD_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	InventoryTopic        string `envconfig:"STOCKHOLD_PUBSUB_INVENTORY_TOPIC" default:"sh-inventory-events"`
	OrdersTopic           string `envconfig:"STOCKHOLD_PUBSUB_ORDERS_TOPIC" default:"sh-order-events"`
	AnalyticsSubscription string `envconfig:"STOCKHOLD_PUBSUB_ANALYTICS_SUBSCRIPTION" default:"sh-inventory-analytics"`
}

type BigQueryConfig struct {
	Dataset              string `envconfig:"STOCKHOLD_BIGQUERY_DATASET" default:"stockhold"`
	InventoryEventsTable string `envconfig:"STOCKHOLD_BIGQUERY_INVENTORY_TABLE" default:"inventory_events"`
	// CreateTables lets the analytics worker create missing tables instead
	// of refusing to start.
	CreateTables bool `envconfig:"STOCKHOLD_BIGQUERY_CREATE_TABLES" default:"false"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"STOCKHOLD_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"STOCKHOLD_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"STOCKHOLD_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"STOCKHOLD_OUTBOX_RETENTION" default:"720h"`
	PurgeBatchSize int           `envconfig:"STOCKHOLD_OUTBOX_PURGE_BATCH_SIZE" default:"500"`

	// OrderedDelivery publishes rows of one aggregate under a shared ordering key.
	OrderedDelivery bool   `envconfig:"STOCKHOLD_OUTBOX_ORDERED_DELIVERY" default:"true"`
	MetricsAddr     string `envconfig:"STOCKHOLD_OUTBOX_METRICS_ADDR"`
}

// InventoryConfig tunes the reservation lifecycle and the report read path.
type InventoryConfig struct {
	ReservationDefaultTTL time.Duration `envconfig:"STOCKHOLD_RESERVATION_DEFAULT_TTL" default:"24h"`
	ExpiryBatchSize       int           `envconfig:"STOCKHOLD_RESERVATION_EXPIRY_BATCH_SIZE" default:"200"`
	DefaultReorderLevel   int           `envconfig:"STOCKHOLD_DEFAULT_REORDER_LEVEL" default:"5"`
	ExpiringSoonWindow    time.Duration `envconfig:"STOCKHOLD_EXPIRING_SOON_WINDOW" default:"336h"`
	AnalyticsCacheTTL     time.Duration `envconfig:"STOCKHOLD_ANALYTICS_CACHE_TTL" default:"30s"`
	ReportTimezone        string        `envconfig:"STOCKHOLD_REPORT_TIMEZONE" default:"Local"`
}

// Location resolves the report timezone; unknown names fall back to time.Local.
func (i InventoryConfig) Location() *time.Location {
	name := strings.TrimSpace(i.ReportTimezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}

func (i InventoryConfig) validate() error {
	if i.ReservationDefaultTTL < 0 {
		return fmt.Errorf("%s must not be negative", EnvReservationDefaultTTL)
	}
	if i.ExpiryBatchSize <= 0 {
		return fmt.Errorf("%s must be positive", EnvReservationExpiryBatch)
	}
	if i.DefaultReorderLevel < 0 {
		return fmt.Errorf("%s must not be negative", EnvDefaultReorderLevel)
	}
	return nil
}

type CronConfig struct {
	Interval   time.Duration `envconfig:"STOCKHOLD_CRON_INTERVAL" default:"5m"`
	LockTTL    time.Duration `envconfig:"STOCKHOLD_CRON_LOCK_TTL" default:"4m"`
	JobTimeout time.Duration `envconfig:"STOCKHOLD_CRON_JOB_TIMEOUT" default:"2m"`
}

// A job may not outlive the lock that keeps other workers out of its cycle.
func (c CronConfig) validate() error {
	if c.LockTTL > 0 && c.JobTimeout > c.LockTTL {
		return fmt.Errorf("%s must not exceed %s", EnvCronJobTimeout, EnvCronLockTTL)
	}
	return nil
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
