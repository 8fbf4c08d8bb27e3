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
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Feed         FeedConfig
	Tracker      TrackerConfig
	Boards       BoardsConfig
	Address      AddressConfig
	Storage      StorageConfig
	Sales        SalesConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Feed.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CHICKENSHOP_APP_ENV" required:"true"`
	Port         string `envconfig:"CHICKENSHOP_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"CHICKENSHOP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CHICKENSHOP_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"CHICKENSHOP_LOG_FORMAT" default:"json"`

	CORSOrigins     []string      `envconfig:"CHICKENSHOP_CORS_ORIGINS" default:"http://localhost:3000"`
	ShutdownTimeout time.Duration `envconfig:"CHICKENSHOP_SHUTDOWN_TIMEOUT" default:"15s"`
	StreamHeartbeat time.Duration `envconfig:"CHICKENSHOP_STREAM_HEARTBEAT" default:"25s"`
}

// RateLimitConfig throttles the credential endpoints.
type RateLimitConfig struct {
	Window        time.Duration `envconfig:"CHICKENSHOP_AUTH_RATE_WINDOW" default:"1m"`
	IPLimit       int           `envconfig:"CHICKENSHOP_AUTH_RATE_IP_LIMIT" default:"20"`
	UsernameLimit int           `envconfig:"CHICKENSHOP_AUTH_RATE_USERNAME_LIMIT" default:"5"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"CHICKENSHOP_DB_DSN"`
	Driver string `envconfig:"CHICKENSHOP_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CHICKENSHOP_DB_HOST"`
	LegacyPort     int    `envconfig:"CHICKENSHOP_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CHICKENSHOP_DB_USER"`
	LegacyPassword string `envconfig:"CHICKENSHOP_DB_PASSWORD"`
	LegacyName     string `envconfig:"CHICKENSHOP_DB_NAME"`
	LegacySSLMode  string `envconfig:"CHICKENSHOP_DB_SSLMODE" default:"require"`

	MaxOpenConns    int           `envconfig:"CHICKENSHOP_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"CHICKENSHOP_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"CHICKENSHOP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CHICKENSHOP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"CHICKENSHOP_DB_SLOW_QUERY" default:"500ms"`
}

// IsSQLite reports whether the local sqlite driver is selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"CHICKENSHOP_REDIS_URL"`
	Address      string        `envconfig:"CHICKENSHOP_REDIS_ADDR"`
	Password     string        `envconfig:"CHICKENSHOP_REDIS_PASSWORD"`
	DB           int           `envconfig:"CHICKENSHOP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CHICKENSHOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CHICKENSHOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CHICKENSHOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CHICKENSHOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CHICKENSHOP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"CHICKENSHOP_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CHICKENSHOP_JWT_ISSUER" default:"chickenshop"`
	ExpirationMinutes int    `envconfig:"CHICKENSHOP_JWT_EXPIRATION_MINUTES" default:"1440"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"CHICKENSHOP_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"CHICKENSHOP_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	ChangesSubscription string `envconfig:"CHICKENSHOP_PUBSUB_CHANGES_SUBSCRIPTION"`
	MaxOutstanding      int    `envconfig:"CHICKENSHOP_PUBSUB_MAX_OUTSTANDING" default:"100"`
	Goroutines          int    `envconfig:"CHICKENSHOP_PUBSUB_GOROUTINES" default:"1"`
}

// FeedConfig selects where row change notifications come from.
type FeedConfig struct {
	Source        string        `envconfig:"CHICKENSHOP_FEED_SOURCE" default:"postgres"`
	NotifyChannel string        `envconfig:"CHICKENSHOP_FEED_NOTIFY_CHANNEL" default:"row_changes"`
	MinReconnect  time.Duration `envconfig:"CHICKENSHOP_FEED_MIN_RECONNECT" default:"1s"`
	MaxReconnect  time.Duration `envconfig:"CHICKENSHOP_FEED_MAX_RECONNECT" default:"30s"`
}

func (f FeedConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(f.Source)) {
	case FeedSourcePostgres, FeedSourcePubSub, FeedSourceNone:
		return nil
	}
	return fmt.Errorf("unsupported %s %q", EnvFeedSource, f.Source)
}

// Kind returns the normalized feed source.
func (f FeedConfig) Kind() string {
	return strings.ToLower(strings.TrimSpace(f.Source))
}

// TrackerConfig holds the customer status bar cadence and notification windows.
type TrackerConfig struct {
	PollInterval       time.Duration `envconfig:"CHICKENSHOP_TRACKER_POLL_INTERVAL" default:"5s"`
	DeliveredWindow    time.Duration `envconfig:"CHICKENSHOP_TRACKER_DELIVERED_WINDOW" default:"10s"`
	CancelledWindow    time.Duration `envconfig:"CHICKENSHOP_TRACKER_CANCELLED_WINDOW" default:"8s"`
	DeliveredPulse     time.Duration `envconfig:"CHICKENSHOP_TRACKER_DELIVERED_PULSE" default:"1200ms"`
	CancelledPulse     time.Duration `envconfig:"CHICKENSHOP_TRACKER_CANCELLED_PULSE" default:"900ms"`
	StaffRoutePrefixes []string      `envconfig:"CHICKENSHOP_TRACKER_STAFF_PREFIXES" default:"/admin,/delivery,/kitchen,/daily-sales"`
}

// BoardsConfig holds the staff and tracking refresh cadences.
type BoardsConfig struct {
	KitchenPoll  time.Duration `envconfig:"CHICKENSHOP_BOARDS_KITCHEN_POLL" default:"10s"`
	DeliveryPoll time.Duration `envconfig:"CHICKENSHOP_BOARDS_DELIVERY_POLL" default:"10s"`
	SalesPoll    time.Duration `envconfig:"CHICKENSHOP_BOARDS_SALES_POLL" default:"30s"`
	TrackingPoll time.Duration `envconfig:"CHICKENSHOP_BOARDS_TRACKING_POLL" default:"15s"`
}

type AddressConfig struct {
	AutosaveDebounce time.Duration `envconfig:"CHICKENSHOP_ADDRESS_AUTOSAVE_DEBOUNCE" default:"800ms"`
}

type StorageConfig struct {
	Namespace string `envconfig:"CHICKENSHOP_STORAGE_NAMESPACE" default:"cs"`
	Channel   string `envconfig:"CHICKENSHOP_STORAGE_CHANNEL" default:"storage_changes"`
}

type SalesConfig struct {
	GuardTTL time.Duration `envconfig:"CHICKENSHOP_SALES_GUARD_TTL" default:"720h"`
	Timezone string        `envconfig:"CHICKENSHOP_SALES_TIMEZONE" default:"Asia/Kolkata"`
}

// Location resolves the sale-date timezone, falling back to UTC.
func (s SalesConfig) Location() *time.Location {
	if loc, err := time.LoadLocation(strings.TrimSpace(s.Timezone)); err == nil {
		return loc
	}
	return time.UTC
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CHICKENSHOP_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = "file:chickenshop.db?cache=shared"
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
