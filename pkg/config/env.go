package config

// EnvPrefix is passed to envconfig; every field carries its full variable name.
const EnvPrefix = "CHICKENSHOP"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	FeedSourcePostgres = "postgres"
	FeedSourcePubSub   = "pubsub"
	FeedSourceNone     = "none"
)

const (
	EnvAppEnv       = "CHICKENSHOP_APP_ENV"
	EnvPort         = "CHICKENSHOP_APP_PORT"
	EnvDBDSN        = "CHICKENSHOP_DB_DSN"
	EnvDBDriver     = "CHICKENSHOP_DB_DRIVER"
	EnvDBHost       = "CHICKENSHOP_DB_HOST"
	EnvDBUser       = "CHICKENSHOP_DB_USER"
	EnvDBName       = "CHICKENSHOP_DB_NAME"
	EnvDBPassword   = "CHICKENSHOP_DB_PASSWORD"
	EnvRedisURL     = "CHICKENSHOP_REDIS_URL"
	EnvJWTSecret    = "CHICKENSHOP_JWT_SECRET"
	EnvFeedSource   = "CHICKENSHOP_FEED_SOURCE"
	EnvTrackerPoll  = "CHICKENSHOP_TRACKER_POLL_INTERVAL"
	EnvStaffPrefix  = "CHICKENSHOP_TRACKER_STAFF_PREFIXES"
	EnvSalesPoll    = "CHICKENSHOP_BOARDS_SALES_POLL"
	EnvPubSubChange = "CHICKENSHOP_PUBSUB_CHANGES_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
