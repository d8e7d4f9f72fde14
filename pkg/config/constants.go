package config

const EnvPrefix = "FASTMART"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	// DefaultSQLiteDSN is used when the sqlite driver is selected without an explicit DSN.
	DefaultSQLiteDSN = "file:fastmart.db?_foreign_keys=on"
)

const (
	EnvAppEnv   = "FASTMART_APP_ENV"
	EnvPort     = "FASTMART_APP_PORT"
	EnvLogLevel = "FASTMART_LOG_LEVEL"

	EnvDBDSN    = "FASTMART_DB_DSN"
	EnvDBDriver = "FASTMART_DB_DRIVER"
	EnvDBHost   = "FASTMART_DB_HOST"
	EnvDBUser   = "FASTMART_DB_USER"
	EnvDBName   = "FASTMART_DB_NAME"

	EnvRedisURL  = "FASTMART_REDIS_URL"
	EnvRedisAddr = "FASTMART_REDIS_ADDR"
	EnvRedisHost = "FASTMART_REDIS_HOST"
	EnvRedisPort = "FASTMART_REDIS_PORT"

	EnvJWTSecret  = "FASTMART_JWT_SECRET"
	EnvJWTIssuer  = "FASTMART_JWT_ISSUER"
	EnvJWTExpMins = "FASTMART_JWT_EXPIRATION_MINUTES"

	EnvCacheListingTTL = "FASTMART_CACHE_LISTING_TTL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
