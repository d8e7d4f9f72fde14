package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	Cache         CacheConfig
	Tracing       TracingConfig
	FeatureFlags  FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Redis.ensureAddress(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FASTMART_APP_ENV" required:"true"`
	Port         string `envconfig:"FASTMART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FASTMART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FASTMART_LOG_WARN_STACK" default:"false"`
	FrontendURL  string `envconfig:"FASTMART_FRONTEND_URL" default:"http://localhost:5173"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"FASTMART_DB_DSN"`
	Driver string `envconfig:"FASTMART_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FASTMART_DB_HOST"`
	LegacyPort     int    `envconfig:"FASTMART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FASTMART_DB_USER"`
	LegacyPassword string `envconfig:"FASTMART_DB_PASSWORD"`
	LegacyName     string `envconfig:"FASTMART_DB_NAME"`
	LegacySSLMode  string `envconfig:"FASTMART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FASTMART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FASTMART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FASTMART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FASTMART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the configured driver is sqlite.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"FASTMART_REDIS_URL"`
	Host         string        `envconfig:"FASTMART_REDIS_HOST" default:"localhost"`
	Port         int           `envconfig:"FASTMART_REDIS_PORT" default:"6379"`
	Address      string        `envconfig:"FASTMART_REDIS_ADDR"`
	Password     string        `envconfig:"FASTMART_REDIS_PASSWORD"`
	DB           int           `envconfig:"FASTMART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FASTMART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FASTMART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FASTMART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FASTMART_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"FASTMART_REDIS_WRITE_TIMEOUT" default:"3s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"FASTMART_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"FASTMART_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"FASTMART_JWT_EXPIRATION_MINUTES" default:"30"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"FASTMART_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"FASTMART_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"FASTMART_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"FASTMART_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"FASTMART_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"FASTMART_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"FASTMART_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"FASTMART_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"FASTMART_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"FASTMART_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"FASTMART_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

// CacheConfig tunes the product listing read-through cache.
type CacheConfig struct {
	Enabled     bool          `envconfig:"FASTMART_CACHE_ENABLED" default:"true"`
	ListingTTL  time.Duration `envconfig:"FASTMART_CACHE_LISTING_TTL" default:"60s"`
	OpTimeout   time.Duration `envconfig:"FASTMART_CACHE_OP_TIMEOUT" default:"150ms"`
	ScanBatches int64         `envconfig:"FASTMART_CACHE_SCAN_COUNT" default:"100"`
}

// TracingConfig controls the OTLP span exporter. Without an endpoint spans are
// created against the no-op provider.
type TracingConfig struct {
	Endpoint      string        `envconfig:"FASTMART_OTEL_ENDPOINT"`
	URLPath       string        `envconfig:"FASTMART_OTEL_URL_PATH" default:"/v1/traces"`
	Insecure      bool          `envconfig:"FASTMART_OTEL_INSECURE" default:"true"`
	ServiceName   string        `envconfig:"FASTMART_OTEL_SERVICE_NAME" default:"fastmart-api"`
	SampleRatio   float64       `envconfig:"FASTMART_OTEL_SAMPLE_RATIO" default:"1"`
	ExportTimeout time.Duration `envconfig:"FASTMART_OTEL_EXPORT_TIMEOUT" default:"5s"`
}

// Enabled reports whether an exporter endpoint is configured.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != ""
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"FASTMART_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = DefaultSQLiteDSN
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
		Host:   net.JoinHostPort(db.LegacyHost, strconv.Itoa(db.LegacyPort)),
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

func (r *RedisConfig) ensureAddress() error {
	if r.URL != "" || r.Address != "" {
		return nil
	}
	host := strings.TrimSpace(r.Host)
	if host == "" {
		return fmt.Errorf("either %s, %s or %s are required", EnvRedisURL, EnvRedisAddr, EnvRedisHost)
	}
	port := r.Port
	if port <= 0 {
		port = 6379
	}
	r.Address = net.JoinHostPort(host, strconv.Itoa(port))
	return nil
}
