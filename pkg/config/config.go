package config

import (
	"fmt"
	"net/url"
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
	FeatureFlags  FeatureFlagsConfig
	DocStore      DocStoreConfig
	Orders        OrdersConfig
	Admin         AdminConfig
	Maintenance   MaintenanceConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DBDriverSQLite
	}
	if cfg.DocStore.Backend == DocStoreBackendSQL {
		if err := cfg.DB.ensureDSN(); err != nil {
			return nil, err
		}
	}
	if err := cfg.DocStore.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Orders.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"BUILDMART_APP_ENV" required:"true"`
	Port         string   `envconfig:"BUILDMART_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"BUILDMART_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"BUILDMART_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"BUILDMART_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"BUILDMART_DB_DSN"`
	Driver string `envconfig:"BUILDMART_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BUILDMART_DB_HOST"`
	LegacyPort     int    `envconfig:"BUILDMART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BUILDMART_DB_USER"`
	LegacyPassword string `envconfig:"BUILDMART_DB_PASSWORD"`
	LegacyName     string `envconfig:"BUILDMART_DB_NAME"`
	LegacySSLMode  string `envconfig:"BUILDMART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BUILDMART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BUILDMART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BUILDMART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BUILDMART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the sqlite driver is selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"BUILDMART_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BUILDMART_REDIS_ADDR"`
	Password     string        `envconfig:"BUILDMART_REDIS_PASSWORD"`
	DB           int           `envconfig:"BUILDMART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BUILDMART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BUILDMART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BUILDMART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BUILDMART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BUILDMART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"BUILDMART_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"BUILDMART_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"BUILDMART_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"BUILDMART_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"BUILDMART_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"BUILDMART_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"BUILDMART_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"BUILDMART_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"BUILDMART_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow           time.Duration `envconfig:"BUILDMART_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginIdentityLimit    int           `envconfig:"BUILDMART_AUTH_RATE_LIMIT_LOGIN_IDENTITY_LIMIT" default:"5"`
	LoginIPLimit          int           `envconfig:"BUILDMART_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow        time.Duration `envconfig:"BUILDMART_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterIdentityLimit int           `envconfig:"BUILDMART_AUTH_RATE_LIMIT_REGISTER_IDENTITY_LIMIT" default:"3"`
	RegisterIPLimit       int           `envconfig:"BUILDMART_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"BUILDMART_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"BUILDMART_AUTO_MIGRATE" default:"false"`
}

// DocStoreConfig selects and tunes the document store backing every path.
type DocStoreConfig struct {
	Backend       string `envconfig:"BUILDMART_DOCSTORE_BACKEND" default:"redis"`
	KeyPrefix     string `envconfig:"BUILDMART_DOCSTORE_KEY_PREFIX" default:"bm:doc"`
	ChangeChannel string `envconfig:"BUILDMART_DOCSTORE_CHANGE_CHANNEL" default:"bm:doc:changes"`
	MaxRetries    int    `envconfig:"BUILDMART_DOCSTORE_MAX_RETRIES" default:"8"`

	BreakerEnabled      bool          `envconfig:"BUILDMART_DOCSTORE_BREAKER_ENABLED" default:"true"`
	BreakerMaxRequests  uint32        `envconfig:"BUILDMART_DOCSTORE_BREAKER_MAX_REQUESTS" default:"5"`
	BreakerInterval     time.Duration `envconfig:"BUILDMART_DOCSTORE_BREAKER_INTERVAL" default:"10s"`
	BreakerTimeout      time.Duration `envconfig:"BUILDMART_DOCSTORE_BREAKER_TIMEOUT" default:"30s"`
	BreakerMinRequests  uint32        `envconfig:"BUILDMART_DOCSTORE_BREAKER_MIN_REQUESTS" default:"5"`
	BreakerFailureRatio float64       `envconfig:"BUILDMART_DOCSTORE_BREAKER_FAILURE_RATIO" default:"0.5"`
}

func (d DocStoreConfig) validate() error {
	switch strings.ToLower(d.Backend) {
	case DocStoreBackendMemory, DocStoreBackendRedis, DocStoreBackendSQL:
	default:
		return fmt.Errorf("%s must be one of memory, redis, sql (got %q)", EnvDocStoreBackend, d.Backend)
	}
	if d.BreakerFailureRatio < 0 || d.BreakerFailureRatio > 1 {
		return fmt.Errorf("%s must be between 0 and 1", EnvDocStoreBreakerRatio)
	}
	return nil
}

// OrdersConfig tunes the checkout fan-out and the vendor state machine.
type OrdersConfig struct {
	TransitionMode     string        `envconfig:"BUILDMART_ORDERS_TRANSITION_MODE" default:"batched"`
	DeliveryConfirmTTL time.Duration `envconfig:"BUILDMART_ORDERS_DELIVERY_CONFIRM_TTL" default:"2m"`
	FanoutConcurrency  int           `envconfig:"BUILDMART_ORDERS_FANOUT_CONCURRENCY" default:"8"`
}

func (o OrdersConfig) validate() error {
	switch strings.ToLower(o.TransitionMode) {
	case TransitionModeBatched, TransitionModeSequential:
		return nil
	}
	return fmt.Errorf("%s must be batched or sequential (got %q)", EnvOrdersTransitionMode, o.TransitionMode)
}

// AdminConfig bootstraps the first admin account at startup when both fields are set.
type AdminConfig struct {
	Username string `envconfig:"BUILDMART_ADMIN_USERNAME"`
	Password string `envconfig:"BUILDMART_ADMIN_PASSWORD"`
}

// MaintenanceConfig drives the scheduled cleanup worker.
type MaintenanceConfig struct {
	Interval              time.Duration `envconfig:"BUILDMART_MAINTENANCE_INTERVAL" default:"1h"`
	LockTTL               time.Duration `envconfig:"BUILDMART_MAINTENANCE_LOCK_TTL" default:"55m"`
	NewOrderMaxAge        time.Duration `envconfig:"BUILDMART_MAINTENANCE_NEW_ORDER_MAX_AGE" default:"240h"`
	NotificationRetention time.Duration `envconfig:"BUILDMART_MAINTENANCE_NOTIFICATION_RETENTION" default:"720h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = "file:buildmart.db?cache=shared"
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
