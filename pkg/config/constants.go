package config

const EnvPrefix = "BUILDMART"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	DocStoreBackendMemory = "memory"
	DocStoreBackendRedis  = "redis"
	DocStoreBackendSQL    = "sql"
)

const (
	TransitionModeBatched    = "batched"
	TransitionModeSequential = "sequential"
)

const (
	EnvAppEnv                 = "BUILDMART_APP_ENV"
	EnvPort                   = "BUILDMART_APP_PORT"
	EnvDBDSN                  = "BUILDMART_DB_DSN"
	EnvDBDriver               = "BUILDMART_DB_DRIVER"
	EnvDBHost                 = "BUILDMART_DB_HOST"
	EnvDBUser                 = "BUILDMART_DB_USER"
	EnvDBName                 = "BUILDMART_DB_NAME"
	EnvRedisURL               = "BUILDMART_REDIS_URL"
	EnvJWTSecret              = "BUILDMART_JWT_SECRET"
	EnvJWTIssuer              = "BUILDMART_JWT_ISSUER"
	EnvJWTExpMins             = "BUILDMART_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "BUILDMART_REFRESH_TOKEN_TTL_MINUTES"
	EnvUseSQLite              = "BUILDMART_USE_SQLITE"
	EnvDocStoreBackend        = "BUILDMART_DOCSTORE_BACKEND"
	EnvDocStoreBreakerRatio   = "BUILDMART_DOCSTORE_BREAKER_FAILURE_RATIO"
	EnvOrdersTransitionMode   = "BUILDMART_ORDERS_TRANSITION_MODE"
	EnvCORSOrigins            = "BUILDMART_CORS_ORIGINS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
