package config

// EnvPrefix namespaces every environment variable the service reads.
const EnvPrefix = "LUMERA"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Environment variable names shared between Load, tests, and tooling.
const (
	EnvAppEnv    = "LUMERA_APP_ENV"
	EnvPort      = "LUMERA_APP_PORT"
	EnvDBDSN     = "LUMERA_DB_DSN"
	EnvDBHost    = "LUMERA_DB_HOST"
	EnvDBUser    = "LUMERA_DB_USER"
	EnvDBName    = "LUMERA_DB_NAME"
	EnvRedisURL  = "LUMERA_REDIS_URL"
	EnvJWTSecret = "LUMERA_JWT_SECRET"
	EnvJWTIssuer = "LUMERA_JWT_ISSUER"
	EnvJWTExp    = "LUMERA_JWT_EXPIRATION_MINUTES"

	EnvChainRPCURL     = "LUMERA_CHAIN_RPC_URL"
	EnvChainTokenAddr  = "LUMERA_CHAIN_TOKEN_CONTRACT"
	EnvChainOrgAddress = "LUMERA_CHAIN_ORG_ADDRESS"
	EnvChainOrgKey     = "LUMERA_CHAIN_ORG_PRIVATE_KEY"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
