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
	Chain         ChainConfig
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
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LUMERA_APP_ENV" required:"true"`
	Port         string `envconfig:"LUMERA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LUMERA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LUMERA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"LUMERA_DB_DSN"`
	Driver string `envconfig:"LUMERA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LUMERA_DB_HOST"`
	LegacyPort     int    `envconfig:"LUMERA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LUMERA_DB_USER"`
	LegacyPassword string `envconfig:"LUMERA_DB_PASSWORD"`
	LegacyName     string `envconfig:"LUMERA_DB_NAME"`
	LegacySSLMode  string `envconfig:"LUMERA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LUMERA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LUMERA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LUMERA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LUMERA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LUMERA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LUMERA_REDIS_ADDR"`
	Password     string        `envconfig:"LUMERA_REDIS_PASSWORD"`
	DB           int           `envconfig:"LUMERA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LUMERA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LUMERA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LUMERA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LUMERA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LUMERA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"LUMERA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"LUMERA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"LUMERA_JWT_EXPIRATION_MINUTES" required:"true"`
}

// AccessTokenTTL returns the access token lifetime.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"LUMERA_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"LUMERA_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"LUMERA_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"LUMERA_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"LUMERA_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"LUMERA_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"LUMERA_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"LUMERA_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"LUMERA_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"LUMERA_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"LUMERA_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

// ChainConfig wires the settlement network gateway. The organization wallet
// receives deposits and funds withdrawals.
type ChainConfig struct {
	RPCURL         string        `envconfig:"LUMERA_CHAIN_RPC_URL" required:"true"`
	TokenContract  string        `envconfig:"LUMERA_CHAIN_TOKEN_CONTRACT" required:"true"`
	OrgAddress     string        `envconfig:"LUMERA_CHAIN_ORG_ADDRESS" required:"true"`
	OrgPrivateKey  string        `envconfig:"LUMERA_CHAIN_ORG_PRIVATE_KEY" required:"true"`
	RequestTimeout time.Duration `envconfig:"LUMERA_CHAIN_REQUEST_TIMEOUT" default:"15s"`
	TokenDecimals  int           `envconfig:"LUMERA_CHAIN_TOKEN_DECIMALS" default:"18"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"LUMERA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"LUMERA_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
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
