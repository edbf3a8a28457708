package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Billing      BillingConfig
	Bootstrap    BootstrapConfig
	Gateway      GatewayConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SUBPAY_APP_ENV" required:"true"`
	Port         string `envconfig:"SUBPAY_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"SUBPAY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SUBPAY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SUBPAY_DB_DSN"`
	Driver string `envconfig:"SUBPAY_DB_DRIVER" default:"postgres"`

	MaxOpenConns    int           `envconfig:"SUBPAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SUBPAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SUBPAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SUBPAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d DBConfig) validate() error {
	if d.DSN == "" {
		return fmt.Errorf("SUBPAY_DB_DSN is required")
	}
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"SUBPAY_REDIS_URL"`
	Address      string        `envconfig:"SUBPAY_REDIS_ADDR"`
	Password     string        `envconfig:"SUBPAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"SUBPAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SUBPAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SUBPAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SUBPAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SUBPAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SUBPAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SUBPAY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SUBPAY_JWT_ISSUER" default:"subpay"`
	ExpirationMinutes int    `envconfig:"SUBPAY_JWT_EXPIRATION_MINUTES" default:"60"`
}

// BillingConfig carries the engine constants. The defaults are the contract
// values; overriding them is only intended for tests and staging.
type BillingConfig struct {
	PeriodDays          int           `envconfig:"SUBPAY_BILLING_PERIOD_DAYS" default:"30"`
	OracleStaleAfter    time.Duration `envconfig:"SUBPAY_ORACLE_STALE_AFTER" default:"1h"`
	StableTokenDecimals int32         `envconfig:"SUBPAY_STABLE_TOKEN_DECIMALS" default:"6"`
}

// Period returns the billing period as a duration.
func (b BillingConfig) Period() time.Duration {
	return time.Duration(b.PeriodDays) * 24 * time.Hour
}

// BootstrapConfig seeds first-time initialization. It is only consulted when
// the engine's stored version is still zero.
type BootstrapConfig struct {
	Owner        string `envconfig:"SUBPAY_OWNER_ADDRESS"`
	Treasury     string `envconfig:"SUBPAY_TREASURY_ADDRESS"`
	PaymentToken string `envconfig:"SUBPAY_PAYMENT_TOKEN_ADDRESS"`
}

// Configured reports whether all bootstrap addresses are present.
func (b BootstrapConfig) Configured() bool {
	return b.Owner != "" && b.Treasury != "" && b.PaymentToken != ""
}

type GatewayConfig struct {
	TokenEndpoint  string        `envconfig:"SUBPAY_GATEWAY_TOKEN_ENDPOINT"`
	NativeEndpoint string        `envconfig:"SUBPAY_GATEWAY_NATIVE_ENDPOINT"`
	OracleEndpoint string        `envconfig:"SUBPAY_GATEWAY_ORACLE_ENDPOINT"`
	Timeout        time.Duration `envconfig:"SUBPAY_GATEWAY_TIMEOUT" default:"10s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SUBPAY_AUTO_MIGRATE" default:"false"`
}
