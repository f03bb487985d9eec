package config

import (
	"fmt"
	"net/url"
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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Outbox       OutboxConfig
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
	Env          string `envconfig:"RETAILCORE_APP_ENV" required:"true"`
	Port         string `envconfig:"RETAILCORE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"RETAILCORE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"RETAILCORE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"RETAILCORE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"RETAILCORE_DB_DSN"`
	Driver string `envconfig:"RETAILCORE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"RETAILCORE_DB_HOST"`
	LegacyPort     int    `envconfig:"RETAILCORE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"RETAILCORE_DB_USER"`
	LegacyPassword string `envconfig:"RETAILCORE_DB_PASSWORD"`
	LegacyName     string `envconfig:"RETAILCORE_DB_NAME"`
	LegacySSLMode  string `envconfig:"RETAILCORE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"RETAILCORE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RETAILCORE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RETAILCORE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RETAILCORE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if strings.TrimSpace(d.DSN) != "" {
		return nil
	}
	if d.LegacyHost == "" || d.LegacyUser == "" || d.LegacyName == "" {
		return fmt.Errorf("either RETAILCORE_DB_DSN or host/user/name parts are required")
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.LegacyUser, d.LegacyPassword),
		Host:   fmt.Sprintf("%s:%d", d.LegacyHost, d.LegacyPort),
		Path:   d.LegacyName,
	}
	q := u.Query()
	q.Set("sslmode", d.LegacySSLMode)
	u.RawQuery = q.Encode()
	d.DSN = u.String()
	return nil
}

// RedisConfig accepts either a full URL or discrete address parts; the redis
// client requires one of the two.
type RedisConfig struct {
	URL          string        `envconfig:"RETAILCORE_REDIS_URL"`
	Address      string        `envconfig:"RETAILCORE_REDIS_ADDR"`
	Password     string        `envconfig:"RETAILCORE_REDIS_PASSWORD"`
	DB           int           `envconfig:"RETAILCORE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RETAILCORE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RETAILCORE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RETAILCORE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RETAILCORE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RETAILCORE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"RETAILCORE_AUTO_MIGRATE" default:"false"`
}

type OutboxConfig struct {
	BatchSize    int           `envconfig:"RETAILCORE_OUTBOX_BATCH_SIZE" default:"50"`
	PollInterval time.Duration `envconfig:"RETAILCORE_OUTBOX_POLL_INTERVAL" default:"500ms"`
	MaxAttempts  int           `envconfig:"RETAILCORE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}
