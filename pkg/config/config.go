package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "RARITONE"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv = "RARITONE_APP_ENV"
	EnvPort   = "RARITONE_APP_PORT"
	EnvDBDSN  = "RARITONE_DB_DSN"
	EnvDBHost = "RARITONE_DB_HOST"
	EnvDBUser = "RARITONE_DB_USER"
	EnvDBName = "RARITONE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Merge        MergeConfig
	GuestCart    GuestCartConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
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
	Env          string `envconfig:"RARITONE_APP_ENV" required:"true"`
	Port         string `envconfig:"RARITONE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"RARITONE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"RARITONE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"RARITONE_DB_DSN"`
	Driver string `envconfig:"RARITONE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"RARITONE_DB_HOST"`
	LegacyPort     int    `envconfig:"RARITONE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"RARITONE_DB_USER"`
	LegacyPassword string `envconfig:"RARITONE_DB_PASSWORD"`
	LegacyName     string `envconfig:"RARITONE_DB_NAME"`
	LegacySSLMode  string `envconfig:"RARITONE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"RARITONE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RARITONE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RARITONE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RARITONE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"RARITONE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"RARITONE_REDIS_ADDR"`
	Password     string        `envconfig:"RARITONE_REDIS_PASSWORD"`
	DB           int           `envconfig:"RARITONE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RARITONE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RARITONE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RARITONE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RARITONE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RARITONE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret string `envconfig:"RARITONE_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"RARITONE_JWT_ISSUER" required:"true"`
}

// MergeConfig bounds the retry policy for the login-triggered remote write.
type MergeConfig struct {
	MaxAttempts    int           `envconfig:"RARITONE_MERGE_MAX_ATTEMPTS" default:"3"`
	BackoffInitial time.Duration `envconfig:"RARITONE_MERGE_BACKOFF_INITIAL" default:"200ms"`
	BackoffMax     time.Duration `envconfig:"RARITONE_MERGE_BACKOFF_MAX" default:"2s"`
}

type GuestCartConfig struct {
	TTL time.Duration `envconfig:"RARITONE_GUEST_CART_TTL" default:"720h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"RARITONE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"RARITONE_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"RARITONE_GCP_PROJECT_ID"`
}

// PubSubConfig names the optional downstream topic for merge outcome events.
// Leaving the topic empty disables publishing entirely.
type PubSubConfig struct {
	MergeEventsTopic string `envconfig:"RARITONE_PUBSUB_MERGE_EVENTS_TOPIC"`
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
