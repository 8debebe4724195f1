package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Stripe       StripeConfig
	Sendgrid     SendgridConfig
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
	Env          string `envconfig:"KEYMINT_APP_ENV" required:"true"`
	Port         string `envconfig:"KEYMINT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"KEYMINT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"KEYMINT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"KEYMINT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"KEYMINT_DB_DSN"`
	Driver string `envconfig:"KEYMINT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"KEYMINT_DB_HOST"`
	LegacyPort     int    `envconfig:"KEYMINT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"KEYMINT_DB_USER"`
	LegacyPassword string `envconfig:"KEYMINT_DB_PASSWORD"`
	LegacyName     string `envconfig:"KEYMINT_DB_NAME"`
	LegacySSLMode  string `envconfig:"KEYMINT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"KEYMINT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"KEYMINT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"KEYMINT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"KEYMINT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"KEYMINT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"KEYMINT_REDIS_ADDR"`
	Password     string        `envconfig:"KEYMINT_REDIS_PASSWORD"`
	DB           int           `envconfig:"KEYMINT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"KEYMINT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"KEYMINT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"KEYMINT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"KEYMINT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"KEYMINT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// RateLimitConfig throttles the two public surfaces independently.
type RateLimitConfig struct {
	ValidateWindow  time.Duration `envconfig:"KEYMINT_RATE_LIMIT_VALIDATE_WINDOW" default:"1h"`
	ValidateIPLimit int           `envconfig:"KEYMINT_RATE_LIMIT_VALIDATE_IP_LIMIT" default:"100"`
	CheckoutWindow  time.Duration `envconfig:"KEYMINT_RATE_LIMIT_CHECKOUT_WINDOW" default:"1m"`
	CheckoutIPLimit int           `envconfig:"KEYMINT_RATE_LIMIT_CHECKOUT_IP_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"KEYMINT_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	// Redelivery horizon for processor webhooks; ledger rows older than this
	// are safe to prune.
	LedgerRetention      time.Duration `envconfig:"KEYMINT_EVENTING_LEDGER_RETENTION" default:"2160h"`
	OutboxIdempotencyTTL time.Duration `envconfig:"KEYMINT_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"KEYMINT_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"KEYMINT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"KEYMINT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"KEYMINT_PUBSUB_DOMAIN_TOPIC" default:"keymint-domain-events"`
	DomainSubscription string `envconfig:"KEYMINT_PUBSUB_DOMAIN_SUBSCRIPTION" default:"keymint-mailer"`
}

type StripeConfig struct {
	APIKey     string `envconfig:"KEYMINT_STRIPE_API_KEY"`
	Secret     string `envconfig:"KEYMINT_STRIPE_SECRET"`
	Env        string `envconfig:"KEYMINT_STRIPE_ENV" default:"test"`
	SuccessURL string `envconfig:"KEYMINT_STRIPE_SUCCESS_URL" default:"https://keymint.dev/checkout/success"`
	CancelURL  string `envconfig:"KEYMINT_STRIPE_CANCEL_URL" default:"https://keymint.dev/checkout/cancel"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SendgridConfig struct {
	APIKey      string `envconfig:"KEYMINT_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"KEYMINT_SENDGRID_FROM_EMAIL"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"KEYMINT_OUTBOX_BATCH_SIZE" default:"50"`
	PollInterval   time.Duration `envconfig:"KEYMINT_OUTBOX_POLL_INTERVAL" default:"500ms"`
	PublishTimeout time.Duration `envconfig:"KEYMINT_OUTBOX_PUBLISH_TIMEOUT" default:"15s"`
	MaxAttempts    int           `envconfig:"KEYMINT_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
