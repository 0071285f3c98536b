package config

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Stripe       StripeConfig
	Refunds      RefundsConfig
	Email        EmailConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

// Load reads the environment, fills the DSN from its parts when needed and checks cross-field rules.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.resolveDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs error
	if c.Refunds.RateLimit > 0 && c.Refunds.RateLimitWindow <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("%s must be positive when rate limiting is on", EnvRefundRateWindow))
	}
	if c.Outbox.MaxAttempts <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("%s must be positive", EnvOutboxMaxAttempts))
	}
	if env := c.Stripe.Environment(); env != "test" && env != "live" {
		errs = multierr.Append(errs, fmt.Errorf("%s must be test or live, got %q", EnvStripeEnv, env))
	}
	if c.App.IsProd() && c.Stripe.APIKey != "" && c.Stripe.Environment() != "live" {
		errs = multierr.Append(errs, fmt.Errorf("%s must be live in prod", EnvStripeEnv))
	}
	return errs
}

type AppConfig struct {
	Env          string `envconfig:"EVENTDESK_APP_ENV" required:"true"`
	Port         string `envconfig:"EVENTDESK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"EVENTDESK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"EVENTDESK_LOG_WARN_STACK" default:"false"`
	// CORSOrigins extends the built-in dashboard origins.
	CORSOrigins []string `envconfig:"EVENTDESK_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"EVENTDESK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"EVENTDESK_DB_DSN"`
	Driver string `envconfig:"EVENTDESK_DB_DRIVER" default:"postgres"`

	// Parts are only read when DSN is empty.
	Host     string `envconfig:"EVENTDESK_DB_HOST"`
	Port     int    `envconfig:"EVENTDESK_DB_PORT" default:"5432"`
	User     string `envconfig:"EVENTDESK_DB_USER"`
	Password string `envconfig:"EVENTDESK_DB_PASSWORD"`
	Name     string `envconfig:"EVENTDESK_DB_NAME"`
	SSLMode  string `envconfig:"EVENTDESK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"EVENTDESK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"EVENTDESK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"EVENTDESK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"EVENTDESK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"EVENTDESK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"EVENTDESK_REDIS_ADDR"`
	Password     string        `envconfig:"EVENTDESK_REDIS_PASSWORD"`
	DB           int           `envconfig:"EVENTDESK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"EVENTDESK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"EVENTDESK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"EVENTDESK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"EVENTDESK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"EVENTDESK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies bearer tokens minted by the identity provider.
type JWTConfig struct {
	Secret string `envconfig:"EVENTDESK_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"EVENTDESK_JWT_ISSUER" required:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"EVENTDESK_AUTO_MIGRATE" default:"false"`
	// EmailsEnabled gates the notification outbox; when off, emails are only logged.
	EmailsEnabled bool `envconfig:"EVENTDESK_EMAILS_ENABLED" default:"true"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"EVENTDESK_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"EVENTDESK_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	DomainTopic              string `envconfig:"EVENTDESK_PUBSUB_DOMAIN_TOPIC" default:"eventdesk-domain-events"`
	NotificationTopic        string `envconfig:"EVENTDESK_PUBSUB_NOTIFICATION_TOPIC" default:"eventdesk-notification-events"`
	NotificationSubscription string `envconfig:"EVENTDESK_PUBSUB_NOTIFICATION_SUBSCRIPTION"`
}

type StripeConfig struct {
	APIKey string `envconfig:"EVENTDESK_STRIPE_API_KEY"`
	Env    string `envconfig:"EVENTDESK_STRIPE_ENV" default:"test"`
	// ReverseTransfer pulls the refunded amount back from the connected account.
	ReverseTransfer      bool `envconfig:"EVENTDESK_STRIPE_REVERSE_TRANSFER" default:"true"`
	RefundApplicationFee bool `envconfig:"EVENTDESK_STRIPE_REFUND_APPLICATION_FEE" default:"true"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type RefundsConfig struct {
	GuardTTL                time.Duration `envconfig:"EVENTDESK_REFUND_GUARD_TTL" default:"2m"`
	ProcessorTimeout        time.Duration `envconfig:"EVENTDESK_REFUND_PROCESSOR_TIMEOUT" default:"20s"`
	BreakerFailureThreshold uint32        `envconfig:"EVENTDESK_REFUND_BREAKER_FAILURES" default:"5"`
	BreakerOpenTimeout      time.Duration `envconfig:"EVENTDESK_REFUND_BREAKER_OPEN_TIMEOUT" default:"30s"`
	// RateLimit caps money-moving requests per organizer per RateLimitWindow; 0 disables it.
	RateLimit       int           `envconfig:"EVENTDESK_REFUND_RATE_LIMIT" default:"30"`
	RateLimitWindow time.Duration `envconfig:"EVENTDESK_REFUND_RATE_LIMIT_WINDOW" default:"1m"`
}

type EmailConfig struct {
	FromAddress     string `envconfig:"EVENTDESK_EMAIL_FROM" default:"tickets@eventdesk.local"`
	DefaultCurrency string `envconfig:"EVENTDESK_DEFAULT_CURRENCY" default:"cad"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"EVENTDESK_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"EVENTDESK_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"EVENTDESK_OUTBOX_MAX_ATTEMPTS" default:"10"`
	// MetricsAddr serves /metrics for the publisher; empty disables it.
	MetricsAddr string `envconfig:"EVENTDESK_OUTBOX_METRICS_ADDR" default:":9102"`
}

type CronConfig struct {
	Interval            time.Duration `envconfig:"EVENTDESK_CRON_INTERVAL" default:"15m"`
	OutboxRetentionDays int           `envconfig:"EVENTDESK_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
}

// resolveDSN composes a postgres URL from the individual parts when no DSN is set.
func (db *DBConfig) resolveDSN() error {
	if db.DSN != "" || db.Driver == "sqlite" {
		return nil
	}

	var missing []string
	for env, value := range map[string]string{EnvDBHost: db.Host, EnvDBUser: db.User, EnvDBName: db.Name} {
		if value == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.User(db.User),
		Host:   net.JoinHostPort(db.Host, strconv.Itoa(db.Port)),
		Path:   db.Name,
	}
	if db.Password != "" {
		u.User = url.UserPassword(db.User, db.Password)
	}
	if db.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {db.SSLMode}}.Encode()
	}
	db.DSN = u.String()
	return nil
}
