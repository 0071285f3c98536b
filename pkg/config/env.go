package config

// EnvPrefix is empty; every field names its full variable.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "EVENTDESK_APP_ENV"
	EnvPort     = "EVENTDESK_APP_PORT"
	EnvLogLevel = "EVENTDESK_LOG_LEVEL"

	EnvDBDSN  = "EVENTDESK_DB_DSN"
	EnvDBHost = "EVENTDESK_DB_HOST"
	EnvDBPort = "EVENTDESK_DB_PORT"
	EnvDBUser = "EVENTDESK_DB_USER"
	EnvDBPass = "EVENTDESK_DB_PASSWORD"
	EnvDBName = "EVENTDESK_DB_NAME"

	EnvRedisURL = "EVENTDESK_REDIS_URL"

	EnvJWTSecret = "EVENTDESK_JWT_SECRET"
	EnvJWTIssuer = "EVENTDESK_JWT_ISSUER"

	EnvStripeAPIKey = "EVENTDESK_STRIPE_API_KEY"
	EnvStripeEnv    = "EVENTDESK_STRIPE_ENV"

	EnvRefundGuardTTL   = "EVENTDESK_REFUND_GUARD_TTL"
	EnvRefundRateWindow = "EVENTDESK_REFUND_RATE_LIMIT_WINDOW"

	EnvOutboxMaxAttempts = "EVENTDESK_OUTBOX_MAX_ATTEMPTS"

	EnvPubSubDomainTopic       = "EVENTDESK_PUBSUB_DOMAIN_TOPIC"
	EnvPubSubNotificationTopic = "EVENTDESK_PUBSUB_NOTIFICATION_TOPIC"
)
