package config

// EnvPrefix is passed to envconfig; concrete variable names are pinned in the
// struct tags so the prefix stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv   = "KEYMINT_APP_ENV"
	EnvPort     = "KEYMINT_APP_PORT"
	EnvDBDSN    = "KEYMINT_DB_DSN"
	EnvDBHost   = "KEYMINT_DB_HOST"
	EnvDBUser   = "KEYMINT_DB_USER"
	EnvDBName   = "KEYMINT_DB_NAME"
	EnvRedisURL = "KEYMINT_REDIS_URL"

	EnvGCPProjectID       = "KEYMINT_GCP_PROJECT_ID"
	EnvPubSubDomainTopic  = "KEYMINT_PUBSUB_DOMAIN_TOPIC"
	EnvStripeAPIKey       = "KEYMINT_STRIPE_API_KEY"
	EnvStripeSecret       = "KEYMINT_STRIPE_SECRET"
	EnvSendgridAPIKey     = "KEYMINT_SENDGRID_API_KEY"
	EnvSendgridFrom       = "KEYMINT_SENDGRID_FROM_EMAIL"
	EnvLedgerRetention    = "KEYMINT_EVENTING_LEDGER_RETENTION"
	EnvRateLimitValidate  = "KEYMINT_RATE_LIMIT_VALIDATE_IP_LIMIT"
	EnvRateLimitCheckout  = "KEYMINT_RATE_LIMIT_CHECKOUT_IP_LIMIT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
