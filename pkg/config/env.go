package config

const (
	EnvPrefix = "FARMLINK"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EventsBackendKafka  = "kafka"
	EventsBackendPubSub = "pubsub"
)

const (
	EnvAppEnv                 = "FARMLINK_APP_ENV"
	EnvPort                   = "FARMLINK_APP_PORT"
	EnvLogLevel               = "FARMLINK_LOG_LEVEL"
	EnvDBDSN                  = "FARMLINK_DB_DSN"
	EnvDBHost                 = "FARMLINK_DB_HOST"
	EnvDBUser                 = "FARMLINK_DB_USER"
	EnvDBPassword             = "FARMLINK_DB_PASSWORD"
	EnvDBName                 = "FARMLINK_DB_NAME"
	EnvRedisURL               = "FARMLINK_REDIS_URL"
	EnvJWTSecret              = "FARMLINK_JWT_SECRET"
	EnvJWTIssuer              = "FARMLINK_JWT_ISSUER"
	EnvJWTExpMins             = "FARMLINK_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "FARMLINK_REFRESH_TOKEN_TTL_MINUTES"
	EnvWalletMaxTopUp         = "FARMLINK_WALLET_MAX_TOPUP"
	EnvOrdersPendingExpiry    = "FARMLINK_ORDERS_PENDING_EXPIRY"
	EnvEventsBackend          = "FARMLINK_EVENTS_BACKEND"
	EnvKafkaBrokers           = "FARMLINK_KAFKA_BROKERS"
	EnvKafkaTopic             = "FARMLINK_KAFKA_TOPIC"
	EnvPubSubDomainTopic      = "FARMLINK_PUBSUB_DOMAIN_TOPIC"
	EnvGCPProjectID           = "FARMLINK_GCP_PROJECT_ID"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
