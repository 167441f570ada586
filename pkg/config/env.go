package config

const (
	EnvPrefix = "MARKETPREP"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	SquareEnvSandbox    = "sandbox"
	SquareEnvProduction = "production"

	EnvAppEnv      = "MARKETPREP_APP_ENV"
	EnvPort        = "MARKETPREP_APP_PORT"
	EnvDBDSN       = "MARKETPREP_DB_DSN"
	EnvDBHost      = "MARKETPREP_DB_HOST"
	EnvDBUser      = "MARKETPREP_DB_USER"
	EnvDBPassword  = "MARKETPREP_DB_PASSWORD"
	EnvDBName      = "MARKETPREP_DB_NAME"
	EnvDBPort      = "MARKETPREP_DB_PORT"
	EnvRedisURL    = "MARKETPREP_REDIS_URL"
	EnvJWTSecret   = "MARKETPREP_JWT_SECRET"
	EnvJWTIssuer   = "MARKETPREP_JWT_ISSUER"
	EnvJWTExpMins  = "MARKETPREP_JWT_EXPIRATION_MINUTES"
	EnvUseSQLite   = "MARKETPREP_USE_SQLITE"
	EnvModelPath   = "MARKETPREP_MODEL_PATH"
	EnvWeatherTTL  = "MARKETPREP_WEATHER_CACHE_TTL"
	EnvSquareEnv   = "MARKETPREP_SQUARE_ENV"
	EnvGCPProject  = "MARKETPREP_GCP_PROJECT_ID"
	EnvFeedbackTop = "MARKETPREP_PUBSUB_FEEDBACK_TOPIC"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
