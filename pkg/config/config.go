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
	JWT          JWTConfig
	Password     PasswordConfig
	RateLimit    RateLimitConfig
	Idempotency  IdempotencyConfig
	FeatureFlags FeatureFlagsConfig
	Square       SquareConfig
	Weather      WeatherConfig
	Events       EventsConfig
	Cache        CacheConfig
	Model        ModelConfig
	Encryption   EncryptionConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Cron         CronConfig
	Telemetry    TelemetryConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MARKETPREP_APP_ENV" required:"true"`
	Port         string `envconfig:"MARKETPREP_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MARKETPREP_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"MARKETPREP_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"MARKETPREP_LOG_WARN_STACK" default:"false"`
	// CORSOrigins is a comma separated allow list for browser clients.
	CORSOrigins []string `envconfig:"MARKETPREP_CORS_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"MARKETPREP_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"MARKETPREP_DB_DSN"`
	Driver string `envconfig:"MARKETPREP_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"MARKETPREP_DB_HOST"`
	Port     int    `envconfig:"MARKETPREP_DB_PORT" default:"5432"`
	User     string `envconfig:"MARKETPREP_DB_USER"`
	Password string `envconfig:"MARKETPREP_DB_PASSWORD"`
	Name     string `envconfig:"MARKETPREP_DB_NAME"`
	SSLMode  string `envconfig:"MARKETPREP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MARKETPREP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MARKETPREP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MARKETPREP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MARKETPREP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MARKETPREP_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MARKETPREP_REDIS_ADDR"`
	Password     string        `envconfig:"MARKETPREP_REDIS_PASSWORD"`
	DB           int           `envconfig:"MARKETPREP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MARKETPREP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MARKETPREP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MARKETPREP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MARKETPREP_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"MARKETPREP_REDIS_WRITE_TIMEOUT" default:"3s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"MARKETPREP_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"MARKETPREP_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"MARKETPREP_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"MARKETPREP_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"MARKETPREP_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"MARKETPREP_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"MARKETPREP_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"MARKETPREP_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"MARKETPREP_ARGON_KEY_LEN" default:"32"`
}

type RateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"MARKETPREP_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"MARKETPREP_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"MARKETPREP_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"MARKETPREP_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"MARKETPREP_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"MARKETPREP_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
	APIWindow          time.Duration `envconfig:"MARKETPREP_RATE_LIMIT_API_WINDOW" default:"1m"`
	APIVendorLimit     int           `envconfig:"MARKETPREP_RATE_LIMIT_API_VENDOR_LIMIT" default:"120"`
	GenerateLimit      int           `envconfig:"MARKETPREP_RATE_LIMIT_GENERATE_LIMIT" default:"10"`
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"MARKETPREP_IDEMPOTENCY_TTL" default:"24h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"MARKETPREP_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"MARKETPREP_AUTO_MIGRATE" default:"false"`
}

type SquareConfig struct {
	Env               string        `envconfig:"MARKETPREP_SQUARE_ENV" default:"sandbox"`
	ApplicationID     string        `envconfig:"MARKETPREP_SQUARE_APPLICATION_ID"`
	ApplicationSecret string        `envconfig:"MARKETPREP_SQUARE_APPLICATION_SECRET"`
	BaseURL           string        `envconfig:"MARKETPREP_SQUARE_BASE_URL"`
	RefreshSkew       time.Duration `envconfig:"MARKETPREP_SQUARE_REFRESH_SKEW" default:"5m"`
	Timeout           time.Duration `envconfig:"MARKETPREP_SQUARE_TIMEOUT" default:"10s"`
	MaxRetries        uint64        `envconfig:"MARKETPREP_SQUARE_MAX_RETRIES" default:"2"`
	SalesLookback     time.Duration `envconfig:"MARKETPREP_SQUARE_SALES_LOOKBACK" default:"2160h"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return SquareEnvSandbox
	}
	return env
}

// Enabled reports whether OAuth refresh credentials are present.
func (s SquareConfig) Enabled() bool {
	return strings.TrimSpace(s.ApplicationID) != "" && strings.TrimSpace(s.ApplicationSecret) != ""
}

type WeatherConfig struct {
	APIKey     string        `envconfig:"MARKETPREP_WEATHER_API_KEY"`
	BaseURL    string        `envconfig:"MARKETPREP_WEATHER_BASE_URL" default:"https://api.openweathermap.org"`
	Timeout    time.Duration `envconfig:"MARKETPREP_WEATHER_TIMEOUT" default:"5s"`
	MaxRetries uint64        `envconfig:"MARKETPREP_WEATHER_MAX_RETRIES" default:"2"`
	CacheTTL   time.Duration `envconfig:"MARKETPREP_WEATHER_CACHE_TTL" default:"3h"`
}

type EventsConfig struct {
	APIKey       string        `envconfig:"MARKETPREP_EVENTS_API_KEY"`
	BaseURL      string        `envconfig:"MARKETPREP_EVENTS_BASE_URL" default:"https://api.predicthq.com"`
	Timeout      time.Duration `envconfig:"MARKETPREP_EVENTS_TIMEOUT" default:"5s"`
	MaxRetries   uint64        `envconfig:"MARKETPREP_EVENTS_MAX_RETRIES" default:"2"`
	CacheTTL     time.Duration `envconfig:"MARKETPREP_EVENTS_CACHE_TTL" default:"6h"`
	RadiusMiles  int           `envconfig:"MARKETPREP_EVENTS_RADIUS_MILES" default:"5"`
	CalendarPath string        `envconfig:"MARKETPREP_EVENTS_CALENDAR_PATH"`
}

type CacheConfig struct {
	StaleTTL   time.Duration `envconfig:"MARKETPREP_CACHE_STALE_TTL" default:"168h"`
	CatalogTTL time.Duration `envconfig:"MARKETPREP_CACHE_CATALOG_TTL" default:"1h"`
}

type ModelConfig struct {
	// Path is a local file or gs://bucket/object; empty means heuristic-only.
	Path           string        `envconfig:"MARKETPREP_MODEL_PATH"`
	ReloadInterval time.Duration `envconfig:"MARKETPREP_MODEL_RELOAD_INTERVAL" default:"15m"`
}

type EncryptionConfig struct {
	// TokenKey is a base64-encoded 32-byte key for Square tokens at rest.
	TokenKey string `envconfig:"MARKETPREP_TOKEN_ENCRYPTION_KEY"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"MARKETPREP_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"MARKETPREP_GCP_CREDENTIALS_JSON"`
	// ApplicationCredentials is a path to a service account key file.
	ApplicationCredentials string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS"`
}

// Enabled reports whether GCP-backed integrations should be constructed.
func (g GCPConfig) Enabled() bool {
	return strings.TrimSpace(g.ProjectID) != ""
}

type PubSubConfig struct {
	FeedbackTopic string `envconfig:"MARKETPREP_PUBSUB_FEEDBACK_TOPIC" default:"mp-feedback-events"`
}

type BigQueryConfig struct {
	Dataset       string `envconfig:"MARKETPREP_BIGQUERY_DATASET" default:"marketprep"`
	TrainingTable string `envconfig:"MARKETPREP_BIGQUERY_TRAINING_TABLE" default:"training_rows"`
}

type CronConfig struct {
	Interval        time.Duration `envconfig:"MARKETPREP_CRON_INTERVAL" default:"15m"`
	LockTTL         time.Duration `envconfig:"MARKETPREP_CRON_LOCK_TTL" default:"10m"`
	ExportBatch     int           `envconfig:"MARKETPREP_CRON_EXPORT_BATCH" default:"500"`
	SyncConcurrency int           `envconfig:"MARKETPREP_CRON_SYNC_CONCURRENCY" default:"4"`
}

type TelemetryConfig struct {
	// Exporter is none, stdout or otlp.
	Exporter     string  `envconfig:"MARKETPREP_OTEL_EXPORTER" default:"none"`
	OTLPEndpoint string  `envconfig:"MARKETPREP_OTEL_ENDPOINT"`
	SampleRatio  float64 `envconfig:"MARKETPREP_OTEL_SAMPLE_RATIO" default:"1"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.DSN = "file:marketprep.db?_foreign_keys=on"
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}
	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
