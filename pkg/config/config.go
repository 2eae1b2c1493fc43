package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Wallet        WalletConfig
	Orders        OrdersConfig
	Outbox        OutboxConfig
	Events        EventsConfig
	GCP           GCPConfig
	Cron          CronConfig
	Metrics       MetricsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Events.validate(cfg.GCP); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FARMLINK_APP_ENV" required:"true"`
	Port         string `envconfig:"FARMLINK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FARMLINK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FARMLINK_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"FARMLINK_LOG_FORMAT" default:"json"`
	CORSOrigins  string `envconfig:"FARMLINK_CORS_ORIGINS" default:"*"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	parts := strings.Split(a.CORSOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type ServiceConfig struct {
	Kind string `envconfig:"FARMLINK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"FARMLINK_DB_DSN"`
	Driver string `envconfig:"FARMLINK_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"FARMLINK_DB_HOST"`
	Port     int    `envconfig:"FARMLINK_DB_PORT" default:"5432"`
	User     string `envconfig:"FARMLINK_DB_USER"`
	Password string `envconfig:"FARMLINK_DB_PASSWORD"`
	Name     string `envconfig:"FARMLINK_DB_NAME"`
	SSLMode  string `envconfig:"FARMLINK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FARMLINK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FARMLINK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FARMLINK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FARMLINK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"FARMLINK_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FARMLINK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FARMLINK_REDIS_ADDR"`
	Password     string        `envconfig:"FARMLINK_REDIS_PASSWORD"`
	DB           int           `envconfig:"FARMLINK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FARMLINK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FARMLINK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FARMLINK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FARMLINK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FARMLINK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"FARMLINK_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"FARMLINK_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"FARMLINK_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"FARMLINK_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"FARMLINK_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"FARMLINK_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"FARMLINK_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"FARMLINK_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"FARMLINK_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"FARMLINK_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"FARMLINK_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"FARMLINK_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"FARMLINK_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"FARMLINK_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"FARMLINK_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
	// Reset limits are shared by forgot-password and reset-password.
	ResetWindow     time.Duration `envconfig:"FARMLINK_AUTH_RATE_LIMIT_RESET_WINDOW" default:"15m"`
	ResetEmailLimit int           `envconfig:"FARMLINK_AUTH_RATE_LIMIT_RESET_EMAIL_LIMIT" default:"5"`
	ResetIPLimit    int           `envconfig:"FARMLINK_AUTH_RATE_LIMIT_RESET_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"FARMLINK_AUTO_MIGRATE" default:"false"`
}

type WalletConfig struct {
	// MaxTopUp is a decimal amount in major units, e.g. "100000.00".
	MaxTopUp string `envconfig:"FARMLINK_WALLET_MAX_TOPUP" default:"100000.00"`
}

// MaxTopUpCents converts MaxTopUp into minor units. Zero disables the cap.
func (w WalletConfig) MaxTopUpCents() (int64, error) {
	raw := strings.TrimSpace(w.MaxTopUp)
	if raw == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", EnvWalletMaxTopUp, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("invalid %s: must not be negative", EnvWalletMaxTopUp)
	}
	return d.Shift(2).Round(0).IntPart(), nil
}

type OrdersConfig struct {
	PendingExpiry   time.Duration `envconfig:"FARMLINK_ORDERS_PENDING_EXPIRY" default:"72h"`
	ReasonMaxLength int           `envconfig:"FARMLINK_ORDERS_REASON_MAX_LENGTH" default:"70"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"FARMLINK_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"FARMLINK_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"FARMLINK_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"FARMLINK_OUTBOX_RETENTION" default:"168h"`
}

type EventsConfig struct {
	Backend      string `envconfig:"FARMLINK_EVENTS_BACKEND" default:"kafka"`
	KafkaBrokers string `envconfig:"FARMLINK_KAFKA_BROKERS" default:"localhost:9092"`
	KafkaTopic   string `envconfig:"FARMLINK_KAFKA_TOPIC" default:"farmlink.domain-events"`
	PubSubTopic  string `envconfig:"FARMLINK_PUBSUB_DOMAIN_TOPIC" default:"farmlink-domain-events"`
}

// Brokers returns the comma separated broker list as a slice.
func (e EventsConfig) Brokers() []string {
	var out []string
	for _, b := range strings.Split(e.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func (e EventsConfig) validate(gcp GCPConfig) error {
	switch strings.ToLower(strings.TrimSpace(e.Backend)) {
	case EventsBackendKafka:
		if len(e.Brokers()) == 0 {
			return fmt.Errorf("%s is required for the kafka backend", EnvKafkaBrokers)
		}
	case EventsBackendPubSub:
		if strings.TrimSpace(gcp.ProjectID) == "" {
			return fmt.Errorf("%s is required for the pubsub backend", EnvGCPProjectID)
		}
	default:
		return fmt.Errorf("unsupported %s %q", EnvEventsBackend, e.Backend)
	}
	return nil
}

type GCPConfig struct {
	ProjectID              string `envconfig:"FARMLINK_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"FARMLINK_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"FARMLINK_GOOGLE_APPLICATION_CREDENTIALS"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"FARMLINK_CRON_INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"FARMLINK_CRON_LOCK_TTL" default:"4m"`
}

type MetricsConfig struct {
	Enabled bool `envconfig:"FARMLINK_METRICS_ENABLED" default:"true"`
}

// ensureDSN builds a postgres URL from the discrete DB_* variables when no
// DSN is given.
func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	given := map[string]string{EnvDBHost: db.Host, EnvDBUser: db.User, EnvDBName: db.Name}
	var missing []string
	for _, env := range discreteDBEnvVars {
		if given[env] == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	dsn := url.URL{
		Scheme: "postgres",
		User:   url.User(db.User),
		Host:   net.JoinHostPort(db.Host, strconv.Itoa(db.Port)),
		Path:   db.Name,
	}
	if db.Password != "" {
		dsn.User = url.UserPassword(db.User, db.Password)
	}
	if db.SSLMode != "" {
		dsn.RawQuery = url.Values{"sslmode": {db.SSLMode}}.Encode()
	}
	db.DSN = dsn.String()
	return nil
}
