package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	SLA          SLAConfig
	Queue        QueueConfig
	Tickets      TicketsConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// NotificationConfig holds mail and webhook delivery settings.
type NotificationConfig struct {
	EmailFrom     string
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	WebhookURL    string
	WebhookSecret string
	SiteURL       string
	// DeveloperOrgEmail receives a copy of every new ticket when set.
	DeveloperOrgEmail string
}

// SMTPEnabled reports whether outgoing mail is configured.
func (n NotificationConfig) SMTPEnabled() bool {
	return strings.TrimSpace(n.SMTPHost) != "" && strings.TrimSpace(n.EmailFrom) != ""
}

// SMTPAddr returns host:port of the mail relay.
func (n NotificationConfig) SMTPAddr() string {
	return fmt.Sprintf("%s:%d", n.SMTPHost, n.SMTPPort)
}

// Store drivers for SLA timers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
)

// SLAConfig controls the periodic timer sweep.
type SLAConfig struct {
	CheckSchedule string
	WarningWindow time.Duration
	LockKey       string
	LockTTL       time.Duration
	StoreDriver   string
	SQLitePath    string
	PolicyFile    string
}

// Queue drivers for notification jobs.
const (
	QueueDriverRedis  = "redis"
	QueueDriverMemory = "memory"
)

// QueueConfig controls the notification job queue and its worker.
type QueueConfig struct {
	Driver      string
	Key         string
	PopTimeout  time.Duration
	Concurrency int
	MaxAttempts int
	BufferSize  int
}

// TicketsConfig controls ticket workflow defaults.
type TicketsConfig struct {
	// DispatcherID is the staff member that unassigned tickets are handed to.
	DispatcherID string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "helpdesk-sla"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", "dev-secret"),
			TokenTTL:  getEnvAsDuration("AUTH_TOKEN_TTL", time.Hour),
		},
		Notification: NotificationConfig{
			EmailFrom:     getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			SMTPHost:      os.Getenv("NOTIFY_SMTP_HOST"),
			SMTPPort:      getEnvAsInt("NOTIFY_SMTP_PORT", 587),
			SMTPUsername:  os.Getenv("NOTIFY_SMTP_USERNAME"),
			SMTPPassword:  os.Getenv("NOTIFY_SMTP_PASSWORD"),
			WebhookURL:    getEnv("NOTIFY_WEBHOOK_URL", ""),
			WebhookSecret: os.Getenv("NOTIFY_WEBHOOK_SECRET"),
			SiteURL:       strings.TrimRight(getEnv("SITE_URL", "http://localhost:3000"), "/"),

			DeveloperOrgEmail: os.Getenv("NOTIFY_DEVELOPER_ORG_EMAIL"),
		},
		SLA: SLAConfig{
			CheckSchedule: getEnv("SLA_CHECK_SCHEDULE", "@every 5m"),
			WarningWindow: getEnvAsDuration("SLA_WARNING_WINDOW", time.Hour),
			LockKey:       getEnv("SLA_LOCK_KEY", "helpdesk:sla:check"),
			LockTTL:       getEnvAsDuration("SLA_LOCK_TTL", 4*time.Minute),
			StoreDriver:   strings.ToLower(getEnv("SLA_STORE_DRIVER", StoreDriverPostgres)),
			SQLitePath:    getEnv("SLA_SQLITE_PATH", "data/helpdesk.db"),
			PolicyFile:    os.Getenv("SLA_POLICY_FILE"),
		},
		Queue: QueueConfig{
			Driver:      strings.ToLower(getEnv("QUEUE_DRIVER", QueueDriverRedis)),
			Key:         getEnv("QUEUE_KEY", "helpdesk:notifications"),
			PopTimeout:  getEnvAsDuration("QUEUE_POP_TIMEOUT", 5*time.Second),
			Concurrency: getEnvAsInt("QUEUE_WORKERS", 2),
			MaxAttempts: getEnvAsInt("QUEUE_MAX_ATTEMPTS", 3),
			BufferSize:  getEnvAsInt("QUEUE_BUFFER_SIZE", 256),
		},
		Tickets: TicketsConfig{
			DispatcherID: strings.TrimSpace(os.Getenv("TICKETS_DISPATCHER_ID")),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.SLA.StoreDriver {
	case StoreDriverPostgres, StoreDriverSQLite:
	default:
		return fmt.Errorf("invalid SLA_STORE_DRIVER %q", c.SLA.StoreDriver)
	}
	switch c.Queue.Driver {
	case QueueDriverRedis, QueueDriverMemory:
	default:
		return fmt.Errorf("invalid QUEUE_DRIVER %q", c.Queue.Driver)
	}
	if c.SLA.WarningWindow <= 0 {
		return fmt.Errorf("SLA_WARNING_WINDOW must be positive")
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
