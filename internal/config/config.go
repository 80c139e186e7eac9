package config

import (
	"fmt"
	"os"
	"strconv"
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
	Scheduler    SchedulerConfig
	Notification NotificationConfig
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

// AuthConfig defines token verification parameters.
type AuthConfig struct {
	JWTSecret string
}

// SchedulerConfig tunes the escalation and staleness background jobs.
type SchedulerConfig struct {
	EscalateIntervalMinutes int
	EscalateIdleDays        int
	CloseIntervalHours      int
	RetentionDays           int
	ItemTimeoutSeconds      int
}

// NotificationConfig holds delivery queue settings.
type NotificationConfig struct {
	QueueKey   string
	ChannelTag string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "query-routing-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
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
		},
		Scheduler: SchedulerConfig{
			EscalateIntervalMinutes: getEnvAsInt("ESCALATE_INTERVAL_MINUTES", 60),
			EscalateIdleDays:        getEnvAsInt("ESCALATE_IDLE_DAYS", 5),
			CloseIntervalHours:      getEnvAsInt("CLOSE_INTERVAL_HOURS", 24),
			RetentionDays:           getEnvAsInt("RETENTION_DAYS", 7),
			ItemTimeoutSeconds:      getEnvAsInt("SCHEDULER_ITEM_TIMEOUT_SECONDS", 10),
		},
		Notification: NotificationConfig{
			QueueKey:   getEnv("NOTIFY_QUEUE_KEY", "notify:delivery"),
			ChannelTag: getEnv("NOTIFY_CHANNEL_TAG", "query-routing"),
		},
	}

	return cfg, nil
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

// EscalateInterval returns the escalator tick interval.
func (s SchedulerConfig) EscalateInterval() time.Duration {
	if s.EscalateIntervalMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(s.EscalateIntervalMinutes) * time.Minute
}

// EscalateIdle returns how long a query must sit idle before escalation.
func (s SchedulerConfig) EscalateIdle() time.Duration {
	if s.EscalateIdleDays <= 0 {
		return 5 * 24 * time.Hour
	}
	return time.Duration(s.EscalateIdleDays) * 24 * time.Hour
}

// CloseInterval returns the staleness closer tick interval.
func (s SchedulerConfig) CloseInterval() time.Duration {
	if s.CloseIntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(s.CloseIntervalHours) * time.Hour
}

// Retention returns the inactivity window after which queries are force-closed.
func (s SchedulerConfig) Retention() time.Duration {
	if s.RetentionDays <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(s.RetentionDays) * 24 * time.Hour
}

// ItemTimeout returns the per-query processing timeout inside scheduler loops.
func (s SchedulerConfig) ItemTimeout() time.Duration {
	if s.ItemTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(s.ItemTimeoutSeconds) * time.Second
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
