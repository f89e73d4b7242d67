package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Audit    AuditConfig
	Seed     SeedConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	StreamKeepAlive       time.Duration
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
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// SeedConfig describes an inspector and inspection created at startup.
// Seeding is skipped when UserEmail is empty.
type SeedConfig struct {
	UserName        string
	UserEmail       string
	UserPassword    string
	InspectionTitle string
}

// EventBus selects the realtime transport.
type EventBus string

const (
	EventBusMemory EventBus = "memory"
	EventBusRedis  EventBus = "redis"
)

// AuditConfig holds the change-history engine tunables. The defaults were
// tuned against the inspection screens and are kept overridable.
type AuditConfig struct {
	DedupWindow          time.Duration `env:"AUDIT_DEDUP_WINDOW" envDefault:"5s"`
	DedupMaxEntries      int           `env:"AUDIT_DEDUP_MAX_ENTRIES" envDefault:"50"`
	DedupKeepEntries     int           `env:"AUDIT_DEDUP_KEEP_ENTRIES" envDefault:"25"`
	RecordRefreshDelay   time.Duration `env:"AUDIT_RECORD_REFRESH_DELAY" envDefault:"1s"`
	RealtimeRefreshDelay time.Duration `env:"AUDIT_REALTIME_REFRESH_DELAY" envDefault:"1500ms"`
	StatusRefreshDelay   time.Duration `env:"AUDIT_STATUS_REFRESH_DELAY" envDefault:"300ms"`
	SameEntityWindow     time.Duration `env:"AUDIT_SAME_ENTITY_WINDOW" envDefault:"2s"`
	DisplayTimezone      string        `env:"AUDIT_DISPLAY_TIMEZONE" envDefault:"UTC"`
	EventBus             EventBus      `env:"AUDIT_EVENT_BUS" envDefault:"memory"`
}

// DefaultAuditConfig returns the engine defaults without reading the environment.
func DefaultAuditConfig() AuditConfig {
	return AuditConfig{
		DedupWindow:          5 * time.Second,
		DedupMaxEntries:      50,
		DedupKeepEntries:     25,
		RecordRefreshDelay:   time.Second,
		RealtimeRefreshDelay: 1500 * time.Millisecond,
		StatusRefreshDelay:   300 * time.Millisecond,
		SameEntityWindow:     2 * time.Second,
		DisplayTimezone:      "UTC",
		EventBus:             EventBusMemory,
	}
}

// Location resolves the display timezone, falling back to UTC.
func (a AuditConfig) Location() *time.Location {
	if a.DisplayTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(a.DisplayTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate rejects tunables the engine cannot work with.
func (a AuditConfig) Validate() error {
	if a.DedupMaxEntries <= 0 {
		return fmt.Errorf("AUDIT_DEDUP_MAX_ENTRIES must be positive, got %d", a.DedupMaxEntries)
	}
	if a.DedupKeepEntries <= 0 || a.DedupKeepEntries > a.DedupMaxEntries {
		return fmt.Errorf("AUDIT_DEDUP_KEEP_ENTRIES must be in (0, %d], got %d", a.DedupMaxEntries, a.DedupKeepEntries)
	}
	for _, d := range []struct {
		key   string
		value time.Duration
	}{
		{"AUDIT_DEDUP_WINDOW", a.DedupWindow},
		{"AUDIT_RECORD_REFRESH_DELAY", a.RecordRefreshDelay},
		{"AUDIT_REALTIME_REFRESH_DELAY", a.RealtimeRefreshDelay},
		{"AUDIT_STATUS_REFRESH_DELAY", a.StatusRefreshDelay},
		{"AUDIT_SAME_ENTITY_WINDOW", a.SameEntityWindow},
	} {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.key, d.value)
		}
	}
	switch a.EventBus {
	case EventBusMemory, EventBusRedis:
	default:
		return fmt.Errorf("unsupported AUDIT_EVENT_BUS %q", a.EventBus)
	}
	return nil
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	var audit AuditConfig
	if err := env.Parse(&audit); err != nil {
		return nil, fmt.Errorf("parse audit env: %w", err)
	}
	if err := audit.Validate(); err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "inspection-audit-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			StreamKeepAlive:       getEnvAsDuration("HTTP_STREAM_KEEPALIVE", 15*time.Second),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
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
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Audit: audit,
		Seed: SeedConfig{
			UserName:        getEnv("SEED_USER_NAME", "Inspector"),
			UserEmail:       os.Getenv("SEED_USER_EMAIL"),
			UserPassword:    os.Getenv("SEED_USER_PASSWORD"),
			InspectionTitle: os.Getenv("SEED_INSPECTION_TITLE"),
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
