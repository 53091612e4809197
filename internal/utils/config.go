package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServerPort string
	JWTSecret  string
	Mongo      MongoConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Logging    LoggingConfig
	AdminSeed  AdminSeedConfig
	Sessions   SessionConfig
	RateLimit  RateLimitConfig
}

type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

type PostgresConfig struct {
	DSN               string
	Host              string
	Port              int
	User              string
	Password          string
	Database          string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	ConnectTimeout    time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LoggingConfig struct {
	Level        string
	Encoding     string
	Development  bool
	EnableCaller bool
	ServiceName  string
}

// AdminSeedConfig describes the operator account provisioned at startup
// when the admin_accounts table is empty.
type AdminSeedConfig struct {
	Username string
	Password string
	Email    string
}

// SessionConfig controls the stale-session housekeeping sweep.
type SessionConfig struct {
	SweepInterval time.Duration
	StaleAfter    time.Duration
}

type RateLimitConfig struct {
	Enabled       bool
	Window        time.Duration
	MaxRequests   int
	BlockDuration time.Duration
}

func LoadConfig() (*Config, error) {
	pgPort, _ := strconv.Atoi(envOrDefault("POSTGRES_PORT", "5432"))
	redisDB, _ := strconv.Atoi(envOrDefault("REDIS_DB", "0"))

	cfg := &Config{
		ServerPort: envOrDefault("PORT", "5001"),
		JWTSecret:  envOrDefault("JWT_SECRET", "dev-secret"),
		Mongo: MongoConfig{
			URI:            envOrDefault("MONGODB_URI", "mongodb://localhost:27017"),
			Database:       envOrDefault("MONGODB_DATABASE", "voice-ai-agent"),
			ConnectTimeout: parseDuration(envOrDefault("MONGODB_CONNECT_TIMEOUT", "5s"), 5*time.Second),
		},
		Postgres: PostgresConfig{
			DSN:               os.Getenv("POSTGRES_DSN"),
			Host:              envOrDefault("POSTGRES_HOST", "localhost"),
			Port:              pgPort,
			User:              envOrDefault("POSTGRES_USER", "postgres"),
			Password:          os.Getenv("POSTGRES_PASSWORD"),
			Database:          envOrDefault("POSTGRES_DB", "postgres"),
			MaxConns:          parseInt32(envOrDefault("POSTGRES_MAX_CONNS", "8"), 8),
			MinConns:          parseInt32(envOrDefault("POSTGRES_MIN_CONNS", "1"), 1),
			MaxConnLifetime:   parseDuration(envOrDefault("POSTGRES_MAX_CONN_LIFETIME", "1h"), time.Hour),
			MaxConnIdleTime:   parseDuration(envOrDefault("POSTGRES_MAX_CONN_IDLE", "30m"), 30*time.Minute),
			HealthCheckPeriod: parseDuration(envOrDefault("POSTGRES_HEALTH_CHECK_PERIOD", "1m"), time.Minute),
			ConnectTimeout:    parseDuration(envOrDefault("POSTGRES_CONNECT_TIMEOUT", "5s"), 5*time.Second),
		},
		Redis: RedisConfig{
			Addr:     envOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logging: LoggingConfig{
			Level:        strings.ToLower(envOrDefault("LOG_LEVEL", "info")),
			Encoding:     strings.ToLower(envOrDefault("LOG_ENCODING", "console")),
			Development:  parseBool(envOrDefault("LOG_DEVELOPMENT", "false"), false),
			EnableCaller: parseBool(envOrDefault("LOG_CALLER", "false"), false),
			ServiceName:  envOrDefault("SERVICE_NAME", "voice-agent-backend"),
		},
		AdminSeed: AdminSeedConfig{
			Username: envOrDefault("ADMIN_USERNAME", "admin"),
			Password: envOrDefault("ADMIN_PASSWORD", "123456"),
			Email:    envOrDefault("ADMIN_EMAIL", "admin@aito-ai.com"),
		},
		Sessions: SessionConfig{
			SweepInterval: parseDuration(envOrDefault("SESSION_SWEEP_INTERVAL", "5m"), 5*time.Minute),
			StaleAfter:    parseDuration(envOrDefault("SESSION_STALE_AFTER", "30m"), 30*time.Minute),
		},
		RateLimit: RateLimitConfig{
			Enabled:       parseBool(envOrDefault("RATE_LIMIT_ENABLED", "true"), true),
			Window:        parseDuration(envOrDefault("RATE_LIMIT_WINDOW", "120s"), 120*time.Second),
			MaxRequests:   int(parseInt32(envOrDefault("RATE_LIMIT_MAX_REQUESTS", "25"), 25)),
			BlockDuration: parseDuration(envOrDefault("RATE_LIMIT_BLOCK_DURATION", "24h"), 24*time.Hour),
		},
	}

	return cfg, nil
}

func (c PostgresConfig) BuildDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, c.Port, c.Database)
}

func envOrDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt32(value string, fallback int32) int32 {
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return int32(i)
}

func parseBool(value string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return v
}
