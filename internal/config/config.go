package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for humanarch
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Redis     RedisConfig
	Content   ContentConfig
	Session   SessionConfig
	Timing    TimingConfig
	CORS      CORSConfig
	Cleanup   CleanupConfig
	Community CommunityConfig
	Log       LogConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Storage backends
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

// StorageConfig selects where session snapshots live
type StorageConfig struct {
	Backend string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
}

// ContentConfig holds content table configuration
type ContentConfig struct {
	// Dir overrides the embedded defaults when set
	Dir string
}

// SessionConfig holds session lifetime configuration
type SessionConfig struct {
	TTL time.Duration
}

// TimingConfig holds the simulated delays
type TimingConfig struct {
	AssessmentDelay   time.Duration
	PurchaseDelay     time.Duration
	CompletionDelay   time.Duration
	RegistrationDelay time.Duration
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string
}

// CleanupConfig holds cleanup worker configuration
type CleanupConfig struct {
	Interval time.Duration
}

// CommunityConfig holds guild board configuration
type CommunityConfig struct {
	FeedLimit int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
}

// SlogLevel maps Level to a slog level, defaulting to info
func (l LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Load loads configuration from environment variables. A .env file in the
// working directory is applied first if present; real environment
// variables take precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from the current environment only
func FromEnv() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Storage: StorageConfig{
			Backend: strings.ToLower(getEnv("STORAGE_BACKEND", StorageMemory)),
		},
		Redis: RedisConfig{
			Address:   getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvAsInt("REDIS_DB", 0),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "humanarch:session:"),
		},
		Content: ContentConfig{
			Dir: getEnv("CONTENT_DIR", ""),
		},
		Session: SessionConfig{
			TTL: getEnvAsDuration("SESSION_TTL", 30*time.Minute),
		},
		Timing: TimingConfig{
			AssessmentDelay:   getEnvAsDuration("ASSESSMENT_DELAY", 2000*time.Millisecond),
			PurchaseDelay:     getEnvAsDuration("PURCHASE_DELAY", 2500*time.Millisecond),
			CompletionDelay:   getEnvAsDuration("COMPLETION_DELAY", 3000*time.Millisecond),
			RegistrationDelay: getEnvAsDuration("REGISTRATION_DELAY", 1500*time.Millisecond),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Cleanup: CleanupConfig{
			Interval: getEnvAsDuration("CLEANUP_INTERVAL", time.Minute),
		},
		Community: CommunityConfig{
			FeedLimit: getEnvAsInt("COMMUNITY_FEED_LIMIT", 50),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Storage.Backend {
	case StorageMemory:
	case StorageRedis:
		if c.Redis.Address == "" {
			return fmt.Errorf("redis address is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown storage backend: %q", c.Storage.Backend)
	}

	if c.Session.TTL <= 0 {
		return fmt.Errorf("session ttl must be positive: %s", c.Session.TTL)
	}
	if c.Cleanup.Interval <= 0 {
		return fmt.Errorf("cleanup interval must be positive: %s", c.Cleanup.Interval)
	}

	for name, d := range map[string]time.Duration{
		"assessment":   c.Timing.AssessmentDelay,
		"purchase":     c.Timing.PurchaseDelay,
		"completion":   c.Timing.CompletionDelay,
		"registration": c.Timing.RegistrationDelay,
	} {
		if d <= 0 {
			return fmt.Errorf("%s delay must be positive: %s", name, d)
		}
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log format: %q", c.Log.Format)
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
