package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	ReviewPolicy ReviewPolicyConfig
	Booking      BookingPolicyConfig
	OTEL         OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string
	Port int
	Env  string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
}

// ReviewPolicyConfig holds the moderation and abuse-control knobs of the
// review pipeline. The thresholds are product policy, not derived constants,
// so they stay configurable. The dealer rating summary cache is not a knob:
// it refreshes on every rating mutation, carries a short fixed TTL, and is
// dropped when a recompute fails, so reads track the last recompute closely.
type ReviewPolicyConfig struct {
	// DuplicateFlagThreshold is the number of prior identical-fingerprint
	// reviews for the same seller at which a new review is flagged.
	DuplicateFlagThreshold int

	// RateLimitMax is the number of ratings a single network identifier may
	// submit within RateLimitWindow.
	RateLimitMax    int
	RateLimitWindow time.Duration
}

// BookingPolicyConfig holds booking lifecycle policy flags.
type BookingPolicyConfig struct {
	// AllowCompletedDeletion permits the owning buyer to delete a completed
	// booking. Cancelled and rejected bookings are always deletable by their
	// buyer; non-terminal bookings never are.
	AllowCompletedDeletion bool
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
			Env:  getEnv("APP_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "agrilink_marketplace"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			PoolSize: getEnvAsInt("REDIS_POOL_SIZE", 10),
		},
		ReviewPolicy: ReviewPolicyConfig{
			DuplicateFlagThreshold: getEnvAsInt("REVIEW_DUPLICATE_FLAG_THRESHOLD", 2),
			RateLimitMax:           getEnvAsInt("REVIEW_RATE_LIMIT_MAX", 5),
			RateLimitWindow:        getEnvAsDuration("REVIEW_RATE_LIMIT_WINDOW", 24*time.Hour),
		},
		Booking: BookingPolicyConfig{
			AllowCompletedDeletion: getEnvAsBool("BOOKING_ALLOW_COMPLETED_DELETION", false),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "marketplace-backend"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
