package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Application settings
	AppEnv        string
	AppPort       int
	FrontendURL   string
	RunMigrations bool

	// Database settings
	DatabaseURL                string
	DatabaseMaxConnections     int
	DatabaseMaxIdleConnections int
	DatabaseConnectionLifetime time.Duration

	// Session settings (acting-user identity only; no auth/role logic lives
	// in the core, see SPEC_FULL.md §1)
	SessionSecret   string
	SessionDuration time.Duration

	// CORS settings
	CORSAllowedOrigins   string
	CORSAllowCredentials bool

	// Logging
	LogLevel string

	// NATS settings
	NATSURL string

	// Inventory engine settings
	ReservationTimeout   time.Duration // §4.5/§5 R_timeout, default 30m
	SequenceRetryBackoff time.Duration // read from env only; the engine's DISP/RET/SCR collision retries wait a fixed 15ms
	SequenceRetryMax     int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		AppPort:     getEnvAsInt("APP_PORT", 8080),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),

		DatabaseURL:                getEnv("DATABASE_URL", ""),
		DatabaseMaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 25),
		DatabaseMaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
		DatabaseConnectionLifetime: getEnvAsDuration("DATABASE_CONNECTION_LIFETIME", 5*time.Minute),

		SessionSecret:   getEnv("SESSION_SECRET", ""),
		SessionDuration: getEnvAsDuration("SESSION_DURATION", 24*time.Hour),

		CORSAllowedOrigins:   getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		CORSAllowCredentials: getEnvAsBool("CORS_ALLOW_CREDENTIALS", true),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		NATSURL: getEnv("NATS_URL", "nats://localhost:4222"),

		ReservationTimeout:   getEnvAsDuration("RESERVATION_TIMEOUT", 30*time.Minute),
		SequenceRetryBackoff: getEnvAsDuration("SEQUENCE_RETRY_BACKOFF", 25*time.Millisecond),
		SequenceRetryMax:     getEnvAsInt("SEQUENCE_RETRY_MAX", 5),

		RunMigrations: getEnvAsBool("RUN_MIGRATIONS", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required")
	}
	return nil
}

// Helper functions for reading environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
