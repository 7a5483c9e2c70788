package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Env      string
	LogLevel string
	Port     string
	JWT      JWTConfig
	Database DatabaseConfig
	Approval ApprovalConfig
	Outbox   OutboxConfig
}

type JWTConfig struct {
	Secret   string
	TokenTTL time.Duration
}

type DatabaseConfig struct {
	URL      string
	MaxConns int32
}

// ApprovalConfig tunes the review engine.
type ApprovalConfig struct {
	DeadlineDays      int
	StrictTransitions bool
}

// OutboxConfig controls the relay started by the API process. A zero
// RelayInterval disables it.
type OutboxConfig struct {
	RelayInterval time.Duration
	BatchSize     int
	MaxAttempts   int
}

// Load reads .env when present and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("config: JWT_SECRET is required")
	}
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("config: DATABASE_URL is required")
	}

	tokenTTL, err := getDuration("TOKEN_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	maxConns, err := getInt("DB_MAX_CONNS", 10)
	if err != nil {
		return nil, err
	}
	deadlineDays, err := getInt("APPROVAL_DEADLINE_DAYS", 7)
	if err != nil {
		return nil, err
	}
	strict, err := getBool("STRICT_TRANSITIONS", false)
	if err != nil {
		return nil, err
	}
	relayInterval, err := getDuration("OUTBOX_RELAY_INTERVAL", 0)
	if err != nil {
		return nil, err
	}
	batchSize, err := getInt("OUTBOX_BATCH_SIZE", 20)
	if err != nil {
		return nil, err
	}
	maxAttempts, err := getInt("OUTBOX_MAX_ATTEMPTS", 5)
	if err != nil {
		return nil, err
	}

	return &Config{
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: os.Getenv("LOG_LEVEL"),
		Port:     getEnv("PORT", "8080"),
		JWT: JWTConfig{
			Secret:   jwtSecret,
			TokenTTL: tokenTTL,
		},
		Database: DatabaseConfig{
			URL:      databaseURL,
			MaxConns: int32(maxConns),
		},
		Approval: ApprovalConfig{
			DeadlineDays:      deadlineDays,
			StrictTransitions: strict,
		},
		Outbox: OutboxConfig{
			RelayInterval: relayInterval,
			BatchSize:     batchSize,
			MaxAttempts:   maxAttempts,
		},
	}, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("config: %s must be a non-negative integer, got %q", key, raw)
	}
	return v, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("config: %s must be a boolean, got %q", key, raw)
	}
	return v, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("config: %s must be a non-negative duration, got %q", key, raw)
	}
	return v, nil
}
