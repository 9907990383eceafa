package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dennisdiepolder/monti/livechat/internal/rollover"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	WSReadTimeout  time.Duration
	WSWriteTimeout time.Duration
	LogLevel       string
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64

	// Dashboard day and hour buckets are computed in this location
	Timezone *time.Location

	// Pending change notifications before publishers block
	FeedBuffer int

	// Cron expression for the hourly rollover
	RolloverSchedule string

	// Auth
	SkipAuth        bool
	OIDCIssuer      string
	VerifySignature bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Port:             getEnv("PORT", "8080"),
		AllowedOrigins:   strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ","),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		RolloverSchedule: getEnv("ROLLOVER_SCHEDULE", rollover.DefaultSchedule),
		SkipAuth:         getEnv("SKIP_AUTH", "false") == "true",
		OIDCIssuer:       getEnv("OIDC_ISSUER", ""),
	}

	// Parse WebSocket timeouts
	wsReadTimeout, err := strconv.Atoi(getEnv("WS_READ_TIMEOUT", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_READ_TIMEOUT: %w", err)
	}
	config.WSReadTimeout = time.Duration(wsReadTimeout) * time.Second

	wsWriteTimeout, err := strconv.Atoi(getEnv("WS_WRITE_TIMEOUT", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_WRITE_TIMEOUT: %w", err)
	}
	config.WSWriteTimeout = time.Duration(wsWriteTimeout) * time.Second

	// Calculate WebSocket constants
	config.PongWait = config.WSReadTimeout
	config.PingPeriod = (config.PongWait * 9) / 10 // Must be less than pongWait
	config.WriteWait = config.WSWriteTimeout
	config.MaxMessageSize = 512

	feedBuffer, err := strconv.Atoi(getEnv("FEED_BUFFER", "1024"))
	if err != nil {
		return nil, fmt.Errorf("invalid FEED_BUFFER: %w", err)
	}
	if feedBuffer <= 0 {
		return nil, fmt.Errorf("invalid FEED_BUFFER: must be positive, got %d", feedBuffer)
	}
	config.FeedBuffer = feedBuffer

	loc, err := time.LoadLocation(getEnv("TIMEZONE", "Local"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	config.Timezone = loc

	if _, err := rollover.ParseSchedule(config.RolloverSchedule); err != nil {
		return nil, fmt.Errorf("invalid ROLLOVER_SCHEDULE: %w", err)
	}

	// Signatures are verified outside development unless explicitly disabled
	env := getEnv("ENV", "")
	config.VerifySignature = getEnv("VERIFY_JWT_SIGNATURE", "") == "true" ||
		(env != "" && env != "development")

	// Trim spaces from allowed origins
	for i, origin := range config.AllowedOrigins {
		config.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	return config, nil
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
