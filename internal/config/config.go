package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

// Config holds application configuration
type Config struct {
	// Server
	Env  string
	Port string

	// Database
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	// JWT
	JWTSecret        string
	JWTExpirationDur time.Duration

	// Valuation engine
	DeviationThresholdBps int64
	BaselineMode          string

	// Access
	ApproverEmails []string
	PipelineAPIKey string

	// Notifications
	RedisAddr    string
	RedisChannel string

	// Pending approval report
	PendingReportSchedule string
	PendingStaleAfter     time.Duration
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "8080"),

		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "assetmanager"),
		DBPassword: getEnv("DB_PASSWORD", "assetmanager"),
		DBName:     getEnv("DB_NAME", "assetmanager"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		SQLitePath: getEnv("SQLITE_PATH", "assetmanager.db"),

		JWTSecret: getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),

		BaselineMode: strings.ToLower(getEnv("BASELINE_MODE", "previous")),

		ApproverEmails: parseList(getEnv("APPROVER_EMAILS", "")),
		PipelineAPIKey: getEnv("PIPELINE_API_KEY", ""),

		RedisAddr:    getEnv("REDIS_ADDR", ""),
		RedisChannel: getEnv("REDIS_CHANNEL", "asset-manager:data-point-queued"),

		PendingReportSchedule: getEnv("PENDING_REPORT_SCHEDULE", "@every 1m"),
	}

	config.JWTExpirationDur = getDuration("JWT_EXPIRES_IN", 24*time.Hour)
	config.PendingStaleAfter = getDuration("PENDING_STALE_AFTER", 24*time.Hour)

	thresholdStr := getEnv("DEVIATION_THRESHOLD_BPS", "1000")
	threshold, err := strconv.ParseInt(thresholdStr, 10, 64)
	if err != nil || threshold <= 0 {
		log.Printf("Warning: invalid DEVIATION_THRESHOLD_BPS value '%s', falling back to 1000\n", thresholdStr)
		threshold = 1000
	}
	config.DeviationThresholdBps = threshold

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// IsApprover reports whether the email is granted the approver capability.
func (c *Config) IsApprover(email string) bool {
	return lo.Contains(c.ApproverEmails, strings.ToLower(strings.TrimSpace(email)))
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, defaultValue.String())
	dur, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %s\n", key, raw, defaultValue)
		return defaultValue
	}
	return dur
}

func parseList(raw string) []string {
	parts := lo.Map(strings.Split(raw, ","), func(s string, _ int) string {
		return strings.ToLower(strings.TrimSpace(s))
	})
	return lo.Compact(parts)
}
