// Package config handles loading application configuration from environment variables.
// All settings have sensible defaults for local development.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application settings loaded from environment variables.
type Config struct {
	Port               string
	JWTSecret          string
	AdminPasswordHash  string
	AdminPasswordSalt  string
	AdminTokenDuration time.Duration
	RateLimitPerMinute int
	CORSAllowedOrigins []string
	TrustedProxies     []string

	SentryDSN              string
	SentryDSNFrontend      string
	SentryEnvironment      string
	SentryRelease          string
	SentryTracesSampleRate float64
	SentryMaxBreadcrumbs   int
	SentryDebug            bool

	SlackWebhookURL    string
	AlertMinSeverity   string
	AlertTimeout       time.Duration
	AlertQueueSize     int
	AlertRatePerMinute int
	PolicyFile         string
}

// Load reads configuration from environment variables, using defaults where not set.
func Load() *Config {
	environment := getEnv("SENTRY_ENVIRONMENT", getEnv("VERCEL_ENV", "development"))

	return &Config{
		Port:               getEnv("PORT", "8080"),
		JWTSecret:          getEnv("JWT_SECRET", "change-me-in-production"), // #nosec G101 -- intentional dev default
		AdminPasswordHash:  getEnv("ADMIN_PASSWORD_HASH", ""),
		AdminPasswordSalt:  getEnv("ADMIN_PASSWORD_SALT", ""),
		AdminTokenDuration: getDurationEnv("ADMIN_TOKEN_DURATION", 12*time.Hour),
		RateLimitPerMinute: getIntEnv("TUNNEL_RATE_LIMIT_PER_MINUTE", 120),
		CORSAllowedOrigins: getStringSliceEnvDefault("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		TrustedProxies:     getStringSliceEnv("TRUSTED_PROXIES"),

		SentryDSN:              getEnv("SENTRY_DSN", ""),
		SentryDSNFrontend:      getEnv("SENTRY_DSN_FRONTEND", ""),
		SentryEnvironment:      environment,
		SentryRelease:          getEnv("SENTRY_RELEASE", defaultRelease()),
		SentryTracesSampleRate: getFloatEnv("SENTRY_TRACES_SAMPLE_RATE", defaultTracesSampleRate(environment)),
		SentryMaxBreadcrumbs:   getIntEnv("SENTRY_MAX_BREADCRUMBS", 50),
		SentryDebug:            getBoolEnv("SENTRY_DEBUG", environment == "development"),

		SlackWebhookURL:    getEnv("SLACK_WEBHOOK_URL", ""),
		AlertMinSeverity:   getEnv("ALERT_MIN_SEVERITY", "error"),
		AlertTimeout:       getDurationEnv("ALERT_TIMEOUT", 10*time.Second),
		AlertQueueSize:     getIntEnv("ALERT_QUEUE_SIZE", 256),
		AlertRatePerMinute: getIntEnv("ALERT_RATE_PER_MINUTE", 60),
		PolicyFile:         getEnv("POLICY_FILE", ""),
	}
}

// defaultRelease names the release after the deployed commit when the
// platform provides one.
func defaultRelease() string {
	sha := os.Getenv("VERCEL_GIT_COMMIT_SHA")
	if sha == "" {
		return ""
	}
	if len(sha) > 7 {
		sha = sha[:7]
	}
	return "anderson-cleaning@" + sha
}

func defaultTracesSampleRate(environment string) float64 {
	switch environment {
	case "production":
		return 0.1
	case "preview":
		return 0.5
	default:
		return 1.0
	}
}

func getStringSliceEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var result []string
	for _, s := range strings.Split(value, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			result = append(result, s)
		}
	}
	return result
}

func getStringSliceEnvDefault(key string, defaultValue []string) []string {
	if result := getStringSliceEnv(key); len(result) > 0 {
		return result
	}
	return defaultValue
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
