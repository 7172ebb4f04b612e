package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	DatabaseURL    string
	UseMemoryQueue bool

	// Redis (per-appointment writer lock)
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	LockTTL       time.Duration

	// Store retry policy for transient failures
	StoreRetryMaxAttempts int
	StoreRetryBaseDelay   time.Duration

	// AWS / event queue
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	EventQueueURL       string

	// Notification email (SES)
	NotifyFromEmail string
	NotifyFromName  string

	// Worker
	WorkerPollWaitSeconds int

	// HTTP
	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", false),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		LockTTL:       getEnvAsDuration("APPOINTMENT_LOCK_TTL", 10*time.Second),

		StoreRetryMaxAttempts: getEnvAsInt("STORE_RETRY_MAX_ATTEMPTS", 3),
		StoreRetryBaseDelay:   getEnvAsDuration("STORE_RETRY_BASE_DELAY", 250*time.Millisecond),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		EventQueueURL:       getEnv("EVENT_QUEUE_URL", ""),

		NotifyFromEmail: getEnv("NOTIFY_FROM_EMAIL", ""),
		NotifyFromName:  getEnv("NOTIFY_FROM_NAME", "CareLink Agenda"),

		WorkerPollWaitSeconds: getEnvAsInt("WORKER_POLL_WAIT_SECONDS", 10),

		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", nil),
	}
}

// getEnvAsSlice retrieves a comma-separated environment variable
func getEnvAsSlice(key string, defaultValue []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
