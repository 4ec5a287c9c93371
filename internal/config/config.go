package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Slack app credentials
	SlackClientID      string
	SlackClientSecret  string
	SlackSigningSecret string

	// Session signing
	SessionSecret string

	// Public base URL of this service, used to build account-linking URLs.
	BaseURL string

	// Post-OAuth redirect targets
	InstallRedirectURL string
	LoginRedirectURL   string

	// Firestore settings
	FirestoreProjectID  string
	FirestoreDatabaseID string

	// Cloud Tasks settings
	GoogleCloudProject string
	GCPRegion          string
	CloudTasksQueue    string
	CloudTasksSecret   string
	EventWorkerURL     string

	// Server settings
	Port                  string
	GinMode               string
	LogLevel              string
	ServerReadTimeout     time.Duration
	ServerWriteTimeout    time.Duration
	ServerShutdownTimeout time.Duration

	// Processing settings
	EventProcessingTimeout time.Duration
	SlackTimestampMaxAge   time.Duration
	SessionMaxAge          time.Duration
}

// Load reads configuration from environment variables.
// Panics if any required configuration is missing or invalid.
func Load() *Config {
	cfg := &Config{
		SlackClientID:      getEnvRequired("SLACK_CLIENT_ID"),
		SlackClientSecret:  getEnvRequired("SLACK_CLIENT_SECRET"),
		SlackSigningSecret: getEnvRequired("SLACK_SIGNING_SECRET"),
		SessionSecret:      getEnvRequired("SESSION_SECRET"),
		BaseURL:            getEnvRequired("BASE_URL"),

		InstallRedirectURL: getEnvDefault("SLACK_INSTALL_OAUTH_REDIRECT_URL", "/"),
		LoginRedirectURL:   getEnvDefault("SLACK_LOGIN_OAUTH_REDIRECT_URL", "/"),

		FirestoreProjectID:  getEnvRequired("FIRESTORE_PROJECT_ID"),
		FirestoreDatabaseID: getEnvRequired("FIRESTORE_DATABASE_ID"),

		GoogleCloudProject: getEnvRequired("GOOGLE_CLOUD_PROJECT"),
		GCPRegion:          getEnvDefault("GCP_REGION", "europe-west1"),
		CloudTasksQueue:    getEnvDefault("CLOUD_TASKS_QUEUE", "slack-events"),
		CloudTasksSecret:   getEnvRequired("CLOUD_TASKS_SECRET"),
		EventWorkerURL:     getEnvRequired("EVENT_WORKER_URL"),

		Port:     getEnvDefault("PORT", "8080"),
		GinMode:  getEnvDefault("GIN_MODE", "debug"),
		LogLevel: getEnvDefault("LOG_LEVEL", "info"),
	}

	cfg.ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second)
	cfg.ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second)
	cfg.ServerShutdownTimeout = getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second)
	cfg.EventProcessingTimeout = getEnvDuration("EVENT_PROCESSING_TIMEOUT", 5*time.Minute)
	cfg.SlackTimestampMaxAge = getEnvDuration("SLACK_TIMESTAMP_MAX_AGE", 5*time.Minute)
	cfg.SessionMaxAge = getEnvDuration("SESSION_MAX_AGE", 30*24*time.Hour)

	cfg.validate()

	return cfg
}

// validate checks that all required configuration is present and valid.
// Panics if any validation fails.
func (c *Config) validate() {
	required := map[string]string{
		"SLACK_CLIENT_ID":       c.SlackClientID,
		"SLACK_CLIENT_SECRET":   c.SlackClientSecret,
		"SLACK_SIGNING_SECRET":  c.SlackSigningSecret,
		"SESSION_SECRET":        c.SessionSecret,
		"BASE_URL":              c.BaseURL,
		"FIRESTORE_PROJECT_ID":  c.FirestoreProjectID,
		"FIRESTORE_DATABASE_ID": c.FirestoreDatabaseID,
		"GOOGLE_CLOUD_PROJECT":  c.GoogleCloudProject,
		"CLOUD_TASKS_SECRET":    c.CloudTasksSecret,
		"EVENT_WORKER_URL":      c.EventWorkerURL,
	}

	for name, value := range required {
		if value == "" {
			panic(fmt.Sprintf("required environment variable %s is not set", name))
		}
	}

	if c.GinMode != "debug" && c.GinMode != "release" && c.GinMode != "test" {
		panic(fmt.Sprintf("invalid GIN_MODE: %s (must be debug, release, or test)", c.GinMode))
	}

	if c.LogLevel != "debug" && c.LogLevel != "info" && c.LogLevel != "warn" && c.LogLevel != "error" {
		panic(fmt.Sprintf("invalid LOG_LEVEL: %s (must be debug, info, warn, or error)", c.LogLevel))
	}

	durations := map[string]time.Duration{
		"SERVER_READ_TIMEOUT":      c.ServerReadTimeout,
		"SERVER_WRITE_TIMEOUT":     c.ServerWriteTimeout,
		"SERVER_SHUTDOWN_TIMEOUT":  c.ServerShutdownTimeout,
		"EVENT_PROCESSING_TIMEOUT": c.EventProcessingTimeout,
		"SLACK_TIMESTAMP_MAX_AGE":  c.SlackTimestampMaxAge,
		"SESSION_MAX_AGE":          c.SessionMaxAge,
	}
	for name, value := range durations {
		if value <= 0 {
			panic(fmt.Sprintf("%s must be positive", name))
		}
	}
}

// getEnvRequired gets an environment variable or returns empty string if not set.
// The validate() function will panic if required values are missing.
func getEnvRequired(key string) string {
	return os.Getenv(key)
}

// getEnvDefault gets an environment variable with a default value.
func getEnvDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration gets a duration environment variable with a default value.
// Panics if the value cannot be parsed as a duration.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		panic(fmt.Sprintf("invalid duration value for %s: %s", key, value))
	}
	return d
}
