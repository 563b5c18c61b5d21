package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Jobs     JobsConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port           string
	Env            string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string

	// ShutdownTimeout bounds graceful shutdown, including the job queue drain.
	ShutdownTimeout time.Duration
	// Timezone is the IANA zone occasion start dates and times are read in.
	Timezone string
	// HeartbeatInterval is how often live clients receive a heartbeat.
	HeartbeatInterval time.Duration

	RateLimitPerMinute int
	RateLimitBurst     int
}

// Location resolves Timezone, defaulting to UTC
func (s ServerConfig) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(s.Timezone)
}

// DatabaseConfig holds SurrealDB connection settings
type DatabaseConfig struct {
	Host      string
	Port      string
	Namespace string
	Database  string
	User      string
	Password  string
}

// JobsConfig holds background job queue and scheduler settings
type JobsConfig struct {
	// FailureLogPath is the JSON file permanently failed jobs are written to.
	FailureLogPath string
	// RetryDelay is the flat delay before a failed job is re-added.
	RetryDelay time.Duration
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	StartInterval time.Duration
	EndInterval   time.Duration
	StartPriority int
	EndPriority   int
}

// Load reads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			Env:            getEnv("SERVER_ENV", "development"),
			ReadTimeout:    getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getDurationEnv("SERVER_WRITE_TIMEOUT", 15*time.Second),
			AllowedOrigins: getSliceEnv("CORS_ALLOWED_ORIGINS", []string{"*"}),

			ShutdownTimeout:   getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			Timezone:          getEnv("OCCASIONS_TIMEZONE", "UTC"),
			HeartbeatInterval: getDurationEnv("LIVE_HEARTBEAT_INTERVAL", 30*time.Second),

			RateLimitPerMinute: getIntEnv("RATE_LIMIT_PER_MINUTE", 30),
			RateLimitBurst:     getIntEnv("RATE_LIMIT_BURST", 10),
		},
		Database: DatabaseConfig{
			Host:      getEnv("DB_HOST", "localhost"),
			Port:      getEnv("DB_PORT", "8000"),
			Namespace: getEnv("DB_NAMESPACE", "occasions"),
			Database:  getEnv("DB_DATABASE", "main"),
			User:      getEnv("DB_USER", "root"),
			Password:  getEnv("DB_PASSWORD", "root"),
		},
		Jobs: JobsConfig{
			FailureLogPath: getEnv("JOBS_FAILURE_LOG", "./data/failed_jobs.json"),
			RetryDelay:     getDurationEnv("JOBS_RETRY_DELAY", 30*time.Second),
			MaxRetries:     getIntEnv("JOBS_MAX_RETRIES", 3),
			StartInterval:  getDurationEnv("JOBS_START_INTERVAL", 5*time.Minute),
			EndInterval:    getDurationEnv("JOBS_END_INTERVAL", 10*time.Minute),
			StartPriority:  getIntEnv("JOBS_START_PRIORITY", 1),
			EndPriority:    getIntEnv("JOBS_END_PRIORITY", 0),
		},
	}, nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and valid.
// It returns an error describing all validation failures, or nil if valid.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("SERVER_PORT is required"))
	}
	if c.Server.Env != "development" && c.Server.Env != "production" && c.Server.Env != "test" {
		errs = append(errs, fmt.Errorf("SERVER_ENV must be 'development', 'production', or 'test', got '%s'", c.Server.Env))
	}
	if len(c.Server.AllowedOrigins) == 0 {
		errs = append(errs, errors.New("CORS_ALLOWED_ORIGINS must have at least one origin"))
	}
	if _, err := c.Server.Location(); err != nil {
		errs = append(errs, fmt.Errorf("OCCASIONS_TIMEZONE is invalid: %w", err))
	}

	if c.Database.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.Database.Port == "" {
		errs = append(errs, errors.New("DB_PORT is required"))
	}
	if c.Database.Namespace == "" {
		errs = append(errs, errors.New("DB_NAMESPACE is required"))
	}
	if c.Database.Database == "" {
		errs = append(errs, errors.New("DB_DATABASE is required"))
	}

	if err := c.Jobs.Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the job queue and scheduler settings
func (j JobsConfig) Validate() error {
	var problems []string
	if j.FailureLogPath == "" {
		problems = append(problems, "JOBS_FAILURE_LOG is required")
	}
	if j.RetryDelay <= 0 {
		problems = append(problems, "JOBS_RETRY_DELAY must be positive")
	}
	if j.MaxRetries < 1 {
		problems = append(problems, "JOBS_MAX_RETRIES must be at least 1")
	}
	if j.StartInterval <= 0 {
		problems = append(problems, "JOBS_START_INTERVAL must be positive")
	}
	if j.EndInterval <= 0 {
		problems = append(problems, "JOBS_END_INTERVAL must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("jobs: %s", strings.Join(problems, ", "))
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

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
