package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	domainconfig "stackit/domain/config"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string
	StubAddress   string

	// Authority configuration
	AuthorityBaseURL  string
	AuthorityTimeout  time.Duration
	ReconcileInterval time.Duration

	// Sessions
	SessionTTL time.Duration

	// AWS configuration
	AWSRegion      string
	EventBusName   string
	RateLimitTable string

	// Logging
	LogLevel string

	// Authentication
	JWTSecret string

	// HTTP
	CORSAllowedOrigins []string
	RateLimitPerMinute int

	// Feature flags
	EnableMetrics bool
	EnableTracing bool
}

// LoadConfig loads configuration from environment variables. A .env file in
// the working directory, or the one named by ENV_FILE, is read first; values
// already in the environment win.
func LoadConfig() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		StubAddress:   getEnv("STUB_ADDRESS", ":8090"),

		AuthorityBaseURL:  getEnv("AUTHORITY_BASE_URL", getEnv("VITE_API_ENDPOINT", "http://localhost:8090")),
		AuthorityTimeout:  time.Duration(getEnvInt("AUTHORITY_TIMEOUT_MS", 15000)) * time.Millisecond,
		ReconcileInterval: time.Duration(getEnvInt("RECONCILE_INTERVAL_SECONDS", 0)) * time.Second,

		SessionTTL: time.Duration(getEnvInt("SESSION_TTL_MINUTES", 30)) * time.Minute,

		AWSRegion:      getEnv("AWS_REGION", "us-west-2"),
		EventBusName:   getEnv("EVENT_BUS_NAME", ""),
		RateLimitTable: getEnv("RATE_LIMIT_TABLE", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		EnableMetrics: getEnvBool("ENABLE_METRICS", true),
		EnableTracing: getEnvBool("ENABLE_TRACING", false),
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load is an alias for LoadConfig
func Load() (*Config, error) {
	return LoadConfig()
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	u, err := url.Parse(c.AuthorityBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("AUTHORITY_BASE_URL must be an absolute URL, got %q", c.AuthorityBaseURL)
	}
	if c.AuthorityTimeout <= 0 {
		return errors.New("AUTHORITY_TIMEOUT_MS must be positive")
	}
	if c.ReconcileInterval < 0 {
		return errors.New("RECONCILE_INTERVAL_SECONDS cannot be negative")
	}
	if c.RateLimitPerMinute <= 0 {
		return errors.New("RATE_LIMIT_PER_MINUTE must be positive")
	}

	if c.IsProduction() {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
	}

	return nil
}

// Domain returns the board rules derived from this configuration
func (c *Config) Domain() *domainconfig.DomainConfig {
	cfg := domainconfig.DefaultDomainConfig()
	cfg.ConfirmTimeout = c.AuthorityTimeout
	cfg.LoadTimeout = c.AuthorityTimeout
	return cfg
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func loadEnvFile() error {
	path := getEnv("ENV_FILE", ".env")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && os.Getenv("ENV_FILE") == "" {
			return nil
		}
		return fmt.Errorf("env file %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
