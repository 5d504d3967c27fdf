package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the order ingestion service
type Config struct {
	// Server
	Port        string
	Environment string
	LogLevel    string

	// Database
	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string

	// GCP
	GCPProjectID         string
	AmazonSecretName     string
	DBPasswordSecretName string

	// Amazon SP-API
	Amazon AmazonConfig

	// Import
	ShipperTag            string
	ImportFallbackDialect string
	MaxUploadSize         int64

	// Infrastructure
	RedisURL string
	NATSURL  string

	// CORS
	CORSAllowedOrigins []string
}

// AmazonConfig holds the SP-API client settings
type AmazonConfig struct {
	ClientID          string
	ClientSecret      string
	RefreshToken      string
	MarketplaceID     string
	Region            string
	Endpoint          string
	TokenEndpoint     string
	PageSize          int
	PageDelay         time.Duration
	ItemDelay         time.Duration
	BackoffBase       time.Duration
	MaxAttempts       int
	RequestsPerSecond float64
	HTTPTimeout       time.Duration
}

// Configured reports whether any credential is present. A partially configured
// client still gets built so that it reports what is missing.
func (a AmazonConfig) Configured() bool {
	return a.ClientID != "" || a.ClientSecret != "" || a.RefreshToken != ""
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8099"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBUser:      getEnv("DB_USER", "postgres"),
		DBPassword:  getEnv("DB_PASSWORD", ""),
		DBName:      getEnv("DB_NAME", "order_ingestion"),
		DBSSLMode:   getEnv("DB_SSLMODE", "disable"),

		GCPProjectID:         getEnv("GCP_PROJECT_ID", ""),
		AmazonSecretName:     getEnv("AMAZON_SECRET_NAME", ""),
		DBPasswordSecretName: getEnv("DB_PASSWORD_SECRET_NAME", ""),

		Amazon: AmazonConfig{
			ClientID:          getEnv("AMAZON_CLIENT_ID", ""),
			ClientSecret:      getEnv("AMAZON_CLIENT_SECRET", ""),
			RefreshToken:      getEnv("AMAZON_REFRESH_TOKEN", ""),
			MarketplaceID:     getEnv("AMAZON_MARKETPLACE_ID", "A1PA6795UKMFR9"),
			Region:            getEnv("AMAZON_REGION", "eu"),
			Endpoint:          getEnv("AMAZON_ENDPOINT", ""),
			TokenEndpoint:     getEnv("AMAZON_TOKEN_ENDPOINT", ""),
			PageSize:          getEnvAsInt("AMAZON_PAGE_SIZE", 100),
			PageDelay:         getEnvAsDuration("PAGE_DELAY", 2*time.Second),
			ItemDelay:         getEnvAsDuration("ITEM_DELAY", 500*time.Millisecond),
			BackoffBase:       getEnvAsDuration("BACKOFF_BASE", 2*time.Second),
			MaxAttempts:       getEnvAsInt("MAX_ATTEMPTS", 5),
			RequestsPerSecond: getEnvAsFloat("AMAZON_REQUESTS_PER_SECOND", 0),
			HTTPTimeout:       getEnvAsDuration("AMAZON_HTTP_TIMEOUT", 30*time.Second),
		},

		ShipperTag:            getEnv("SHIPPER_TAG", "Lager"),
		ImportFallbackDialect: getEnv("IMPORT_FALLBACK_DIALECT", ""),
		MaxUploadSize:         int64(getEnvAsInt("MAX_UPLOAD_SIZE_MB", 32)) << 20,

		RedisURL: getEnv("REDIS_URL", ""),
		NATSURL:  getEnv("NATS_URL", ""),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:3001",
		}),
	}
}

// DatabaseDSN returns DATABASE_URL when set, otherwise a URL built from the DB_* parts
func (c *Config) DatabaseDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%s", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
