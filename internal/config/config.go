package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application
type Config struct {
	// Database configuration (api service)
	Database DatabaseConfig

	// Redis configuration (dashboard cache store)
	Redis RedisConfig

	// API server configuration (account & registry service)
	API APIConfig

	// Dashboard gateway configuration
	Dashboard DashboardConfig

	// Market-data provider configuration
	Provider ProviderConfig

	// Session token configuration
	Auth AuthConfig

	// Logging configuration
	Log LogConfig
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string        `envconfig:"DB_HOST" default:"localhost"`
	Port            int           `envconfig:"DB_PORT" default:"5432"`
	User            string        `envconfig:"DB_USER" default:"hodlsync"`
	Password        string        `envconfig:"DB_PASSWORD" default:"hodlsync"`
	Name            string        `envconfig:"DB_NAME" default:"hodlsync"`
	SSLMode         string        `envconfig:"DB_SSL_MODE" default:"disable"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// APIConfig holds account & registry server settings
type APIConfig struct {
	Host            string        `envconfig:"API_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"API_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"API_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"API_WRITE_TIMEOUT" default:"10s"`
	ShutdownTimeout time.Duration `envconfig:"API_SHUTDOWN_TIMEOUT" default:"30s"`
	RateLimitRPS    int           `envconfig:"API_RATE_LIMIT_RPS" default:"100"`
}

// DashboardConfig holds dashboard gateway settings
type DashboardConfig struct {
	Host            string        `envconfig:"DASHBOARD_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"DASHBOARD_PORT" default:"8081"`
	ReadTimeout     time.Duration `envconfig:"DASHBOARD_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"DASHBOARD_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"DASHBOARD_SHUTDOWN_TIMEOUT" default:"30s"`
	RateLimitRPS    int           `envconfig:"DASHBOARD_RATE_LIMIT_RPS" default:"50"`

	// RegistryURL is the base URL of the account & registry service
	RegistryURL string `envconfig:"DASHBOARD_REGISTRY_URL" default:"http://localhost:8080"`

	// CacheTTL is the freshness window for per-address token data and the
	// aggregate net worth figure
	CacheTTL time.Duration `envconfig:"DASHBOARD_CACHE_TTL" default:"15m"`
}

// ProviderConfig holds market-data provider settings
type ProviderConfig struct {
	BaseURL        string        `envconfig:"PROVIDER_BASE_URL" default:"https://deep-index.moralis.io/api/v2.2"`
	APIKey         string        `envconfig:"PROVIDER_API_KEY" default:""`
	Chain          string        `envconfig:"PROVIDER_CHAIN" default:"eth"`
	RequestTimeout time.Duration `envconfig:"PROVIDER_REQUEST_TIMEOUT" default:"20s"`
}

// AuthConfig holds session token settings
type AuthConfig struct {
	JWTSecret    string        `envconfig:"JWT_SECRET" default:"change-me"`
	TokenExpiry  time.Duration `envconfig:"JWT_TOKEN_EXPIRY" default:"24h"`
	CookieName   string        `envconfig:"AUTH_COOKIE_NAME" default:"uid"`
	CookieSecure bool          `envconfig:"AUTH_COOKIE_SECURE" default:"false"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}
