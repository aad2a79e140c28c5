// Package config provides configuration management for the portfolio risk service.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Chains     ChainsConfig
	MarketData MarketDataConfig
	Alerts     AlertsConfig
	Risk       RiskConfig
	Logging    LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RequestsPerSec  float64
}

// DatabaseConfig holds database configuration. Every store is optional.
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Enabled        bool
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// DSN returns the connection string used by pgx and golang-migrate
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled        bool
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// ChainsConfig holds per-chain RPC endpoints for balance lookups
type ChainsConfig struct {
	Chains map[string]ChainConfig
}

// ChainConfig holds configuration for a specific chain
type ChainConfig struct {
	RPCPrimary   string
	RPCSecondary string
}

// MarketDataConfig holds price provider configuration
type MarketDataConfig struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	RequestsPerSec float64
	CacheTTL       time.Duration
}

// AlertsConfig holds price alert monitor configuration
type AlertsConfig struct {
	PollInterval time.Duration
	FetchTimeout time.Duration
}

// RiskConfig holds risk analysis defaults
type RiskConfig struct {
	DefaultConfidence float64
	HistoryLimit      int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			RequestsPerSec:  getEnvAsFloat("SERVER_REQUESTS_PER_SEC", 20),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Enabled:        getEnvAsBool("POSTGRES_ENABLED", false),
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "portfolio_risk"),
				User:           getEnv("POSTGRES_USER", "risk"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 20),
			},
			ClickHouse: ClickHouseConfig{
				Enabled:  getEnvAsBool("CLICKHOUSE_ENABLED", false),
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "portfolio_risk"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Enabled:        getEnvAsBool("REDIS_ENABLED", false),
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
		},
		MarketData: MarketDataConfig{
			BaseURL:        getEnv("COINGECKO_BASE_URL", "https://api.coingecko.com/api/v3"),
			APIKey:         getEnv("COINGECKO_API_KEY", ""),
			Timeout:        getEnvAsDuration("COINGECKO_TIMEOUT", 10*time.Second),
			RequestsPerSec: getEnvAsFloat("COINGECKO_REQUESTS_PER_SEC", 0.5),
			CacheTTL:       getEnvAsDuration("PRICE_CACHE_TTL", 60*time.Second),
		},
		Alerts: AlertsConfig{
			PollInterval: getEnvAsDuration("ALERT_POLL_INTERVAL", 30*time.Second),
			FetchTimeout: getEnvAsDuration("ALERT_FETCH_TIMEOUT", 10*time.Second),
		},
		Risk: RiskConfig{
			DefaultConfidence: getEnvAsFloat("RISK_DEFAULT_CONFIDENCE", 0.95),
			HistoryLimit:      getEnvAsInt("RISK_HISTORY_LIMIT", 50),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	config.Chains = loadChainConfigs()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects configurations the service cannot run with
func (c *Config) Validate() error {
	if c.Alerts.PollInterval <= 0 {
		return fmt.Errorf("ALERT_POLL_INTERVAL must be positive, got %s", c.Alerts.PollInterval)
	}
	if c.Alerts.FetchTimeout <= 0 {
		return fmt.Errorf("ALERT_FETCH_TIMEOUT must be positive, got %s", c.Alerts.FetchTimeout)
	}
	if c.Risk.DefaultConfidence <= 0 || c.Risk.DefaultConfidence >= 1 {
		return fmt.Errorf("RISK_DEFAULT_CONFIDENCE must be in (0,1), got %v", c.Risk.DefaultConfidence)
	}
	if c.MarketData.Timeout <= 0 {
		return fmt.Errorf("COINGECKO_TIMEOUT must be positive, got %s", c.MarketData.Timeout)
	}
	if c.MarketData.RequestsPerSec <= 0 {
		return fmt.Errorf("COINGECKO_REQUESTS_PER_SEC must be positive, got %v", c.MarketData.RequestsPerSec)
	}
	return nil
}

// loadChainConfigs loads RPC endpoints for the EVM chains
func loadChainConfigs() ChainsConfig {
	defaults := map[string]string{
		"ethereum": "https://ethereum-rpc.publicnode.com",
		"polygon":  "https://polygon-bor-rpc.publicnode.com",
		"bsc":      "https://bsc-rpc.publicnode.com",
	}

	chains := make(map[string]ChainConfig, len(defaults))
	for chain, primary := range defaults {
		prefix := strings.ToUpper(chain)
		chains[chain] = ChainConfig{
			RPCPrimary:   getEnv(prefix+"_RPC_PRIMARY", primary),
			RPCSecondary: getEnv(prefix+"_RPC_SECONDARY", ""),
		}
	}

	return ChainsConfig{Chains: chains}
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a bool with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
