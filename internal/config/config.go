// Package config loads engine configuration from file and environment.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the arbitrage engine
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Model      ModelConfig      `mapstructure:"model"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Scanner    ScannerConfig    `mapstructure:"scanner"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// EngineConfig defines the supported token and chain universe.
type EngineConfig struct {
	SupportedTokens []string `mapstructure:"supported_tokens"`
	SupportedChains []string `mapstructure:"supported_chains"`
}

// ModelConfig locates the model artifacts and controls training.
type ModelConfig struct {
	ModelPath        string  `mapstructure:"model_path"`
	SchemaPath       string  `mapstructure:"schema_path"`
	MinSamples       int     `mapstructure:"min_samples"`
	TestFraction     float64 `mapstructure:"test_fraction"`
	SyntheticSamples int     `mapstructure:"synthetic_samples"`
}

// FetchConfig contains market data source configuration
type FetchConfig struct {
	PriceAPIURL    string        `mapstructure:"price_api_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	EthereumRPCURL string        `mapstructure:"ethereum_rpc_url"`
	PolygonGasURL  string        `mapstructure:"polygon_gas_url"`
	BscGasURL      string        `mapstructure:"bsc_gas_url"`
}

// ScannerConfig controls the periodic market scan.
type ScannerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Interval     time.Duration `mapstructure:"interval"`
	MinNetProfit float64       `mapstructure:"min_net_profit"`
}

// DatabaseConfig contains storage configuration
type DatabaseConfig struct {
	PostgresURL  string        `mapstructure:"postgres_url"`
	RedisURL     string        `mapstructure:"redis_url"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
}

// MonitoringConfig contains monitoring and alerting configuration
type MonitoringConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	MetricsPort     int     `mapstructure:"metrics_port"`
	AlertThreshold  float64 `mapstructure:"alert_threshold"`
	AlertWebhookURL string  `mapstructure:"alert_webhook_url"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	// .env is optional; real deployments set variables directly
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	// Engine defaults
	viper.SetDefault("engine.supported_tokens", []string{"ETH", "USDT", "USDC", "BNB", "MATIC"})
	viper.SetDefault("engine.supported_chains", []string{"ethereum", "polygon", "bsc"})

	// Model defaults
	viper.SetDefault("model.model_path", "models/arbitrage_model.json")
	viper.SetDefault("model.schema_path", "models/arbitrage_model_features.txt")
	viper.SetDefault("model.min_samples", 10)
	viper.SetDefault("model.test_fraction", 0.2)
	viper.SetDefault("model.synthetic_samples", 500)

	// Fetch defaults
	viper.SetDefault("fetch.price_api_url", "https://api.coingecko.com/api/v3")
	viper.SetDefault("fetch.request_timeout", "10s")
	viper.SetDefault("fetch.ethereum_rpc_url", "https://eth.llamarpc.com")
	viper.SetDefault("fetch.polygon_gas_url", "https://gasstation.polygon.technology/v2")
	viper.SetDefault("fetch.bsc_gas_url", "https://bscgas.info/gas")

	// Scanner defaults
	viper.SetDefault("scanner.enabled", true)
	viper.SetDefault("scanner.interval", "30s")
	viper.SetDefault("scanner.min_net_profit", 0.0)

	// Database defaults
	viper.SetDefault("database.postgres_url", "postgres://localhost:5432/arbengine")
	viper.SetDefault("database.redis_url", "redis://localhost:6379")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.cache_ttl", "60s")

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.metrics_port", 9090)
	viper.SetDefault("monitoring.alert_threshold", 0.8)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.pretty", false)
}
