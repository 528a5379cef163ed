// Package config loads engine configuration from an optional config.json,
// with environment variables taking precedence. A .env file is honored when
// present.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerConfig     ServerConfig     `json:"server"`
	BridgeConfig     BridgeConfig     `json:"bridge"`
	RedisConfig      RedisConfig      `json:"redis"`
	DatabaseConfig   DatabaseConfig   `json:"database"`
	EngineConfig     EngineConfig     `json:"engine"`
	LoggingConfig    LoggingConfig    `json:"logging"`
	EnrichmentConfig EnrichmentConfig `json:"enrichment"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	AllowedOrigins string `json:"allowed_origins"`
	RateLimitRPM   int    `json:"rate_limit_rpm"` // requests per client per minute
}

// BridgeConfig points at the MT5 HTTP bridge. An empty URL disables the live
// feed and the engine runs on synthetic data.
type BridgeConfig struct {
	BaseURL string `json:"base_url"`
}

// RedisConfig holds the candle-cache settings.
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// DatabaseConfig holds the signal-store settings.
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// EngineConfig tunes the scoring pipeline.
type EngineConfig struct {
	WeightSmartMoney  float64 `json:"weight_smart_money"`
	WeightPriceAction float64 `json:"weight_price_action"`
	WeightVolume      float64 `json:"weight_volume"`
	WeightNeural      float64 `json:"weight_neural"`
	WeightNews        float64 `json:"weight_news"`
	SwingLookback     int     `json:"swing_lookback"`
}

type LoggingConfig struct {
	Level   string `json:"level"`   // debug, info, warn, error
	Console bool   `json:"console"` // human-readable output instead of JSON
}

// EnrichmentConfig points at the optional external enrichment binary.
type EnrichmentConfig struct {
	Binary string `json:"binary"`
}

// Load reads config.json when present, then applies environment overrides.
func Load() (*Config, error) {
	// Missing .env is not an error; the environment may be set directly.
	_ = godotenv.Load()

	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = &Config{}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides. Environment
// values take precedence over the file.
func applyEnvOverrides(cfg *Config) {
	cfg.ServerConfig.Host = getEnvOrDefault("SERVER_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.Port = getEnvIntOrDefault("SERVER_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", cfg.ServerConfig.AllowedOrigins)
	cfg.ServerConfig.RateLimitRPM = getEnvIntOrDefault("SERVER_RATE_LIMIT_RPM", cfg.ServerConfig.RateLimitRPM)

	cfg.BridgeConfig.BaseURL = getEnvOrDefault("MT5_BRIDGE_URL", cfg.BridgeConfig.BaseURL)

	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		cfg.RedisConfig.Enabled = v == "true"
	}
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)

	if v := os.Getenv("DATABASE_ENABLED"); v != "" {
		cfg.DatabaseConfig.Enabled = v == "true"
	}
	cfg.DatabaseConfig.Host = getEnvOrDefault("DATABASE_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DATABASE_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DATABASE_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DATABASE_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DATABASE_NAME", cfg.DatabaseConfig.Database)
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DATABASE_SSLMODE", cfg.DatabaseConfig.SSLMode)

	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	if v := os.Getenv("LOG_CONSOLE"); v != "" {
		cfg.LoggingConfig.Console = v == "true"
	}

	cfg.EnrichmentConfig.Binary = getEnvOrDefault("ENRICHMENT_BINARY", cfg.EnrichmentConfig.Binary)

	cfg.EngineConfig.SwingLookback = getEnvIntOrDefault("ENGINE_SWING_LOOKBACK", cfg.EngineConfig.SwingLookback)
}

func applyDefaults(cfg *Config) {
	if cfg.ServerConfig.Host == "" {
		cfg.ServerConfig.Host = "0.0.0.0"
	}
	if cfg.ServerConfig.Port == 0 {
		cfg.ServerConfig.Port = 8080
	}
	if cfg.ServerConfig.AllowedOrigins == "" {
		cfg.ServerConfig.AllowedOrigins = "*"
	}
	if cfg.ServerConfig.RateLimitRPM == 0 {
		cfg.ServerConfig.RateLimitRPM = 60
	}
	if cfg.RedisConfig.Address == "" {
		cfg.RedisConfig.Address = "localhost:6379"
	}
	if cfg.DatabaseConfig.Port == 0 {
		cfg.DatabaseConfig.Port = 5432
	}
	if cfg.DatabaseConfig.SSLMode == "" {
		cfg.DatabaseConfig.SSLMode = "disable"
	}
	if cfg.LoggingConfig.Level == "" {
		cfg.LoggingConfig.Level = "info"
	}
	if cfg.EngineConfig.WeightSmartMoney == 0 && cfg.EngineConfig.WeightPriceAction == 0 &&
		cfg.EngineConfig.WeightVolume == 0 && cfg.EngineConfig.WeightNeural == 0 &&
		cfg.EngineConfig.WeightNews == 0 {
		cfg.EngineConfig.WeightSmartMoney = 0.30
		cfg.EngineConfig.WeightPriceAction = 0.25
		cfg.EngineConfig.WeightVolume = 0.20
		cfg.EngineConfig.WeightNeural = 0.15
		cfg.EngineConfig.WeightNews = 0.10
	}
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvIntOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
