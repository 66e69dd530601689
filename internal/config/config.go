package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr     string
	LogLevel string

	Provider              string
	AnthropicAPIKey       string
	AnthropicBaseURL      string
	AnthropicAPIKeySecret string
	AWSRegion             string

	RedisURL     string
	OTLPEndpoint string

	SpendBudgetUSD float64

	HeartbeatInterval time.Duration
	ShutdownTimeout   time.Duration
}

func Load() (*Config, error) {
	// Local development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg := &Config{
		Addr:                  getEnv("ADDR", ":8080"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		Provider:              getEnv("PROVIDER", "anthropic"),
		AnthropicAPIKey:       getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicBaseURL:      getEnv("ANTHROPIC_BASE_URL", ""),
		AnthropicAPIKeySecret: getEnv("ANTHROPIC_API_KEY_SECRET", ""),
		AWSRegion:             getEnv("AWS_REGION", ""),
		RedisURL:              getEnv("REDIS_URL", ""),
		OTLPEndpoint:          getEnv("OTLP_ENDPOINT", ""),
		SpendBudgetUSD:        getFloatEnv("SPEND_BUDGET_USD", 0),
		HeartbeatInterval:     getDurationEnv("HEARTBEAT_INTERVAL", 15*time.Second),
		ShutdownTimeout:       getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
