package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Session SessionConfig
	Backend BackendConfig
	Pricing PricingConfig
}

type ServerConfig struct {
	Port string
	Host string
	Env  string
}

type SessionConfig struct {
	Secret string
	MaxAge int // seconds
}

type BackendConfig struct {
	BaseURL      string
	Timeout      time.Duration
	RetryBackoff time.Duration
}

type PricingConfig struct {
	FeeRate          float64 // applied to subtotal
	TaxRate          float64 // applied to subtotal + fees
	DebounceInterval time.Duration
}

func Load() (*Config, error) {
	// Load .env files if they exist (try .env.local first, then .env)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", "localhost"),
			Env:  getEnv("ENV", "development"),
		},
		Session: SessionConfig{
			Secret: getEnv("SESSION_SECRET", "your-secret-key-change-in-production"),
			MaxAge: getEnvAsInt("SESSION_MAX_AGE", 86400*30),
		},
		Backend: BackendConfig{
			BaseURL:      getEnv("BOOKING_API_URL", "http://localhost:9000/api/v1"),
			Timeout:      getEnvAsDuration("BOOKING_API_TIMEOUT", 30*time.Second),
			RetryBackoff: getEnvAsDuration("BOOKING_API_RETRY_BACKOFF", time.Second),
		},
		Pricing: PricingConfig{
			FeeRate:          getEnvAsFloat("PRICING_FEE_RATE", 0.03),
			TaxRate:          getEnvAsFloat("PRICING_TAX_RATE", 0.09),
			DebounceInterval: getEnvAsDuration("PRICING_DEBOUNCE", 500*time.Millisecond),
		},
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
