package config

import (
	"os"
)

// Config holds all server configuration, loaded from the environment.
type Config struct {
	Port        string
	Environment string
	DatabaseURL string
	AuthJWKSURL string
	CORSOrigins string
	TablePrefix string
	LogDir      string // empty disables file logging
}

// Load reads configuration from the environment
func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: env,
		DatabaseURL: getEnv("DATABASE_URL", ""),
		AuthJWKSURL: getEnv("AUTH_JWKS_URL", ""),
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000"),
		TablePrefix: getTablePrefix(env),
		LogDir:      getEnv("LOG_DIR", ""),
	}
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
