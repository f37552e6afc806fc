// Package config validates and exposes process environment configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds validated environment configuration for the room server.
type Config struct {
	Host string
	Port string

	// AllowedOrigins is the raw comma-separated ALLOWED_ORIGINS value; the
	// transport layer parses it into exact/prefix/wildcard matchers.
	AllowedOrigins string

	GoEnv    string
	LogLevel string

	// RedisAddr backs the optional persistence adapter and the
	// distributed rate limiter store. Empty means single-instance mode.
	RedisAddr     string
	RedisPassword string
	RedisEnabled  bool

	// FirebaseServiceAccountJSON gates the persistence adapter; its
	// presence is the documented on/off switch even though this
	// implementation backs the adapter with Redis rather than Firestore.
	FirebaseServiceAccountJSON string

	OTELCollectorAddr string

	// Rate limits, "<requests>-<period>" as accepted by ulule/limiter.
	RateLimitAPIGlobal   string
	RateLimitAPIRooms    string
	RateLimitAPIMessages string
	RateLimitWSConnectIP string
	RateLimitWSMessages  string
}

// ValidateEnv validates required environment variables and returns a Config.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var problems []string

	cfg.Host = getEnvOrDefault("HOST", "0.0.0.0")

	cfg.Port = getEnvOrDefault("PORT", "3001")
	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got %q)", cfg.Port))
	}

	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")

	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RedisEnabled = cfg.RedisAddr != ""
	if cfg.RedisEnabled && !isValidHostPort(cfg.RedisAddr) {
		problems = append(problems, fmt.Sprintf("REDIS_ADDR must be in format 'host:port' (got %q)", cfg.RedisAddr))
	}

	cfg.FirebaseServiceAccountJSON = os.Getenv("FIREBASE_SERVICE_ACCOUNT_JSON")
	cfg.OTELCollectorAddr = os.Getenv("OTEL_COLLECTOR_ADDR")

	cfg.RateLimitAPIGlobal = getEnvOrDefault("RATE_LIMIT_API_GLOBAL", "1000-M")
	cfg.RateLimitAPIRooms = getEnvOrDefault("RATE_LIMIT_API_ROOMS", "100-M")
	cfg.RateLimitAPIMessages = getEnvOrDefault("RATE_LIMIT_API_MESSAGES", "500-M")
	cfg.RateLimitWSConnectIP = getEnvOrDefault("RATE_LIMIT_WS_IP", "100-M")
	cfg.RateLimitWSMessages = getEnvOrDefault("RATE_LIMIT_WS_MESSAGES", "600-M")

	if len(problems) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}

	logValidatedConfig(cfg)
	return cfg, nil
}

// isValidHostPort checks if a string is in the format "host:port".
func isValidHostPort(addr string) bool {
	parts := strings.Split(addr, ":")
	if len(parts) != 2 {
		return false
	}
	port, err := strconv.Atoi(parts[1])
	if err != nil || port < 1 || port > 65535 {
		return false
	}
	return parts[0] != ""
}

func logValidatedConfig(cfg *Config) {
	slog.Info("environment configuration validated",
		"host", cfg.Host,
		"port", cfg.Port,
		"go_env", cfg.GoEnv,
		"log_level", cfg.LogLevel,
		"redis_enabled", cfg.RedisEnabled,
		"persistence_enabled", cfg.FirebaseServiceAccountJSON != "" && cfg.RedisEnabled,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}
