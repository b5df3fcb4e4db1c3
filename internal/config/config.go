package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the server runtime settings.
type Config struct {
	ListenAddr     string
	AllowedOrigins []string
	TrustProxy     bool

	Database DatabaseConfig
	JWT      JWTConfig

	CallCapacity int
	StunURLs     []string
}

// DatabaseConfig captures storage configuration.
type DatabaseConfig struct {
	Path string
}

// JWTConfig defines token issuance parameters.
type JWTConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

// Load builds the configuration from environment variables with defaults.
func Load() Config {
	return Config{
		ListenAddr:     envOrDefault("LISTEN_ADDR", ":3001"),
		AllowedOrigins: envList("ALLOWED_ORIGINS"),
		TrustProxy:     os.Getenv("TRUST_PROXY") == "true",
		Database: DatabaseConfig{
			Path: envOrDefault("DB_PATH", "messagechat.db"),
		},
		JWT: JWTConfig{
			Secret:     envOrDefault("JWT_SECRET", "SECRET"),
			Issuer:     envOrDefault("JWT_ISSUER", "message-chat"),
			Expiration: envDuration("JWT_EXPIRATION", 24*time.Hour),
		},
		CallCapacity: envIntBounded("CALL_CAPACITY", 4, 2, 16),
		StunURLs:     envListDefault("STUN_URLS", []string{"stun:stun.l.google.com:19302"}),
	}
}

func envOrDefault(key, value string) string {
	if env, ok := os.LookupEnv(key); ok && env != "" {
		return env
	}
	return value
}

func envDuration(key string, def time.Duration) time.Duration {
	if env, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(env); err == nil {
			return parsed
		}
	}
	return def
}

func envInt(key string, def int) int {
	if env, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(env); err == nil {
			return parsed
		}
	}
	return def
}

func envIntBounded(key string, def, minVal, maxVal int) int {
	n := envInt(key, def)
	if n < minVal {
		return minVal
	}
	if n > maxVal {
		return maxVal
	}
	return n
}

func envList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envListDefault(key string, def []string) []string {
	if out := envList(key); out != nil {
		return out
	}
	return def
}
