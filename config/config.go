package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	RegistryMemory = "memory"
	RegistryRedis  = "redis"
)

// Config holds all configuration for the server.
type Config struct {
	Port           string
	Env            string
	AllowedOrigins []string
	JWTSecret      []byte

	RegistryBackend string
	RedisEndpoint   string
	RedisTLS        bool

	// Per-connection inbound limiter; zero disables it
	WSMessagesPerSecond float64
	WSBurst             int
	WSMaxMessageBytes   int64
}

// Load reads configuration from environment variables, picking up a .env
// file if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("ENV", "development"),
		RegistryBackend: getEnv("REGISTRY_BACKEND", RegistryMemory),
		RedisEndpoint:   getEnv("REDIS_ENDPOINT", "localhost:6379"),
		RedisTLS:        getEnv("REDIS_TLS", "false") == "true",
	}

	// Comma-separated list; empty allows any origin
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	}

	secret, err := base64.StdEncoding.DecodeString(os.Getenv("JWT_SECRET"))
	if err != nil {
		return nil, fmt.Errorf("decode JWT_SECRET: %w", err)
	}
	cfg.JWTSecret = secret

	if cfg.WSMessagesPerSecond, err = strconv.ParseFloat(getEnv("WS_MESSAGES_PER_SECOND", "0"), 64); err != nil {
		return nil, fmt.Errorf("parse WS_MESSAGES_PER_SECOND: %w", err)
	}
	if cfg.WSBurst, err = strconv.Atoi(getEnv("WS_BURST", "400")); err != nil {
		return nil, fmt.Errorf("parse WS_BURST: %w", err)
	}
	if cfg.WSMaxMessageBytes, err = strconv.ParseInt(getEnv("WS_MAX_MESSAGE_BYTES", "1048576"), 10, 64); err != nil {
		return nil, fmt.Errorf("parse WS_MAX_MESSAGE_BYTES: %w", err)
	}

	switch cfg.RegistryBackend {
	case RegistryMemory, RegistryRedis:
	default:
		return nil, fmt.Errorf("unknown REGISTRY_BACKEND %q", cfg.RegistryBackend)
	}

	if cfg.Env == "production" && len(cfg.JWTSecret) == 0 {
		return nil, fmt.Errorf("JWT_SECRET is required in production")
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
