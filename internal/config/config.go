package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config is the server configuration, loaded from environment variables.
type Config struct {
	Port string

	// RedisAddr enables presence publication when non-empty.
	RedisAddr string

	// AllowedOrigins is the CORS allow-list; "*" allows everything.
	AllowedOrigins []string

	// RoomCleanupDelay is how long an empty room survives before reaping.
	RoomCleanupDelay time.Duration
}

// Load reads configuration from the environment, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Port:             getEnvOrDefault("PORT", "8080"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		AllowedOrigins:   splitOrigins(getEnvOrDefault("ALLOWED_ORIGINS", "*")),
		RoomCleanupDelay: 60 * time.Second,
	}

	if raw := os.Getenv("ROOM_CLEANUP_DELAY"); raw != "" {
		delay, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid ROOM_CLEANUP_DELAY %q: %w", raw, err)
		}
		if delay <= 0 {
			return nil, fmt.Errorf("ROOM_CLEANUP_DELAY must be positive, got %q", raw)
		}
		cfg.RoomCleanupDelay = delay
	}

	return cfg, nil
}

func splitOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
