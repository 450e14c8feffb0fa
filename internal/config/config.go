package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        int
	DatabaseURL string
	LogLevel    string

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	JWTLeeway   time.Duration

	NatsURL   string
	NatsToken string
}

func Load() Config {
	return Config{
		Port:        envInt("UNIFYCHATS_PORT", 8760),
		DatabaseURL: envStr("DATABASE_URL", ""),
		LogLevel:    envStr("LOG_LEVEL", "info"),
		JWTSecret:   envStr("JWT_SECRET", ""),
		JWTIssuer:   envStr("JWT_ISSUER", "unifychats"),
		JWTAudience: envStr("JWT_AUDIENCE", "unifychats-sync"),
		JWTLeeway:   envDur("JWT_LEEWAY", 30*time.Second),
		NatsURL:     envStr("NATS_URL", ""),
		NatsToken:   envStr("NATS_TOKEN", ""),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
