// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// For persona generation credentials, use ValidatePersonaReady.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server
	HTTPAddr    string
	Environment string

	// Auth
	JWTSecret string

	// Rate limiting (per websocket connection)
	RateLimitWindow time.Duration
	RateLimitMax    int

	// Persona scheduler
	PersonaMinInterval time.Duration
	PersonaMaxInterval time.Duration
	GeminiAPIKey       string
	GeminiModel        string
}

// Load reads environment variables and applies defaults. It doesn't fail if the Gemini key is
// missing; use ValidatePersonaReady() when you require persona generation. A missing JWT_SECRET
// is an error since no connection could ever be admitted without one.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	cfg.Environment = os.Getenv("ENV")

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	cfg.RateLimitWindow = envDuration("RATE_LIMIT_WINDOW", 10*time.Second)
	cfg.RateLimitMax = envInt("RATE_LIMIT_MAX", 5)

	cfg.PersonaMinInterval = envDuration("PERSONA_MIN_INTERVAL", 45*time.Second)
	cfg.PersonaMaxInterval = envDuration("PERSONA_MAX_INTERVAL", 120*time.Second)
	if cfg.PersonaMaxInterval < cfg.PersonaMinInterval {
		return nil, fmt.Errorf("PERSONA_MAX_INTERVAL (%s) below PERSONA_MIN_INTERVAL (%s)",
			cfg.PersonaMaxInterval, cfg.PersonaMinInterval)
	}

	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.GeminiModel = os.Getenv("GEMINI_MODEL")

	return cfg, nil
}

// ValidatePersonaReady checks required fields when persona generation is enabled.
func (c *Config) ValidatePersonaReady() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("missing persona env: require GEMINI_API_KEY")
	}
	return nil
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
