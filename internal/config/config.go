package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config aggregates every knob of the gateway. All values come from the
// environment (a .env file is loaded by main before this runs).
type Config struct {
	HTTPAddr       string
	DataDir        string
	SessionDBPath  string
	LogMaxMessages int
	WebhookTimeout time.Duration
	JWTSecret      string
	AdminUser      string
	AdminPass      string
}

// Load reads the configuration from environment variables, applying
// defaults for everything except the JWT secret.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr:  getEnv("HTTP_ADDR", "0.0.0.0:8080"),
		DataDir:   getEnv("DATA_DIR", "data"),
		JWTSecret: os.Getenv("JWT_SECRET"),
		AdminUser: getEnv("ADMIN_USER", "root"),
		AdminPass: getEnv("ADMIN_PASS", "root"),
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	cfg.SessionDBPath = getEnv("SESSION_DB", cfg.DataDir+"/session.db")

	maxMsgs, err := getEnvInt("LOG_MAX_MESSAGES", 10000)
	if err != nil {
		return nil, err
	}
	if maxMsgs < 1 {
		return nil, fmt.Errorf("LOG_MAX_MESSAGES must be positive")
	}
	cfg.LogMaxMessages = maxMsgs

	timeoutSec, err := getEnvInt("WEBHOOK_TIMEOUT_SECONDS", 10)
	if err != nil {
		return nil, err
	}
	cfg.WebhookTimeout = time.Duration(timeoutSec) * time.Second

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, err)
	}
	return n, nil
}
