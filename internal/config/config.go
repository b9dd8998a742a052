package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerPort      string
	DatabaseURL     string
	RedisURL        string
	JWTSecret       string
	SessionValidity time.Duration
	MaxDevices      int
	StorageTimeout  time.Duration
	Environment     string
}

func LoadConfig() (*Config, error) {
	validityStr := getEnv("SESSION_VALIDITY", "720h")
	validity, err := time.ParseDuration(validityStr)
	if err != nil {
		return nil, errors.New("invalid SESSION_VALIDITY format")
	}

	timeoutStr := getEnv("STORAGE_TIMEOUT", "5s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, errors.New("invalid STORAGE_TIMEOUT format")
	}

	maxDevicesStr := getEnv("MAX_DEVICES", "3")
	maxDevices, err := strconv.Atoi(maxDevicesStr)
	if err != nil || maxDevices < 1 {
		return nil, errors.New("invalid MAX_DEVICES value")
	}

	cfg := &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		SessionValidity: validity,
		MaxDevices:      maxDevices,
		StorageTimeout:  timeout,
		Environment:     getEnv("ENVIRONMENT", "development"),
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
