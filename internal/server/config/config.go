package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port           string
	StorageRoot    string
	TransferRoot   string
	QuotaBytes     int64
	TransferTTL    time.Duration
	SweepInterval  time.Duration
	BaseURL        string
	AuthUsername   string
	AuthPassword   string
	MaxLoginFails  int
	RecentLogSize  int
	RateLimitRPS   float64
	RateLimitBurst int
}

func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		StorageRoot:    getEnv("STORAGE_ROOT", "./storage/files"),
		TransferRoot:   getEnv("TRANSFER_ROOT", "./storage/transfer"),
		QuotaBytes:     getEnvInt64("QUOTA_BYTES", 16*1024*1024*1024), // 16GB
		TransferTTL:    getEnvDuration("TRANSFER_TTL", 1*time.Hour),
		SweepInterval:  getEnvDuration("SWEEP_INTERVAL", 10*time.Minute),
		BaseURL:        getEnv("BASE_URL", "http://localhost:8080"),
		AuthUsername:   getEnv("AUTH_USERNAME", "admin"),
		AuthPassword:   getEnv("AUTH_PASSWORD_HASH", ""),
		MaxLoginFails:  getEnvInt("MAX_LOGIN_FAILURES", 10),
		RecentLogSize:  getEnvInt("RECENT_LOG_SIZE", 20),
		RateLimitRPS:   getEnvFloat64("RATE_LIMIT_RPS", 10),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 20),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat64(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
