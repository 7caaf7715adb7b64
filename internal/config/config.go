package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	// Endpoints
	WSURL  string
	APIURL string

	// Connection
	MaxReconnectAttempts int
	MaxReconnectDelay    time.Duration
	HeartbeatInterval    time.Duration

	// Matchmaking
	PollInterval time.Duration

	// Identity
	UserID        string
	SigningSecret string
	TokenTTL      time.Duration
	DuelID        string

	// Optional backing stores
	DatabaseURL string
	RedisAddr   string
	RedisDB     int
	JournalKey  string

	LogLevel logrus.Level
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		WSURL:  getEnv("DUEL_WS_URL", "ws://localhost:8080/ws"),
		APIURL: getEnv("DUEL_API_URL", "http://localhost:8080"),

		MaxReconnectAttempts: getEnvInt("DUEL_MAX_RECONNECT_ATTEMPTS", 5),
		MaxReconnectDelay:    getEnvDuration("DUEL_MAX_RECONNECT_DELAY", 30*time.Second),
		HeartbeatInterval:    getEnvDuration("DUEL_HEARTBEAT_INTERVAL", 30*time.Second),

		PollInterval: getEnvDuration("DUEL_POLL_INTERVAL", 1500*time.Millisecond),

		UserID:        getEnv("DUEL_USER_ID", ""),
		SigningSecret: getEnv("DUEL_SIGNING_SECRET", ""),
		TokenTTL:      getEnvDuration("DUEL_TOKEN_TTL", time.Hour),
		DuelID:        getEnv("DUEL_DUEL_ID", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisAddr:   getEnv("REDIS_ADDR", ""),
		RedisDB:     getEnvInt("REDIS_DB", 0),
		JournalKey:  getEnv("DUEL_JOURNAL_KEY", ""),

		LogLevel: getEnvLevel("LOG_LEVEL", logrus.InfoLevel),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("1.5s") or a bare number of milliseconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}

func getEnvLevel(key string, defaultValue logrus.Level) logrus.Level {
	if value := os.Getenv(key); value != "" {
		if lvl, err := logrus.ParseLevel(value); err == nil {
			return lvl
		}
	}
	return defaultValue
}
