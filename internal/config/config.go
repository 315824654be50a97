package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database (optional, built-in question deck is used when empty)
	DatabaseURL string

	// Redis (optional, updates are delivered in-process when empty)
	RedisURL string

	// Session tickets
	TicketSecret string
	TicketTTL    time.Duration

	// OpenAI Realtime
	OpenAIAPIBase      string
	RealtimeURL        string
	RealtimeModel      string
	TranscribeModel    string
	TokenExchangeLimit int

	// Tutor
	StudentName        string
	SessionIdleTimeout time.Duration

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:               getEnvOrDefault("PORT", "8080"),
		Env:                getEnvOrDefault("ENV", "development"),
		DatabaseURL:        getEnvOrDefault("DATABASE_URL", ""),
		RedisURL:           getEnvOrDefault("REDIS_URL", ""),
		TicketSecret:       mustGetEnv("TICKET_SECRET"),
		TicketTTL:          getEnvAsDurationOrDefault("TICKET_TTL", 12*time.Hour),
		OpenAIAPIBase:      getEnvOrDefault("OPENAI_API_BASE", "https://api.openai.com"),
		RealtimeURL:        getEnvOrDefault("OPENAI_REALTIME_URL", "wss://api.openai.com/v1/realtime"),
		RealtimeModel:      getEnvOrDefault("REALTIME_MODEL", "gpt-4o-mini-realtime-preview"),
		TranscribeModel:    getEnvOrDefault("TRANSCRIBE_MODEL", "gpt-4o-mini-transcribe"),
		TokenExchangeLimit: getEnvAsIntOrDefault("TOKEN_EXCHANGE_PER_MINUTE", 10),
		StudentName:        getEnvOrDefault("STUDENT_NAME", "Student"),
		SessionIdleTimeout: getEnvAsDurationOrDefault("SESSION_IDLE_TIMEOUT", 2*time.Hour),
		FrontendURL:        getEnvOrDefault("FRONTEND_URL", "http://localhost:3000"),
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
