package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string

	// Upstream feed.
	FR24APIKeys []string
	FR24BaseURL string

	// Poll loop.
	PollInterval time.Duration
	PollJitter   time.Duration
	QueryTimeout time.Duration

	// Key pool.
	RequestDelay         time.Duration
	KeyRequestsPerMinute int
	KeyParkDuration      time.Duration

	// Batching.
	BatchSizeAircraft     int
	BatchSizeRegistration int
	BatchSizeAirport      int
	MaxConcurrentBatches  int

	// Notifications.
	MentionLimit          int
	NotificationRetention time.Duration
	WebhookTimeout        time.Duration
	ChannelPostsPerSecond int
	FlightBaseURL         string
}

// Load reads configuration from the environment, with an optional .env
// file for local development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		FR24APIKeys: splitKeys(getEnv("FR24_API_KEYS", "")),
		FR24BaseURL: getEnv("FR24_BASE_URL", ""),

		PollInterval: time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 60)) * time.Second,
		PollJitter:   time.Duration(getEnvInt("POLL_JITTER_SECONDS", 5)) * time.Second,
		QueryTimeout: time.Duration(getEnvInt("QUERY_TIMEOUT_SECONDS", 15)) * time.Second,

		RequestDelay:         time.Duration(getEnvInt("REQUEST_DELAY_MS", 200)) * time.Millisecond,
		KeyRequestsPerMinute: getEnvInt("KEY_REQUESTS_PER_MINUTE", 10),
		KeyParkDuration:      time.Duration(getEnvInt("KEY_PARK_HOURS", 24)) * time.Hour,

		BatchSizeAircraft:     getEnvInt("BATCH_SIZE_AIRCRAFT", 15),
		BatchSizeRegistration: getEnvInt("BATCH_SIZE_REGISTRATION", 15),
		BatchSizeAirport:      getEnvInt("BATCH_SIZE_AIRPORT", 15),
		MaxConcurrentBatches:  getEnvInt("MAX_CONCURRENT_BATCHES", 4),

		MentionLimit:          getEnvInt("MENTION_LIMIT", 25),
		NotificationRetention: time.Duration(getEnvInt("NOTIFICATION_RETENTION_DAYS", 7)) * 24 * time.Hour,
		WebhookTimeout:        time.Duration(getEnvInt("WEBHOOK_TIMEOUT_SECONDS", 10)) * time.Second,
		ChannelPostsPerSecond: getEnvInt("CHANNEL_POSTS_PER_SECOND", 5),
		FlightBaseURL:         getEnv("FLIGHT_BASE_URL", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	if len(cfg.FR24APIKeys) == 0 {
		return nil, fmt.Errorf("FR24_API_KEYS is required: provide at least one key")
	}
	if cfg.PollInterval < time.Second {
		return nil, fmt.Errorf("POLL_INTERVAL_SECONDS must be at least 1")
	}

	return cfg, nil
}

func splitKeys(raw string) []string {
	var keys []string
	for _, part := range strings.Split(raw, ",") {
		if k := strings.TrimSpace(part); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}
