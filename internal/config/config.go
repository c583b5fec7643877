package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	AppEnv          string
	Debug           bool
	Version         string
	BotToken        string
	ChannelID       int64 // primary bound channel, optional
	CollectionID    int64 // bound collection for the primary binding and import sessions, optional
	ListenAddr      string
	WebhookBaseURL  string
	MediaGroupDelay time.Duration
	DefaultLanguage string
	SentryDSN       string
	MongoDBURI      string
	MongoDBDatabase string
	S3Bucket        string
	S3Region        string
	S3Endpoint      string // optional, for S3-compatible stores
}

// LoadConfig loads configuration from environment variables.
// It attempts to load a .env file if present but prioritizes
// actual environment variables set in the system (e.g., by Docker).
func LoadConfig() (*Config, error) {
	// Load .env file if it exists (useful for development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	debug, _ := strconv.ParseBool(getEnv("DEBUG", "false"))

	channelID, err := parseOptionalInt64("CHANNEL_ID")
	if err != nil {
		return nil, err
	}
	collectionID, err := parseOptionalInt64("COLLECTION_ID")
	if err != nil {
		return nil, err
	}

	delaySeconds, err := strconv.Atoi(getEnv("MEDIA_GROUP_DELAY", "5"))
	if err != nil || delaySeconds <= 0 {
		return nil, fmt.Errorf("invalid MEDIA_GROUP_DELAY: %q", getEnv("MEDIA_GROUP_DELAY", "5"))
	}

	cfg := &Config{
		AppEnv:          getEnv("APP_ENV", "development"),
		Debug:           debug,
		Version:         getEnv("VERSION", "dev"),
		BotToken:        getEnv("TELEGRAM_BOT_TOKEN", ""),
		ChannelID:       channelID,
		CollectionID:    collectionID,
		ListenAddr:      getEnv("LISTEN_ADDR", ":8080"),
		WebhookBaseURL:  getEnv("WEBHOOK_URL", ""),
		MediaGroupDelay: time.Duration(delaySeconds) * time.Second,
		DefaultLanguage: getEnv("DEFAULT_LANGUAGE", "en"),
		SentryDSN:       getEnv("SENTRY_DSN", ""),
		MongoDBURI:      getEnv("MONGODB_URI", ""),
		MongoDBDatabase: getEnv("MONGODB_DATABASE", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Region:        getEnv("S3_REGION", ""),
		S3Endpoint:      getEnv("S3_ENDPOINT", ""),
	}

	// Basic validation for essential variables
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if cfg.WebhookBaseURL == "" {
		return nil, fmt.Errorf("WEBHOOK_URL is required")
	}
	if cfg.MongoDBURI == "" {
		return nil, fmt.Errorf("MONGODB_URI is required")
	}
	if cfg.MongoDBDatabase == "" {
		return nil, fmt.Errorf("MONGODB_DATABASE is required")
	}
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required")
	}
	if cfg.SentryDSN == "" {
		log.Println("Warning: SENTRY_DSN is not set. Error tracking disabled.")
	}
	if cfg.ChannelID == 0 {
		log.Println("Warning: CHANNEL_ID is not set, relying on linked chats for channel routing")
	}

	return cfg, nil
}

// parseOptionalInt64 parses an optional int64 env var, treating empty as zero.
func parseOptionalInt64(key string) (int64, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
