// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
)

const (
	defaultListingURL      = "https://cinemesilla.com/"
	defaultDatabasePath    = "./data/notifier.db"
	defaultIntervalMinutes = 60
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	TelegramChatID   int64
	ListingURL       string
	DatabasePath     string
	IntervalMinutes  int
	PruneInactive    bool
	LogLevel         string
}

// Load reads configuration from environment variables.
// TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are required; everything else
// has a default.
func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	chatRaw := os.Getenv("TELEGRAM_CHAT_ID")
	if chatRaw == "" {
		return nil, fmt.Errorf("TELEGRAM_CHAT_ID is required")
	}
	chatID, err := strconv.ParseInt(chatRaw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", chatRaw, err)
	}

	listingURL := os.Getenv("LISTING_URL")
	if listingURL == "" {
		listingURL = defaultListingURL
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = defaultDatabasePath
	}

	interval := defaultIntervalMinutes
	if raw := os.Getenv("CHECK_INTERVAL_MINUTES"); raw != "" {
		interval, err = strconv.Atoi(raw)
		if err != nil || interval < 1 || interval > 1440 {
			return nil, fmt.Errorf("CHECK_INTERVAL_MINUTES must be between 1 and 1440, got %q", raw)
		}
	}

	prune := false
	if raw := os.Getenv("PRUNE_INACTIVE"); raw != "" {
		prune, err = strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid PRUNE_INACTIVE %q: %w", raw, err)
		}
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	return &Config{
		TelegramBotToken: token,
		TelegramChatID:   chatID,
		ListingURL:       listingURL,
		DatabasePath:     dbPath,
		IntervalMinutes:  interval,
		PruneInactive:    prune,
		LogLevel:         logLevel,
	}, nil
}
