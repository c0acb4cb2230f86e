package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "github.com/joho/godotenv/autoload"

	"github.com/alarcia/illa-notifier/internal/bot"
	"github.com/alarcia/illa-notifier/internal/config"
	"github.com/alarcia/illa-notifier/internal/detector"
	"github.com/alarcia/illa-notifier/internal/fetcher"
	"github.com/alarcia/illa-notifier/internal/notifier"
	"github.com/alarcia/illa-notifier/internal/scheduler"
	"github.com/alarcia/illa-notifier/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		log.Error("create bot api", "error", err)
		os.Exit(1)
	}

	dispatcher := notifier.New(api, cfg.TelegramChatID, log)
	det := detector.New(store, dispatcher, cfg.ListingURL, cfg.PruneInactive, log)
	sched := scheduler.New(
		fetcher.New(http.DefaultClient),
		det,
		cfg.ListingURL,
		time.Duration(cfg.IntervalMinutes)*time.Minute,
		log,
	)
	b := bot.New(api, store, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting notifier", "listing_url", cfg.ListingURL, "interval_minutes", cfg.IntervalMinutes)

	go sched.Run(ctx)

	b.Run(ctx)

	log.Info("notifier stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
