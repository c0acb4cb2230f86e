// Package bot implements the Telegram command listener that registers
// users. It runs alongside the scrape loop and shares its store.
package bot

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/alarcia/illa-notifier/internal/model"
	"github.com/alarcia/illa-notifier/internal/storage"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot handles inbound commands. Only /start is recognized; everything
// else is ignored without a reply.
type Bot struct {
	api   telegramAPI
	store storage.Storage
	log   *slog.Logger
}

// New creates a Bot on top of an already-constructed Telegram API client.
func New(api telegramAPI, store storage.Storage, log *slog.Logger) *Bot {
	return &Bot{api: api, store: store, log: log}
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
// A failed message handling never stops the loop.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Command() != "start" || msg.From == nil {
		return
	}
	b.handleStart(ctx, msg)
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	user := &model.TelegramUser{
		TelegramID: msg.From.ID,
		FirstName:  msg.From.FirstName,
	}
	if msg.From.UserName != "" {
		username := msg.From.UserName
		user.Username = &username
	}

	if err := b.store.UpsertUser(ctx, user); err != nil {
		b.log.Error("upsert user", "telegram_id", user.TelegramID, "error", err)
		return
	}
	b.log.Info("registered user", "telegram_id", user.TelegramID, "first_name", user.FirstName)

	reply := tgbotapi.NewMessage(msg.Chat.ID, welcomeText(msg.From.FirstName))
	reply.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(reply); err != nil {
		b.log.Error("send welcome", "chat_id", msg.Chat.ID, "error", err)
	}
}

func welcomeText(firstName string) string {
	return "👋 Hola, " + firstName + "!\n\n" +
		"Soy el bot de 🎬 *Cinemes Illa Carlemany*.\n\n" +
		"Me encargo de vigilar la cartelera y avisarte en cuanto llegue " +
		"una película nueva al cine. Así nunca te perderás un estreno.\n\n" +
		"📢 Las notificaciones automáticas se publican en el canal " +
		"@cartelera\\_illa en cuanto se detecta una novedad.\n\n" +
		"¡Nos vemos en la butaca! 🍿"
}
