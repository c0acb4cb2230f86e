// Package notifier sends new-movie alerts to the Telegram channel.
package notifier

import (
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/alarcia/illa-notifier/internal/model"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier dispatches new-movie events to a fixed chat. Delivery failures
// are logged and reported as false; they are never fatal to the caller.
type Notifier struct {
	api    telegramAPI
	chatID int64
	log    *slog.Logger
}

// New creates a Notifier targeting chatID.
func New(api telegramAPI, chatID int64, log *slog.Logger) *Notifier {
	return &Notifier{api: api, chatID: chatID, log: log}
}

// SendMovieAlert sends one notification for the event: a photo with
// caption when a poster is available, plain text otherwise, with a ticket
// button when a deep link exists.
func (n *Notifier) SendMovieAlert(event model.NewMovieEvent) bool {
	caption := FormatAlert(event)

	var msg tgbotapi.Chattable
	if event.PosterURL != nil {
		photo := tgbotapi.NewPhoto(n.chatID, tgbotapi.FileURL(*event.PosterURL))
		photo.Caption = caption
		photo.ParseMode = tgbotapi.ModeMarkdown
		if event.TicketURL != nil {
			photo.ReplyMarkup = ticketKeyboard(*event.TicketURL)
		}
		msg = photo
	} else {
		text := tgbotapi.NewMessage(n.chatID, caption)
		text.ParseMode = tgbotapi.ModeMarkdown
		if event.TicketURL != nil {
			text.ReplyMarkup = ticketKeyboard(*event.TicketURL)
		}
		msg = text
	}

	if _, err := n.api.Send(msg); err != nil {
		n.log.Error("send movie alert", "title", event.Title, "error", err)
		return false
	}
	return true
}

// FormatAlert renders the Markdown caption for a new-movie event.
func FormatAlert(event model.NewMovieEvent) string {
	var b strings.Builder
	b.WriteString("🎬 *NEW MOVIE DETECTED*\n\n")
	fmt.Fprintf(&b, "🍿 *Title:* %s\n", event.Title)
	fmt.Fprintf(&b, "🎭 *Genre:* %s\n", event.Genre)
	fmt.Fprintf(&b, "💬 *Language:* %s\n", event.Format)
	return b.String()
}

func ticketKeyboard(ticketURL string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("🎟️ Get tickets", ticketURL),
		),
	)
}
