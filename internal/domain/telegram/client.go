package telegram

import (
	"context"

	"gopkg.in/telebot.v3"
)

// Client sends text to a Telegram chat. It decouples the notifier from the
// bot library.
type Client interface {
	SendMessage(ctx context.Context, chatID int64, text string, mode telebot.ParseMode) error
}
