// internal/infra/telegram/client.go
package telegram

import (
	"context"

	"gopkg.in/telebot.v3"
)

// TelebotAdapter implements the domain Client interface using the gopkg.in/telebot.v3 library.
type TelebotAdapter struct {
	bot *telebot.Bot
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// SendMessage sends a text message to the chat. Link previews are disabled;
// summaries never carry links worth expanding.
func (tba *TelebotAdapter) SendMessage(ctx context.Context, chatID int64, text string, mode telebot.ParseMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := tba.bot.Send(telebot.ChatID(chatID), text, &telebot.SendOptions{
		ParseMode:             mode,
		DisableWebPagePreview: true,
	})
	return err
}
