package telegram

import (
	"context"
	"fmt"

	"billing_notifier/internal/domain/report"
	domainTelegram "billing_notifier/internal/domain/telegram"

	"gopkg.in/telebot.v3"
)

// OperatorNotifier pushes run summaries and failure alerts to the operator chat.
type OperatorNotifier struct {
	client domainTelegram.Client
	chatID int64
}

func NewOperatorNotifier(client domainTelegram.Client, operatorChatID int64) *OperatorNotifier {
	return &OperatorNotifier{client: client, chatID: operatorChatID}
}

func (n *OperatorNotifier) NotifyRunSummary(ctx context.Context, r *report.RunReport) error {
	if err := n.client.SendMessage(ctx, n.chatID, FormatRunSummary(r), telebot.ModeHTML); err != nil {
		return fmt.Errorf("failed to send run summary: %w", err)
	}
	return nil
}

func (n *OperatorNotifier) NotifyFailure(ctx context.Context, job string, cause error) error {
	if err := n.client.SendMessage(ctx, n.chatID, FormatFailure(job, cause), telebot.ModeHTML); err != nil {
		return fmt.Errorf("failed to send failure alert: %w", err)
	}
	return nil
}
