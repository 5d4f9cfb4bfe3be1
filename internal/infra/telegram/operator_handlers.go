// internal/infra/telegram/operator_handlers.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"billing_notifier/internal/app"
	"billing_notifier/internal/domain/report"
	"billing_notifier/internal/infra/scheduler"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const (
	unauthorizedReply = "Erro: você não tem permissão para executar este comando."
	unknownUserReply  = "Olá! Este bot é de uso exclusivo do operador do sistema de cobranças."
)

// OperatorBackend is the service behind the operator commands.
type OperatorBackend interface {
	IsOperator(telegramID int64) bool
	LatestReport(ctx context.Context, performingID int64) (*report.RunReport, error)
	History(ctx context.Context, performingID int64, limit int) ([]*report.RunReport, error)
	SyncRoster(ctx context.Context, performingID int64) (int, error)
	RunNow(ctx context.Context, performingID int64) (*report.RunReport, error)
}

// OperatorCommands produces the HTML replies of the operator commands.
type OperatorCommands struct {
	svc    OperatorBackend
	logger *logrus.Entry
}

func NewOperatorCommands(svc OperatorBackend, logger *logrus.Entry) *OperatorCommands {
	return &OperatorCommands{svc: svc, logger: logger}
}

// BotCommands is the command menu published to Telegram.
func BotCommands() []telebot.Command {
	return []telebot.Command{
		{Text: "status", Description: "Resumo da última verificação"},
		{Text: "history", Description: "Últimas execuções arquivadas"},
		{Text: "sync_roster", Description: "Atualizar cadastro de clientes agora"},
		{Text: "run_now", Description: "Executar a verificação diária agora"},
		{Text: "help", Description: "Lista de comandos"},
	}
}

func (h *OperatorCommands) Start(senderID int64, firstName string) string {
	if !h.svc.IsOperator(senderID) {
		return unknownUserReply
	}
	return fmt.Sprintf("Olá, %s! Estou pronto. Use /help para ver os comandos.", html.EscapeString(firstName))
}

func (h *OperatorCommands) Help(senderID int64) string {
	if !h.svc.IsOperator(senderID) {
		return unknownUserReply
	}
	var b strings.Builder
	b.WriteString("<b>Comandos do operador</b>\n\n")
	b.WriteString("/status - resumo da última verificação\n")
	b.WriteString("/history [n] - últimas n execuções arquivadas\n")
	b.WriteString("/sync_roster - atualizar o cadastro de clientes agora\n")
	b.WriteString("/run_now - executar a verificação diária agora\n")
	b.WriteString("/help - mostrar esta mensagem")
	return b.String()
}

func (h *OperatorCommands) Status(ctx context.Context, senderID int64) string {
	log := h.logger.WithFields(logrus.Fields{"handler": "/status", "sender_id": senderID})
	r, err := h.svc.LatestReport(ctx, senderID)
	if err != nil {
		return h.replyError(log, err)
	}
	return FormatRunSummary(r)
}

func (h *OperatorCommands) History(ctx context.Context, senderID int64, args []string) string {
	log := h.logger.WithFields(logrus.Fields{"handler": "/history", "sender_id": senderID})

	limit := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			log.WithField("arg", args[0]).Warn("Invalid history limit")
			return "Formato inválido. Use: /history [n], com n positivo."
		}
		limit = n
	}

	reports, err := h.svc.History(ctx, senderID, limit)
	if err != nil {
		return h.replyError(log, err)
	}
	return FormatHistory(reports)
}

func (h *OperatorCommands) SyncRoster(ctx context.Context, senderID int64) string {
	log := h.logger.WithFields(logrus.Fields{"handler": "/sync_roster", "sender_id": senderID})
	log.Info("Manual roster sync requested")

	n, err := h.svc.SyncRoster(ctx, senderID)
	if err != nil {
		return h.replyError(log, err)
	}
	return fmt.Sprintf("Cadastro atualizado: %d clientes.", n)
}

func (h *OperatorCommands) RunNow(ctx context.Context, senderID int64) string {
	log := h.logger.WithFields(logrus.Fields{"handler": "/run_now", "sender_id": senderID})
	log.Info("Manual daily check requested")

	r, err := h.svc.RunNow(ctx, senderID)
	if err != nil {
		return h.replyError(log, err)
	}
	return FormatRunSummary(r)
}

func (h *OperatorCommands) replyError(log *logrus.Entry, err error) string {
	log = log.WithError(err)
	switch {
	case errors.Is(err, app.ErrOperatorNotAuthorized):
		log.Warn("Unauthorized access attempt")
		return unauthorizedReply
	case errors.Is(err, report.ErrReportNotFound):
		log.Info("No report available")
		return "Nenhum relatório encontrado. A verificação diária ainda não foi executada."
	case errors.Is(err, app.ErrHistoryUnavailable):
		log.Info("History requested without archive")
		return "Histórico indisponível: banco de dados não configurado."
	case errors.Is(err, scheduler.ErrJobInProgress):
		log.Info("Job already running")
		return "Outro job já está em execução. Tente novamente em alguns minutos."
	default:
		log.Error("Command failed")
		return fmt.Sprintf("Ocorreu um erro: <code>%s</code>", html.EscapeString(err.Error()))
	}
}

// RegisterOperatorHandlers registers the operator commands on the bot.
func RegisterOperatorHandlers(ctx context.Context, b *telebot.Bot, svc OperatorBackend, baseLogger *logrus.Entry) {
	cmds := NewOperatorCommands(svc, baseLogger)
	opts := &telebot.SendOptions{ParseMode: telebot.ModeHTML}

	b.Handle("/start", func(c telebot.Context) error {
		return c.Send(cmds.Start(c.Sender().ID, c.Sender().FirstName), opts)
	})
	b.Handle("/help", func(c telebot.Context) error {
		return c.Send(cmds.Help(c.Sender().ID), opts)
	})
	b.Handle("/status", func(c telebot.Context) error {
		return c.Send(cmds.Status(ctx, c.Sender().ID), opts)
	})
	b.Handle("/history", func(c telebot.Context) error {
		return c.Send(cmds.History(ctx, c.Sender().ID, c.Args()), opts)
	})
	b.Handle("/sync_roster", func(c telebot.Context) error {
		if svc.IsOperator(c.Sender().ID) {
			_ = c.Send("Atualizando cadastro de clientes...")
		}
		return c.Send(cmds.SyncRoster(ctx, c.Sender().ID), opts)
	})
	b.Handle("/run_now", func(c telebot.Context) error {
		if svc.IsOperator(c.Sender().ID) {
			_ = c.Send("Executando verificação diária...")
		}
		return c.Send(cmds.RunNow(ctx, c.Sender().ID), opts)
	})

	if err := b.SetCommands(BotCommands()); err != nil {
		baseLogger.WithError(err).Warn("Failed to publish bot command menu")
	}
}
