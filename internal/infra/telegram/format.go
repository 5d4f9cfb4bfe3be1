package telegram

import (
	"fmt"
	"html"
	"strings"

	"billing_notifier/internal/domain/message"
	"billing_notifier/internal/domain/receivable"
	"billing_notifier/internal/domain/report"
)

// FormatRunSummary renders a run report as an HTML message.
func FormatRunSummary(r *report.RunReport) string {
	var b strings.Builder

	title := "Verificação diária"
	if r.DryRun {
		title += " (simulação)"
	}
	fmt.Fprintf(&b, "<b>%s %s</b>\n", title, html.EscapeString(r.Date))
	fmt.Fprintf(&b, "Clientes no cadastro: %d\n", r.RosterSize)

	if r.RosterSize == 0 {
		b.WriteString("Cadastro vazio: contas e aniversariantes não verificados.\n")
		return b.String()
	}

	b.WriteString("\n<b>Contas</b>\n")
	for _, name := range receivable.WindowNames() {
		w, ok := r.Accounts[name]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "• %s: %d (com cliente %d, elegíveis %d, total R$ %s)\n",
			name, w.Total, w.WithUserInfo, w.Eligible, w.AmountTotal.StringFixed(2))
	}
	fmt.Fprintf(&b, "Aniversariantes: %d\n", r.Birthdays.Total)

	b.WriteString("\n<b>Mensagens</b>\n")
	if r.DryRun {
		fmt.Fprintf(&b, "Preparadas (não enviadas): %d\n", r.Dispatch.Prepared)
	} else {
		fmt.Fprintf(&b, "Enviadas: %d, falhas: %d, total: %d\n", r.Dispatch.Sent, r.Dispatch.Failed, r.Dispatch.Total)
	}
	for _, kind := range message.AllKinds() {
		if n := r.MessagesSent[kind]; n > 0 {
			fmt.Fprintf(&b, "• %s: %d\n", kind, n)
		}
	}
	return b.String()
}

// FormatHistory renders one line per archived run.
func FormatHistory(reports []*report.RunReport) string {
	if len(reports) == 0 {
		return "Nenhuma execução arquivada."
	}

	var b strings.Builder
	b.WriteString("<b>Últimas execuções</b>\n")
	for _, r := range reports {
		mode := ""
		if r.DryRun {
			mode = " (simulação)"
		}
		fmt.Fprintf(&b, "%s%s: %d mensagens, %d falhas, %d aniversariantes\n",
			html.EscapeString(r.Date), mode, r.TotalSent(), r.Dispatch.Failed, r.Birthdays.Total)
	}
	return b.String()
}

// FormatFailure renders a job failure alert.
func FormatFailure(job string, cause error) string {
	return fmt.Sprintf("<b>Falha no job %s</b>\n<code>%s</code>", html.EscapeString(job), html.EscapeString(cause.Error()))
}
