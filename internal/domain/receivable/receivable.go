package receivable

import (
	"strings"
	"time"

	"billing_notifier/internal/domain/alias"
	"billing_notifier/internal/domain/message"

	"github.com/shopspring/decimal"
)

// WindowName identifies a due-date bucket.
type WindowName string

const (
	WindowDueToday      WindowName = "vencendo_hoje"
	WindowDueIn3Days    WindowName = "vencendo_3_dias"
	WindowOverdue3Days  WindowName = "vencido_3_dias"
	WindowOverdue5Days  WindowName = "vencido_5_dias"
	WindowOverdue30Days WindowName = "vencido_30_dias"
)

// TimestampLayout is the format the receivables endpoint expects for bounds.
const TimestampLayout = "2006-01-02T15:04:05"

type windowDef struct {
	name   WindowName
	offset int
	kind   message.TemplateKind
}

// Offsets must stay distinct so windows never overlap.
var windowDefs = []windowDef{
	{WindowDueToday, 0, message.KindDueToday},
	{WindowDueIn3Days, 3, message.KindDueIn3Days},
	{WindowOverdue3Days, -3, message.KindOverdue3Days},
	{WindowOverdue5Days, -5, message.KindOverdue5Days},
	{WindowOverdue30Days, -30, message.KindOverdue30Day},
}

// WindowNames lists the windows in reporting order.
func WindowNames() []WindowName {
	names := make([]WindowName, 0, len(windowDefs))
	for _, def := range windowDefs {
		names = append(names, def.name)
	}
	return names
}

// Window is a full-day due-date range bound to exactly one template.
type Window struct {
	Name       WindowName
	OffsetDays int
	Kind       message.TemplateKind
	Start      time.Time
	End        time.Time
}

// Windows derives the fixed windows relative to today's calendar date.
func Windows(today time.Time) []Window {
	windows := make([]Window, 0, len(windowDefs))
	for _, def := range windowDefs {
		y, m, d := today.Date()
		windows = append(windows, Window{
			Name:       def.name,
			OffsetDays: def.offset,
			Kind:       def.kind,
			Start:      time.Date(y, m, d+def.offset, 0, 0, 0, 0, today.Location()),
			End:        time.Date(y, m, d+def.offset, 23, 59, 59, 0, today.Location()),
		})
	}
	return windows
}

// StartParam and EndParam render the bounds in the endpoint's format.
func (w Window) StartParam() string { return w.Start.Format(TimestampLayout) }
func (w Window) EndParam() string { return w.End.Format(TimestampLayout) }

// Account is the normalized view of one receivable used for templates and
// reporting.
type Account struct {
	Amount      string `json:"valor"`
	DueDate     string `json:"vencimento"`
	Status      string `json:"status"`
	Description string `json:"descricao"`
	OriginCode  string `json:"codigoOrigem,omitempty"`
	Origin      string `json:"origem,omitempty"`
}

// Record is a raw receivable plus its resolved customer id ("" when none
// of the known aliases is present).
type Record struct {
	Raw        alias.Record
	CustomerID string
	Account    Account
}

var (
	customerIDFields  = alias.Keys("CodigoCliente", "codigoCliente", "ClienteId", "clienteId", "IdCliente", "idCliente")
	statusFields      = alias.Keys("Status", "status")
	amountFields      = alias.Keys("Valor", "valor")
	dueDateFields     = alias.Keys("DataVencimento", "dataVencimento", "vencimento")
	descriptionFields = alias.Keys("descricao", "Descricao")
	originCodeFields  = alias.Keys("codigoOrigem")
	originFields      = alias.Keys("origem")
)

// FromRaw resolves the aliases of a raw receivable.
func FromRaw(raw alias.Record) Record {
	acc := Account{
		Amount:      amountFields.String(raw),
		DueDate:     dueDateFields.String(raw),
		Status:      statusFields.String(raw),
		Description: descriptionFields.String(raw),
	}
	if origins, ok := raw["receberOrigem"].([]any); ok && len(origins) > 0 {
		if first, ok := origins[0].(map[string]any); ok {
			acc.OriginCode = originCodeFields.String(first)
			acc.Origin = originFields.String(first)
		}
	}
	return Record{
		Raw:        raw,
		CustomerID: strings.TrimSpace(customerIDFields.String(raw)),
		Account:    acc,
	}
}

// AmountValue parses the amount; false when it is missing or not numeric.
func (a Account) AmountValue() (decimal.Decimal, bool) {
	if a.Amount == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(a.Amount)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// DueDateOnly strips any time-of-day component from the due date.
func (a Account) DueDateOnly() string {
	v := a.DueDate
	switch {
	case v == "":
		return ""
	case strings.Contains(v, "T"):
		return strings.SplitN(v, "T", 2)[0]
	case strings.Contains(v, " "):
		return strings.SplitN(v, " ", 2)[0]
	case len(v) > 10:
		return v[:10]
	}
	return v
}

// StatusSet is an allow-list of receivable statuses.
type StatusSet map[string]struct{}

// NewStatusSet builds a set, ignoring blank entries.
func NewStatusSet(statuses ...string) StatusSet {
	set := make(StatusSet, len(statuses))
	for _, s := range statuses {
		if s = strings.TrimSpace(s); s != "" {
			set[s] = struct{}{}
		}
	}
	return set
}

// Contains reports whether status is allowed (exact match).
func (s StatusSet) Contains(status string) bool {
	_, ok := s[status]
	return ok
}
