// Package report describes the per-run result snapshot and where it goes.
package report

import (
	"context"
	"errors"
	"time"

	"billing_notifier/internal/domain/customer"
	"billing_notifier/internal/domain/message"
	"billing_notifier/internal/domain/receivable"

	"github.com/shopspring/decimal"
)

var ErrReportNotFound = errors.New("run report not found")

// AccountEntry is one receivable as recorded in a window bucket.
// CustomerID is nil when the receivable carried no known customer alias;
// User is nil when the id had no roster match.
type AccountEntry struct {
	CustomerID *string            `json:"cliente_id"`
	User       *customer.Record   `json:"user"`
	Account    receivable.Account `json:"conta_data"`
	Eligible   bool               `json:"eligible"`
}

// WindowSummary holds the accounting of a single window.
type WindowSummary struct {
	Start        string          `json:"start"`
	End          string          `json:"end"`
	Kind         string          `json:"kind"`
	Total        int             `json:"total"`
	WithUserInfo int             `json:"with_user_info"`
	Eligible     int             `json:"eligible"`
	AmountTotal  decimal.Decimal `json:"amount_total"`
	Accounts     []AccountEntry  `json:"accounts"`
}

type BirthdaySummary struct {
	Total int               `json:"total"`
	Users []customer.Record `json:"users"`
}

// DispatchSummary counts the candidates of the run. In dry-run Sent and
// Failed stay zero.
type DispatchSummary struct {
	Prepared int `json:"prepared"`
	Sent     int `json:"sent"`
	Failed   int `json:"failed"`
	Total    int `json:"total"`
}

// RunReport is the snapshot of one daily pipeline run.
type RunReport struct {
	RunID        string                                   `json:"run_id"`
	Date         string                                   `json:"date"`
	Timestamp    time.Time                                `json:"timestamp"`
	DryRun       bool                                     `json:"dry_run"`
	RosterSize   int                                      `json:"roster_size"`
	Accounts     map[receivable.WindowName]*WindowSummary `json:"accounts"`
	Birthdays    BirthdaySummary                          `json:"birthdays"`
	MessagesSent map[message.TemplateKind]int             `json:"messages_sent"`
	Dispatch     DispatchSummary                          `json:"dispatch"`
}

// New returns an empty report with every template counter present.
func New(runID string, today, now time.Time, dryRun bool) *RunReport {
	sent := make(map[message.TemplateKind]int, len(message.AllKinds()))
	for _, kind := range message.AllKinds() {
		sent[kind] = 0
	}
	return &RunReport{
		RunID:        runID,
		Date:         today.Format(time.DateOnly),
		Timestamp:    now,
		DryRun:       dryRun,
		Accounts:     make(map[receivable.WindowName]*WindowSummary),
		Birthdays:    BirthdaySummary{Users: []customer.Record{}},
		MessagesSent: sent,
	}
}

// AccountsWithUser sums matched accounts over all windows.
func (r *RunReport) AccountsWithUser() int {
	total := 0
	for _, w := range r.Accounts {
		total += w.WithUserInfo
	}
	return total
}

// TotalSent sums the per-template counters.
func (r *RunReport) TotalSent() int {
	total := 0
	for _, n := range r.MessagesSent {
		total += n
	}
	return total
}

// Store persists the current report, superseding the previous one.
type Store interface {
	Save(ctx context.Context, r *RunReport) error
	Load(ctx context.Context) (*RunReport, error)
}

// Archive keeps the history of reports.
type Archive interface {
	Save(ctx context.Context, r *RunReport) error
	Latest(ctx context.Context) (*RunReport, error)
	ListRecent(ctx context.Context, limit int) ([]*RunReport, error)
}
