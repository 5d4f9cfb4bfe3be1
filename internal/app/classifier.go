package app

import (
	"context"
	"fmt"
	"time"

	"billing_notifier/internal/domain/alias"
	"billing_notifier/internal/domain/customer"
	"billing_notifier/internal/domain/message"
	"billing_notifier/internal/domain/receivable"
	"billing_notifier/internal/domain/report"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ReceivableSource lists the receivables due inside a window.
type ReceivableSource interface {
	FetchReceivables(ctx context.Context, w receivable.Window) ([]alias.Record, error)
}

// EligibleAccount is a matched receivable whose status allows a notification.
type EligibleAccount struct {
	Kind     message.TemplateKind
	Customer customer.Record
	Account  receivable.Account
}

// WindowResult is the classification of one window.
type WindowResult struct {
	Window   receivable.Window
	Summary  *report.WindowSummary
	Eligible []EligibleAccount
}

// Classifier buckets receivables into due-date windows and joins them with
// the roster.
type Classifier struct {
	source   ReceivableSource
	statuses receivable.StatusSet
	logger   *logrus.Entry
}

func NewClassifier(source ReceivableSource, statuses receivable.StatusSet, logger *logrus.Entry) *Classifier {
	return &Classifier{source: source, statuses: statuses, logger: logger}
}

// Classify fetches every window for today. A failed window fetch aborts the
// whole classification.
func (c *Classifier) Classify(ctx context.Context, today time.Time, roster []customer.Record) ([]WindowResult, error) {
	byID := customer.Index(roster)
	windows := receivable.Windows(today)
	results := make([]WindowResult, 0, len(windows))

	for _, w := range windows {
		log := c.logger.WithFields(logrus.Fields{"window": w.Name, "start": w.StartParam(), "end": w.EndParam()})
		log.Info("Fetching receivables")

		raws, err := c.source.FetchReceivables(ctx, w)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch receivables for window %s: %w", w.Name, err)
		}

		result := c.classifyWindow(w, raws, byID)
		log.WithFields(logrus.Fields{
			"total":          result.Summary.Total,
			"with_user_info": result.Summary.WithUserInfo,
			"eligible":       result.Summary.Eligible,
		}).Info("Window classified")
		results = append(results, result)
	}

	return results, nil
}

func (c *Classifier) classifyWindow(w receivable.Window, raws []alias.Record, byID map[string]customer.Record) WindowResult {
	summary := &report.WindowSummary{
		Start:       w.StartParam(),
		End:         w.EndParam(),
		Kind:        string(w.Kind),
		Total:       len(raws),
		AmountTotal: decimal.Zero,
		Accounts:    make([]report.AccountEntry, 0, len(raws)),
	}
	result := WindowResult{Window: w, Summary: summary}

	for _, raw := range raws {
		rec := receivable.FromRaw(raw)
		entry := report.AccountEntry{Account: rec.Account}

		if amount, ok := rec.Account.AmountValue(); ok {
			summary.AmountTotal = summary.AmountTotal.Add(amount)
		}

		if rec.CustomerID != "" {
			id := rec.CustomerID
			entry.CustomerID = &id
			if user, ok := byID[id]; ok {
				u := user
				entry.User = &u
				summary.WithUserInfo++
			}
		}

		if entry.User != nil && c.statuses.Contains(rec.Account.Status) {
			entry.Eligible = true
			summary.Eligible++
			result.Eligible = append(result.Eligible, EligibleAccount{
				Kind:     w.Kind,
				Customer: *entry.User,
				Account:  rec.Account,
			})
		} else if entry.User != nil {
			c.logger.WithFields(logrus.Fields{
				"window":      w.Name,
				"customer_id": rec.CustomerID,
				"status":      rec.Account.Status,
			}).Debug("Skipping receivable with non-notifiable status")
		}

		summary.Accounts = append(summary.Accounts, entry)
	}

	return result
}
