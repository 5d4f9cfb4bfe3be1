package app

import (
	"context"
	"errors"
	"fmt"

	"billing_notifier/internal/domain/report"
)

// Application-level errors for operator commands
var (
	ErrOperatorNotAuthorized = errors.New("performing user is not authorized as an operator")
	ErrHistoryUnavailable    = errors.New("run history requires the report archive")
)

const (
	DefaultHistoryLimit = 5
	MaxHistoryLimit     = 30
)

// JobTrigger runs scheduled jobs on demand, under the same lock as the
// scheduled runs.
type JobTrigger interface {
	TriggerRosterSync(ctx context.Context) (int, error)
	TriggerDailyRun(ctx context.Context) (*report.RunReport, error)
}

// OperatorService backs the operator bot commands.
type OperatorService struct {
	reports            report.Store
	archive            report.Archive
	jobs               JobTrigger
	operatorTelegramID int64
}

// NewOperatorService wires the command backends; archive may be nil.
func NewOperatorService(reports report.Store, archive report.Archive, jobs JobTrigger, operatorID int64) *OperatorService {
	return &OperatorService{
		reports:            reports,
		archive:            archive,
		jobs:               jobs,
		operatorTelegramID: operatorID,
	}
}

func (s *OperatorService) IsOperator(telegramID int64) bool {
	return telegramID == s.operatorTelegramID
}

// LatestReport prefers the archive and falls back to the report file.
func (s *OperatorService) LatestReport(ctx context.Context, performingID int64) (*report.RunReport, error) {
	if !s.IsOperator(performingID) {
		return nil, ErrOperatorNotAuthorized
	}

	if s.archive != nil {
		r, err := s.archive.Latest(ctx)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, report.ErrReportNotFound) {
			return nil, fmt.Errorf("failed to read latest archived report: %w", err)
		}
	}

	r, err := s.reports.Load(ctx)
	if err != nil {
		if errors.Is(err, report.ErrReportNotFound) {
			return nil, report.ErrReportNotFound
		}
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}
	return r, nil
}

// History lists the most recent archived runs, newest first. limit is
// clamped to [1, MaxHistoryLimit]; zero means the default.
func (s *OperatorService) History(ctx context.Context, performingID int64, limit int) ([]*report.RunReport, error) {
	if !s.IsOperator(performingID) {
		return nil, ErrOperatorNotAuthorized
	}
	if s.archive == nil {
		return nil, ErrHistoryUnavailable
	}

	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}

	reports, err := s.archive.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list archived reports: %w", err)
	}
	return reports, nil
}

// SyncRoster refreshes the roster now and returns the number of customers.
func (s *OperatorService) SyncRoster(ctx context.Context, performingID int64) (int, error) {
	if !s.IsOperator(performingID) {
		return 0, ErrOperatorNotAuthorized
	}
	return s.jobs.TriggerRosterSync(ctx)
}

// RunNow executes the daily check immediately.
func (s *OperatorService) RunNow(ctx context.Context, performingID int64) (*report.RunReport, error) {
	if !s.IsOperator(performingID) {
		return nil, ErrOperatorNotAuthorized
	}
	return s.jobs.TriggerDailyRun(ctx)
}
