package app

import (
	"context"
	"fmt"
	"time"

	"billing_notifier/internal/domain/customer"
	"billing_notifier/internal/domain/message"
	"billing_notifier/internal/domain/report"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RosterLoader provides the current roster snapshot.
type RosterLoader interface {
	Load(ctx context.Context) []customer.Record
}

// AccountClassifier produces the per-window classification for a day.
type AccountClassifier interface {
	Classify(ctx context.Context, today time.Time, roster []customer.Record) ([]WindowResult, error)
}

// Notifier pushes run outcomes to the operator.
type Notifier interface {
	NotifyRunSummary(ctx context.Context, r *report.RunReport) error
	NotifyFailure(ctx context.Context, job string, cause error) error
}

// PipelineService runs the daily check: classify receivables, match
// birthdays, dispatch notifications and record the run report.
type PipelineService struct {
	roster       RosterLoader
	classifier   AccountClassifier
	builder      *CandidateBuilder
	dispatcher   message.Dispatcher
	reports      report.Store
	archive      report.Archive
	notifier     Notifier
	sendMessages bool
	location     *time.Location
	logger       *logrus.Entry
	now          func() time.Time
	newRunID     func() string
}

func NewPipelineService(
	roster RosterLoader,
	classifier AccountClassifier,
	builder *CandidateBuilder,
	dispatcher message.Dispatcher,
	reports report.Store,
	sendMessages bool,
	location *time.Location,
	logger *logrus.Entry,
) *PipelineService {
	if location == nil {
		location = time.Local
	}
	return &PipelineService{
		roster:       roster,
		classifier:   classifier,
		builder:      builder,
		dispatcher:   dispatcher,
		reports:      reports,
		sendMessages: sendMessages,
		location:     location,
		logger:       logger,
		now:          time.Now,
		newRunID:     uuid.NewString,
	}
}

// WithArchive enables report history.
func (s *PipelineService) WithArchive(a report.Archive) *PipelineService {
	s.archive = a
	return s
}

// WithNotifier enables run summaries for the operator.
func (s *PipelineService) WithNotifier(n Notifier) *PipelineService {
	s.notifier = n
	return s
}

// Run executes one daily pipeline run. Errors returned here abort the run;
// per-message failures are only counted in the report.
func (s *PipelineService) Run(ctx context.Context) (*report.RunReport, error) {
	now := s.now().In(s.location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)
	r := report.New(s.newRunID(), today, now, !s.sendMessages)
	log := s.logger.WithFields(logrus.Fields{"run_id": r.RunID, "date": r.Date, "dry_run": r.DryRun})
	log.Info("Starting daily check")

	roster := s.roster.Load(ctx)
	r.RosterSize = len(roster)
	if len(roster) == 0 {
		log.Warn("Roster is empty, skipping receivables and birthdays")
		return r, s.finish(ctx, log, r)
	}

	windows, err := s.classifier.Classify(ctx, today, roster)
	if err != nil {
		return nil, fmt.Errorf("daily check aborted: %w", err)
	}

	var candidates []message.Candidate
	for _, w := range windows {
		r.Accounts[w.Window.Name] = w.Summary
		for _, acc := range w.Eligible {
			if c, ok := s.builder.ForAccount(acc.Customer, acc.Account, acc.Kind); ok {
				candidates = append(candidates, c)
			}
		}
	}

	birthdays := MatchBirthdays(roster, today, log)
	r.Birthdays = report.BirthdaySummary{Total: len(birthdays), Users: birthdays}
	log.WithField("birthdays", len(birthdays)).Info("Birthdays matched")
	for _, user := range birthdays {
		if c, ok := s.builder.ForBirthday(user); ok {
			candidates = append(candidates, c)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("daily check cancelled before dispatch: %w", err)
	}
	s.dispatch(ctx, log, r, candidates)

	return r, s.finish(ctx, log, r)
}

func (s *PipelineService) dispatch(ctx context.Context, log *logrus.Entry, r *report.RunReport, candidates []message.Candidate) {
	r.Dispatch.Prepared = len(candidates)
	r.Dispatch.Total = len(candidates)

	if !s.sendMessages {
		for _, c := range candidates {
			r.MessagesSent[c.Kind]++
		}
		log.WithFields(kindFields(r.MessagesSent)).WithField("prepared", len(candidates)).Info("Dry run: messages prepared but not sent")
		return
	}
	if len(candidates) == 0 {
		log.Info("No messages to send")
		return
	}

	result := s.dispatcher.SendBatch(ctx, candidates)
	r.Dispatch.Sent = result.Sent
	r.Dispatch.Failed = result.Failed
	r.Dispatch.Total = result.Total
	for kind, n := range result.SentByKind {
		r.MessagesSent[kind] = n
	}
}

// finish persists the report; archive and operator summary failures are
// only logged.
func (s *PipelineService) finish(ctx context.Context, log *logrus.Entry, r *report.RunReport) error {
	if err := s.reports.Save(ctx, r); err != nil {
		return fmt.Errorf("failed to save run report: %w", err)
	}

	if s.archive != nil {
		if err := s.archive.Save(ctx, r); err != nil {
			log.WithError(err).Error("Failed to archive run report")
		}
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyRunSummary(ctx, r); err != nil {
			log.WithError(err).Warn("Failed to send run summary to operator")
		}
	}

	log.WithFields(logrus.Fields{
		"roster_size":        r.RosterSize,
		"accounts_with_user": r.AccountsWithUser(),
		"birthdays":          r.Birthdays.Total,
		"messages":           r.TotalSent(),
		"failed":             r.Dispatch.Failed,
	}).Info("Daily check finished")
	return nil
}

func kindFields(counts map[message.TemplateKind]int) logrus.Fields {
	fields := make(logrus.Fields, len(counts))
	for k, n := range counts {
		fields[string(k)] = n
	}
	return fields
}
