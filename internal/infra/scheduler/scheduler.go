package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"billing_notifier/internal/app"
	"billing_notifier/internal/domain/report"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ErrJobInProgress is returned by on-demand triggers while another job holds the lock.
var ErrJobInProgress = errors.New("another job is already running")

const (
	JobRosterSync = "roster_sync"
	JobDailyCheck = "daily_check"
)

type RosterRefresher interface {
	Refresh(ctx context.Context) (int, error)
}

type DailyRunner interface {
	Run(ctx context.Context) (*report.RunReport, error)
}

// JobScheduler runs the weekly roster sync and the daily check. Both jobs,
// scheduled or triggered, share one lock so they never overlap.
type JobScheduler struct {
	cronEngine *cron.Cron
	location   *time.Location
	roster     RosterRefresher
	daily      DailyRunner
	notifier   app.Notifier
	logger     *logrus.Entry

	rosterEntry cron.EntryID
	dailyEntry  cron.EntryID

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

func NewJobScheduler(
	roster RosterRefresher,
	daily DailyRunner,
	location *time.Location,
	cronSpecRosterSync string, // e.g. "0 1 * * 0" (Sunday 01:00)
	cronSpecDailyCheck string, // e.g. "0 8 * * *"
	logger *logrus.Entry,
) (*JobScheduler, error) {
	if location == nil {
		location = time.Local
	}
	cronLogger := cron.PrintfLogger(logger)
	ctx, cancel := context.WithCancel(context.Background())

	s := &JobScheduler{
		cronEngine: cron.New(
			cron.WithLocation(location),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		location: location,
		roster:   roster,
		daily:    daily,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}

	var err error
	s.rosterEntry, err = s.cronEngine.AddFunc(cronSpecRosterSync, func() {
		s.logger.WithField("job", JobRosterSync).Info("Cron job triggered")
		if _, err := s.RunRosterSync(s.ctx); err != nil {
			s.logger.WithError(err).WithField("job", JobRosterSync).Error("Scheduled job failed")
		}
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("invalid roster sync schedule %q: %w", cronSpecRosterSync, err)
	}

	s.dailyEntry, err = s.cronEngine.AddFunc(cronSpecDailyCheck, func() {
		s.logger.WithField("job", JobDailyCheck).Info("Cron job triggered")
		if _, err := s.RunDailyCheck(s.ctx); err != nil {
			s.logger.WithError(err).WithField("job", JobDailyCheck).Error("Scheduled job failed")
		}
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("invalid daily check schedule %q: %w", cronSpecDailyCheck, err)
	}

	return s, nil
}

// WithNotifier enables failure alerts.
func (s *JobScheduler) WithNotifier(n app.Notifier) *JobScheduler {
	s.notifier = n
	return s
}

// RunRosterSync waits for the lock and refreshes the roster.
func (s *JobScheduler) RunRosterSync(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rosterSync(ctx)
}

// RunDailyCheck waits for the lock and runs the daily check.
func (s *JobScheduler) RunDailyCheck(ctx context.Context) (*report.RunReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dailyCheck(ctx)
}

// TriggerRosterSync refreshes the roster now unless a job is running.
func (s *JobScheduler) TriggerRosterSync(ctx context.Context) (int, error) {
	if !s.mu.TryLock() {
		return 0, ErrJobInProgress
	}
	defer s.mu.Unlock()
	return s.rosterSync(ctx)
}

// TriggerDailyRun runs the daily check now unless a job is running.
func (s *JobScheduler) TriggerDailyRun(ctx context.Context) (*report.RunReport, error) {
	if !s.mu.TryLock() {
		return nil, ErrJobInProgress
	}
	defer s.mu.Unlock()
	return s.dailyCheck(ctx)
}

func (s *JobScheduler) rosterSync(ctx context.Context) (int, error) {
	n, err := s.roster.Refresh(ctx)
	if err != nil {
		s.alert(ctx, JobRosterSync, err)
		return 0, err
	}
	s.logger.WithFields(logrus.Fields{"job": JobRosterSync, "total_users": n}).Info("Job finished")
	return n, nil
}

func (s *JobScheduler) dailyCheck(ctx context.Context) (*report.RunReport, error) {
	r, err := s.daily.Run(ctx)
	if err != nil {
		s.alert(ctx, JobDailyCheck, err)
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"job": JobDailyCheck, "run_id": r.RunID}).Info("Job finished")
	return r, nil
}

func (s *JobScheduler) alert(ctx context.Context, job string, cause error) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyFailure(ctx, job, cause); err != nil {
		s.logger.WithError(err).WithField("job", job).Warn("Failed to alert operator")
	}
}

func (s *JobScheduler) Start() {
	s.logger.Info("Starting job scheduler...")
	s.cronEngine.Start()
	next := s.NextRuns(time.Now())
	s.logger.WithFields(logrus.Fields{
		JobRosterSync: next[JobRosterSync],
		JobDailyCheck: next[JobDailyCheck],
	}).Info("Job scheduler started")
}

// NextRuns computes each job's next activation after now, in the scheduler's
// location. It reads the parsed schedules, so it does not depend on the
// engine having run yet.
func (s *JobScheduler) NextRuns(now time.Time) map[string]time.Time {
	now = now.In(s.location)
	return map[string]time.Time{
		JobRosterSync: s.cronEngine.Entry(s.rosterEntry).Schedule.Next(now),
		JobDailyCheck: s.cronEngine.Entry(s.dailyEntry).Schedule.Next(now),
	}
}

// Stop cancels the context of running jobs and waits for them to return.
func (s *JobScheduler) Stop() {
	s.logger.Info("Stopping job scheduler...")
	s.cancel()
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	s.logger.Info("Job scheduler gracefully stopped.")
}
