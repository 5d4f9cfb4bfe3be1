package app

import (
	"context"
	"time"

	"billing_notifier/internal/domain/alias"
	"billing_notifier/internal/domain/customer"
	"billing_notifier/internal/domain/message"
	"billing_notifier/internal/domain/receivable"
	"billing_notifier/internal/domain/report"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/mock"
)

func testLogger() *logrus.Entry {
	l, _ := test.NewNullLogger()
	return logrus.NewEntry(l)
}

// pagedSource replays fixed customer pages, then fails with err if set.
type pagedSource struct {
	pages [][]alias.Record
	err   error
}

func (s *pagedSource) EachCustomerPage(_ context.Context, fn func(items []alias.Record) error) error {
	for _, p := range s.pages {
		if err := fn(p); err != nil {
			return err
		}
	}
	return s.err
}

// windowSource serves receivables per window name.
type windowSource struct {
	byWindow map[receivable.WindowName][]alias.Record
	failOn   receivable.WindowName
	err      error
	calls    []receivable.Window
}

func (s *windowSource) FetchReceivables(_ context.Context, w receivable.Window) ([]alias.Record, error) {
	s.calls = append(s.calls, w)
	if w.Name == s.failOn {
		return nil, s.err
	}
	return s.byWindow[w.Name], nil
}

type staticRoster []customer.Record

func (r staticRoster) Load(context.Context) []customer.Record { return r }

// MockClassifier is a mock implementation of AccountClassifier
type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) Classify(ctx context.Context, today time.Time, roster []customer.Record) ([]WindowResult, error) {
	args := m.Called(ctx, today, roster)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]WindowResult), args.Error(1)
}

// MockDispatcher is a mock implementation of message.Dispatcher
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) SendBatch(ctx context.Context, candidates []message.Candidate) message.BatchResult {
	args := m.Called(ctx, candidates)
	return args.Get(0).(message.BatchResult)
}

// MockReportStore is a mock implementation of report.Store
type MockReportStore struct {
	mock.Mock
}

func (m *MockReportStore) Save(ctx context.Context, r *report.RunReport) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockReportStore) Load(ctx context.Context) (*report.RunReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*report.RunReport), args.Error(1)
}

// MockArchive is a mock implementation of report.Archive
type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) Save(ctx context.Context, r *report.RunReport) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockArchive) Latest(ctx context.Context) (*report.RunReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*report.RunReport), args.Error(1)
}

func (m *MockArchive) ListRecent(ctx context.Context, limit int) ([]*report.RunReport, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*report.RunReport), args.Error(1)
}

// MockNotifier is a mock implementation of Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyRunSummary(ctx context.Context, r *report.RunReport) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockNotifier) NotifyFailure(ctx context.Context, job string, cause error) error {
	args := m.Called(ctx, job, cause)
	return args.Error(0)
}

// MockJobTrigger is a mock implementation of JobTrigger
type MockJobTrigger struct {
	mock.Mock
}

func (m *MockJobTrigger) TriggerRosterSync(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockJobTrigger) TriggerDailyRun(ctx context.Context) (*report.RunReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*report.RunReport), args.Error(1)
}
