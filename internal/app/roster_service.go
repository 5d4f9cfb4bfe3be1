package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"billing_notifier/internal/domain/alias"
	"billing_notifier/internal/domain/customer"
	"billing_notifier/internal/infra/storage"

	"github.com/sirupsen/logrus"
)

// CustomerSource walks the remote customer collection page by page.
type CustomerSource interface {
	EachCustomerPage(ctx context.Context, fn func(items []alias.Record) error) error
}

// RosterService keeps the local roster snapshot in sync with the remote
// customer collection.
type RosterService struct {
	source CustomerSource
	store  customer.Store
	logger *logrus.Entry
	now    func() time.Time
}

func NewRosterService(source CustomerSource, store customer.Store, logger *logrus.Entry) *RosterService {
	return &RosterService{
		source: source,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Refresh rebuilds the snapshot from scratch and returns the number of
// customers written. The previous snapshot is removed before fetching, so a
// failed refresh leaves no primary snapshot; whatever was collected goes to
// the backup slot marked as partial.
func (s *RosterService) Refresh(ctx context.Context) (int, error) {
	s.logger.Info("Starting roster refresh")

	if err := s.store.Remove(ctx); err != nil {
		return 0, fmt.Errorf("failed to remove previous roster snapshot: %w", err)
	}

	var (
		users     []customer.Record
		discarded int
		pages     int
	)
	err := s.source.EachCustomerPage(ctx, func(items []alias.Record) error {
		pages++
		for _, raw := range items {
			rec, ok := customer.FromRaw(raw)
			if !ok {
				discarded++
				continue
			}
			users = append(users, rec)
		}
		s.logger.WithFields(logrus.Fields{"page": pages, "items": len(items), "collected": len(users)}).Debug("Roster page processed")
		return nil
	})
	if err != nil {
		s.savePartial(ctx, users, err)
		return 0, fmt.Errorf("roster refresh failed after %d customers: %w", len(users), err)
	}

	snapshot := customer.NewSnapshot(s.now(), users)
	if err := s.store.Save(ctx, snapshot); err != nil {
		return 0, fmt.Errorf("failed to save roster snapshot: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"total_users": snapshot.TotalUsers,
		"discarded":   discarded,
		"pages":       pages,
	}).Info("Roster refresh completed")
	return snapshot.TotalUsers, nil
}

func (s *RosterService) savePartial(ctx context.Context, users []customer.Record, cause error) {
	if len(users) == 0 {
		s.logger.WithError(cause).Error("Roster refresh failed before any customer was collected")
		return
	}

	partial := customer.NewSnapshot(s.now(), users)
	partial.Error = cause.Error()
	partial.Partial = true
	if err := s.store.SaveBackup(ctx, partial); err != nil {
		s.logger.WithError(err).Error("Failed to save partial roster backup")
		return
	}
	s.logger.WithError(cause).WithField("collected", len(users)).Warn("Roster refresh failed, partial backup saved")
}

// Load returns the current roster. A missing or unreadable snapshot yields
// an empty roster.
func (s *RosterService) Load(ctx context.Context) []customer.Record {
	snapshot, err := s.store.Load(ctx)
	switch {
	case errors.Is(err, storage.ErrNotExist):
		s.logger.Warn("Roster snapshot not found, using empty roster")
		return []customer.Record{}
	case err != nil:
		s.logger.WithError(err).Error("Failed to read roster snapshot, using empty roster")
		return []customer.Record{}
	}

	if snapshot.Users == nil {
		return []customer.Record{}
	}
	s.logger.WithField("total_users", len(snapshot.Users)).Debug("Roster loaded")
	return snapshot.Users
}
