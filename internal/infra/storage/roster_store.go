package storage

import (
	"context"
	"strings"

	"billing_notifier/internal/domain/customer"
)

// RosterStore keeps the roster snapshot and its partial backup side by side.
type RosterStore struct {
	primary *JSONFile
	backup  *JSONFile
}

// NewRosterStore derives the backup path from the primary one
// (users.json -> users_backup.json).
func NewRosterStore(path string) *RosterStore {
	return &RosterStore{
		primary: NewJSONFile(path),
		backup:  NewJSONFile(backupPath(path)),
	}
}

func backupPath(path string) string {
	if strings.HasSuffix(path, ".json") {
		return strings.TrimSuffix(path, ".json") + "_backup.json"
	}
	return path + "_backup"
}

func (s *RosterStore) Path() string { return s.primary.Path() }
func (s *RosterStore) BackupPath() string { return s.backup.Path() }

func (s *RosterStore) Save(_ context.Context, snapshot *customer.Snapshot) error {
	return s.primary.Write(snapshot)
}

func (s *RosterStore) SaveBackup(_ context.Context, snapshot *customer.Snapshot) error {
	return s.backup.Write(snapshot)
}

func (s *RosterStore) Load(_ context.Context) (*customer.Snapshot, error) {
	var snapshot customer.Snapshot
	if err := s.primary.Read(&snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (s *RosterStore) Remove(_ context.Context) error {
	_, err := s.primary.Remove()
	return err
}
