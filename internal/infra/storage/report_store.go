package storage

import (
	"context"
	"errors"

	"billing_notifier/internal/domain/report"
)

// ReportStore writes the latest run report to a fixed path.
type ReportStore struct {
	file *JSONFile
}

func NewReportStore(path string) *ReportStore {
	return &ReportStore{file: NewJSONFile(path)}
}

func (s *ReportStore) Path() string { return s.file.Path() }

func (s *ReportStore) Save(_ context.Context, r *report.RunReport) error {
	return s.file.Write(r)
}

func (s *ReportStore) Load(_ context.Context) (*report.RunReport, error) {
	var r report.RunReport
	if err := s.file.Read(&r); err != nil {
		if errors.Is(err, ErrNotExist) {
			return nil, report.ErrReportNotFound
		}
		return nil, err
	}
	return &r, nil
}
