// internal/infra/database/postgres_run_report_repository.go
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"billing_notifier/internal/domain/report"

	"github.com/lib/pq"
)

var ErrDuplicateRunReport = errors.New("run report with this run id already archived")

const uniqueViolation = "23505"

const runReportsSchema = `
CREATE TABLE IF NOT EXISTS run_reports (
    run_id     UUID PRIMARY KEY,
    run_date   DATE NOT NULL,
    dry_run    BOOLEAN NOT NULL,
    sent       INTEGER NOT NULL,
    failed     INTEGER NOT NULL,
    payload    JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS run_reports_created_at_idx ON run_reports (created_at DESC);`

// PostgresRunReportRepository archives run reports; the full report is kept
// as JSON next to a few queryable columns.
type PostgresRunReportRepository struct {
	db *sql.DB
}

func NewPostgresRunReportRepository(db *sql.DB) *PostgresRunReportRepository {
	return &PostgresRunReportRepository{db: db}
}

// EnsureSchema creates the archive table if it does not exist yet.
func (r *PostgresRunReportRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, runReportsSchema); err != nil {
		return fmt.Errorf("error creating run_reports table: %w", err)
	}
	return nil
}

func (r *PostgresRunReportRepository) Save(ctx context.Context, rep *report.RunReport) error {
	payload, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("error encoding run report: %w", err)
	}

	query := `INSERT INTO run_reports (run_id, run_date, dry_run, sent, failed, payload)
               VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = r.db.ExecContext(ctx, query, rep.RunID, rep.Date, rep.DryRun, rep.TotalSent(), rep.Dispatch.Failed, payload)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateRunReport
		}
		return fmt.Errorf("error archiving run report: %w", err)
	}
	return nil
}

func (r *PostgresRunReportRepository) Latest(ctx context.Context) (*report.RunReport, error) {
	query := `SELECT payload FROM run_reports ORDER BY created_at DESC LIMIT 1`
	var payload []byte
	if err := r.db.QueryRowContext(ctx, query).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, report.ErrReportNotFound
		}
		return nil, fmt.Errorf("error getting latest run report: %w", err)
	}
	return decodeReport(payload)
}

// ListRecent returns up to limit reports, newest first.
func (r *PostgresRunReportRepository) ListRecent(ctx context.Context, limit int) ([]*report.RunReport, error) {
	query := `SELECT payload FROM run_reports ORDER BY created_at DESC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing run reports: %w", err)
	}
	defer rows.Close()

	var reports []*report.RunReport
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("error scanning run report row: %w", err)
		}
		rep, err := decodeReport(payload)
		if err != nil {
			return nil, err
		}
		reports = append(reports, rep)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run report rows: %w", err)
	}
	return reports, nil
}

func decodeReport(payload []byte) (*report.RunReport, error) {
	var rep report.RunReport
	if err := json.Unmarshal(payload, &rep); err != nil {
		return nil, fmt.Errorf("error decoding archived run report: %w", err)
	}
	return &rep, nil
}
