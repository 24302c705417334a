package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// RunRecord is one completed batch run.
type RunRecord struct {
	ID            string
	StartedAt     time.Time
	FinishedAt    time.Time
	Tickers       int
	Downloaded    int
	Updated       int
	UpToDate      int
	NoNewData     int
	Failed        int
	FailedSymbols []string
	AuditLogPath  string
}

// RunStore persists run history in a SQLite database.
type RunStore struct {
	db *sql.DB
}

const runsSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY,
	started_at     TEXT NOT NULL,
	finished_at    TEXT NOT NULL,
	tickers        INTEGER NOT NULL,
	downloaded     INTEGER NOT NULL,
	updated        INTEGER NOT NULL,
	up_to_date     INTEGER NOT NULL,
	no_new_data    INTEGER NOT NULL,
	failed         INTEGER NOT NULL,
	failed_symbols TEXT NOT NULL,
	audit_log_path TEXT NOT NULL
);
`

// NewRunStore opens (or creates) a SQLite database at dbPath and ensures
// the runs table exists.
func NewRunStore(dbPath string) (*RunStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(runsSchema); err != nil {
		db.Close()
		return nil, err
	}
	return &RunStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *RunStore) Close() error {
	return s.db.Close()
}

// SaveRun inserts one completed run.
func (s *RunStore) SaveRun(ctx context.Context, rec *RunRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, tickers, downloaded,
			updated, up_to_date, no_new_data, failed, failed_symbols, audit_log_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.StartedAt.UTC().Format(time.RFC3339),
		rec.FinishedAt.UTC().Format(time.RFC3339),
		rec.Tickers,
		rec.Downloaded,
		rec.Updated,
		rec.UpToDate,
		rec.NoNewData,
		rec.Failed,
		strings.Join(rec.FailedSymbols, ","),
		rec.AuditLogPath,
	)
	return err
}

// ListRuns returns the most recent runs, newest first, up to limit.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, tickers, downloaded, updated,
			up_to_date, no_new_data, failed, failed_symbols, audit_log_path
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []RunRecord
	for rows.Next() {
		var rec RunRecord
		var started, finished, failedSymbols string
		if err := rows.Scan(&rec.ID, &started, &finished, &rec.Tickers,
			&rec.Downloaded, &rec.Updated, &rec.UpToDate, &rec.NoNewData,
			&rec.Failed, &failedSymbols, &rec.AuditLogPath); err != nil {
			return nil, err
		}
		rec.StartedAt, _ = time.Parse(time.RFC3339, started)
		rec.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		if failedSymbols != "" {
			rec.FailedSymbols = strings.Split(failedSymbols, ",")
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
