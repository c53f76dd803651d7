package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/kdeosingh/us-market-hours-api/internal/domain"
)

// Compile-time interface checks.
var _ CalendarStore = (*SQLiteStore)(nil)
var _ RefreshLog = (*SQLiteStore)(nil)

// SQLiteStore implements CalendarStore and RefreshLog backed by a SQLite
// database file.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates (or opens) the SQLite database at path, creating parent
// directories as needed, and runs migrations.
func Open(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	// modernc.org/sqlite uses a file path DSN.
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,

		`CREATE TABLE IF NOT EXISTS market_holidays (
			date TEXT PRIMARY KEY,       -- "2006-01-02", exchange-local
			name TEXT NOT NULL,
			kind TEXT NOT NULL,          -- "full" | "early_close"
			close_at_min INTEGER NOT NULL DEFAULT 0
		);`,

		`CREATE TABLE IF NOT EXISTS refresh_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_at TEXT NOT NULL,        -- fixed-width RFC3339 UTC
			status TEXT NOT NULL,        -- "success" | "failure"
			source TEXT,
			records_ingested INTEGER,
			error TEXT
		);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// CalendarStore implementation
// ---------------------------------------------------------------------------

// ReplaceRange swaps all rows in [start, end] for the given holiday set in
// one transaction. Date-string compares are safe because the format is
// fixed-width ISO.
func (s *SQLiteStore) ReplaceRange(ctx context.Context, start, end string, holidays []domain.Holiday) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM market_holidays WHERE date >= ? AND date <= ?`, start, end); err != nil {
		return fmt.Errorf("clearing range %s..%s: %w", start, end, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO market_holidays(date, name, kind, close_at_min)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, h := range holidays {
		if _, err := stmt.ExecContext(ctx, h.Date, h.Name, string(h.Kind), int(h.CloseAt)); err != nil {
			return fmt.Errorf("inserting holiday %s: %w", h.Date, err)
		}
	}
	return tx.Commit()
}

// Holidays returns rows with start <= date <= end ordered by date.
func (s *SQLiteStore) Holidays(ctx context.Context, start, end string) ([]domain.Holiday, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, name, kind, close_at_min
		FROM market_holidays
		WHERE date >= ? AND date <= ?
		ORDER BY date
	`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHolidays(rows)
}

// AllHolidays returns every stored row ordered by date.
func (s *SQLiteStore) AllHolidays(ctx context.Context) ([]domain.Holiday, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, name, kind, close_at_min
		FROM market_holidays
		ORDER BY date
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHolidays(rows)
}

func scanHolidays(rows *sql.Rows) ([]domain.Holiday, error) {
	var out []domain.Holiday
	for rows.Next() {
		var h domain.Holiday
		var kind string
		var closeAt int
		if err := rows.Scan(&h.Date, &h.Name, &kind, &closeAt); err != nil {
			return nil, err
		}
		h.Kind = domain.ClosureKind(kind)
		h.CloseAt = domain.TimeOfDay(closeAt)
		out = append(out, h)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// RefreshLog implementation
// ---------------------------------------------------------------------------

// AppendRefresh records one refresh cycle attempt.
func (s *SQLiteStore) AppendRefresh(ctx context.Context, rec domain.RefreshRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_log(run_at, status, source, records_ingested, error)
		VALUES (?, ?, ?, ?, ?)
	`, formatRunAt(rec.RunAt), string(rec.Status), rec.Source, rec.RecordsIngested, rec.Error)
	return err
}

// LastRefresh returns the most recent refresh record, or nil when the log
// is empty.
func (s *SQLiteStore) LastRefresh(ctx context.Context) (*domain.RefreshRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_at, status, source, records_ingested, error
		FROM refresh_log
		ORDER BY run_at DESC, id DESC
		LIMIT 1
	`)

	var rec domain.RefreshRecord
	var runAt, status string
	err := row.Scan(&runAt, &status, &rec.Source, &rec.RecordsIngested, &rec.Error)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rec.Status = domain.RefreshStatus(status)
	rec.RunAt, err = time.Parse(fixedRFC3339, runAt)
	if err != nil {
		return nil, fmt.Errorf("parsing refresh run_at %q: %w", runAt, err)
	}
	return &rec, nil
}
