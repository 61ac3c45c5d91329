// Package ledger persists which jobs have been processed so repeated
// submissions of the same file are handled exactly once.
package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Status values recorded for a job.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Record is one ledger row. JobID is the stable job identifier
// ("local:<path>" or "dropbox:<account>:<file-id>").
type Record struct {
	JobID        string
	Hash         string
	AccountID    string
	ProcessedAt  time.Time
	Status       string
	ErrorMessage string
	OutputPath   string
}

// Stats summarizes ledger contents, optionally scoped to one account.
type Stats struct {
	Total     int
	Succeeded int
	Failed    int
}

// Store is a SQLite-backed processing ledger.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS processed_files (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    identifier TEXT NOT NULL UNIQUE,
    hash TEXT,
    account_id TEXT,
    processed_at TEXT NOT NULL,
    status TEXT NOT NULL,
    error_message TEXT,
    output_path TEXT
);
CREATE INDEX IF NOT EXISTS idx_processed_files_status ON processed_files(status);
CREATE INDEX IF NOT EXISTS idx_processed_files_account ON processed_files(account_id);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("apply ledger schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// IsProcessed reports whether jobID previously completed successfully.
// Failed attempts do not count; they remain retryable.
func (s *Store) IsProcessed(jobID string) (bool, error) {
	var status string
	err := s.db.QueryRow(
		`SELECT status FROM processed_files WHERE identifier = ?`, jobID,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query ledger: %w", err)
	}
	return status == StatusSuccess, nil
}

// MarkProcessed upserts the record for its job identifier, so a retry
// after failure overwrites the earlier error row.
func (s *Store) MarkProcessed(rec Record) error {
	if rec.ProcessedAt.IsZero() {
		rec.ProcessedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO processed_files
		 (identifier, hash, account_id, processed_at, status, error_message, output_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.JobID,
		nullableString(rec.Hash),
		nullableString(rec.AccountID),
		rec.ProcessedAt.Format(time.RFC3339),
		rec.Status,
		nullableString(rec.ErrorMessage),
		nullableString(rec.OutputPath),
	)
	if err != nil {
		return fmt.Errorf("record ledger entry: %w", err)
	}
	return nil
}

// Get returns the record for jobID, or nil when none exists.
func (s *Store) Get(jobID string) (*Record, error) {
	row := s.db.QueryRow(
		`SELECT identifier, hash, account_id, processed_at, status, error_message, output_path
		 FROM processed_files WHERE identifier = ?`, jobID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns all records, most recent first.
func (s *Store) List() ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT identifier, hash, account_id, processed_at, status, error_message, output_path
		 FROM processed_files ORDER BY processed_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// StatsFor counts records, scoped to accountID when non-empty.
func (s *Store) StatsFor(accountID string) (Stats, error) {
	query := `SELECT status, COUNT(*) FROM processed_files GROUP BY status`
	args := []any{}
	if accountID != "" {
		query = `SELECT status, COUNT(*) FROM processed_files WHERE account_id = ? GROUP BY status`
		args = append(args, accountID)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return Stats{}, fmt.Errorf("query ledger stats: %w", err)
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, fmt.Errorf("scan ledger stats: %w", err)
		}
		stats.Total += count
		switch status {
		case StatusSuccess:
			stats.Succeeded = count
		case StatusError:
			stats.Failed = count
		}
	}
	return stats, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec         Record
		hash        sql.NullString
		accountID   sql.NullString
		processedAt string
		errMessage  sql.NullString
		outputPath  sql.NullString
	)
	if err := row.Scan(&rec.JobID, &hash, &accountID, &processedAt, &rec.Status, &errMessage, &outputPath); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan ledger row: %w", err)
	}
	rec.Hash = hash.String
	rec.AccountID = accountID.String
	rec.ErrorMessage = errMessage.String
	rec.OutputPath = outputPath.String
	if ts, err := time.Parse(time.RFC3339, processedAt); err == nil {
		rec.ProcessedAt = ts
	}
	return &rec, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
