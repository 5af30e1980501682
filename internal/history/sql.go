package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	sqlDriver = "sqlite"
	sqlDSNOpt = "?_pragma=busy_timeout(3000)&_pragma=journal_mode(WAL)"
)

// DefaultDBPath returns the SQLite index location under the user's config
// directory.
func DefaultDBPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating config dir: %w", err)
	}
	return filepath.Join(dir, "jlaunch", "history.db"), nil
}

// SQLStore indexes launch records in an SQLite database.
type SQLStore struct {
	db *sql.DB
}

// OpenSQL opens (creating if needed) the SQLite index at path.
func OpenSQL(path string) (*SQLStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("history db: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("history db: create dir: %w", err)
	}
	db, err := sql.Open(sqlDriver, path+sqlDSNOpt)
	if err != nil {
		return nil, fmt.Errorf("history db: open: %w", err)
	}
	s := &SQLStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database handle.
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save inserts rec, replacing any earlier record with the same ID.
func (s *SQLStore) Save(rec *Record) error {
	if strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("history db: record id is required")
	}
	args, err := json.Marshal(rec.Args)
	if err != nil {
		return fmt.Errorf("history db: encoding args of %s: %w", rec.ID, err)
	}
	const q = `
INSERT INTO launches (
	id, java_path, args, dir, exit_status, stdout, stderr, truncated, started_at, duration_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	java_path = excluded.java_path,
	args = excluded.args,
	dir = excluded.dir,
	exit_status = excluded.exit_status,
	stdout = excluded.stdout,
	stderr = excluded.stderr,
	truncated = excluded.truncated,
	started_at = excluded.started_at,
	duration_ms = excluded.duration_ms`
	_, err = s.db.ExecContext(context.Background(), q,
		rec.ID, rec.JavaPath, string(args), rec.Dir, rec.ExitStatus,
		rec.Stdout, rec.Stderr, rec.Truncated, rec.StartedAt.UnixMilli(), rec.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("history db: saving %s: %w", rec.ID, err)
	}
	return nil
}

// Load returns the record with the given ID.
func (s *SQLStore) Load(runID string) (*Record, error) {
	const q = recordColumns + ` WHERE id = ?`
	rec, err := scanRecord(s.db.QueryRowContext(context.Background(), q, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("history db: loading %s: %w", runID, err)
	}
	return rec, nil
}

// List returns up to limit records, newest first. A limit of 0 or less
// returns 20.
func (s *SQLStore) List(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = recordColumns + ` ORDER BY started_at DESC, id LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("history db: listing: %w", err)
	}
	defer rows.Close()

	out := make([]*Record, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("history db: listing: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

const recordColumns = `
SELECT id, java_path, args, dir, exit_status, stdout, stderr, truncated, started_at, duration_ms
FROM launches`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		rec       Record
		args      string
		startedAt int64
	)
	if err := row.Scan(&rec.ID, &rec.JavaPath, &args, &rec.Dir, &rec.ExitStatus,
		&rec.Stdout, &rec.Stderr, &rec.Truncated, &startedAt, &rec.DurationMS); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(args), &rec.Args); err != nil {
		return nil, fmt.Errorf("decoding args of %s: %w", rec.ID, err)
	}
	rec.StartedAt = time.UnixMilli(startedAt)
	return &rec, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS launches (
	id TEXT NOT NULL PRIMARY KEY,
	java_path TEXT NOT NULL,
	args TEXT NOT NULL DEFAULT '[]',
	dir TEXT NOT NULL DEFAULT '',
	exit_status INTEGER NOT NULL,
	stdout TEXT NOT NULL DEFAULT '',
	stderr TEXT NOT NULL DEFAULT '',
	truncated INTEGER NOT NULL DEFAULT 0,
	started_at INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_launches_started_at ON launches(started_at DESC);`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("history db: migrate: %w", err)
	}
	return nil
}
