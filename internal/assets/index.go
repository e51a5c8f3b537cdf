package assets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const dataDirPerms = 0o750

// Index is the SQLite-backed catalogue of committed assets. It records
// one row per (challenge, artifact name) with the size, content hash, and
// aggregate modification time used for change detection by deploy
// backends.
//
// The connection pool is limited to a single connection with WAL mode, so
// concurrent readers never collide with the packer's writes.
type Index struct {
	Path string
	DB   *sql.DB
}

const indexSchema = `
CREATE TABLE IF NOT EXISTS assets (
	challenge_id  TEXT NOT NULL,
	name          TEXT NOT NULL,
	size_bytes    INTEGER NOT NULL,
	sha256        TEXT NOT NULL,
	mtime_unix_ns INTEGER NOT NULL,
	updated_at    TEXT NOT NULL,
	PRIMARY KEY (challenge_id, name)
);
`

// OpenIndex connects to SQLite at path, applies pragmas, and creates the
// schema if needed.
func OpenIndex(path string) (*Index, error) {
	if path == "" {
		return nil, errors.New("index path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), dataDirPerms); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	if err := applyPragmas(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	if _, err := conn.Exec(indexSchema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create index schema: %w", err)
	}
	return &Index{Path: path, DB: conn}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}
	return nil
}

// Close releases the underlying database connection. Safe on a nil Index.
func (ix *Index) Close() error {
	if ix == nil || ix.DB == nil {
		return nil
	}
	return ix.DB.Close()
}

// Record is one committed asset row.
type Record struct {
	ChallengeID string
	Name        string
	SizeBytes   int64
	Sha256      string
	MTime       time.Time
	UpdatedAt   time.Time
}

// ReplaceAll atomically replaces the asset rows of one challenge with
// records and returns the names that were present before but are not any
// more, so the caller can remove the corresponding files.
func (ix *Index) ReplaceAll(ctx context.Context, challengeID string, records []Record) ([]string, error) {
	if ix == nil || ix.DB == nil {
		return nil, errors.New("asset index is nil")
	}
	challengeID = strings.TrimSpace(challengeID)
	if challengeID == "" {
		return nil, errors.New("challenge id is required")
	}
	tx, err := ix.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin index transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := listNames(ctx, tx, challengeID)
	if err != nil {
		return nil, err
	}
	keep := make(map[string]bool, len(records))
	now := time.Now().UTC()
	for _, rec := range records {
		keep[rec.Name] = true
		_, err := tx.ExecContext(ctx, `INSERT INTO assets (challenge_id, name, size_bytes, sha256, mtime_unix_ns, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (challenge_id, name) DO UPDATE SET
				size_bytes = excluded.size_bytes,
				sha256 = excluded.sha256,
				mtime_unix_ns = excluded.mtime_unix_ns,
				updated_at = excluded.updated_at`,
			challengeID, rec.Name, rec.SizeBytes, rec.Sha256, rec.MTime.UnixNano(), formatTime(now),
		)
		if err != nil {
			return nil, fmt.Errorf("upsert asset %s/%s: %w", challengeID, rec.Name, err)
		}
	}
	var removed []string
	for _, name := range existing {
		if keep[name] {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM assets WHERE challenge_id = ? AND name = ?`, challengeID, name); err != nil {
			return nil, fmt.Errorf("delete stale asset %s/%s: %w", challengeID, name, err)
		}
		removed = append(removed, name)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit index transaction: %w", err)
	}
	return removed, nil
}

// List returns the committed asset rows for a challenge ordered by name.
func (ix *Index) List(ctx context.Context, challengeID string) ([]Record, error) {
	if ix == nil || ix.DB == nil {
		return nil, errors.New("asset index is nil")
	}
	rows, err := ix.DB.QueryContext(ctx, `SELECT challenge_id, name, size_bytes, sha256, mtime_unix_ns, updated_at
		FROM assets WHERE challenge_id = ? ORDER BY name ASC`, challengeID)
	if err != nil {
		return nil, fmt.Errorf("list assets for %s: %w", challengeID, err)
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var rec Record
		var mtimeNS int64
		var updatedAt string
		if err := rows.Scan(&rec.ChallengeID, &rec.Name, &rec.SizeBytes, &rec.Sha256, &mtimeNS, &updatedAt); err != nil {
			return nil, err
		}
		rec.MTime = time.Unix(0, mtimeNS).UTC()
		parsed, err := parseTime(updatedAt)
		if err != nil {
			return nil, fmt.Errorf("parse asset updated_at: %w", err)
		}
		rec.UpdatedAt = parsed
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assets for %s: %w", challengeID, err)
	}
	return out, nil
}

func listNames(ctx context.Context, tx *sql.Tx, challengeID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT name FROM assets WHERE challenge_id = ? ORDER BY name ASC`, challengeID)
	if err != nil {
		return nil, fmt.Errorf("list asset names for %s: %w", challengeID, err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate asset names for %s: %w", challengeID, err)
	}
	return names, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, value)
}
