// Package history persists verification outcomes to a local SQLite
// database so drift can be traced back to a build.
package history

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

const (
	createTableStmt = `
CREATE TABLE IF NOT EXISTS verifications (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at TEXT NOT NULL,
    image_ref TEXT NOT NULL,
    fingerprint TEXT NOT NULL,
    result TEXT NOT NULL,
    locked TEXT
);`
	createIndexesStmt = `
CREATE INDEX IF NOT EXISTS idx_verifications_created_at ON verifications(created_at);`
	insertStmt = `INSERT INTO verifications(created_at, image_ref, fingerprint, result, locked) VALUES(?, ?, ?, ?, ?)`
	recentStmt = `SELECT created_at, image_ref, fingerprint, result, locked FROM verifications ORDER BY id DESC LIMIT ?`
)

// Entry is one verification outcome.
type Entry struct {
	CreatedAt   time.Time
	ImageRef    string
	Fingerprint string
	Result      string
	// Locked is the potr.sum value at verification time, empty on first lock
	Locked string
}

// Log appends verification entries to a SQLite database.
type Log struct {
	db     *sql.DB
	insert *sql.Stmt
}

// Open initializes the database at path, creating parent directories
// and the schema when missing.
func Open(path string) (*Log, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("history path cannot be empty")
	}
	dir := filepath.Dir(p)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	// single connection avoids SQLITE_BUSY on concurrent command runs
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, createTableStmt); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure verifications table: %w", err)
	}
	if _, err := db.ExecContext(ctx, createIndexesStmt); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure verification indexes: %w", err)
	}
	stmt, err := db.PrepareContext(ctx, insertStmt)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare insert statement: %w", err)
	}
	return &Log{
		db:     db,
		insert: stmt,
	}, nil
}

// Close releases database resources.
func (l *Log) Close() error {
	var err error
	if l.insert != nil {
		err = errors.Join(err, l.insert.Close())
	}
	if l.db != nil {
		err = errors.Join(err, l.db.Close())
	}
	return err
}

// Record stores the entry, timestamping it when CreatedAt is zero.
func (l *Log) Record(ctx context.Context, entry Entry) error {
	if l == nil {
		return nil
	}
	created := entry.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := l.insert.ExecContext(
		ctx,
		created.UTC().Format(time.RFC3339Nano),
		entry.ImageRef,
		entry.Fingerprint,
		entry.Result,
		entry.Locked,
	)
	return err
}

// Recent returns up to limit entries, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, recentStmt, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		var created string
		if err := rows.Scan(&created, &e.ImageRef, &e.Fingerprint, &e.Result, &e.Locked); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		e.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("parse history timestamp %q: %w", created, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
