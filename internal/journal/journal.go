// Package journal keeps a history of processed requests in SQLite.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one answered request.
type Entry struct {
	ID          int64     `json:"id"`
	RequestID   string    `json:"request_id"`
	Filename    string    `json:"filename"`
	Status      string    `json:"status"`
	Kind        string    `json:"kind,omitempty"`
	Stage       string    `json:"stage,omitempty"`
	Message     string    `json:"message,omitempty"`
	OutputPath  string    `json:"img_output_path,omitempty"`
	Preprocess  float64   `json:"preprocess_exec_time"`
	Recognition float64   `json:"ocr_exec_time"`
	CreatedAt   time.Time `json:"created_at"`
}

// Journal records entries in a SQLite database.
type Journal struct {
	db *sql.DB
}

// Open connects to the database at path, creating it and its parent
// directory when needed, and runs schema migrations.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}
	conn, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	if err := migrate(conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Journal{db: conn}, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS requests (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			request_id TEXT NOT NULL,
			filename TEXT NOT NULL,
			status TEXT NOT NULL CHECK(status IN ('ok','error')),
			kind TEXT NOT NULL DEFAULT '',
			stage TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL DEFAULT '',
			output_path TEXT NOT NULL DEFAULT '',
			preprocess_sec REAL NOT NULL DEFAULT 0,
			recognition_sec REAL NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_requests_created ON requests(created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_requests_request_id ON requests(request_id);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("execute %q: %w", stmt, err)
		}
	}
	return nil
}

// Record stores e and returns its row id. A zero CreatedAt is set to now.
func (j *Journal) Record(ctx context.Context, e Entry) (int64, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	res, err := j.db.ExecContext(ctx, `
		INSERT INTO requests (request_id, filename, status, kind, stage, message, output_path,
			preprocess_sec, recognition_sec, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RequestID, e.Filename, e.Status, e.Kind, e.Stage, e.Message, e.OutputPath,
		e.Preprocess, e.Recognition, e.CreatedAt.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("insert request %s: %w", e.RequestID, err)
	}
	return res.LastInsertId()
}

// List returns up to limit entries, newest first. A non-positive limit
// returns everything.
func (j *Journal) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, request_id, filename, status, kind, stage, message, output_path,
			preprocess_sec, recognition_sec, created_at
		FROM requests ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var e Entry
		var created int64
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Filename, &e.Status, &e.Kind, &e.Stage,
			&e.Message, &e.OutputPath, &e.Preprocess, &e.Recognition, &created); err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		e.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
