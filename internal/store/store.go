// Package store persists tasks to a local SQLite database. It is a durable
// mirror of the in-memory registry: one row per task, written on every
// transition and read back once at startup.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vidgrab/vidgrab/internal/model"
)

type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open initializes the SQLite database under dataDir and ensures the task
// table exists.
func Open(dataDir string, log *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}
	dbFile := filepath.Join(dataDir, "tasks.db")
	db, err := sql.Open("sqlite", dbFile)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}

	// Enable WAL mode and set busy timeout for better concurrency. Not
	// critical if the pragmas fail.
	_, err = db.Exec(`
		PRAGMA busy_timeout = 5000;
		PRAGMA journal_mode = WAL;
	`)
	if err != nil {
		log.Warn("sqlite pragmas failed", "error", err)
	}

	s := &Store{db: db, log: log}
	if err := s.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init task table: %w", err)
	}
	return s, nil
}

func (s *Store) init() error {
	query := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		output_path TEXT NOT NULL,
		format TEXT NOT NULL,
		cookie_file TEXT,
		status TEXT NOT NULL,
		progress TEXT,
		result TEXT,
		error TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(query)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert writes or replaces the row for the task in a single statement.
func (s *Store) Upsert(t *model.Task) error {
	progress, err := encodeBlob(t.Progress)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	result, err := encodeBlob(t.Result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	errRec, err := encodeBlob(t.Error)
	if err != nil {
		return fmt.Errorf("encode error record: %w", err)
	}

	query := `INSERT OR REPLACE INTO tasks
		(id, url, output_path, format, cookie_file, status, progress, result, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.Exec(query,
		t.ID,
		t.Request.URL,
		t.Request.OutputDir,
		t.Request.Format,
		t.Request.CookieFile,
		string(t.Status),
		progress,
		result,
		errRec,
		t.CreatedAt.Format(time.RFC3339Nano),
		t.UpdatedAt.Format(time.RFC3339Nano),
	)
	return err
}

// LoadAll reads every row back into tasks. Malformed rows are skipped with
// a warning so a single bad row never prevents startup.
func (s *Store) LoadAll() ([]*model.Task, error) {
	query := `SELECT id, url, output_path, format, cookie_file, status, progress, result, error, created_at, updated_at FROM tasks`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		var (
			t                        model.Task
			cookie                   sql.NullString
			progress, result, errRec sql.NullString
			createdAt, updatedAt     string
		)
		if err := rows.Scan(&t.ID, &t.Request.URL, &t.Request.OutputDir, &t.Request.Format,
			&cookie, &t.Status, &progress, &result, &errRec, &createdAt, &updatedAt); err != nil {
			s.log.Warn("skipping unreadable task row", "error", err)
			continue
		}
		t.Request.CookieFile = cookie.String

		if err := decodeRow(&t, progress, result, errRec, createdAt, updatedAt); err != nil {
			s.log.Warn("skipping malformed task row", "id", t.ID, "error", err)
			continue
		}
		tasks = append(tasks, &t)
	}
	return tasks, rows.Err()
}

func decodeRow(t *model.Task, progress, result, errRec sql.NullString, createdAt, updatedAt string) error {
	if progress.Valid && progress.String != "" {
		var p model.Progress
		if err := json.Unmarshal([]byte(progress.String), &p); err != nil {
			return fmt.Errorf("decode progress: %w", err)
		}
		t.Progress = &p
	}
	if result.Valid && result.String != "" {
		var r model.Result
		if err := json.Unmarshal([]byte(result.String), &r); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
		t.Result = &r
	}
	if errRec.Valid && errRec.String != "" {
		var e model.ErrorRecord
		if err := json.Unmarshal([]byte(errRec.String), &e); err != nil {
			return fmt.Errorf("decode error record: %w", err)
		}
		t.Error = &e
	}

	var err error
	t.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return fmt.Errorf("parse created_at: %w", err)
	}
	t.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return fmt.Errorf("parse updated_at: %w", err)
	}
	return nil
}

// encodeBlob serializes v to JSON, returning NULL for nil pointers so absent
// fields round-trip as absent.
func encodeBlob(v any) (sql.NullString, error) {
	switch x := v.(type) {
	case *model.Progress:
		if x == nil {
			return sql.NullString{}, nil
		}
	case *model.Result:
		if x == nil {
			return sql.NullString{}, nil
		}
	case *model.ErrorRecord:
		if x == nil {
			return sql.NullString{}, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
