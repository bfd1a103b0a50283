package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DBFile is the database file name inside the history directory.
const DBFile = "forager.db"

// Query statuses.
const (
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// ErrNotFound is returned when a query ID is not in the history.
var ErrNotFound = errors.New("query not found")

// DB is the SQLite-backed query history. It is an audit log: nothing in it
// is read back into a prompt.
type DB struct {
	db   *sql.DB
	path string
}

// OpenDB opens (or creates) the history database in dir.
func OpenDB(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	dbPath := filepath.Join(dir, DBFile)
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Single connection for writes, WAL allows concurrent reads
	db.SetMaxOpenConns(2)

	s := &DB{db: db, path: dbPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *DB) migrate() error {
	ddl := `
	CREATE TABLE IF NOT EXISTS queries (
		id           TEXT PRIMARY KEY,
		query        TEXT NOT NULL,
		provider     TEXT NOT NULL,
		tool         TEXT,
		status       TEXT NOT NULL DEFAULT 'running',
		answer       TEXT,
		error_kind   TEXT,
		error        TEXT,
		tool_ms      REAL,
		total_ms     REAL,
		created_at   TEXT NOT NULL,
		completed_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_queries_created ON queries(created_at);

	CREATE TABLE IF NOT EXISTS events (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		query_id    TEXT NOT NULL,
		type        TEXT NOT NULL,
		data        TEXT,
		created_at  TEXT NOT NULL,
		FOREIGN KEY (query_id) REFERENCES queries(id)
	);
	CREATE INDEX IF NOT EXISTS idx_events_query ON events(query_id);
	`
	_, err := s.db.Exec(ddl)
	return err
}

func (s *DB) Path() string { return s.path }

func (s *DB) Close() error {
	return s.db.Close()
}

// timeLayout is fixed-width so timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func now() string {
	return time.Now().UTC().Format(timeLayout)
}

// --- Query operations ---

type QueryRow struct {
	ID          string  `json:"id"`
	Query       string  `json:"query"`
	Provider    string  `json:"provider"`
	Tool        string  `json:"tool,omitempty"`
	Status      string  `json:"status"`
	Answer      string  `json:"answer,omitempty"`
	ErrorKind   string  `json:"error_kind,omitempty"`
	Error       string  `json:"error,omitempty"`
	ToolMs      float64 `json:"tool_ms,omitempty"`
	TotalMs     float64 `json:"total_ms,omitempty"`
	CreatedAt   string  `json:"created_at"`
	CompletedAt string  `json:"completed_at,omitempty"`
}

const queryColumns = `id, query, provider, COALESCE(tool, ''), status, COALESCE(answer, ''),
	COALESCE(error_kind, ''), COALESCE(error, ''), COALESCE(tool_ms, 0), COALESCE(total_ms, 0),
	created_at, COALESCE(completed_at, '')`

type scanner interface {
	Scan(dest ...any) error
}

func scanQuery(row scanner) (*QueryRow, error) {
	var q QueryRow
	err := row.Scan(&q.ID, &q.Query, &q.Provider, &q.Tool, &q.Status, &q.Answer,
		&q.ErrorKind, &q.Error, &q.ToolMs, &q.TotalMs, &q.CreatedAt, &q.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *DB) CreateQuery(ctx context.Context, id, query, provider string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO queries (id, query, provider, status, created_at) VALUES (?, ?, ?, 'running', ?)`,
		id, query, provider, now(),
	)
	return err
}

// SetTool records which tool the model chose for a query.
func (s *DB) SetTool(ctx context.Context, id, tool string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE queries SET tool = ? WHERE id = ?`, tool, id)
	return err
}

// SetToolDuration records how long the tool call took.
func (s *DB) SetToolDuration(ctx context.Context, id string, d time.Duration) error {
	_, err := s.db.ExecContext(ctx, `UPDATE queries SET tool_ms = ? WHERE id = ?`, millis(d), id)
	return err
}

func (s *DB) CompleteQuery(ctx context.Context, id, answer string, total time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE queries SET status = 'done', answer = ?, total_ms = ?, completed_at = ? WHERE id = ?`,
		answer, millis(total), now(), id,
	)
	return err
}

func (s *DB) FailQuery(ctx context.Context, id, kind, errMsg string, total time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE queries SET status = 'failed', error_kind = ?, error = ?, total_ms = ?, completed_at = ? WHERE id = ?`,
		kind, errMsg, millis(total), now(), id,
	)
	return err
}

func (s *DB) GetQuery(ctx context.Context, id string) (*QueryRow, error) {
	q, err := scanQuery(s.db.QueryRowContext(ctx, `SELECT `+queryColumns+` FROM queries WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return q, err
}

// ListQueries returns the most recent queries first. A non-positive limit
// returns all of them.
func (s *DB) ListQueries(ctx context.Context, limit int) ([]QueryRow, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+queryColumns+` FROM queries ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []QueryRow
	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

// --- Event log (append-only) ---

type EventRow struct {
	ID        int64           `json:"id"`
	QueryID   string          `json:"query_id"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt string          `json:"created_at"`
}

func (s *DB) AppendEvent(ctx context.Context, queryID, eventType string, data interface{}) (int64, error) {
	var dataStr string
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return 0, err
		}
		dataStr = string(b)
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO events (query_id, type, data, created_at) VALUES (?, ?, ?, ?)`,
		queryID, eventType, dataStr, now(),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// Events returns a query's events in the order they were appended.
func (s *DB) Events(ctx context.Context, queryID string) ([]EventRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query_id, type, COALESCE(data, ''), created_at FROM events WHERE query_id = ? ORDER BY id`,
		queryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		var ev EventRow
		var data string
		if err := rows.Scan(&ev.ID, &ev.QueryID, &ev.Type, &data, &ev.CreatedAt); err != nil {
			return nil, err
		}
		if data != "" {
			ev.Data = json.RawMessage(data)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
