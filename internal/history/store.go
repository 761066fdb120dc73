// Package history persists chat exchanges in SQLite and reports usage
// analytics over them.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Exchange is one question and answer pair within a chat session.
// Refused exchanges carry the refusal message as their answer and
// chapter "None".
type Exchange struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Chapter   string    `json:"chapter"`
	Relevance float64   `json:"relevance"`
	Refused   bool      `json:"refused"`
	AskedAt   time.Time `json:"asked_at"`
}

// Store persists exchanges in a SQLite database.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens or creates the history database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS exchanges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		chapter TEXT NOT NULL,
		relevance REAL NOT NULL,
		refused INTEGER NOT NULL DEFAULT 0,
		asked_at TIMESTAMP NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);

	CREATE INDEX IF NOT EXISTS idx_exchanges_session ON exchanges(session_id, id);
	CREATE INDEX IF NOT EXISTS idx_exchanges_chapter ON exchanges(chapter);
	`
	_, err := db.Exec(schema)
	return err
}

// RecordExchange appends an exchange, creating its session row on first
// use. The exchange ID and AskedAt are filled in.
func (s *Store) RecordExchange(ctx context.Context, ex *Exchange) error {
	if ex.SessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if ex.AskedAt.IsZero() {
		ex.AskedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (id, created_at) VALUES (?, ?)`,
		ex.SessionID, ex.AskedAt,
	); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO exchanges (session_id, question, answer, chapter, relevance, refused, asked_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ex.SessionID, ex.Question, ex.Answer, ex.Chapter, ex.Relevance, ex.Refused, ex.AskedAt,
	)
	if err != nil {
		return err
	}
	if id, err := result.LastInsertId(); err == nil {
		ex.ID = id
	}
	return tx.Commit()
}

// SessionHistory returns up to limit exchanges for a session in
// chronological order, keeping the most recent ones when the session is
// longer than the limit.
func (s *Store) SessionHistory(ctx context.Context, sessionID string, limit int) ([]*Exchange, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, question, answer, chapter, relevance, refused, asked_at
		 FROM exchanges WHERE session_id = ? ORDER BY id DESC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exchanges []*Exchange
	for rows.Next() {
		var ex Exchange
		if err := rows.Scan(&ex.ID, &ex.SessionID, &ex.Question, &ex.Answer, &ex.Chapter, &ex.Relevance, &ex.Refused, &ex.AskedAt); err != nil {
			return nil, err
		}
		exchanges = append(exchanges, &ex)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Rows arrive newest first; flip to chronological.
	for i, j := 0, len(exchanges)-1; i < j; i, j = i+1, j-1 {
		exchanges[i], exchanges[j] = exchanges[j], exchanges[i]
	}
	return exchanges, nil
}

// CountExchanges returns the total number of recorded exchanges.
func (s *Store) CountExchanges(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exchanges`).Scan(&count)
	return count, err
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
