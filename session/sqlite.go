package session

import (
	"context"
	"database/sql"
	"fmt"

	// Pure Go SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/hupe1980/agentrun/item"
)

// Compile-time interface check.
var _ Store = (*SQLiteStore)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS session_items (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	payload    BLOB NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_session_items_session_id ON session_items (session_id, id);
`

// SQLiteStore persists session histories in a SQLite database using the
// pure Go modernc driver. Use ":memory:" as the path for an ephemeral
// database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema exists. Close releases the handle.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// The modernc driver does not support concurrent writers on one
	// connection pool entry per statement, keep a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Items implements the Store interface.
func (s *SQLiteStore) Items(ctx context.Context, sessionID string) ([]item.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM session_items WHERE session_id = ? ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session items: %w", err)
	}
	defer rows.Close()

	var items []item.Item

	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan session item: %w", err)
		}

		it, err := item.Unmarshal(payload)
		if err != nil {
			return nil, fmt.Errorf("decode stored item: %w", err)
		}

		items = append(items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session items: %w", err)
	}

	return items, nil
}

// Append implements the Store interface.
func (s *SQLiteStore) Append(ctx context.Context, sessionID string, items []item.Item) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO session_items (session_id, payload) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, it := range items {
		payload, err := item.Marshal(it)
		if err != nil {
			return fmt.Errorf("encode item: %w", err)
		}

		if _, err := stmt.ExecContext(ctx, sessionID, payload); err != nil {
			return fmt.Errorf("insert session item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// Clear implements the Store interface.
func (s *SQLiteStore) Clear(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM session_items WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session items: %w", err)
	}

	return nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
