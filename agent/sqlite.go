package agent

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS threads (
	id         TEXT PRIMARY KEY,
	state      BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteCheckpointer persists threads to a local SQLite database, one JSON
// document per thread.
type SQLiteCheckpointer struct {
	db *sql.DB
}

func NewSQLiteCheckpointer(path string) (*SQLiteCheckpointer, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize checkpoint schema: %w", err)
	}

	return &SQLiteCheckpointer{db: db}, nil
}

func (c *SQLiteCheckpointer) Load(ctx context.Context, threadID string) (*Thread, error) {
	var data []byte
	err := c.db.QueryRowContext(ctx,
		"SELECT state FROM threads WHERE id = ?", threadID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load thread %s: %w", threadID, err)
	}

	var thread Thread
	if err := json.Unmarshal(data, &thread); err != nil {
		return nil, fmt.Errorf("failed to decode thread %s: %w", threadID, err)
	}
	return &thread, nil
}

func (c *SQLiteCheckpointer) Save(ctx context.Context, thread *Thread) error {
	data, err := json.Marshal(thread)
	if err != nil {
		return fmt.Errorf("failed to encode thread %s: %w", thread.ID, err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO threads (id, state, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET state = excluded.state, updated_at = CURRENT_TIMESTAMP`,
		thread.ID, data)
	if err != nil {
		return fmt.Errorf("failed to save thread %s: %w", thread.ID, err)
	}
	return nil
}

func (c *SQLiteCheckpointer) Close() error {
	return c.db.Close()
}
