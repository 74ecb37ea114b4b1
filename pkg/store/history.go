package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pricelens/pricelens/internal/models"
)

// HistoryStore is the append-only analysis history log, kept in a local
// SQLite file separate from the corpus database.
type HistoryStore struct {
	db *sql.DB
	mu sync.Mutex
}

func NewHistoryStore(path string) (*HistoryStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	s := &HistoryStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *HistoryStore) init() error {
	query := `
	CREATE TABLE IF NOT EXISTS user_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		product_name TEXT NOT NULL,
		mrp REAL NOT NULL,
		image_url TEXT NOT NULL DEFAULT '',
		ai_result TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create user_history table: %w", err)
	}

	indexQuery := `CREATE INDEX IF NOT EXISTS user_history_user_idx ON user_history (user_id, created_at);`
	if _, err := s.db.Exec(indexQuery); err != nil {
		return fmt.Errorf("failed to create user_history index: %w", err)
	}

	return nil
}

// Append inserts one history row. Rows are never updated or deleted.
func (s *HistoryStore) Append(ctx context.Context, entry models.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := json.Marshal(entry.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis result: %w", err)
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO user_history (user_id, product_name, mrp, image_url, ai_result, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		entry.UserID, entry.ProductName, entry.MRP, entry.ImageURL, string(result), createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert history row: %w", err)
	}

	return nil
}

// Recent returns a user's latest analyses, newest first.
func (s *HistoryStore) Recent(ctx context.Context, userID string, limit int) ([]models.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, product_name, mrp, image_url, ai_result, created_at FROM user_history WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?",
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []models.HistoryEntry
	for rows.Next() {
		var entry models.HistoryEntry
		var result, createdAt string
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.ProductName, &entry.MRP, &entry.ImageURL, &result, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		if err := json.Unmarshal([]byte(result), &entry.Result); err != nil {
			return nil, fmt.Errorf("malformed stored result for row %d: %w", entry.ID, err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			entry.CreatedAt = ts
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func (s *HistoryStore) Close() error {
	return s.db.Close()
}
