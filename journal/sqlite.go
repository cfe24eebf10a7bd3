// Package journal records served predictions in SQLite.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS predictions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    request_id TEXT NOT NULL,
    sample TEXT NOT NULL,
    result TEXT,
    error TEXT,
    status INTEGER NOT NULL,
    created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at);
`

// Entry is one served request. Exactly one of Predictions and Error is set.
type Entry struct {
	ID          int64              `json:"id"`
	RequestID   string             `json:"request_id"`
	Sample      []float64          `json:"sample"`
	Predictions map[string]float64 `json:"predictions,omitempty"`
	Error       string             `json:"error,omitempty"`
	Status      int                `json:"status"`
	CreatedAt   time.Time          `json:"created_at"`
}

type Store struct {
	db *sql.DB
}

// Open creates the database file and schema if needed.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// sqlite serializes writers; one connection avoids SQLITE_BUSY under load
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Record(ctx context.Context, entry Entry) error {
	if s == nil || s.db == nil {
		return errors.New("journal not initialized")
	}
	sample, err := json.Marshal(entry.Sample)
	if err != nil {
		return err
	}
	var result, errText sql.NullString
	if entry.Predictions != nil {
		payload, err := json.Marshal(entry.Predictions)
		if err != nil {
			return err
		}
		result = sql.NullString{String: string(payload), Valid: true}
	}
	if entry.Error != "" {
		errText = sql.NullString{String: entry.Error, Valid: true}
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
        INSERT INTO predictions (request_id, sample, result, error, status, created_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		entry.RequestID, string(sample), result, errText, entry.Status, createdAt)
	return err
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("journal not initialized")
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, request_id, sample, result, error, status, created_at
        FROM predictions
        ORDER BY id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		var sample string
		var result, errText sql.NullString
		if err := rows.Scan(&e.ID, &e.RequestID, &sample, &result, &errText, &e.Status, &e.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(sample), &e.Sample); err != nil {
			return nil, fmt.Errorf("entry %d sample: %w", e.ID, err)
		}
		if result.Valid {
			if err := json.Unmarshal([]byte(result.String), &e.Predictions); err != nil {
				return nil, fmt.Errorf("entry %d result: %w", e.ID, err)
			}
		}
		if errText.Valid {
			e.Error = errText.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
