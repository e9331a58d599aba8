package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/volumeee/zenclaw-sub000/internal/domain"
)

// FactStore holds key/value facts the assistant was asked to remember.
type FactStore struct {
	db *DB
}

// NewFactStore creates a fact store using the given database.
func NewFactStore(db *DB) *FactStore {
	return &FactStore{db: db}
}

// SaveFact inserts or replaces a fact.
func (f *FactStore) SaveFact(ctx context.Context, key, value string) error {
	now := time.Now().UTC().Format(time.DateTime)
	_, err := f.db.sql.ExecContext(ctx,
		`INSERT INTO facts (key, value, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   value = excluded.value,
		   updated_at = excluded.updated_at`,
		key, value, now, now,
	)
	return err
}

// GetFact returns the value stored under key.
func (f *FactStore) GetFact(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := f.db.sql.QueryRowContext(ctx, `SELECT value FROM facts WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SearchFacts returns facts whose key or value contains query, newest first.
func (f *FactStore) SearchFacts(ctx context.Context, query string, limit int) ([]domain.Fact, error) {
	if limit <= 0 {
		limit = 10
	}
	pattern := "%" + query + "%"

	rows, err := f.db.sql.QueryContext(ctx,
		`SELECT key, value, updated_at FROM facts
		 WHERE key LIKE ? OR value LIKE ?
		 ORDER BY updated_at DESC, key
		 LIMIT ?`,
		pattern, pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching facts: %w", err)
	}
	defer rows.Close()

	var facts []domain.Fact
	for rows.Next() {
		var fact domain.Fact
		var updatedAt string
		if err := rows.Scan(&fact.Key, &fact.Value, &updatedAt); err != nil {
			return nil, err
		}
		fact.UpdatedAt, _ = time.Parse(time.DateTime, updatedAt)
		facts = append(facts, fact)
	}
	return facts, rows.Err()
}
