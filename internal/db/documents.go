package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/thisis/placesguard/internal/docstore"
)

// DocStore is the SQLite-backed docstore.Store.
type DocStore struct {
	db *sql.DB
}

var _ docstore.Store = (*DocStore)(nil)

// NewDocStore wraps an initialized database.
func NewDocStore(db *sql.DB) *DocStore {
	return &DocStore{db: db}
}

// Get decodes the document at key into dst.
func (s *DocStore) Get(ctx context.Context, key string, dst any) error {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE key = ?`, key).Scan(&body)
	if err == sql.ErrNoRows {
		return docstore.ErrNotExist
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(body), dst)
}

// Put replaces the document at key.
func (s *DocStore) Put(ctx context.Context, key string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (key, body, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at
	`, key, string(data), time.Now().Unix())
	return err
}

// Merge overlays fields onto the stored document in a single statement,
// so concurrent merges of disjoint fields never clobber each other.
func (s *DocStore) Merge(ctx context.Context, key string, fields map[string]any) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (key, body, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
		  body = json_patch(documents.body, excluded.body),
		  updated_at = excluded.updated_at
	`, key, string(data), time.Now().Unix())
	return err
}

// ListKeys returns document keys with the given prefix, sorted.
func (s *DocStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key FROM documents WHERE substr(key, 1, ?) = ? ORDER BY key
	`, len(prefix), prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
