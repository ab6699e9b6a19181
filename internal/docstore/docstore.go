// Package docstore defines the key-value document store the budget counter,
// kill switch and nearby cache persist through. Production uses the SQLite
// implementation in internal/db; Memory serves tests and embedding.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// ErrNotExist is returned by Get when no document is stored under the key.
var ErrNotExist = errors.New("document does not exist")

// Store is a point-read/point-write JSON document store.
type Store interface {
	// Get decodes the document at key into dst, or returns ErrNotExist.
	Get(ctx context.Context, key string, dst any) error

	// Put replaces the document at key.
	Put(ctx context.Context, key string, doc any) error

	// Merge overlays fields onto the document at key, creating it if missing.
	Merge(ctx context.Context, key string, fields map[string]any) error
}

// Memory is an in-process Store. Documents are held as JSON so callers never
// share mutable state with the store.
type Memory struct {
	mu       sync.Mutex
	docs     map[string][]byte
	readErr  error
	writeErr error
	reads    int
	writes   int
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string][]byte)}
}

// FailReads makes every subsequent Get return err (nil restores normal reads).
func (m *Memory) FailReads(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

// FailWrites makes every subsequent Put and Merge return err.
func (m *Memory) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// Reads returns how many Get calls reached the store.
func (m *Memory) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// Writes returns how many successful Put or Merge calls were made.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Get implements Store.
func (m *Memory) Get(ctx context.Context, key string, dst any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.reads++
	if m.readErr != nil {
		err := m.readErr
		m.mu.Unlock()
		return err
	}
	data, ok := m.docs[key]
	m.mu.Unlock()
	if !ok {
		return ErrNotExist
	}
	return json.Unmarshal(data, dst)
}

// Put implements Store.
func (m *Memory) Put(ctx context.Context, key string, doc any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.docs[key] = data
	m.writes++
	return nil
}

// Merge implements Store.
func (m *Memory) Merge(ctx context.Context, key string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}

	current := map[string]any{}
	if data, ok := m.docs[key]; ok {
		if err := json.Unmarshal(data, &current); err != nil {
			return err
		}
	}
	for k, v := range fields {
		current[k] = v
	}
	data, err := json.Marshal(current)
	if err != nil {
		return err
	}
	m.docs[key] = data
	m.writes++
	return nil
}
