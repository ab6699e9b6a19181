package db

import (
	"context"
	"crypto/rand"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"
)

// UsageEvent is one recorded consumption of a paid resource.
type UsageEvent struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Day       string `json:"day"`
	CreatedAt int64  `json:"created_at"`
}

// Ledger appends consumption events to the usage_events table.
type Ledger struct {
	db *sql.DB
}

// NewLedger wraps an initialized database.
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Append stores a new event for kind on day and returns it.
func (l *Ledger) Append(ctx context.Context, kind, day string, at time.Time) (*UsageEvent, error) {
	id, err := generateULID(at)
	if err != nil {
		return nil, err
	}
	ev := &UsageEvent{ID: id, Kind: kind, Day: day, CreatedAt: at.Unix()}
	_, err = l.db.ExecContext(ctx,
		`INSERT INTO usage_events (id, kind, day, created_at) VALUES (?, ?, ?, ?)`,
		ev.ID, ev.Kind, ev.Day, ev.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// List returns events for kind on day, newest first. An empty kind matches all kinds.
func (l *Ledger) List(ctx context.Context, kind, day string, limit int) ([]UsageEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, kind, day, created_at FROM usage_events WHERE day = ?`
	args := []any{day}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []UsageEvent
	for rows.Next() {
		var ev UsageEvent
		if err := rows.Scan(&ev.ID, &ev.Kind, &ev.Day, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Each streams every event on day, oldest first, until fn returns an error.
// An empty day streams the whole ledger.
func (l *Ledger) Each(ctx context.Context, day string, fn func(UsageEvent) error) error {
	query := `SELECT id, kind, day, created_at FROM usage_events`
	var args []any
	if day != "" {
		query += ` WHERE day = ?`
		args = append(args, day)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var ev UsageEvent
		if err := rows.Scan(&ev.ID, &ev.Kind, &ev.Day, &ev.CreatedAt); err != nil {
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Count returns the number of events for kind on day.
func (l *Ledger) Count(ctx context.Context, kind, day string) (int, error) {
	var n int
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM usage_events WHERE kind = ? AND day = ?`, kind, day,
	).Scan(&n)
	return n, err
}

// generateULID generates a new ULID stamped at t.
func generateULID(t time.Time) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
