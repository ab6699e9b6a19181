package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_AppendListCount(t *testing.T) {
	database, err := Init(t.TempDir())
	require.NoError(t, err)
	defer database.Close()

	l := NewLedger(database)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	first, err := l.Append(ctx, "photos", "2026-03-01", at)
	require.NoError(t, err)
	assert.Len(t, first.ID, 26)

	_, err = l.Append(ctx, "photos", "2026-03-01", at.Add(time.Minute))
	require.NoError(t, err)
	_, err = l.Append(ctx, "autocomplete", "2026-03-01", at.Add(2*time.Minute))
	require.NoError(t, err)
	_, err = l.Append(ctx, "photos", "2026-03-02", at.Add(24*time.Hour))
	require.NoError(t, err)

	n, err := l.Count(ctx, "photos", "2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	events, err := l.List(ctx, "photos", "2026-03-01", 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.True(t, events[0].CreatedAt >= events[1].CreatedAt, "newest first")

	all, err := l.List(ctx, "", "2026-03-01", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestLedger_Each(t *testing.T) {
	database, err := Init(t.TempDir())
	require.NoError(t, err)
	defer database.Close()

	l := NewLedger(database)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, kind := range []string{"photos", "nearby", "photos"} {
		_, err := l.Append(ctx, kind, "2026-03-01", at.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}
	_, err = l.Append(ctx, "photos", "2026-03-02", at.Add(24*time.Hour))
	require.NoError(t, err)

	var kinds []string
	err = l.Each(ctx, "2026-03-01", func(ev UsageEvent) error {
		kinds = append(kinds, ev.Kind)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"photos", "nearby", "photos"}, kinds, "oldest first")

	total := 0
	require.NoError(t, l.Each(ctx, "", func(UsageEvent) error { total++; return nil }))
	assert.Equal(t, 4, total)

	stop := assert.AnError
	seen := 0
	err = l.Each(ctx, "", func(UsageEvent) error { seen++; return stop })
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, seen)
}
