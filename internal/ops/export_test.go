package ops

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thisis/placesguard/internal/budget"
	"github.com/thisis/placesguard/internal/db"
	"github.com/thisis/placesguard/internal/errors"
)

func TestExportUsage_HappyPath(t *testing.T) {
	svc, clk, exportDir := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Counter().RecordConsumption(ctx, budget.Photos))
	clk.Advance(time.Minute)
	require.NoError(t, svc.Counter().RecordConsumption(ctx, budget.Nearby))

	exportPath := filepath.Join(exportDir, "usage.jsonl")
	out, err := svc.ExportUsage(ctx, ExportUsageInput{Path: exportPath})
	require.NoError(t, err)
	assert.Equal(t, exportPath, out.Path)
	assert.Equal(t, 2, out.Count)
	assert.Equal(t, clk.Now().Unix(), out.ExportedAt)

	f, err := os.Open(exportPath)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan())
	var header ExportHeader
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &header))
	assert.True(t, header.UsageExport)
	assert.Equal(t, "1.0", header.SchemaVersion)

	var kinds []string
	for scanner.Scan() {
		var ev db.UsageEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []string{"photos", "nearby"}, kinds)

	// no temp files left behind
	entries, err := os.ReadDir(exportDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestExportUsage_DayFilter(t *testing.T) {
	svc, clk, exportDir := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Counter().RecordConsumption(ctx, budget.Photos))
	firstDay := svc.Counter().Today()
	clk.Advance(24 * time.Hour)
	require.NoError(t, svc.Counter().RecordConsumption(ctx, budget.Photos))

	out, err := svc.ExportUsage(ctx, ExportUsageInput{Path: filepath.Join(exportDir, "day.jsonl"), Day: firstDay})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Count)
}

func TestExportUsage_InvalidInput(t *testing.T) {
	svc, _, exportDir := newTestService(t)
	ctx := context.Background()

	_, err := svc.ExportUsage(ctx, ExportUsageInput{Path: filepath.Join(exportDir, "x.jsonl"), Day: "yesterday"})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = svc.ExportUsage(ctx, ExportUsageInput{Path: filepath.Join(t.TempDir(), "x.jsonl")})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "outside allowed dirs")
}

func TestExportUsage_RequiresLedger(t *testing.T) {
	svc := New(nil, testConfig(t.TempDir()))
	_, err := svc.ExportUsage(context.Background(), ExportUsageInput{})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}
