package ops

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/thisis/placesguard/internal/db"
	"github.com/thisis/placesguard/internal/errors"
)

// ExportUsageInput contains parameters for the ExportUsage operation.
type ExportUsageInput struct {
	Path string // optional, default: ~/.placesguard/exports/usage-<day|all>-<timestamp>.jsonl
	Day  string // optional YYYY-MM-DD filter; empty exports the whole ledger
}

// ExportUsageOutput contains the result of the ExportUsage operation.
type ExportUsageOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// ExportHeader is the first line of a usage export file.
type ExportHeader struct {
	UsageExport   bool   `json:"_placesguard_usage_export"`
	SchemaVersion string `json:"schema_version"`
	Day           string `json:"day,omitempty"`
	ExportedAt    int64  `json:"exported_at"`
}

// ExportUsage writes the consumption ledger to a JSONL file: one header
// line, then one line per event, oldest first. The file is written to a
// temp name and renamed into place, so an existing export survives failure.
func (s *Service) ExportUsage(ctx context.Context, input ExportUsageInput) (*ExportUsageOutput, error) {
	if s.ledger == nil {
		return nil, errors.NewInvalidRequest("usage ledger is not available without a database")
	}
	if input.Day != "" && !validDay(input.Day) {
		return nil, errors.NewInvalidRequest("day must be YYYY-MM-DD")
	}

	now := s.clk.Now()
	exportedAt := now.Unix()

	exportPath := input.Path
	if exportPath == "" {
		dir, err := DefaultExportsDir()
		if err != nil {
			return nil, err
		}
		label := input.Day
		if label == "" {
			label = "all"
		}
		exportPath = filepath.Join(dir, fmt.Sprintf("usage-%s-%s.jsonl", label, now.Format("2006-01-02T150405")))
	}

	if err := ValidateExportPath(exportPath, s.cfg); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(exportPath), 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := exportPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	enc := json.NewEncoder(file)
	header := ExportHeader{UsageExport: true, SchemaVersion: "1.0", Day: input.Day, ExportedAt: exportedAt}
	if err := enc.Encode(header); err != nil {
		return nil, errors.NewInternal(err)
	}

	count := 0
	err = s.ledger.Each(ctx, input.Day, func(ev db.UsageEvent) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		count++
		return enc.Encode(ev)
	})
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := file.Close(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	if info, err := os.Lstat(exportPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewInternal(fmt.Errorf("export path is a symlink"))
	}

	// os.Rename refuses to replace an existing file on Windows; keep the old one.
	if err := os.Rename(tempPath, exportPath); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(exportPath); statErr == nil {
				return nil, errors.NewInvalidRequest("export destination already exists; choose a new path")
			}
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return &ExportUsageOutput{Path: exportPath, Count: count, ExportedAt: exportedAt}, nil
}
