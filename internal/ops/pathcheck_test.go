package ops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/thisis/placesguard/internal/config"
	"github.com/thisis/placesguard/internal/errors"
)

func TestValidateExportPath_TraversalRejected(t *testing.T) {
	cfg := config.DefaultConfig()

	tests := []struct {
		name string
		path string
	}{
		{"parent traversal", "../usage.jsonl"},
		{"deep traversal", "../../etc/usage.jsonl"},
		{"mid-path traversal", "/tmp/../etc/usage.jsonl"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateExportPath(tc.path, cfg)
			if !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("expected ErrInvalidRequest, got: %v", err)
			}
		})
	}
}

func TestValidateExportPath_ExtensionRequired(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true

	for _, p := range []string{"/tmp/usage", "/tmp/usage.json", "/tmp/usage.csv"} {
		if err := ValidateExportPath(p, cfg); !errors.Is(err, errors.ErrInvalidRequest) {
			t.Errorf("ValidateExportPath(%q) = %v, want ErrInvalidRequest", p, err)
		}
	}
}

func TestValidateExportPath_Empty(t *testing.T) {
	if err := ValidateExportPath("", config.DefaultConfig()); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got: %v", err)
	}
}

func TestValidateExportPath_AllowedPaths(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{tmpDir}

	if err := ValidateExportPath(filepath.Join(tmpDir, "usage.jsonl"), cfg); err != nil {
		t.Errorf("expected success for path in AllowedPaths, got: %v", err)
	}

	other := t.TempDir()
	if err := ValidateExportPath(filepath.Join(other, "usage.jsonl"), cfg); err == nil {
		t.Error("expected error for path outside AllowedPaths, got nil")
	}
}

func TestValidateExportPath_NestedPathRejected(t *testing.T) {
	allowedDir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{allowedDir}

	nested := filepath.Join(allowedDir, "sub", "usage.jsonl")
	if err := ValidateExportPath(nested, cfg); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for nested path, got: %v", err)
	}
}

func TestValidateExportPath_SymlinkRejected(t *testing.T) {
	tmpDir := t.TempDir()
	target := filepath.Join(t.TempDir(), "target.jsonl")
	if err := os.WriteFile(target, []byte("{}\n"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	link := filepath.Join(tmpDir, "link.jsonl")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	for _, unsafe := range []bool{false, true} {
		cfg := config.DefaultConfig()
		cfg.AllowedPaths = []string{tmpDir}
		cfg.AllowUnsafePaths = unsafe
		if err := ValidateExportPath(link, cfg); !errors.Is(err, errors.ErrInvalidRequest) {
			t.Errorf("unsafe=%v: expected ErrInvalidRequest for symlink, got: %v", unsafe, err)
		}
	}
}

func TestContainsTraversal(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/tmp/usage.jsonl", false},
		{"../usage.jsonl", true},
		{"/tmp/../usage.jsonl", true},
		{"/tmp/..usage.jsonl", false},
	}
	for _, tt := range tests {
		if got := containsTraversal(tt.path); got != tt.want {
			t.Errorf("containsTraversal(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
