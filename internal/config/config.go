package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// FailureMode decides what a gate does when its backing store cannot be reached.
type FailureMode string

const (
	FailOpen   FailureMode = "open"   // assume allowed, log a warning
	FailClosed FailureMode = "closed" // assume denied
)

// Day boundary modes for the budget rollover key.
const (
	DayBoundaryLocal = "local"
	DayBoundaryUTC   = "utc"
)

// MinDebounce is the shortest input quiescence allowed before an autocomplete call.
const MinDebounce = 600 * time.Millisecond

// FailurePolicy maps each persistence-backed check to a failure mode.
type FailurePolicy struct {
	BudgetRead  FailureMode `json:"budget_read,omitempty"`
	BudgetWrite FailureMode `json:"budget_write,omitempty"`
	FlagRead    FailureMode `json:"flag_read,omitempty"`
}

// Config holds application configuration.
type Config struct {
	// DailyLimits is the per-kind ceiling of paid calls per calendar day.
	// Keys: photos, autocomplete, details, nearby.
	DailyLimits map[string]int `json:"daily_limits,omitempty"`

	// DayBoundary selects the clock used for the rollover key: "local" or "utc".
	DayBoundary string `json:"day_boundary,omitempty"`

	// FailurePolicy controls fail-open vs fail-closed behaviour per check.
	FailurePolicy FailurePolicy `json:"failure_policy,omitempty"`

	// DwellThreshold is the visibility ratio in (0,1] that starts a dwell.
	DwellThreshold float64 `json:"dwell_threshold,omitempty"`

	// DwellMillis is how long visibility must hold before a remote photo is fetched.
	DwellMillis int `json:"dwell_ms,omitempty"`

	// AutocompleteMinChars is the shortest query that may reach the provider.
	AutocompleteMinChars int `json:"autocomplete_min_chars,omitempty"`

	// AutocompleteDebounceMillis is the input quiescence before predictions are requested.
	// Values below 600 are rejected by Validate.
	AutocompleteDebounceMillis int `json:"autocomplete_debounce_ms,omitempty"`

	// ThrottleWindowMillis bounds how often nearby searches may be issued.
	ThrottleWindowMillis int `json:"throttle_window_ms,omitempty"`

	// NearbyCacheTTLHours is how long a cached nearby cell stays fresh.
	NearbyCacheTTLHours int `json:"nearby_cache_ttl_hours,omitempty"`

	// PhotoMaxWidth is the requested width for remote photos, in pixels.
	PhotoMaxWidth int `json:"photo_max_width,omitempty"`

	// PosterBaseURL is where static category posters are served from.
	PosterBaseURL string `json:"poster_base_url,omitempty"`

	// PlacesBaseURL is the provider endpoint root.
	PlacesBaseURL string `json:"places_base_url,omitempty"`

	// PlacesAPIKey authenticates provider calls. Usually supplied via PLACES_API_KEY.
	PlacesAPIKey string `json:"places_api_key,omitempty"`

	// RequestTimeoutMillis caps a single provider request.
	RequestTimeoutMillis int `json:"request_timeout_ms,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// LogLevel is the minimum zap level: debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`

	// LogFile, when set, receives a rotated copy of the log stream.
	LogFile string `json:"log_file,omitempty"`

	// LogMaxSizeMB is the rotation size for LogFile.
	LogMaxSizeMB int `json:"log_max_size_mb,omitempty"`

	// LogMaxBackups is the number of rotated files kept.
	LogMaxBackups int `json:"log_max_backups,omitempty"`

	// AllowedPaths lists extra directories usage exports may be written to.
	// Only absolute paths are honoured.
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths lifts the export directory restriction. Symlink checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// HTTPBind and HTTPPort address the UI-facing HTTP server.
	HTTPBind string `json:"http_bind,omitempty"`
	HTTPPort int    `json:"http_port,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DailyLimits: map[string]int{
			"photos":       10,
			"autocomplete": 100,
			"details":      50,
			"nearby":       100,
		},
		DayBoundary: DayBoundaryLocal,
		FailurePolicy: FailurePolicy{
			BudgetRead:  FailOpen,
			BudgetWrite: FailOpen,
			FlagRead:    FailOpen,
		},
		DwellThreshold:             0.6,
		DwellMillis:                400,
		AutocompleteMinChars:       3,
		AutocompleteDebounceMillis: 600,
		ThrottleWindowMillis:       750,
		NearbyCacheTTLHours:        24,
		PhotoMaxWidth:              800,
		PosterBaseURL:              "/posters",
		PlacesBaseURL:              "https://places.googleapis.com/v1",
		RequestTimeoutMillis:       5000,
		LogLevel:                   "info",
		LogMaxSizeMB:               20,
		LogMaxBackups:              3,
		HTTPBind:                   "127.0.0.1",
		HTTPPort:                   8787,
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.placesguard) and repo
// (.placesguard) directories. Repo config takes precedence for scalar values.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .placesguard/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".placesguard", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw returns a zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; maps merge per key; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.DailyLimits = make(map[string]int, len(base.DailyLimits)+len(overlay.DailyLimits))
	for k, v := range base.DailyLimits {
		result.DailyLimits[k] = v
	}
	for k, v := range overlay.DailyLimits {
		result.DailyLimits[k] = v
	}

	result.DayBoundary = pickString(overlay.DayBoundary, base.DayBoundary)
	result.FailurePolicy = FailurePolicy{
		BudgetRead:  FailureMode(pickString(string(overlay.FailurePolicy.BudgetRead), string(base.FailurePolicy.BudgetRead))),
		BudgetWrite: FailureMode(pickString(string(overlay.FailurePolicy.BudgetWrite), string(base.FailurePolicy.BudgetWrite))),
		FlagRead:    FailureMode(pickString(string(overlay.FailurePolicy.FlagRead), string(base.FailurePolicy.FlagRead))),
	}

	result.DwellThreshold = overlay.DwellThreshold
	if result.DwellThreshold == 0 {
		result.DwellThreshold = base.DwellThreshold
	}

	result.DwellMillis = pickInt(overlay.DwellMillis, base.DwellMillis)
	result.AutocompleteMinChars = pickInt(overlay.AutocompleteMinChars, base.AutocompleteMinChars)
	result.AutocompleteDebounceMillis = pickInt(overlay.AutocompleteDebounceMillis, base.AutocompleteDebounceMillis)
	result.ThrottleWindowMillis = pickInt(overlay.ThrottleWindowMillis, base.ThrottleWindowMillis)
	result.NearbyCacheTTLHours = pickInt(overlay.NearbyCacheTTLHours, base.NearbyCacheTTLHours)
	result.PhotoMaxWidth = pickInt(overlay.PhotoMaxWidth, base.PhotoMaxWidth)
	result.PosterBaseURL = pickString(overlay.PosterBaseURL, base.PosterBaseURL)
	result.PlacesBaseURL = pickString(overlay.PlacesBaseURL, base.PlacesBaseURL)
	result.PlacesAPIKey = pickString(overlay.PlacesAPIKey, base.PlacesAPIKey)
	result.RequestTimeoutMillis = pickInt(overlay.RequestTimeoutMillis, base.RequestTimeoutMillis)
	result.DBMaxOpenConns = pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)
	result.LogLevel = pickString(overlay.LogLevel, base.LogLevel)
	result.LogFile = pickString(overlay.LogFile, base.LogFile)
	result.LogMaxSizeMB = pickInt(overlay.LogMaxSizeMB, base.LogMaxSizeMB)
	result.LogMaxBackups = pickInt(overlay.LogMaxBackups, base.LogMaxBackups)
	result.HTTPBind = pickString(overlay.HTTPBind, base.HTTPBind)
	result.HTTPPort = pickInt(overlay.HTTPPort, base.HTTPPort)

	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// envLimits maps environment variables to DailyLimits keys.
var envLimits = map[string]string{
	"PLACES_DAILY_PHOTO_LIMIT":        "photos",
	"PLACES_DAILY_AUTOCOMPLETE_LIMIT": "autocomplete",
	"PLACES_DAILY_DETAILS_LIMIT":      "details",
	"PLACES_DAILY_NEARBY_LIMIT":       "nearby",
}

// ApplyEnv overlays environment settings onto cfg. lookup is os.LookupEnv in
// production. Settings are read once; there is no hot reload.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if cfg.DailyLimits == nil {
		cfg.DailyLimits = make(map[string]int)
	}
	for env, kind := range envLimits {
		raw, ok := lookup(env)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		n, err := cast.ToIntE(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("%s: %w", env, err)
		}
		cfg.DailyLimits[kind] = n
	}
	if key, ok := lookup("PLACES_API_KEY"); ok && key != "" {
		cfg.PlacesAPIKey = key
	}
	if b, ok := lookup("PLACES_DAY_BOUNDARY"); ok && b != "" {
		cfg.DayBoundary = strings.ToLower(strings.TrimSpace(b))
	}
	if v, ok := lookup("PLACES_FAIL_CLOSED"); ok && v != "" {
		closed, err := cast.ToBoolE(v)
		if err != nil {
			return fmt.Errorf("PLACES_FAIL_CLOSED: %w", err)
		}
		if closed {
			cfg.FailurePolicy = FailurePolicy{BudgetRead: FailClosed, BudgetWrite: FailClosed, FlagRead: FailClosed}
		}
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	for kind, limit := range c.DailyLimits {
		if limit < 0 {
			return fmt.Errorf("daily_limits.%s must be non-negative", kind)
		}
	}
	if c.DayBoundary != DayBoundaryLocal && c.DayBoundary != DayBoundaryUTC {
		return fmt.Errorf("day_boundary must be %q or %q", DayBoundaryLocal, DayBoundaryUTC)
	}
	for name, mode := range map[string]FailureMode{
		"budget_read":  c.FailurePolicy.BudgetRead,
		"budget_write": c.FailurePolicy.BudgetWrite,
		"flag_read":    c.FailurePolicy.FlagRead,
	} {
		if mode != FailOpen && mode != FailClosed {
			return fmt.Errorf("failure_policy.%s must be %q or %q", name, FailOpen, FailClosed)
		}
	}
	if c.DwellThreshold <= 0 || c.DwellThreshold > 1 {
		return fmt.Errorf("dwell_threshold must be in (0,1]")
	}
	if c.DwellMillis < 0 {
		return fmt.Errorf("dwell_ms must be non-negative")
	}
	if c.AutocompleteDebounce() < MinDebounce {
		return fmt.Errorf("autocomplete_debounce_ms must be at least %d", MinDebounce.Milliseconds())
	}
	return nil
}

// Location returns the time zone used for day rollover.
func (c *Config) Location() *time.Location {
	if c.DayBoundary == DayBoundaryUTC {
		return time.UTC
	}
	return time.Local
}

// Dwell returns the dwell period as a duration.
func (c *Config) Dwell() time.Duration {
	return time.Duration(c.DwellMillis) * time.Millisecond
}

// AutocompleteDebounce returns the debounce period as a duration.
func (c *Config) AutocompleteDebounce() time.Duration {
	return time.Duration(c.AutocompleteDebounceMillis) * time.Millisecond
}

// ThrottleWindow returns the nearby-search throttle window.
func (c *Config) ThrottleWindow() time.Duration {
	return time.Duration(c.ThrottleWindowMillis) * time.Millisecond
}

// NearbyCacheTTL returns how long cached nearby results stay fresh.
func (c *Config) NearbyCacheTTL() time.Duration {
	return time.Duration(c.NearbyCacheTTLHours) * time.Hour
}

// RequestTimeout returns the per-request provider timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMillis) * time.Millisecond
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

func pickString(overlay, base string) string {
	if overlay != "" {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
