package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	// SampleIntervalMs is the dwell sampler period. The active tab is read once per period.
	SampleIntervalMs int `json:"sample_interval_ms"`

	// FlushDebounceMs is the coalescing window for site timer write-back.
	FlushDebounceMs int `json:"flush_debounce_ms"`

	// Pomodoro durations in minutes.
	FocusMinutes      int `json:"focus_minutes"`
	ShortBreakMinutes int `json:"short_break_minutes"`
	LongBreakMinutes  int `json:"long_break_minutes"`

	// LongBreakEvery is the number of completed focus sessions between long breaks.
	LongBreakEvery int `json:"long_break_every"`

	// GrantMinutes is how long "Just 5 min" keeps a distracting URL unblocked.
	GrantMinutes int `json:"grant_minutes"`

	// FallbackURL is opened by "Back to Focus" when no productive tab is open.
	FallbackURL string `json:"fallback_url"`

	// DebuggerURL is the DevTools websocket of an already running browser.
	// When empty, the browser listed in Launch (or the rod default) is started.
	DebuggerURL string `json:"debugger_url,omitempty"`

	// Launch is the browser binary followed by raw command-line flags.
	Launch []string `json:"launch,omitempty"`

	// Headless starts a launched browser without a window (tests and CI).
	Headless bool `json:"headless,omitempty"`

	// Bind and Port address the local control API.
	Bind string `json:"bind"`
	Port int    `json:"port"`

	// DomainsFile overrides the embedded distracting/productive lists (YAML).
	// Relative paths resolve against the base directory.
	DomainsFile string `json:"domains_file,omitempty"`

	// MessagesFile overrides the embedded threshold message pools (markdown).
	// Relative paths resolve against the base directory.
	MessagesFile string `json:"messages_file,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// Verbose enables debug logging.
	Verbose bool `json:"verbose,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		SampleIntervalMs:  6000,
		FlushDebounceMs:   1000,
		FocusMinutes:      25,
		ShortBreakMinutes: 5,
		LongBreakMinutes:  15,
		LongBreakEvery:    4,
		GrantMinutes:      5,
		FallbackURL:       "https://google.com",
		Bind:              "127.0.0.1",
		Port:              7717,
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.will.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	cfg.DomainsFile = resolvePath(baseDir, cfg.DomainsFile)
	cfg.MessagesFile = resolvePath(baseDir, cfg.MessagesFile)
	return cfg, nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
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

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// resolvePath anchors a relative path at baseDir.
func resolvePath(baseDir, p string) string {
	p = strings.TrimSpace(p)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.SampleIntervalMs = pickInt(overlay.SampleIntervalMs, base.SampleIntervalMs)
	result.FlushDebounceMs = pickInt(overlay.FlushDebounceMs, base.FlushDebounceMs)
	result.FocusMinutes = pickInt(overlay.FocusMinutes, base.FocusMinutes)
	result.ShortBreakMinutes = pickInt(overlay.ShortBreakMinutes, base.ShortBreakMinutes)
	result.LongBreakMinutes = pickInt(overlay.LongBreakMinutes, base.LongBreakMinutes)
	result.LongBreakEvery = pickInt(overlay.LongBreakEvery, base.LongBreakEvery)
	result.GrantMinutes = pickInt(overlay.GrantMinutes, base.GrantMinutes)
	result.Port = pickInt(overlay.Port, base.Port)
	result.DBMaxOpenConns = pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)

	result.FallbackURL = pickString(overlay.FallbackURL, base.FallbackURL)
	result.DebuggerURL = pickString(overlay.DebuggerURL, base.DebuggerURL)
	result.Bind = pickString(overlay.Bind, base.Bind)
	result.DomainsFile = pickString(overlay.DomainsFile, base.DomainsFile)
	result.MessagesFile = pickString(overlay.MessagesFile, base.MessagesFile)

	// Launch is a single command line, not a set: overlay replaces it wholesale
	result.Launch = base.Launch
	if len(overlay.Launch) > 0 {
		result.Launch = overlay.Launch
	}

	// Booleans: overlay wins if true, else base
	result.Headless = base.Headless || overlay.Headless
	result.Verbose = base.Verbose || overlay.Verbose

	// Arrays: merge and deduplicate
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// SampleInterval returns the dwell sampler period.
func (c *Config) SampleInterval() time.Duration {
	return time.Duration(c.SampleIntervalMs) * time.Millisecond
}

// FlushDebounce returns the site timer write-back window.
func (c *Config) FlushDebounce() time.Duration {
	return time.Duration(c.FlushDebounceMs) * time.Millisecond
}

// GrantDuration returns the lifetime of a temporary access grant.
func (c *Config) GrantDuration() time.Duration {
	return time.Duration(c.GrantMinutes) * time.Minute
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

func pickString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
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
