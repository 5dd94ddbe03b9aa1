package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	// HistoryLimit caps the undo stack depth. 0 means unbounded.
	HistoryLimit int `json:"history_limit"`

	// HitTolerance is the extra hit radius (canvas units) added around thin strokes and outlines.
	HitTolerance float64 `json:"hit_tolerance"`

	// MoveThreshold is the minimum drag distance before a selection move is committed.
	MoveThreshold float64 `json:"move_threshold"`

	// DuplicateOffset shifts duplicated and pasted shapes on both axes.
	DuplicateOffset float64 `json:"duplicate_offset"`

	// AutoSuggestDebounceMS is the quiescence period after the last manual edit
	// before an automatic suggestion request is issued.
	AutoSuggestDebounceMS int `json:"auto_suggest_debounce_ms"`

	// SuggestionTimeoutMS bounds every call into a suggestion source.
	SuggestionTimeoutMS int `json:"suggestion_timeout_ms"`

	// SuggestionTTLSeconds expires proposed suggestions nobody resolved.
	SuggestionTTLSeconds int `json:"suggestion_ttl_seconds"`

	// RecentActions is how many manual actions are passed to sources as context.
	RecentActions int `json:"recent_actions"`

	// CanvasWidth and CanvasHeight define the drawing area; the panel anchor
	// defaults to its centre.
	CanvasWidth  int `json:"canvas_width"`
	CanvasHeight int `json:"canvas_height"`

	// CatalogPath points to a YAML template catalog replacing the built-in one.
	CatalogPath string `json:"catalog_path,omitempty"`

	// LLM configures the model-service suggestion source. Disabled when the
	// variable named by APIKeyEnv is unset.
	LLM LLMConfig `json:"llm,omitempty"`

	// MCPSource configures a suggestion source reached over MCP. Disabled when Command is empty.
	MCPSource MCPSourceConfig `json:"mcp_source,omitempty"`

	// AllowedPaths is an allowlist of directories for import/export operations.
	// Paths outside ~/.sketchlab/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for import/export.
	// When true, any directory is allowed (but symlink and extension checks still apply).
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of tool groups to disable entirely.
	// Known types: "scene", "tool", "shape", "selection", "history", "suggest", "session", "drawing".
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// LLMConfig holds the model-service source settings.
type LLMConfig struct {
	Endpoint   string `json:"endpoint,omitempty"`
	Model      string `json:"model,omitempty"`
	APIKeyEnv  string `json:"api_key_env,omitempty"`
	MaxRetries int    `json:"max_retries,omitempty"`
}

// MCPSourceConfig holds the command used to spawn an external MCP suggestion server.
type MCPSourceConfig struct {
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`
	Tool    string   `json:"tool,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		HistoryLimit:          500,
		HitTolerance:          6,
		MoveThreshold:         2,
		DuplicateOffset:       16,
		AutoSuggestDebounceMS: 800,
		SuggestionTimeoutMS:   4000,
		SuggestionTTLSeconds:  90,
		RecentActions:         8,
		CanvasWidth:           1280,
		CanvasHeight:          720,
		LLM: LLMConfig{
			Model:      "claude-3-5-haiku-latest",
			APIKeyEnv:  "ANTHROPIC_API_KEY",
			MaxRetries: 2,
		},
		MCPSource: MCPSourceConfig{
			Tool: "suggest_shapes",
		},
	}
}

// Debounce returns the auto-suggestion quiescence period.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.AutoSuggestDebounceMS) * time.Millisecond
}

// SuggestionTimeout returns the per-request source timeout.
func (c *Config) SuggestionTimeout() time.Duration {
	return time.Duration(c.SuggestionTimeoutMS) * time.Millisecond
}

// SuggestionTTL returns how long a proposed suggestion stays open.
func (c *Config) SuggestionTTL() time.Duration {
	return time.Duration(c.SuggestionTTLSeconds) * time.Second
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.sketchlab) and repo (.sketchlab) directories.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	cfg := Merge(Merge(DefaultConfig(), global), repo)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindRepoConfig walks upward from startDir to find the nearest .sketchlab/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".sketchlab", "config.json")
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

// loadFileRaw returns a zero-valued config (not defaults) if the file doesn't exist.
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
	merged := Merge(DefaultConfig(), cfg)
	if err := merged.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}
	return merged, nil
}

// Validate rejects values the session cannot run with. Timing and canvas
// settings must be positive; limits may not be negative.
func (c *Config) Validate() error {
	positive := []struct {
		key string
		val int
	}{
		{"auto_suggest_debounce_ms", c.AutoSuggestDebounceMS},
		{"suggestion_timeout_ms", c.SuggestionTimeoutMS},
		{"suggestion_ttl_seconds", c.SuggestionTTLSeconds},
		{"canvas_width", c.CanvasWidth},
		{"canvas_height", c.CanvasHeight},
	}
	for _, p := range positive {
		if p.val <= 0 {
			return fmt.Errorf("invalid config: %s must be positive, got %d", p.key, p.val)
		}
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("invalid config: history_limit must not be negative, got %d", c.HistoryLimit)
	}
	if c.RecentActions < 0 {
		return fmt.Errorf("invalid config: recent_actions must not be negative, got %d", c.RecentActions)
	}
	if c.HitTolerance < 0 || c.MoveThreshold < 0 {
		return fmt.Errorf("invalid config: hit_tolerance and move_threshold must not be negative")
	}
	return nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.HistoryLimit = pickInt(base.HistoryLimit, overlay.HistoryLimit)
	result.HitTolerance = pickFloat(base.HitTolerance, overlay.HitTolerance)
	result.MoveThreshold = pickFloat(base.MoveThreshold, overlay.MoveThreshold)
	result.DuplicateOffset = pickFloat(base.DuplicateOffset, overlay.DuplicateOffset)
	result.AutoSuggestDebounceMS = pickInt(base.AutoSuggestDebounceMS, overlay.AutoSuggestDebounceMS)
	result.SuggestionTimeoutMS = pickInt(base.SuggestionTimeoutMS, overlay.SuggestionTimeoutMS)
	result.SuggestionTTLSeconds = pickInt(base.SuggestionTTLSeconds, overlay.SuggestionTTLSeconds)
	result.RecentActions = pickInt(base.RecentActions, overlay.RecentActions)
	result.CanvasWidth = pickInt(base.CanvasWidth, overlay.CanvasWidth)
	result.CanvasHeight = pickInt(base.CanvasHeight, overlay.CanvasHeight)
	result.CatalogPath = pickString(base.CatalogPath, overlay.CatalogPath)
	result.DBMaxOpenConns = pickInt(base.DBMaxOpenConns, overlay.DBMaxOpenConns)
	result.DBMaxIdleConns = pickInt(base.DBMaxIdleConns, overlay.DBMaxIdleConns)

	result.LLM = LLMConfig{
		Endpoint:   pickString(base.LLM.Endpoint, overlay.LLM.Endpoint),
		Model:      pickString(base.LLM.Model, overlay.LLM.Model),
		APIKeyEnv:  pickString(base.LLM.APIKeyEnv, overlay.LLM.APIKeyEnv),
		MaxRetries: pickInt(base.LLM.MaxRetries, overlay.LLM.MaxRetries),
	}

	// The MCP source command and its args travel together.
	result.MCPSource = base.MCPSource
	if overlay.MCPSource.Command != "" {
		result.MCPSource.Command = overlay.MCPSource.Command
		result.MCPSource.Args = overlay.MCPSource.Args
	}
	result.MCPSource.Tool = pickString(base.MCPSource.Tool, overlay.MCPSource.Tool)

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	// Arrays: merge and deduplicate
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

func pickInt(base, overlay int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

func pickFloat(base, overlay float64) float64 {
	if overlay != 0 {
		return overlay
	}
	return base
}

func pickString(base, overlay string) string {
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
