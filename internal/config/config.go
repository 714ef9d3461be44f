// Package config loads layered YAML configuration for the search core: a
// user-global file, a project-local override, and environment variables,
// merged in increasing order of precedence the way the teacher's
// internal/config.Load layers AmanMCP's user/project/env configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete search core configuration, per SPEC_FULL §2.3.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Store      StoreConfig      `yaml:"store" json:"store"`
	Pagination PaginationConfig `yaml:"pagination" json:"pagination"`
	Assembler  AssemblerConfig  `yaml:"assembler" json:"assembler"`
	Suggestion SuggestionConfig `yaml:"suggestion" json:"suggestion"`
	Indexer    IndexerConfig    `yaml:"indexer" json:"indexer"`
	Server     ServerConfig     `yaml:"server" json:"server"`
}

// StoreConfig locates and tunes the local encrypted-index database.
type StoreConfig struct {
	Path              string `yaml:"path" json:"path"`
	WAL               bool   `yaml:"wal" json:"wal"`
	BusyTimeoutMs     int    `yaml:"busy_timeout_ms" json:"busy_timeout_ms"`
	MetadataCacheSize int    `yaml:"metadata_cache_size" json:"metadata_cache_size"`
}

// PaginationConfig bounds a single page's posting reads (§4.11).
type PaginationConfig struct {
	MaxEntriesPerTermPerPage int `yaml:"max_entries_per_term_per_page" json:"max_entries_per_term_per_page"`
	DefaultMaxResults        int `yaml:"default_max_results" json:"default_max_results"`
}

// AssemblerConfig bounds C8's concurrent element-store lookups (§4.7).
type AssemblerConfig struct {
	ElementLookupConcurrency int `yaml:"element_lookup_concurrency" json:"element_lookup_concurrency"`
}

// SuggestionConfig configures C9's default behavior.
type SuggestionConfig struct {
	MinSuggestionCount int      `yaml:"min_suggestion_count" json:"min_suggestion_count"`
	AttributeWhitelist []string `yaml:"attribute_whitelist" json:"attribute_whitelist"`
	MaxTypeModelDepth  int      `yaml:"max_type_model_depth" json:"max_type_model_depth"`
}

// IndexerConfig holds the demo indexer's settings. StartOfDayTruncation is
// not read outside this package: the Index Extension Protocol (§4.10)
// always truncates its target to the start of the day.
type IndexerConfig struct {
	FixtureDir             string `yaml:"fixture_dir" json:"fixture_dir"`
	StartOfDayTruncation   bool   `yaml:"start_of_day_truncation" json:"start_of_day_truncation"`
}

// ServerConfig configures the MCP server transport.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

const (
	envPrefix        = "TUTA_SEARCH_"
	userConfigDir    = "tuta-search"
	userConfigFile   = "config.yaml"
	projectConfigYML = ".tuta-search.yaml"
)

// New returns a Config populated with the core's defaults.
func New() *Config {
	return &Config{
		Version: 1,
		Store: StoreConfig{
			Path:              defaultStorePath(),
			WAL:               true,
			BusyTimeoutMs:     5000,
			MetadataCacheSize: 256,
		},
		Pagination: PaginationConfig{
			MaxEntriesPerTermPerPage: 1000,
			DefaultMaxResults:        100,
		},
		Assembler: AssemblerConfig{
			ElementLookupConcurrency: 5,
		},
		Suggestion: SuggestionConfig{
			MinSuggestionCount: 0,
			AttributeWhitelist: nil,
			MaxTypeModelDepth:  8,
		},
		Indexer: IndexerConfig{
			FixtureDir:           defaultFixtureDir(),
			StartOfDayTruncation: true,
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
	}
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "tuta-search", "index.db")
	}
	return filepath.Join(home, ".local", "share", "tuta-search", "index.db")
}

func defaultFixtureDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "tuta-search", "fixtures")
	}
	return filepath.Join(home, ".local", "share", "tuta-search", "fixtures")
}

// UserConfigPath returns the XDG-style path to the user/global config file.
func UserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, userConfigDir, userConfigFile)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", userConfigDir, userConfigFile)
	}
	return filepath.Join(home, ".config", userConfigDir, userConfigFile)
}

// Load layers defaults, the user config, a project-local override in dir,
// then environment variables, validating the result before returning it.
func Load(dir string) (*Config, error) {
	cfg := New()

	if userPath := UserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, fmt.Errorf("load user config: %w", err)
		}
	}

	projectPath := filepath.Join(dir, projectConfigYML)
	if fileExists(projectPath) {
		if err := cfg.loadYAML(projectPath); err != nil {
			return nil, fmt.Errorf("load project config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith overlays other's non-zero fields onto c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if other.Store.Path != "" {
		c.Store.Path = other.Store.Path
	}
	if other.Store.BusyTimeoutMs != 0 {
		c.Store.BusyTimeoutMs = other.Store.BusyTimeoutMs
	}
	if other.Store.MetadataCacheSize != 0 {
		c.Store.MetadataCacheSize = other.Store.MetadataCacheSize
	}
	c.Store.WAL = other.Store.WAL || c.Store.WAL

	if other.Pagination.MaxEntriesPerTermPerPage != 0 {
		c.Pagination.MaxEntriesPerTermPerPage = other.Pagination.MaxEntriesPerTermPerPage
	}
	if other.Pagination.DefaultMaxResults != 0 {
		c.Pagination.DefaultMaxResults = other.Pagination.DefaultMaxResults
	}

	if other.Assembler.ElementLookupConcurrency != 0 {
		c.Assembler.ElementLookupConcurrency = other.Assembler.ElementLookupConcurrency
	}

	if other.Suggestion.MinSuggestionCount != 0 {
		c.Suggestion.MinSuggestionCount = other.Suggestion.MinSuggestionCount
	}
	if len(other.Suggestion.AttributeWhitelist) > 0 {
		c.Suggestion.AttributeWhitelist = other.Suggestion.AttributeWhitelist
	}
	if other.Suggestion.MaxTypeModelDepth != 0 {
		c.Suggestion.MaxTypeModelDepth = other.Suggestion.MaxTypeModelDepth
	}

	if other.Indexer.FixtureDir != "" {
		c.Indexer.FixtureDir = other.Indexer.FixtureDir
	}

	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides layers TUTA_SEARCH_* environment variables, the
// highest-precedence source, mirroring the teacher's AMANMCP_* overlay.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(envPrefix + "STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv(envPrefix + "BUSY_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Store.BusyTimeoutMs = n
		}
	}
	if v := os.Getenv(envPrefix + "MAX_ENTRIES_PER_TERM_PER_PAGE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Pagination.MaxEntriesPerTermPerPage = n
		}
	}
	if v := os.Getenv(envPrefix + "DEFAULT_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Pagination.DefaultMaxResults = n
		}
	}
	if v := os.Getenv(envPrefix + "ELEMENT_LOOKUP_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Assembler.ElementLookupConcurrency = n
		}
	}
	if v := os.Getenv(envPrefix + "MIN_SUGGESTION_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Suggestion.MinSuggestionCount = n
		}
	}
	if v := os.Getenv(envPrefix + "INDEXER_FIXTURE_DIR"); v != "" {
		c.Indexer.FixtureDir = v
	}
	if v := os.Getenv(envPrefix + "TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
}

// Validate rejects a configuration the core could not run with.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty")
	}
	if c.Pagination.MaxEntriesPerTermPerPage <= 0 {
		return fmt.Errorf("pagination.max_entries_per_term_per_page must be positive, got %d", c.Pagination.MaxEntriesPerTermPerPage)
	}
	if c.Assembler.ElementLookupConcurrency <= 0 {
		return fmt.Errorf("assembler.element_lookup_concurrency must be positive, got %d", c.Assembler.ElementLookupConcurrency)
	}
	if c.Suggestion.MinSuggestionCount < 0 {
		return fmt.Errorf("suggestion.min_suggestion_count must be non-negative, got %d", c.Suggestion.MinSuggestionCount)
	}
	validTransports := map[string]bool{"stdio": true, "sse": true}
	if !validTransports[strings.ToLower(c.Server.Transport)] {
		return fmt.Errorf("server.transport must be 'stdio' or 'sse', got %s", c.Server.Transport)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}
	return nil
}

// WriteYAML writes the configuration to path, for `search-cli config init`.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
