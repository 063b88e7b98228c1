package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir     string `toml:"data_dir"`
	LogDir      string `toml:"log_dir"`
	DownloadDir string `toml:"download_dir"`
	Profile     string `toml:"profile"`
}

// Platform contains the licensing platform endpoints.
type Platform struct {
	BaseURL     string `toml:"base_url"`
	SearchPath  string `toml:"search_path"`
	LibraryPath string `toml:"library_path"`
	LoginPath   string `toml:"login_path"`
}

// LLM contains connection settings for the hosted text model.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Vision contains the hosted vision model override. Empty fields fall back
// to the [llm] settings.
type Vision struct {
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Search contains candidate search settings.
type Search struct {
	ResultLimit     int  `toml:"result_limit"`
	MaxAttempts     int  `toml:"max_attempts"`
	WithScreenshots bool `toml:"with_screenshots"`
}

// Visual contains visual validation settings.
type Visual struct {
	MaxCandidates int `toml:"max_candidates"`
	PaceMillis    int `toml:"pace_ms"`
}

// Retrieval contains download orchestration settings.
type Retrieval struct {
	PollIntervalSeconds    int `toml:"poll_interval_seconds"`
	MaxWaitMinutes         int `toml:"max_wait_minutes"`
	DownloadTimeoutSeconds int `toml:"download_timeout_seconds"`
}

// Session contains login flow settings.
type Session struct {
	LoginTimeoutMinutes int `toml:"login_timeout_minutes"`
	PollSeconds         int `toml:"poll_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// History contains the run-history store settings.
type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Config encapsulates all configuration values for clipmatch.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Platform  Platform  `toml:"platform"`
	LLM       LLM       `toml:"llm"`
	Vision    Vision    `toml:"vision"`
	Search    Search    `toml:"search"`
	Visual    Visual    `toml:"visual"`
	Retrieval Retrieval `toml:"retrieval"`
	Session   Session   `toml:"session"`
	Logging   Logging   `toml:"logging"`
	History   History   `toml:"history"`
}

// SampleConfig returns the embedded annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/clipmatch/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded. The boolean reports whether a config
// file existed at the resolved path.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = strings.TrimSpace(os.Getenv("CLIPMATCH_LLM_API_KEY"))
	}

	for _, field := range []*string{
		&c.Paths.DataDir,
		&c.Paths.LogDir,
		&c.Paths.DownloadDir,
		&c.History.Path,
	} {
		if *field == "" {
			continue
		}
		expanded, err := expandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}

	c.Platform.BaseURL = strings.TrimRight(strings.TrimSpace(c.Platform.BaseURL), "/")
	c.Paths.Profile = strings.TrimSpace(c.Paths.Profile)
	if c.Paths.Profile == "" {
		c.Paths.Profile = "default"
	}
	return nil
}

// EnsureDirectories creates the directories the pipeline writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.DownloadDir, c.ProfileDir()}
	if c.History.Enabled && c.History.Path != "" {
		dirs = append(dirs, filepath.Dir(c.History.Path))
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure directory %s: %w", dir, err)
		}
	}
	return nil
}

// ProfileDir returns the per-profile state directory (cookie jar home).
func (c *Config) ProfileDir() string {
	return filepath.Join(c.Paths.DataDir, "profiles", c.Paths.Profile)
}

// CookieJarPath returns the persisted cookie file for the active profile.
func (c *Config) CookieJarPath() string {
	return filepath.Join(c.ProfileDir(), "cookies.json")
}

// HistoryPath returns the run-history database path, defaulting under the
// data directory when unset.
func (c *Config) HistoryPath() string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return filepath.Join(c.Paths.DataDir, "history.db")
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes the embedded sample configuration to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	return filepath.Abs(trimmed)
}
