package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePlatform(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateSearch(); err != nil {
		return err
	}
	if err := c.validateVisual(); err != nil {
		return err
	}
	if err := c.validateRetrieval(); err != nil {
		return err
	}
	if err := c.validateSession(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePlatform() error {
	if c.Platform.BaseURL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/clipmatch/config.toml"
		}
		return fmt.Errorf("platform.base_url is required. Edit %s (create with 'clipmatch config init')", defaultPath)
	}
	parsed, err := url.Parse(c.Platform.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("platform.base_url must be an absolute URL, got %q", c.Platform.BaseURL)
	}
	for name, value := range map[string]string{
		"platform.search_path":  c.Platform.SearchPath,
		"platform.library_path": c.Platform.LibraryPath,
		"platform.login_path":   c.Platform.LoginPath,
	} {
		if !strings.HasPrefix(value, "/") {
			return fmt.Errorf("%s must start with '/', got %q", name, value)
		}
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.APIKey == "" {
		return errors.New("llm.api_key is required. Set CLIPMATCH_LLM_API_KEY or edit the config file")
	}
	if c.LLM.Model == "" {
		return errors.New("llm.model must be set")
	}
	if c.LLM.TimeoutSeconds < 0 {
		return errors.New("llm.timeout_seconds must not be negative")
	}
	if c.Vision.TimeoutSeconds < 0 {
		return errors.New("vision.timeout_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateSearch() error {
	if c.Search.ResultLimit < 1 {
		return errors.New("search.result_limit must be at least 1")
	}
	if c.Search.MaxAttempts < 1 {
		return errors.New("search.max_attempts must be at least 1")
	}
	return nil
}

func (c *Config) validateVisual() error {
	if c.Visual.MaxCandidates < 0 {
		return errors.New("visual.max_candidates must not be negative")
	}
	if c.Visual.PaceMillis < 0 {
		return errors.New("visual.pace_ms must not be negative")
	}
	return nil
}

func (c *Config) validateRetrieval() error {
	if c.Retrieval.PollIntervalSeconds < 1 {
		return errors.New("retrieval.poll_interval_seconds must be at least 1")
	}
	if c.Retrieval.MaxWaitMinutes < 1 {
		return errors.New("retrieval.max_wait_minutes must be at least 1")
	}
	if c.Retrieval.DownloadTimeoutSeconds < 1 {
		return errors.New("retrieval.download_timeout_seconds must be at least 1")
	}
	return nil
}

func (c *Config) validateSession() error {
	if c.Session.LoginTimeoutMinutes < 1 {
		return errors.New("session.login_timeout_minutes must be at least 1")
	}
	if c.Session.PollSeconds < 1 {
		return errors.New("session.poll_seconds must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be 'console' or 'json', got %q", c.Logging.Format)
	}
	return nil
}
