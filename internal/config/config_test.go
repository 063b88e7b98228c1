package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Default()
	cfg.Platform.BaseURL = "https://footage.example.com"
	cfg.LLM.APIKey = "test-key"
	return cfg
}

func TestDefaultValidatesWithRequiredFields(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned error: %v", err)
	}
}

func TestValidateRequiresPlatformBaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.Platform.BaseURL = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "platform.base_url") {
		t.Fatalf("expected platform.base_url error, got %v", err)
	}
}

func TestValidateRequiresAPIKey(t *testing.T) {
	cfg := validConfig()
	cfg.LLM.APIKey = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "llm.api_key") {
		t.Fatalf("expected llm.api_key error, got %v", err)
	}
}

func TestValidateRejectsNegativeVisionTimeout(t *testing.T) {
	cfg := validConfig()
	cfg.Vision.TimeoutSeconds = -1
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "vision.timeout_seconds") {
		t.Fatalf("expected vision.timeout_seconds error, got %v", err)
	}
}

func TestValidateRejectsRelativePaths(t *testing.T) {
	cfg := validConfig()
	cfg.Platform.LibraryPath = "account/library"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for relative library path")
	}
}

func TestValidateRejectsBadLogFormat(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported log format")
	}
}

func TestLoadParsesFileAndExpandsPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + dir + `/data"
profile = "newsroom"

[platform]
base_url = "https://footage.example.com/"

[llm]
api_key = "abc123"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be reported as existing")
	}
	if resolved != path {
		t.Errorf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.Platform.BaseURL != "https://footage.example.com" {
		t.Errorf("base_url not normalized: %q", cfg.Platform.BaseURL)
	}
	if got, want := cfg.CookieJarPath(), filepath.Join(dir, "data", "profiles", "newsroom", "cookies.json"); got != want {
		t.Errorf("CookieJarPath() = %q, want %q", got, want)
	}
	if cfg.Search.ResultLimit != defaultSearchResultLimit {
		t.Errorf("defaults not applied: result_limit = %d", cfg.Search.ResultLimit)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("CLIPMATCH_LLM_API_KEY", "env-key")
	_, _, exists, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if exists {
		t.Fatal("expected missing config file")
	}
	// Defaults alone fail validation (no platform base URL); that is the
	// guidance error users should see on first run.
	if err == nil || !strings.Contains(err.Error(), "platform.base_url") {
		t.Fatalf("expected platform.base_url validation error, got %v", err)
	}
}

func TestHistoryPathDefaultsUnderDataDir(t *testing.T) {
	cfg := validConfig()
	cfg.Paths.DataDir = "/tmp/clipmatch-test"
	if got, want := cfg.HistoryPath(), "/tmp/clipmatch-test/history.db"; got != want {
		t.Errorf("HistoryPath() = %q, want %q", got, want)
	}
}

func TestSampleConfigMentionsRequiredKeys(t *testing.T) {
	sample := SampleConfig()
	for _, key := range []string{"base_url", "api_key", "[retrieval]", "[visual]"} {
		if !strings.Contains(sample, key) {
			t.Errorf("sample config missing %q", key)
		}
	}
}
