package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(envAPIURL, "")
	t.Setenv(envLogLevel, "")
	t.Chdir(t.TempDir())

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIURL != defaultAPIURL {
		t.Fatalf("APIURL = %q, want %q", cfg.APIURL, defaultAPIURL)
	}
	if cfg.Timeout != defaultTimeout || cfg.PollInterval != defaultPollInterval {
		t.Fatalf("Timeout/PollInterval = %v/%v", cfg.Timeout, cfg.PollInterval)
	}

	wantLogDir, err := expandPath(defaultLogDir)
	if err != nil {
		t.Fatalf("expandPath(defaultLogDir) returned error: %v", err)
	}
	if cfg.LogDir != wantLogDir {
		t.Fatalf("LogDir = %q, want %q", cfg.LogDir, wantLogDir)
	}
	if cfg.LogPath() != filepath.Join(wantLogDir, "climdo.log") {
		t.Fatalf("LogPath = %q", cfg.LogPath())
	}
	if cfg.AccessCookie != "csrf_access_token" || cfg.RefreshCookie != "csrf_refresh_token" {
		t.Fatalf("cookie names = %q/%q", cfg.AccessCookie, cfg.RefreshCookie)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(envAPIURL, "")
	t.Setenv(envLogLevel, "")
	t.Chdir(t.TempDir())

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`
api_url = "  https://todo.example.com  "
timeout_seconds = 5
log_dir = "  ~/.climdo/logs  "
log_level = "DEBUG"
session_path = "~/.climdo/session.toml"
poll_seconds = 60

[cookies]
access = "xsrf_a"
refresh = "xsrf_r"
`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIURL != "https://todo.example.com" {
		t.Fatalf("APIURL = %q", cfg.APIURL)
	}
	if cfg.Timeout != 5*time.Second || cfg.PollInterval != time.Minute {
		t.Fatalf("Timeout/PollInterval = %v/%v", cfg.Timeout, cfg.PollInterval)
	}
	if !strings.HasPrefix(cfg.LogDir, home) || !strings.HasPrefix(cfg.SessionPath, home) {
		t.Fatalf("LogDir = %q, SessionPath = %q, want both under HOME %q", cfg.LogDir, cfg.SessionPath, home)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.AccessCookie != "xsrf_a" || cfg.RefreshCookie != "xsrf_r" {
		t.Fatalf("cookie names = %q/%q", cfg.AccessCookie, cfg.RefreshCookie)
	}
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv(envAPIURL, "http://10.0.0.5:8000")
	t.Setenv(envLogLevel, "warn")

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`api_url = "http://file.example.com"`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIURL != "http://10.0.0.5:8000" || cfg.LogLevel != "warn" {
		t.Fatalf("APIURL/LogLevel = %q/%q, want env values", cfg.APIURL, cfg.LogLevel)
	}
}

func TestLoad_DotEnvFillsUnsetVariables(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(envLogLevel, "error")
	// Cleared so the .env value can apply; t.Setenv restores it afterwards.
	t.Setenv(envAPIURL, "")
	os.Unsetenv(envAPIURL)

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("CLIMDO_API_URL=http://dotenv.example.com\nCLIMDO_LOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := Load(filepath.Join(dir, "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIURL != "http://dotenv.example.com" {
		t.Fatalf("APIURL = %q, want the .env value", cfg.APIURL)
	}
	if cfg.LogLevel != "error" {
		t.Fatalf("LogLevel = %q, want the already-set environment value", cfg.LogLevel)
	}
}

func TestLoad_InvalidTOMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("api_url = [\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("error = %v, want parse config", err)
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"scheme":   func(c *Config) { c.APIURL = "ftp://todo.example.com" },
		"host":     func(c *Config) { c.APIURL = "http://" },
		"timeout":  func(c *Config) { c.Timeout = 0 },
		"poll":     func(c *Config) { c.PollInterval = -time.Second },
		"level":    func(c *Config) { c.LogLevel = "chatty" },
		"cookies":  func(c *Config) { c.AccessCookie = " " },
		"negative": func(c *Config) { c.Timeout = -time.Second },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("Validate accepted an invalid config")
			}
		})
	}
}

func TestExpandPath_ExpandsTildeAndReturnsAbs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := ExpandPath("~/climdo/session.toml")
	if err != nil {
		t.Fatalf("ExpandPath returned error: %v", err)
	}
	if got != filepath.Join(home, "climdo", "session.toml") {
		t.Fatalf("ExpandPath = %q", got)
	}
}

func TestExpandPath_EmptyErrors(t *testing.T) {
	if _, err := expandPath("   "); err == nil {
		t.Fatal("expected error")
	}
}

func TestLogPath_DefaultsWhenLogDirEmpty(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	var cfg Config
	want := filepath.Join(home, ".local", "share", "climdo", "logs", "climdo.log")
	if got := cfg.LogPath(); got != want {
		t.Fatalf("LogPath = %q, want %q", got, want)
	}
}
