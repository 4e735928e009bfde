package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/climdo/internal/observability"
)

// Config is the resolved client configuration.
type Config struct {
	APIURL        string
	Timeout       time.Duration
	LogDir        string
	LogLevel      string
	LogFormat     string
	SessionPath   string
	PollInterval  time.Duration
	AccessCookie  string
	RefreshCookie string
}

const (
	defaultConfigPath    = "~/.config/climdo/config.toml"
	defaultAPIURL        = "http://localhost:5000"
	defaultLogDir        = "~/.local/share/climdo/logs"
	defaultSessionPath   = "~/.local/share/climdo/session.toml"
	defaultLogLevel      = "info"
	defaultLogFormat     = "text"
	defaultTimeout       = 15 * time.Second
	defaultPollInterval  = 30 * time.Second
	defaultAccessCookie  = "csrf_access_token"
	defaultRefreshCookie = "csrf_refresh_token"

	envAPIURL   = "CLIMDO_API_URL"
	envLogLevel = "CLIMDO_LOG_LEVEL"
)

type fileConfig struct {
	APIURL         string `toml:"api_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	LogDir         string `toml:"log_dir"`
	LogLevel       string `toml:"log_level"`
	LogFormat      string `toml:"log_format"`
	SessionPath    string `toml:"session_path"`
	PollSeconds    int    `toml:"poll_seconds"`
	Cookies        struct {
		Access  string `toml:"access"`
		Refresh string `toml:"refresh"`
	} `toml:"cookies"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		APIURL:        defaultAPIURL,
		Timeout:       defaultTimeout,
		LogDir:        mustExpand(defaultLogDir),
		LogLevel:      defaultLogLevel,
		LogFormat:     defaultLogFormat,
		SessionPath:   mustExpand(defaultSessionPath),
		PollInterval:  defaultPollInterval,
		AccessCookie:  defaultAccessCookie,
		RefreshCookie: defaultRefreshCookie,
	}
}

// Load reads the config file at path (the default location when empty),
// falling back to defaults when it is missing, then applies a .env file in
// the working directory and the CLIMDO_* environment overrides.
func Load(path string) (Config, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}
	cfg.applyEnv(os.LookupEnv)
	return cfg, nil
}

func loadFile(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw fileConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.APIURL); v != "" {
		cfg.APIURL = v
	}
	if raw.TimeoutSeconds != 0 {
		cfg.Timeout = time.Duration(raw.TimeoutSeconds) * time.Second
	}
	if v := strings.TrimSpace(raw.LogDir); v != "" {
		cfg.LogDir = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := strings.TrimSpace(raw.LogFormat); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}
	if v := strings.TrimSpace(raw.SessionPath); v != "" {
		cfg.SessionPath = mustExpand(v)
	}
	if raw.PollSeconds != 0 {
		cfg.PollInterval = time.Duration(raw.PollSeconds) * time.Second
	}
	if v := strings.TrimSpace(raw.Cookies.Access); v != "" {
		cfg.AccessCookie = v
	}
	if v := strings.TrimSpace(raw.Cookies.Refresh); v != "" {
		cfg.RefreshCookie = v
	}
	return cfg, nil
}

// loadDotEnv loads path into the environment when it exists. Variables
// already set win over the file.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(envAPIURL); ok && strings.TrimSpace(v) != "" {
		c.APIURL = strings.TrimSpace(v)
	}
	if v, ok := lookup(envLogLevel); ok && strings.TrimSpace(v) != "" {
		c.LogLevel = strings.ToLower(strings.TrimSpace(v))
	}
}

// Validate checks the values a client cannot start without.
func (c Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil {
		return fmt.Errorf("api_url %q: %w", c.APIURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api_url %q must use http or https", c.APIURL)
	}
	if u.Host == "" {
		return fmt.Errorf("api_url %q has no host", c.APIURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout_seconds must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_seconds must be positive")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}
	if strings.TrimSpace(c.AccessCookie) == "" || strings.TrimSpace(c.RefreshCookie) == "" {
		return fmt.Errorf("cookie names must not be empty")
	}
	return nil
}

// LogPath returns the client log file.
func (c Config) LogPath() string {
	if strings.TrimSpace(c.LogDir) == "" {
		return filepath.Join(mustExpand(defaultLogDir), observability.LogFileName)
	}
	return filepath.Join(c.LogDir, observability.LogFileName)
}

// DefaultPath returns the expanded default config file location.
func DefaultPath() string {
	return mustExpand(defaultConfigPath)
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

// ExpandPath resolves a leading ~ and makes path absolute.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
