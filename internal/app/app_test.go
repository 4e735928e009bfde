package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/five82/climdo/internal/api"
	fake "github.com/five82/climdo/internal/testutil"
)

func writeConfig(t *testing.T, apiURL string) (configPath, sessionPath string) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CLIMDO_API_URL", "")
	t.Setenv("CLIMDO_LOG_LEVEL", "")
	t.Chdir(t.TempDir())

	dir := t.TempDir()
	sessionPath = filepath.Join(dir, "state", "session.toml")
	configPath = filepath.Join(dir, "config.toml")
	body := fmt.Sprintf("api_url = %q\nlog_dir = %q\nsession_path = %q\npoll_seconds = 1\n",
		apiURL, filepath.Join(dir, "logs"), sessionPath)
	if err := os.WriteFile(configPath, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return configPath, sessionPath
}

func TestOpen_LoginPersistsSessionAcrossRuntimes(t *testing.T) {
	backend := fake.NewBackend(t)
	configPath, sessionPath := writeConfig(t, backend.URL())
	ctx := context.Background()

	rt, err := Open(Options{ConfigPath: configPath})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if rt.LoggedIn() {
		t.Fatal("fresh runtime reports a session")
	}
	if _, err := rt.Login(ctx, "demo", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := os.Stat(sessionPath); err != nil {
		t.Fatalf("session file not written: %v", err)
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(configPath), "logs", "climdo.log")); err != nil {
		t.Fatalf("log file not created: %v", err)
	}

	again, err := Open(Options{ConfigPath: configPath})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer again.Close()
	if !again.LoggedIn() {
		t.Fatal("saved session not restored")
	}
	user, err := again.Client.CurrentUser(ctx)
	if err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	if user.Username != "demo" {
		t.Fatalf("username = %q, want demo", user.Username)
	}
}

func TestOpen_ExpiredSessionIsCleared(t *testing.T) {
	backend := fake.NewBackend(t)
	configPath, sessionPath := writeConfig(t, backend.URL())
	ctx := context.Background()

	rt, err := Open(Options{ConfigPath: configPath})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rt.Close()
	if _, err := rt.Login(ctx, "demo", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	backend.FailRefresh()
	backend.ExpireAccess()

	err = rt.Tasks.Fetch(ctx)
	if !errors.Is(err, api.KindUnauthorized) {
		t.Fatalf("Fetch error = %v, want unauthorized", err)
	}
	if !rt.SessionExpired() {
		t.Fatal("runtime did not record the expiry")
	}
	if rt.LoggedIn() {
		t.Fatal("jar still holds cookies after expiry")
	}
	if _, err := os.Stat(sessionPath); !os.IsNotExist(err) {
		t.Fatalf("session file still present: %v", err)
	}
}

func TestOpen_FlagOverridesAndValidation(t *testing.T) {
	configPath, _ := writeConfig(t, "http://localhost:5000")

	rt, err := Open(Options{ConfigPath: configPath, APIURL: "http://127.0.0.1:9", LogLevel: "DEBUG"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rt.Close()
	if rt.Client.BaseURL() != "http://127.0.0.1:9" || rt.Config.LogLevel != "debug" {
		t.Fatalf("overrides not applied: %q %q", rt.Client.BaseURL(), rt.Config.LogLevel)
	}

	if _, err := Open(Options{ConfigPath: configPath, APIURL: "ftp://nope"}); err == nil {
		t.Fatal("Open accepted an ftp api url")
	}
}

func TestLogout_ClearsEvenWhenServerFails(t *testing.T) {
	configPath, sessionPath := writeConfig(t, "http://127.0.0.1:1")

	rt, err := Open(Options{ConfigPath: configPath})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rt.Close()
	if err := os.MkdirAll(filepath.Dir(sessionPath), 0o700); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(sessionPath, []byte("base_url = \"x\"\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	rt.Logout(context.Background())
	if _, err := os.Stat(sessionPath); !os.IsNotExist(err) {
		t.Fatalf("session file survived logout: %v", err)
	}
}
