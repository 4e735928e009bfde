package session

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLookup_ExactNameMatch(t *testing.T) {
	header := "csrf_access_token_old=stale; csrf_access_token=abc; csrf_refresh_token=def"

	got, ok := Lookup(header, "csrf_access_token")
	if !ok || got != "abc" {
		t.Fatalf("Lookup(csrf_access_token) = %q, %v; want abc, true", got, ok)
	}
	got, ok = Lookup(header, "csrf_refresh_token")
	if !ok || got != "def" {
		t.Fatalf("Lookup(csrf_refresh_token) = %q, %v; want def, true", got, ok)
	}
	if _, ok := Lookup(header, "csrf"); ok {
		t.Fatalf("Lookup(csrf) matched a longer cookie name")
	}
}

func TestLookup_AbsentAndEmpty(t *testing.T) {
	if _, ok := Lookup("", "a"); ok {
		t.Fatalf("Lookup on empty header returned ok")
	}
	if _, ok := Lookup("a=1", ""); ok {
		t.Fatalf("Lookup with empty name returned ok")
	}
	if _, ok := Lookup("a=1; b=2", "c"); ok {
		t.Fatalf("Lookup(c) returned ok")
	}
}

func TestLookup_DecodesValues(t *testing.T) {
	got, ok := Lookup("token=a%3Db%2Bc; other=x", "token")
	if !ok || got != "a=b+c" {
		t.Fatalf("Lookup = %q, want a=b+c", got)
	}
	got, _ = Lookup("token=100%", "token")
	if got != "100%" {
		t.Fatalf("Lookup malformed escape = %q, want raw value", got)
	}
	got, _ = Lookup("token=x=y", "token")
	if got != "x=y" {
		t.Fatalf("Lookup with '=' in value = %q, want x=y", got)
	}
}

func TestJar_CookieReadsServerCookies(t *testing.T) {
	jar, err := NewJar("http://127.0.0.1:5000")
	if err != nil {
		t.Fatalf("NewJar returned error: %v", err)
	}
	if !jar.Empty() {
		t.Fatalf("new jar should be empty")
	}
	u, _ := url.Parse("http://127.0.0.1:5000/auth/login")
	jar.SetCookies(u, []*http.Cookie{
		{Name: "csrf_access_token", Value: "acc", Path: "/"},
		{Name: "access_token_cookie", Value: "jwt", Path: "/", HttpOnly: true},
	})

	got, ok := jar.Cookie("csrf_access_token")
	if !ok || got != "acc" {
		t.Fatalf("Cookie = %q, %v; want acc, true", got, ok)
	}

	jar.Clear()
	if _, ok := jar.Cookie("csrf_access_token"); ok {
		t.Fatalf("Cookie found after Clear")
	}
}

func TestNewJar_RejectsRelativeURL(t *testing.T) {
	if _, err := NewJar("localhost:5000/api"); err == nil {
		t.Fatalf("NewJar returned nil error for url without scheme")
	}
}

func TestJar_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.toml")

	jar, err := NewJar("http://127.0.0.1:5000")
	if err != nil {
		t.Fatalf("NewJar: %v", err)
	}
	u, _ := url.Parse("http://127.0.0.1:5000/")
	jar.SetCookies(u, []*http.Cookie{{Name: "csrf_access_token", Value: "acc", Path: "/"}})
	if err := jar.Save(path); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("session file perm = %o, want 600", perm)
	}

	restored, _ := NewJar("http://127.0.0.1:5000")
	if err := restored.Load(path); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	got, ok := restored.Cookie("csrf_access_token")
	if !ok || got != "acc" {
		t.Fatalf("restored Cookie = %q, %v; want acc, true", got, ok)
	}

	other, _ := NewJar("http://127.0.0.1:6000")
	if err := other.Load(path); err != nil {
		t.Fatalf("Load for other base returned error: %v", err)
	}
	if !other.Empty() {
		t.Fatalf("session for another base url should be ignored")
	}

	if err := Remove(path); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if err := Remove(path); err != nil {
		t.Fatalf("Remove of missing file returned error: %v", err)
	}
}

func TestJar_LoadMissingAndInvalid(t *testing.T) {
	jar, _ := NewJar("http://127.0.0.1:5000")
	if err := jar.Load(filepath.Join(t.TempDir(), "missing.toml")); err != nil {
		t.Fatalf("Load of missing file returned error: %v", err)
	}

	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("cookies = ["), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	err := jar.Load(path)
	if err == nil || !strings.Contains(err.Error(), "parse session") {
		t.Fatalf("Load error = %v, want parse session error", err)
	}
}

func TestJar_SaveKeepsCookieAttributes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.toml")
	now := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)

	jar, _ := NewJar("http://127.0.0.1:5000")
	jar.now = func() time.Time { return now }
	u, _ := url.Parse("http://127.0.0.1:5000/auth/login")
	jar.SetCookies(u, []*http.Cookie{
		{Name: "access_token_cookie", Value: "acc", Path: "/", MaxAge: 900},
		{Name: "refresh_token_cookie", Value: "ref", Path: "/auth/refresh", HttpOnly: true},
		{Name: "csrf_refresh_token", Value: "csrf", Path: "/", Secure: true},
		{Name: "stale", Value: "x", Path: "/", Expires: now.Add(-time.Hour)},
	})
	if err := jar.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	restored, _ := NewJar("http://127.0.0.1:5000")
	restored.now = func() time.Time { return now }
	if err := restored.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := make(map[string]savedCookie)
	for _, c := range restored.saved {
		got[c.Name] = c
	}
	if len(got) != 3 {
		t.Fatalf("restored cookies = %v, want 3 without the expired one", got)
	}
	if c := got["access_token_cookie"]; !c.Expires.Equal(now.Add(900*time.Second)) || c.Path != "/" {
		t.Fatalf("access cookie = %+v, want expiry kept", c)
	}
	if c := got["refresh_token_cookie"]; c.Path != "/auth/refresh" || !c.HttpOnly || c.Value != "ref" {
		t.Fatalf("refresh cookie = %+v, want its narrow path kept", c)
	}
	if c := got["csrf_refresh_token"]; !c.Secure {
		t.Fatalf("csrf cookie = %+v, want secure kept", c)
	}

	refreshURL, _ := url.Parse("http://127.0.0.1:5000/auth/refresh")
	var sent bool
	for _, c := range restored.Cookies(refreshURL) {
		if c.Name == "refresh_token_cookie" && c.Value == "ref" {
			sent = true
		}
	}
	if !sent {
		t.Fatal("refresh cookie not sent to its path after Load")
	}

	// Loading after the access cookie's expiry drops it.
	later, _ := NewJar("http://127.0.0.1:5000")
	later.now = func() time.Time { return now.Add(time.Hour) }
	if err := later.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, c := range later.saved {
		if c.Name == "access_token_cookie" {
			t.Fatal("expired access cookie restored")
		}
	}
}

func TestJar_MaxAgeNegativeForgetsCookie(t *testing.T) {
	jar, _ := NewJar("http://127.0.0.1:5000")
	u, _ := url.Parse("http://127.0.0.1:5000/")
	jar.SetCookies(u, []*http.Cookie{{Name: "csrf_access_token", Value: "acc", Path: "/"}})
	jar.SetCookies(u, []*http.Cookie{{Name: "csrf_access_token", Value: "", Path: "/", MaxAge: -1}})
	if !jar.Empty() {
		t.Fatal("jar not empty after the server cleared its only cookie")
	}
}
