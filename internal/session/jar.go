package session

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"golang.org/x/net/publicsuffix"
)

// Jar is the client's cookie store. It satisfies http.CookieJar so the
// transport includes session cookies on every request, and it exposes
// named lookups for the CSRF tokens the backend mirrors into cookies.
//
// cookiejar.Jar only hands back names and values, so the attributes of
// cookies set by the API host are tracked alongside it for Save.
type Jar struct {
	base *url.URL
	now  func() time.Time

	mu    sync.RWMutex
	jar   *cookiejar.Jar
	saved map[cookieKey]savedCookie
}

type cookieKey struct {
	name string
	path string
}

var _ http.CookieJar = (*Jar)(nil)

// NewJar builds an empty jar scoped to baseURL.
func NewJar(baseURL string) (*Jar, error) {
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", baseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must include scheme and host", baseURL)
	}
	base.Path, base.RawQuery, base.Fragment = "", "", ""
	inner, err := newCookieJar()
	if err != nil {
		return nil, err
	}
	return &Jar{base: base, now: time.Now, jar: inner, saved: make(map[cookieKey]savedCookie)}, nil
}

func newCookieJar() (*cookiejar.Jar, error) {
	inner, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return inner, nil
}

// SetCookies implements http.CookieJar.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jar.SetCookies(u, cookies)
	if !strings.EqualFold(u.Hostname(), j.base.Hostname()) {
		return
	}
	now := j.now()
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}
		key := cookieKey{name: c.Name, path: cookiePath(u, c.Path)}
		var expires time.Time
		switch {
		case c.MaxAge < 0:
			delete(j.saved, key)
			continue
		case c.MaxAge > 0:
			expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		case !c.Expires.IsZero():
			expires = c.Expires
		}
		if !expires.IsZero() && !expires.After(now) {
			delete(j.saved, key)
			continue
		}
		j.saved[key] = savedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     key.path,
			Expires:  expires.UTC(),
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
	}
}

// cookiePath applies the RFC 6265 default-path rule.
func cookiePath(u *url.URL, path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	dir := u.Path
	if i := strings.LastIndex(dir, "/"); i > 0 {
		return dir[:i]
	}
	return "/"
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.jar.Cookies(u)
}

// Cookie returns the value of the named cookie as sent to the base URL.
func (j *Jar) Cookie(name string) (string, bool) {
	return Lookup(j.header(), name)
}

func (j *Jar) header() string {
	cookies := j.Cookies(j.base)
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

// Clear drops every cookie.
func (j *Jar) Clear() {
	inner, err := newCookieJar()
	if err != nil {
		return
	}
	j.mu.Lock()
	j.jar = inner
	j.saved = make(map[cookieKey]savedCookie)
	j.mu.Unlock()
}

// Empty reports whether the jar holds no live cookies from the API host,
// including ones scoped to a narrower path than the base URL.
func (j *Jar) Empty() bool {
	if len(j.Cookies(j.base)) > 0 {
		return false
	}
	now := j.now()
	j.mu.RLock()
	defer j.mu.RUnlock()
	for _, c := range j.saved {
		if c.Expires.IsZero() || c.Expires.After(now) {
			return false
		}
	}
	return true
}

type savedCookie struct {
	Name     string    `toml:"name"`
	Value    string    `toml:"value"`
	Path     string    `toml:"path,omitempty"`
	Expires  time.Time `toml:"expires"`
	Secure   bool      `toml:"secure,omitempty"`
	HttpOnly bool      `toml:"http_only,omitempty"`
}

type sessionFile struct {
	BaseURL string        `toml:"base_url"`
	SavedAt time.Time     `toml:"saved_at"`
	Cookies []savedCookie `toml:"cookies"`
}

// Load restores cookies saved by Save with their path, expiry and secure
// flag. Expired cookies are skipped. A missing file, or one saved for a
// different base URL, leaves the jar untouched.
func (j *Jar) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read session: %w", err)
	}
	var file sessionFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse session: %w", err)
	}
	if file.BaseURL != j.base.String() {
		return nil
	}
	now := j.now()
	cookies := make([]*http.Cookie, 0, len(file.Cookies))
	for _, c := range file.Cookies {
		if c.Name == "" || (!c.Expires.IsZero() && !c.Expires.After(now)) {
			continue
		}
		path := c.Path
		if path == "" {
			path = "/"
		}
		cookies = append(cookies, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     path,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		})
	}
	j.SetCookies(j.base, cookies)
	return nil
}

// Save writes the unexpired cookies of the API host to path with owner-only
// permissions, creating parent directories as needed.
func (j *Jar) Save(path string) error {
	now := j.now()
	file := sessionFile{BaseURL: j.base.String(), SavedAt: now.UTC()}
	j.mu.RLock()
	for _, c := range j.saved {
		if c.Expires.IsZero() || c.Expires.After(now) {
			file.Cookies = append(file.Cookies, c)
		}
	}
	j.mu.RUnlock()
	sort.Slice(file.Cookies, func(a, b int) bool {
		if file.Cookies[a].Name != file.Cookies[b].Name {
			return file.Cookies[a].Name < file.Cookies[b].Name
		}
		return file.Cookies[a].Path < file.Cookies[b].Path
	})
	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// Remove deletes a saved session file. Missing files are not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
