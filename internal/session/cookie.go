package session

import (
	"net/url"
	"strings"
)

// Lookup returns the value of the cookie called name in a Cookie header
// string such as "csrf_access_token=abc; theme=dark". Names must match
// exactly, so "csrf" does not match "csrf_access_token". Percent-encoded
// values are decoded; values that fail to decode are returned as-is.
func Lookup(header, name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" || header == "" {
		return "", false
	}
	for _, part := range strings.Split(header, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || key != name {
			continue
		}
		if decoded, err := url.PathUnescape(value); err == nil {
			return decoded, true
		}
		return value, true
	}
	return "", false
}
