package api

import "net/http"

// CSRFHeader carries the double-submit token the backend checks on every
// state-changing request.
const CSRFHeader = "X-CSRF-TOKEN"

// Default cookie names the backend uses to mirror its CSRF tokens.
const (
	DefaultAccessCookie  = "csrf_access_token"
	DefaultRefreshCookie = "csrf_refresh_token"
)

// TokenSource reads named cookies from the session's cookie store.
type TokenSource interface {
	Cookie(name string) (string, bool)
}

// attachCSRF sets the access-scoped token on req unless the caller already
// chose a token (the refresh call sends the refresh-scoped one). A missing
// cookie is not an error; the server rejects the request and the refresh
// flow takes over.
func attachCSRF(req *http.Request, tokens TokenSource, cookieName string) {
	if tokens == nil || req.Header.Get(CSRFHeader) != "" {
		return
	}
	if token, ok := tokens.Cookie(cookieName); ok && token != "" {
		req.Header.Set(CSRFHeader, token)
	}
}
