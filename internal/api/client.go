package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/five82/climdo/internal/observability"
	"github.com/five82/climdo/internal/session"
)

const (
	// DefaultBaseURL is used when no API address is configured.
	DefaultBaseURL   = "http://localhost:5000"
	defaultTimeout   = 15 * time.Second
	defaultUserAgent = "climdo/0.1"
	maxResponseBytes = 8 << 20
	requestIDHeader  = "X-Request-ID"
	refreshPath      = "/auth/refresh"
	authPathPrefix   = "/auth/"
)

// CookieStore is the cookie jar the transport sends credentials from and
// reads CSRF tokens out of.
type CookieStore interface {
	http.CookieJar
	TokenSource
}

// Options configure a Client. Zero values pick the defaults.
type Options struct {
	BaseURL       string
	Timeout       time.Duration
	Cookies       CookieStore
	AccessCookie  string
	RefreshCookie string
	UserAgent     string
	Logger        *slog.Logger
	Metrics       *observability.Metrics
	// Transport overrides the HTTP round tripper (tests).
	Transport http.RoundTripper
}

// Client talks to the Climdo REST API. It is safe for concurrent use; build
// one per session and share it.
type Client struct {
	baseURL       *url.URL
	http          *http.Client
	cookies       CookieStore
	accessCookie  string
	refreshCookie string
	userAgent     string
	logger        *slog.Logger
	metrics       *observability.Metrics
	refresher     *refresher
}

// request is one logical API call. The body is encoded once so replays send
// the identical payload.
type request struct {
	method  string
	path    string
	body    []byte
	header  http.Header
	id      string
	retried bool
}

// New builds a Client from opts.
func New(opts Options) (*Client, error) {
	base, err := parseBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	cookies := opts.Cookies
	if cookies == nil {
		jar, err := session.NewJar(base.String())
		if err != nil {
			return nil, fmt.Errorf("init cookie jar: %w", err)
		}
		cookies = jar
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = observability.Discard()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.NewMetrics()
	}

	c := &Client{
		baseURL: base,
		http: &http.Client{
			Timeout:   timeout,
			Jar:       cookies,
			Transport: opts.Transport,
		},
		cookies:       cookies,
		accessCookie:  firstNonEmpty(opts.AccessCookie, DefaultAccessCookie),
		refreshCookie: firstNonEmpty(opts.RefreshCookie, DefaultRefreshCookie),
		userAgent:     firstNonEmpty(opts.UserAgent, defaultUserAgent),
		logger:        logger,
		metrics:       metrics,
	}
	c.refresher = newRefresher(c.refreshSession, c.roundTrip, logger, metrics)
	return c, nil
}

// BaseURL returns the API origin requests are sent to.
func (c *Client) BaseURL() string { return c.baseURL.String() }

// Metrics returns the client's metric set.
func (c *Client) Metrics() *observability.Metrics { return c.metrics }

// OnSessionExpired registers fn to run once per failed session refresh.
func (c *Client) OnSessionExpired(fn func(*Error)) {
	c.refresher.setExpiredHandler(fn)
}

// Get issues a GET and decodes the JSON response into dest (if non-nil).
func (c *Client) Get(ctx context.Context, path string, dest any) error {
	return c.send(ctx, http.MethodGet, path, nil, nil, dest)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, dest any) error {
	return c.send(ctx, http.MethodPost, path, body, nil, dest)
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, dest any) error {
	return c.send(ctx, http.MethodPut, path, body, nil, dest)
}

// Patch issues a PATCH with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, dest any) error {
	return c.send(ctx, http.MethodPatch, path, body, nil, dest)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, dest any) error {
	return c.send(ctx, http.MethodDelete, path, nil, nil, dest)
}

func (c *Client) send(ctx context.Context, method, path string, body any, header http.Header, dest any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	req := &request{method: method, path: path, header: header, id: uuid.NewString()}
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return Classify(fmt.Errorf("encode request: %w", err))
		}
		req.body = encoded
	}

	raw, err := c.roundTrip(ctx, req)
	if isUnauthorized(err) && !req.retried && !strings.HasPrefix(path, authPathPrefix) {
		raw, err = c.refresher.recover(ctx, req)
	}
	if err != nil {
		return Classify(err)
	}
	return decodeInto(raw, dest)
}

// roundTrip performs one attempt of req: CSRF attachment, send, read. It
// never refreshes.
func (c *Client) roundTrip(ctx context.Context, req *request) ([]byte, error) {
	ctx = observability.WithRequestID(ctx, req.id)
	logger := observability.FromContext(ctx, c.logger)

	target := c.baseURL.ResolveReference(&url.URL{Path: req.path})
	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for key, values := range req.header {
		httpReq.Header[key] = append([]string(nil), values...)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set(requestIDHeader, req.id)
	attachCSRF(httpReq, c.cookies, c.accessCookie)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	elapsed := time.Since(start)
	c.metrics.RequestDuration.WithLabelValues(req.method).Observe(elapsed.Seconds())
	if err != nil {
		c.metrics.RequestsTotal.WithLabelValues(req.method, "error").Inc()
		logger.Warn("request failed", "method", req.method, "path", req.path, "retried", req.retried, "duration", elapsed, "error", err)
		return nil, fmt.Errorf("execute request: %w: %w", errNoResponse, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.metrics.RequestsTotal.WithLabelValues(req.method, strconv.Itoa(resp.StatusCode)).Inc()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	logger.Debug("request done", "method", req.method, "path", req.path, "status", resp.StatusCode, "retried", req.retried, "duration", elapsed)

	if resp.StatusCode >= 400 {
		return nil, &HTTPError{Method: req.method, Path: req.path, Status: resp.StatusCode, Body: data}
	}
	return data, nil
}

// refreshSession exchanges the refresh-scoped token for a new access token.
func (c *Client) refreshSession(ctx context.Context) error {
	header := http.Header{}
	if token, ok := c.cookies.Cookie(c.refreshCookie); ok {
		header.Set(CSRFHeader, token)
	}
	req := &request{method: http.MethodPost, path: refreshPath, body: []byte("{}"), header: header, id: uuid.NewString()}
	if _, err := c.roundTrip(ctx, req); err != nil {
		return fmt.Errorf("refresh session: %w", err)
	}
	if token, ok := c.cookies.Cookie(c.accessCookie); !ok || token == "" {
		return fmt.Errorf("refresh session: response carried no %s cookie", c.accessCookie)
	}
	return nil
}

func isUnauthorized(err error) bool {
	httpErr, ok := err.(*HTTPError)
	return ok && httpErr.Status == http.StatusUnauthorized
}

func decodeInto(raw []byte, dest any) error {
	if dest == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if target, ok := dest.(*json.RawMessage); ok {
		*target = append((*target)[:0], raw...)
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return Classify(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api url %q must use http or https", raw)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
