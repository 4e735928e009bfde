package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
)

// Kind is the user-facing category of a failed request. Kind values work as
// errors.Is targets: errors.Is(err, api.KindNotFound).
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindTimeout
	KindNetwork
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// Error lets a Kind be used as an errors.Is target.
func (k Kind) Error() string { return k.String() }

// HTTPError is a response with a non-2xx status.
type HTTPError struct {
	Method string
	Path   string
	Status int
	Body   []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("api %s %s returned status %d", e.Method, e.Path, e.Status)
}

// errNoResponse marks transport failures where the server never answered.
var errNoResponse = errors.New("no response received")

// Error is a classified request failure.
type Error struct {
	Kind        Kind
	Status      int
	Title       string
	Description string
	// Fields holds per-field validation messages, verbatim.
	Fields map[string][]string
	Err    error
}

func (e *Error) Error() string {
	return e.Title + ": " + e.Description
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches Kind targets.
func (e *Error) Is(target error) bool {
	kind, ok := target.(Kind)
	return ok && kind == e.Kind
}

// Retryable reports whether re-invoking the operation can help. An expired
// session needs a new login instead.
func (e *Error) Retryable() bool {
	return e.Kind != KindUnauthorized
}

const (
	descSessionExpired = "Your session has expired. Please log in again."
	descUnexpected     = "An unexpected error occurred."
)

// Classify maps any request failure to exactly one Kind. Already classified
// errors pass through unchanged; nil stays nil.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return classifyStatus(httpErr, err)
	}
	if isTimeout(err) {
		return &Error{
			Kind:        KindTimeout,
			Title:       "Request Timeout",
			Description: "The request took too long. Please try again.",
			Err:         err,
		}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindUnknown, Title: "Error", Description: "The request was canceled.", Err: err}
	}
	if errors.Is(err, errNoResponse) {
		return &Error{
			Kind:        KindNetwork,
			Title:       "Network Error",
			Description: "Unable to connect to server. Please check your connection.",
			Err:         err,
		}
	}
	return &Error{Kind: KindUnknown, Title: "Error", Description: descUnexpected, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func classifyStatus(httpErr *HTTPError, err error) *Error {
	message, fields := parseErrorBody(httpErr.Body)
	out := &Error{Status: httpErr.Status, Err: err}
	switch {
	case httpErr.Status == http.StatusBadRequest:
		out.Kind = KindValidation
		out.Title = "Validation Error"
		out.Fields = fields
		out.Description = validationDescription(message, fields)
	case httpErr.Status == http.StatusUnauthorized:
		out.Kind = KindUnauthorized
		out.Title = "Unauthorized"
		out.Description = firstNonEmpty(message, descSessionExpired)
	case httpErr.Status == http.StatusForbidden:
		out.Kind = KindForbidden
		out.Title = "Access Denied"
		out.Description = "You don't have permission to perform this action."
	case httpErr.Status == http.StatusNotFound:
		out.Kind = KindNotFound
		out.Title = "Not Found"
		out.Description = "The requested resource was not found."
	case httpErr.Status >= http.StatusInternalServerError:
		out.Kind = KindServer
		out.Title = "Server Error"
		out.Description = "Something went wrong on our end. Please try again later."
	default:
		out.Kind = KindUnknown
		out.Title = "Error"
		out.Description = firstNonEmpty(message, descUnexpected)
	}
	return out
}

func validationDescription(message string, fields map[string][]string) string {
	if len(fields) > 0 {
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)
		var parts []string
		for _, name := range names {
			parts = append(parts, fields[name]...)
		}
		if joined := strings.Join(parts, ", "); joined != "" {
			return joined
		}
	}
	return firstNonEmpty(message, "Please check your input")
}

// parseErrorBody understands {"message": "text"}, {"message": {field: msg |
// [msgs]}}, and the {"msg": "..."} / {"error": "..."} shapes of the auth
// layer.
func parseErrorBody(body []byte) (string, map[string][]string) {
	if len(body) == 0 {
		return "", nil
	}
	var payload struct {
		Message json.RawMessage `json:"message"`
		Msg     string          `json:"msg"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", nil
	}
	fallback := firstNonEmpty(payload.Msg, payload.Error)
	if len(payload.Message) == 0 {
		return fallback, nil
	}

	var text string
	if err := json.Unmarshal(payload.Message, &text); err == nil {
		return firstNonEmpty(text, fallback), nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload.Message, &raw); err != nil {
		return fallback, nil
	}
	fields := make(map[string][]string, len(raw))
	for name, value := range raw {
		var list []string
		if err := json.Unmarshal(value, &list); err == nil {
			fields[name] = list
			continue
		}
		var single string
		if err := json.Unmarshal(value, &single); err == nil {
			fields[name] = []string{single}
		}
	}
	return fallback, fields
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
