package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_StatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   Kind
		title  string
		desc   string
	}{
		{"validation message", 400, `{"message":"Bad due date"}`, KindValidation, "Validation Error", "Bad due date"},
		{"validation fields", 400, `{"message":{"text":["Too long"],"due_at":"Invalid date"}}`, KindValidation, "Validation Error", "Invalid date, Too long"},
		{"validation empty", 400, ``, KindValidation, "Validation Error", "Please check your input"},
		{"unauthorized default", 401, `{}`, KindUnauthorized, "Unauthorized", descSessionExpired},
		{"unauthorized msg", 401, `{"msg":"Token has expired"}`, KindUnauthorized, "Unauthorized", "Token has expired"},
		{"forbidden", 403, `{"message":"nope"}`, KindForbidden, "Access Denied", "You don't have permission to perform this action."},
		{"not found", 404, ``, KindNotFound, "Not Found", "The requested resource was not found."},
		{"server", 503, `oops`, KindServer, "Server Error", "Something went wrong on our end. Please try again later."},
		{"conflict", 409, `{"error":"already exists"}`, KindUnknown, "Error", "already exists"},
		{"teapot", 418, ``, KindUnknown, "Error", descUnexpected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(&HTTPError{Method: "GET", Path: "/api/task/", Status: tt.status, Body: []byte(tt.body)})
			require.NotNil(t, got)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.title, got.Title)
			assert.Equal(t, tt.desc, got.Description)
			assert.Equal(t, tt.status, got.Status)
		})
	}
}

func TestClassify_FieldsKeptVerbatim(t *testing.T) {
	got := Classify(&HTTPError{Status: 400, Body: []byte(`{"message":{"text":["Required","Too short"],"group_id":"Unknown group"}}`)})
	assert.Equal(t, map[string][]string{
		"text":     {"Required", "Too short"},
		"group_id": {"Unknown group"},
	}, got.Fields)
	assert.Equal(t, "Unknown group, Required, Too short", got.Description)
}

func TestClassify_NonHTTPFailures(t *testing.T) {
	assert.Nil(t, Classify(nil))

	timeout := Classify(fmt.Errorf("execute request: %w: %w", errNoResponse, context.DeadlineExceeded))
	assert.Equal(t, KindTimeout, timeout.Kind)
	assert.Equal(t, "Request Timeout", timeout.Title)

	network := Classify(fmt.Errorf("execute request: %w: %w", errNoResponse, errors.New("connection refused")))
	assert.Equal(t, KindNetwork, network.Kind)
	assert.Equal(t, "Network Error", network.Title)

	canceled := Classify(fmt.Errorf("execute request: %w: %w", errNoResponse, context.Canceled))
	assert.Equal(t, KindUnknown, canceled.Kind)
	assert.ErrorIs(t, canceled, context.Canceled)

	other := Classify(errors.New("weird"))
	assert.Equal(t, KindUnknown, other.Kind)
	assert.Equal(t, descUnexpected, other.Description)
}

func TestClassify_PassesThroughClassified(t *testing.T) {
	orig := &Error{Kind: KindForbidden, Title: "Access Denied", Description: "x"}
	wrapped := fmt.Errorf("store: %w", orig)
	assert.Same(t, orig, Classify(wrapped))
	assert.ErrorIs(t, wrapped, KindForbidden)
	assert.NotErrorIs(t, wrapped, KindNotFound)
}

func TestError_Retryable(t *testing.T) {
	assert.False(t, (&Error{Kind: KindUnauthorized}).Retryable())
	for _, kind := range []Kind{KindUnknown, KindValidation, KindForbidden, KindNotFound, KindTimeout, KindNetwork, KindServer} {
		assert.True(t, (&Error{Kind: kind}).Retryable(), kind.String())
	}
}

func TestAttachCSRF_RespectsExplicitHeader(t *testing.T) {
	tokens := staticTokens{DefaultAccessCookie: "access-1"}

	req := httptest.NewRequest(http.MethodGet, "/api/task/", nil)
	attachCSRF(req, tokens, DefaultAccessCookie)
	assert.Equal(t, "access-1", req.Header.Get(CSRFHeader))

	req = httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.Header.Set(CSRFHeader, "refresh-1")
	attachCSRF(req, tokens, DefaultAccessCookie)
	assert.Equal(t, "refresh-1", req.Header.Get(CSRFHeader))

	req = httptest.NewRequest(http.MethodGet, "/api/task/", nil)
	attachCSRF(req, staticTokens{}, DefaultAccessCookie)
	assert.Empty(t, req.Header.Get(CSRFHeader))
}

type staticTokens map[string]string

func (s staticTokens) Cookie(name string) (string, bool) {
	v, ok := s[name]
	return v, ok
}
