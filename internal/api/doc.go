// Package api provides the HTTP client for the Climdo REST backend.
//
// # Overview
//
// The backend owns all persistence. This package wraps it with a session
// aware transport: cookies ride along on every request, the CSRF token the
// backend mirrors into a cookie is copied into the X-CSRF-TOKEN header, and
// an expired access token is refreshed transparently.
//
// # Architecture
//
//   - client.go: transport, request/response handling, base URL parsing
//   - csrf.go: credential attachment
//   - refresh.go: the session refresh coordinator
//   - errors.go: classification of failures into user-facing kinds
//   - tasks.go, groups.go, auth.go: typed endpoint wrappers
//   - types.go: wire types mirroring the backend schema
//
// # Session Refresh
//
// A 401 on a request that has not been retried moves the client from idle
// to refreshing and issues one POST /auth/refresh using the refresh-scoped
// token. Requests that fail with 401 while the refresh is in flight wait in
// a FIFO queue. When the refresh succeeds the queue is replayed in arrival
// order with the new token, then the originating request is retried. When it
// fails, every waiter and the originator get a KindUnauthorized error and
// the handler registered with OnSessionExpired runs. A request is retried at
// most once; a second 401 is terminal.
//
// Requests under /auth/ never enter the refresh flow. A 401 from login means
// bad credentials, not an expired session.
//
// # Error Handling
//
// Every error returned by the client is an *Error carrying a Kind, a title
// and a description suitable for display:
//
//	task, err := client.CreateTask(ctx, api.TaskDraft{Text: "buy milk"})
//	if errors.Is(err, api.KindValidation) {
//		var apiErr *api.Error
//		errors.As(err, &apiErr)
//		fmt.Println(apiErr.Fields)
//	}
//
// # Thread Safety
//
// Client is safe for concurrent use. The refresh state is the only mutable
// shared state and is guarded by a mutex.
package api
