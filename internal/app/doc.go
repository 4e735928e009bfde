// Package app is the composition root for climdo.
//
// # Overview
//
// Open turns configuration into a ready Runtime: it loads the config file
// and environment, opens the log file, restores the saved session cookies,
// builds the API client and the task and group stores on it, and hooks the
// client's session-expired notification to clear the saved session. CLI
// commands and the dashboard share this one construction path.
//
// # Components
//
//   - app.go: Open, session persistence helpers, Dashboard
//   - poller.go: background resync of the stores with exponential backoff
//
// # Data Flow
//
//	┌──────────────┐
//	│   Open()     │
//	└──────┬───────┘
//	       ├─────> config.Load()          file, .env, environment
//	       ├─────> observability.OpenLogFile()
//	       ├─────> session.Jar.Load()     saved cookies
//	       ├─────> api.New()              transport + refresh coordinator
//	       └─────> state.New*Store()      entity mirrors
//
//	Dashboard():
//	       ├─────> refresh()              initial fetch
//	       ├─────> StartPoller()          background resync
//	       └─────> ui.Run()               blocks until quit
//
// # Polling
//
// The poller waits one interval (30s by default), fetches both stores, and
// doubles the wait after each consecutive failure up to five minutes. A
// session that can no longer be refreshed stops it; the dashboard then shows
// the log-in-again screen.
//
// # Session Lifetime
//
// Close saves the jar so tokens rotated by a refresh survive to the next
// invocation. When the refresh coordinator reports the session expired, the
// jar is emptied and the session file removed instead.
package app
