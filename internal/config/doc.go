// Package config loads the climdo client configuration.
//
// # Resolution Order
//
//  1. Built-in defaults
//  2. The TOML file (~/.config/climdo/config.toml unless a path is given);
//     a missing file is not an error and empty fields keep their defaults
//  3. A .env file in the working directory, if present
//  4. CLIMDO_API_URL and CLIMDO_LOG_LEVEL from the environment
//  5. Command-line flags, applied by the caller before Validate
//
// # TOML Format
//
//	api_url = "http://localhost:5000"
//	timeout_seconds = 15
//	log_dir = "~/.local/share/climdo/logs"
//	log_level = "info"
//	session_path = "~/.local/share/climdo/session.toml"
//	poll_seconds = 30
//
//	[cookies]
//	access = "csrf_access_token"
//	refresh = "csrf_refresh_token"
//
// The cookie names are the backend's contract for where it mirrors the CSRF
// tokens; change them only if the server does.
//
// Paths support tilde expansion and are made absolute.
package config
