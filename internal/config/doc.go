// Package config handles configuration loading for coven-console.
//
// # Configuration File
//
// The console reads YAML from the first of:
//
//  1. $COVEN_CONSOLE_CONFIG
//  2. $XDG_CONFIG_HOME/coven/console.yaml
//  3. ~/.config/coven/console.yaml
//
// A missing file is not an error; every key has a default.
//
// # Environment Variable Expansion
//
// Values can reference environment variables using ${VAR_NAME} syntax:
//
//	api:
//	  base_url: "${COVEN_API_URL}"
//
// Unset variables expand to an empty string.
//
// # Example
//
//	api:
//	  base_url: "http://localhost:8090"
//	  timeout: "10s"
//
//	profile:
//	  path: "~/.config/coven/console-profile.db"
//
//	navigation:
//	  pending_timeout: "5s"
//
//	logging:
//	  level: "info"    # debug, info, warn, error
//	  format: "text"   # text or json
//
// # Durations
//
// Duration fields accept Go duration strings ("500ms", "10s", "1m").
package config
