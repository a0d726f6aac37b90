// Package config loads the ShareSphere service configuration from
// environment variables.
//
// # Overview
//
// All settings have sensible defaults except the Postgres URL, which is
// required. Variables are prefixed with SHARESPHERE_.
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Related Packages
//
//   - pkg/observability: log level parsing
package config
