// Package config manages application configuration for the Occasions API.
//
// Configuration is loaded from environment variables and validated once at startup:
//
//	cfg, err := config.Load()
//	if err := cfg.Validate(); err != nil { ... }
//
// # Configuration Groups
//
//   - ServerConfig: HTTP server settings (port, timeouts, CORS)
//   - DatabaseConfig: SurrealDB connection settings
//   - JobsConfig: background job queue and lifecycle scheduler settings
//
// # Environment Variables
//
//	SERVER_PORT          - HTTP server port (default: 8080)
//	DB_HOST, DB_PORT     - SurrealDB endpoint
//	DB_NAMESPACE         - SurrealDB namespace (default: occasions)
//	JOBS_FAILURE_LOG     - failed job log path (default: ./data/failed_jobs.json)
//	JOBS_RETRY_DELAY     - delay before a failed job is retried (default: 30s)
//	JOBS_MAX_RETRIES     - retries after the first attempt (default: 3)
//	JOBS_START_INTERVAL  - how often due occasions are started (default: 5m)
//	JOBS_END_INTERVAL    - how often due occasions are ended (default: 10m)
package config
