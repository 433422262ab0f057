// Package config provides centralized timeout constants for the application.
//
// CMS portals are typically ASP.NET sites hosted on campus networks and can
// be slow during enrollment peaks. Values here are defaults; the scraper
// timeout and retry delay are overridable through the environment.
package config

import "time"

// Scraper timeouts
const (
	// ScraperRequest is the timeout for a single HTTP request to a CMS portal.
	ScraperRequest = 30 * time.Second

	// ScraperRetryInitial is the initial delay before a caller-side retry.
	// Uses exponential backoff: 2s -> 4s -> 8s -> 16s
	ScraperRetryInitial = 2 * time.Second

	// ScraperRate is the default steady request rate (requests per second)
	// towards a single portal.
	ScraperRate = 2.0

	// ScraperBurst is the default burst size for the outbound limiter.
	ScraperBurst = 4
)

// Database timeouts
const (
	// DatabaseBusyTimeout is SQLite busy_timeout pragma value.
	// Concurrent class/grade replacements during a sync contend on the writer.
	DatabaseBusyTimeout = 10 * time.Second

	// DatabaseConnMaxLifetime is the maximum lifetime of database connections.
	DatabaseConnMaxLifetime = time.Hour
)

// Snapshot timeouts
const (
	// SnapshotUpload bounds a full compress+upload of the database.
	SnapshotUpload = 5 * time.Minute

	// SentryFlush is how long the CLI waits for buffered error events on exit.
	SentryFlush = 2 * time.Second
)
