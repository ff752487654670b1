// Package database provides the PostgreSQL connection pool for the sink.
//
// The ingest job opens one pool per run, appends the deduplicated batch to the
// market table, and closes the pool on exit.
package database
