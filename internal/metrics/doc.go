// Package metrics provides Prometheus metrics for an ingest run.
//
// Key metrics:
//   - API requests by status code and rate-limit wait time
//   - Pages fetched and records collected
//   - Duplicates removed and rows appended
//   - Schema mismatches and run duration
//
// The job is short-lived, so metrics are pushed to a Pushgateway at the end
// of the run instead of being scraped.
package metrics
