// Package archive stores raw API batches in S3-compatible object storage.
//
// Each run writes one gzipped JSON object keyed by ingestion date and run ID:
//
//	<prefix>/<YYYY-MM-DD>/<run-id>.json.gz
//
// Archiving is best-effort. Callers log failures and continue.
package archive
