// Package pipeline runs one market-data ingest.
//
// A run is strictly sequential:
//
//	CollectAll → Archive → Validate → Normalize → Dedupe → Append
//
// Archiving is best-effort and the schema check is soft unless configured to
// abort. Any collection, normalization or sink failure ends the run with no
// rows written.
package pipeline
