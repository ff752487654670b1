// Package dedup implements the Deduplicator component.
//
// The Deduplicator:
//   - Builds a composite key from the configured columns (default: coin_id, cg_date)
//   - Keeps the first row for each key and drops the rest, preserving order
//   - Reports removed duplicates grouped by a chosen column, most frequent first
//
// Output is deterministic for a given input order, and deduplicating an
// already deduplicated table returns it unchanged.
package dedup
