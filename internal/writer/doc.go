// Package writer implements the append-only sink for normalized market rows.
//
// MarketWriter:
//   - Appends one deduplicated table per run with COPY (never updates)
//   - Encodes decimal prices as NUMERIC, insert_time as TIMESTAMPTZ, cg_date as DATE
//   - Can create the default market_data table on first use
package writer
