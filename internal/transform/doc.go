// Package transform reshapes fetched market records into sink rows.
//
// Normalization projects each record onto the configured fields, renames them
// to storage column names, lower-cases coin identifiers and symbols, stamps
// every row with one shared insert_time/cg_date, and sorts by coin_id.
package transform
