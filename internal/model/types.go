package model

import "time"

// Storage column names shared by the normalizer, deduplicator and writer.
const (
	ColCoinID        = "coin_id"
	ColCoinSymbol    = "coin_symbol"
	ColCoinName      = "coin_name"
	ColPrice         = "price_at_ingestion"
	ColHigh24h       = "high_24h_price"
	ColLow24h        = "low_24h_price"
	ColMarketCap     = "market_cap"
	ColTotalVolume   = "total_volume"
	ColLastUpdated   = "cg_last_updated"
	ColInsertTime    = "insert_time"
	ColIngestionDate = "cg_date"
)

// DateLayout is the format used when a cg_date value is rendered as text.
const DateLayout = "2006-01-02"

// -----------------------------------------------------------------------------
// API Types
// -----------------------------------------------------------------------------

// Record is a single coin snapshot from GET /coins/markets.
//
// Numbers are decoded as json.Number so prices keep their wire precision.
type Record map[string]any

// Has reports whether the record carries the named field (even if null).
func (r Record) Has(field string) bool {
	_, ok := r[field]
	return ok
}

// ID returns the coin identifier, or "" when absent or not a string.
func (r Record) ID() string {
	s, _ := r["id"].(string)
	return s
}

// -----------------------------------------------------------------------------
// Storage Types
// -----------------------------------------------------------------------------

// Row is a normalized record keyed by storage column name.
type Row map[string]any

// String returns the value of col when it is a string.
func (r Row) String(col string) string {
	s, _ := r[col].(string)
	return s
}

// Table is an ordered set of rows sharing one column layout.
type Table struct {
	// Columns lists the storage columns in insert order.
	Columns []string

	// Rows are the normalized rows, in pipeline order.
	Rows []Row
}

// Len returns the number of rows.
func (t Table) Len() int {
	return len(t.Rows)
}

// HasColumn reports whether col is part of the table layout.
func (t Table) HasColumn(col string) bool {
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// IngestionDate returns the calendar date of ts in UTC, as stored in cg_date.
func IngestionDate(ts time.Time) time.Time {
	y, m, d := ts.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
