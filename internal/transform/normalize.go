package transform

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/cg-market-etl/internal/model"
)

// renames maps API field names to storage column names. Fields not listed
// keep their API name.
var renames = map[string]string{
	"id":            model.ColCoinID,
	"symbol":        model.ColCoinSymbol,
	"name":          model.ColCoinName,
	"current_price": model.ColPrice,
	"high_24h":      model.ColHigh24h,
	"low_24h":       model.ColLow24h,
	"last_updated":  model.ColLastUpdated,
}

// lowered lists columns whose string values are lower-cased.
var lowered = []string{model.ColCoinID, model.ColCoinSymbol}

// MissingColumnError is returned when a record lacks a projected field.
type MissingColumnError struct {
	Column string // API field name
	Index  int    // Position of the record in the batch
	CoinID string // Record id, if it has one
}

func (e *MissingColumnError) Error() string {
	if e.CoinID != "" {
		return fmt.Sprintf("record %d (%s) is missing column %q", e.Index, e.CoinID, e.Column)
	}
	return fmt.Sprintf("record %d is missing column %q", e.Index, e.Column)
}

// StorageName returns the storage column name for an API field.
func StorageName(field string) string {
	if name, ok := renames[field]; ok {
		return name
	}
	return field
}

// Normalizer converts record batches into tables.
type Normalizer struct {
	now    func() time.Time
	logger *slog.Logger
}

// NormalizerOption configures a Normalizer.
type NormalizerOption func(*Normalizer)

// WithClock overrides the clock used for insert_time.
func WithClock(now func() time.Time) NormalizerOption {
	return func(n *Normalizer) {
		n.now = now
	}
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(logger *slog.Logger, opts ...NormalizerOption) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	n := &Normalizer{
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize projects batch onto columns and returns the resulting table.
//
// Every record must carry every column; otherwise a *MissingColumnError is
// returned and no rows are produced. The clock is read once, so all rows
// share the same insert_time and cg_date.
func (n *Normalizer) Normalize(batch []model.Record, columns []string) (model.Table, error) {
	for i, rec := range batch {
		for _, col := range columns {
			if !rec.Has(col) {
				return model.Table{}, &MissingColumnError{Column: col, Index: i, CoinID: rec.ID()}
			}
		}
	}

	insertTime := n.now().UTC()
	ingestionDate := model.IngestionDate(insertTime)

	storageCols := make([]string, 0, len(columns)+2)
	for _, col := range columns {
		storageCols = append(storageCols, StorageName(col))
	}
	storageCols = append(storageCols, model.ColInsertTime, model.ColIngestionDate)

	rows := make([]model.Row, len(batch))
	for i, rec := range batch {
		row := make(model.Row, len(storageCols))
		for _, col := range columns {
			row[StorageName(col)] = convertValue(rec[col])
		}
		for _, col := range lowered {
			if s, ok := row[col].(string); ok {
				row[col] = strings.ToLower(s)
			}
		}
		row[model.ColInsertTime] = insertTime
		row[model.ColIngestionDate] = ingestionDate
		rows[i] = row
	}

	slices.SortStableFunc(rows, func(a, b model.Row) int {
		return strings.Compare(a.String(model.ColCoinID), b.String(model.ColCoinID))
	})

	n.logger.Debug("normalized batch",
		"rows", len(rows),
		"columns", len(storageCols),
		"cg_date", ingestionDate.Format(model.DateLayout),
	)

	return model.Table{Columns: storageCols, Rows: rows}, nil
}

// convertValue turns JSON numbers into decimals and leaves everything else
// untouched. JSON null stays nil.
func convertValue(v any) any {
	switch x := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		if err != nil {
			return x.String()
		}
		return decimal.NewNullDecimal(d)
	case float64:
		return decimal.NewNullDecimal(decimal.NewFromFloat(x))
	case int:
		return decimal.NewNullDecimal(decimal.NewFromInt(int64(x)))
	case int64:
		return decimal.NewNullDecimal(decimal.NewFromInt(x))
	default:
		return v
	}
}
