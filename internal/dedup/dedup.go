package dedup

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/cg-market-etl/internal/model"
)

// keySep separates column values inside a composite key.
const keySep = "\x1f"

// UnknownColumnError is returned when a key or report column is not part of the table.
type UnknownColumnError struct {
	Column string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("unknown column %q", e.Column)
}

// DuplicateCount is the number of rows removed for one report value.
type DuplicateCount struct {
	Value string
	Count int
}

// Report summarizes removed duplicates.
//
// Group values come from the removed rows as they appear in the table being
// deduplicated. After normalization coin_id is lower-cased, so "BTC" and
// "btc" in one batch are reported as a single "btc" duplicate.
type Report struct {
	Column string           // Column the groups are keyed by
	Groups []DuplicateCount // Count desc, then value asc
}

// Total returns the number of removed rows.
func (r Report) Total() int {
	total := 0
	for _, g := range r.Groups {
		total += g.Count
	}
	return total
}

// maxLoggedGroups caps how many groups LogValue emits.
const maxLoggedGroups = 10

// LogValue implements slog.LogValuer.
func (r Report) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("column", r.Column),
		slog.Int("removed", r.Total()),
	}
	n := min(len(r.Groups), maxLoggedGroups)
	for _, g := range r.Groups[:n] {
		attrs = append(attrs, slog.Int(g.Value, g.Count))
	}
	return slog.GroupValue(attrs...)
}

// Dedupe drops every row whose keyColumns values repeat an earlier row.
// The first occurrence of each key survives and survivors keep their
// relative order.
func Dedupe(t model.Table, keyColumns []string, reportColumn string) (model.Table, Report, error) {
	for _, col := range keyColumns {
		if !t.HasColumn(col) {
			return model.Table{}, Report{}, &UnknownColumnError{Column: col}
		}
	}
	if !t.HasColumn(reportColumn) {
		return model.Table{}, Report{}, &UnknownColumnError{Column: reportColumn}
	}

	seen := make(map[string]struct{}, len(t.Rows))
	survivors := make([]model.Row, 0, len(t.Rows))

	counts := make(map[string]int)
	var order []string // Report values in first-removed order

	for _, row := range t.Rows {
		key := compositeKey(row, keyColumns)
		if _, dup := seen[key]; !dup {
			seen[key] = struct{}{}
			survivors = append(survivors, row)
			continue
		}

		value := FormatValue(row[reportColumn])
		if _, ok := counts[value]; !ok {
			order = append(order, value)
		}
		counts[value]++
	}

	groups := make([]DuplicateCount, 0, len(order))
	for _, v := range order {
		groups = append(groups, DuplicateCount{Value: v, Count: counts[v]})
	}
	slices.SortStableFunc(groups, func(a, b DuplicateCount) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		return strings.Compare(a.Value, b.Value)
	})

	out := model.Table{
		Columns: slices.Clone(t.Columns),
		Rows:    survivors,
	}
	return out, Report{Column: reportColumn, Groups: groups}, nil
}

// compositeKey encodes the key column values of row. Values are tagged by
// kind so that, for example, a NULL never collides with the string "null".
func compositeKey(row model.Row, cols []string) string {
	var b strings.Builder
	for i, col := range cols {
		if i > 0 {
			b.WriteString(keySep)
		}
		b.WriteString(encodeValue(row[col]))
	}
	return b.String()
}

func encodeValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "n"
	case string:
		return "s:" + x
	case decimal.NullDecimal:
		if !x.Valid {
			return "n"
		}
		return "d:" + x.Decimal.String()
	case decimal.Decimal:
		return "d:" + x.String()
	case time.Time:
		return "t:" + x.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("v:%v", x)
	}
}

// FormatValue renders a row value for reports and logs.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "<null>"
	case string:
		return x
	case decimal.NullDecimal:
		if !x.Valid {
			return "<null>"
		}
		return x.Decimal.String()
	case decimal.Decimal:
		return x.String()
	case time.Time:
		if x.Equal(model.IngestionDate(x)) {
			return x.Format(model.DateLayout)
		}
		return x.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}
