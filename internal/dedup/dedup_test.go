package dedup

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/cg-market-etl/internal/model"
	"github.com/rickgao/cg-market-etl/internal/transform"
)

var day = time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)

func table(rows ...model.Row) model.Table {
	return model.Table{
		Columns: []string{model.ColCoinID, model.ColHigh24h, model.ColIngestionDate},
		Rows:    rows,
	}
}

func row(id string, high string, date time.Time) model.Row {
	r := model.Row{
		model.ColCoinID:        id,
		model.ColIngestionDate: date,
	}
	if high == "" {
		r[model.ColHigh24h] = nil
	} else {
		r[model.ColHigh24h] = decimal.NewNullDecimal(decimal.RequireFromString(high))
	}
	return r
}

func ids(t model.Table) []string {
	out := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.String(model.ColCoinID)
	}
	return out
}

func TestDedupe_KeepsFirstOccurrence(t *testing.T) {
	in := table(
		row("btc", "1", day),
		row("eth", "2", day),
		row("btc", "3", day),
		row("sol", "4", day),
		row("eth", "5", day),
	)

	out, report, err := Dedupe(in, []string{model.ColCoinID, model.ColIngestionDate}, model.ColCoinID)
	require.NoError(t, err)

	assert.Equal(t, []string{"btc", "eth", "sol"}, ids(out))
	assert.Equal(t, "1", out.Rows[0][model.ColHigh24h].(decimal.NullDecimal).Decimal.String())
	assert.Equal(t, "2", out.Rows[1][model.ColHigh24h].(decimal.NullDecimal).Decimal.String())
	assert.Equal(t, 2, report.Total())
	assert.Equal(t, in.Columns, out.Columns)
	// Input is untouched.
	assert.Len(t, in.Rows, 5)
}

func TestDedupe_DifferentDatesAreDistinct(t *testing.T) {
	in := table(
		row("btc", "1", day),
		row("btc", "1", day.AddDate(0, 0, 1)),
	)

	out, report, err := Dedupe(in, []string{model.ColCoinID, model.ColIngestionDate}, model.ColCoinID)
	require.NoError(t, err)
	assert.Len(t, out.Rows, 2)
	assert.Empty(t, report.Groups)
}

func TestDedupe_NullKeyValues(t *testing.T) {
	in := table(
		row("a", "", day),
		row("b", "", day),
		row("c", "1", day),
	)

	out, report, err := Dedupe(in, []string{model.ColHigh24h}, model.ColHigh24h)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(out))
	require.Len(t, report.Groups, 1)
	assert.Equal(t, DuplicateCount{Value: "<null>", Count: 1}, report.Groups[0])
}

func TestDedupe_ReportOrdering(t *testing.T) {
	in := table(
		row("zec", "1", day), row("zec", "1", day),
		row("ada", "1", day), row("ada", "1", day), row("ada", "1", day),
		row("btc", "1", day), row("btc", "1", day),
		row("xrp", "1", day),
	)

	_, report, err := Dedupe(in, []string{model.ColCoinID}, model.ColCoinID)
	require.NoError(t, err)

	// Count desc, ties broken by value asc.
	assert.Equal(t, []DuplicateCount{
		{Value: "ada", Count: 2},
		{Value: "btc", Count: 1},
		{Value: "zec", Count: 1},
	}, report.Groups)
	assert.Equal(t, model.ColCoinID, report.Column)
}

func TestDedupe_UnknownColumn(t *testing.T) {
	in := table(row("btc", "1", day))

	_, _, err := Dedupe(in, []string{"coin_id", "nope"}, model.ColCoinID)
	var unknown *UnknownColumnError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "nope", unknown.Column)

	_, _, err = Dedupe(in, []string{"coin_id"}, "missing")
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "missing", unknown.Column)
}

func TestDedupe_EmptyTable(t *testing.T) {
	out, report, err := Dedupe(table(), []string{model.ColCoinID}, model.ColCoinID)
	require.NoError(t, err)
	assert.Empty(t, out.Rows)
	assert.Equal(t, 0, report.Total())
}

// Two upstream ids that differ only in case collapse after normalization.
func TestDedupe_CaseVariantsAfterNormalize(t *testing.T) {
	batch := []model.Record{
		{"id": "BTC", "high_24h": json.Number("70000")},
		{"id": "btc", "high_24h": json.Number("69000")},
	}
	n := transform.NewNormalizer(nil, transform.WithClock(func() time.Time { return day }))
	tbl, err := n.Normalize(batch, []string{"id", "high_24h"})
	require.NoError(t, err)

	out, report, err := Dedupe(tbl, []string{model.ColCoinID}, model.ColCoinID)
	require.NoError(t, err)

	require.Len(t, out.Rows, 1)
	assert.Equal(t, "70000", out.Rows[0][model.ColHigh24h].(decimal.NullDecimal).Decimal.String())
	assert.Equal(t, []DuplicateCount{{Value: "btc", Count: 1}}, report.Groups)
}

func TestDedupe_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	keys := []string{model.ColCoinID, model.ColIngestionDate}

	for iter := 0; iter < 50; iter++ {
		var rows []model.Row
		n := rng.Intn(40)
		for i := 0; i < n; i++ {
			id := fmt.Sprintf("coin-%d", rng.Intn(8))
			date := day.AddDate(0, 0, rng.Intn(2))
			rows = append(rows, row(id, fmt.Sprint(i), date))
		}
		in := table(rows...)

		out, report, err := Dedupe(in, keys, model.ColCoinID)
		require.NoError(t, err)

		// No two survivors share a key, and each survivor is the earliest row with its key.
		firstIndex := map[string]int{}
		for i, r := range in.Rows {
			k := compositeKey(r, keys)
			if _, ok := firstIndex[k]; !ok {
				firstIndex[k] = i
			}
		}
		seen := map[string]bool{}
		for _, r := range out.Rows {
			k := compositeKey(r, keys)
			assert.False(t, seen[k], "duplicate key %q survived", k)
			seen[k] = true
			assert.Equal(t, in.Rows[firstIndex[k]][model.ColHigh24h], r[model.ColHigh24h])
		}
		assert.Len(t, out.Rows, len(firstIndex))
		assert.Equal(t, len(in.Rows)-len(out.Rows), report.Total())

		// Idempotent.
		again, againReport, err := Dedupe(out, keys, model.ColCoinID)
		require.NoError(t, err)
		assert.Equal(t, out, again)
		assert.Equal(t, 0, againReport.Total())

		// Deterministic.
		repeat, repeatReport, err := Dedupe(in, keys, model.ColCoinID)
		require.NoError(t, err)
		assert.Equal(t, out, repeat)
		assert.Equal(t, report, repeatReport)
	}
}

func TestEncodeValue_NullDoesNotCollideWithString(t *testing.T) {
	assert.NotEqual(t, encodeValue(nil), encodeValue("n"))
	assert.NotEqual(t, encodeValue(nil), encodeValue("<null>"))
	assert.Equal(t, encodeValue(nil), encodeValue(decimal.NullDecimal{}))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "<null>", FormatValue(nil))
	assert.Equal(t, "btc", FormatValue("btc"))
	assert.Equal(t, "1.5", FormatValue(decimal.NewNullDecimal(decimal.RequireFromString("1.5"))))
	assert.Equal(t, "2024-05-17", FormatValue(day))
	assert.Equal(t, "2024-05-17T10:30:00Z", FormatValue(day.Add(10*time.Hour+30*time.Minute)))
	assert.Equal(t, "42", FormatValue(42))
}

func TestReport_LogValue(t *testing.T) {
	r := Report{Column: "coin_id", Groups: []DuplicateCount{{Value: "btc", Count: 3}}}

	var b strings.Builder
	logger := slog.New(slog.NewTextHandler(&b, nil))
	logger.Info("dedupe", "report", r)

	out := b.String()
	assert.Contains(t, out, "report.column=coin_id")
	assert.Contains(t, out, "report.removed=3")
	assert.Contains(t, out, "report.btc=3")
}
