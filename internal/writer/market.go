package writer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/rickgao/cg-market-etl/internal/model"
)

// marketTableDDL creates the default market table. %s is the sanitized table name.
const marketTableDDL = `
	CREATE TABLE IF NOT EXISTS %s (
		coin_id            TEXT        NOT NULL,
		coin_symbol        TEXT,
		coin_name          TEXT,
		price_at_ingestion NUMERIC,
		high_24h_price     NUMERIC,
		low_24h_price      NUMERIC,
		market_cap         NUMERIC,
		total_volume       NUMERIC,
		cg_last_updated    TEXT,
		insert_time        TIMESTAMPTZ NOT NULL,
		cg_date            DATE        NOT NULL
	)`

// MarketWriter appends normalized tables to PostgreSQL.
type MarketWriter struct {
	db     copyExecer
	logger *slog.Logger

	mu      sync.Mutex
	metrics WriterMetrics
}

// NewMarketWriter creates a new MarketWriter. db is usually a *pgxpool.Pool.
func NewMarketWriter(db copyExecer, logger *slog.Logger) *MarketWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &MarketWriter{
		db:     db,
		logger: logger,
	}
}

// EnsureTable creates the default market table if it does not exist.
func (w *MarketWriter) EnsureTable(ctx context.Context, table string) error {
	ddl := fmt.Sprintf(marketTableDDL, tableIdentifier(table).Sanitize())
	if _, err := w.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

// Append inserts every row of t into table and returns the inserted count.
// An empty table is a no-op.
func (w *MarketWriter) Append(ctx context.Context, table string, t model.Table) (int64, error) {
	if t.Len() == 0 {
		w.logger.Info("nothing to append", "table", table)
		return 0, nil
	}

	rows := make([][]any, len(t.Rows))
	for i, row := range t.Rows {
		values := make([]any, len(t.Columns))
		for j, col := range t.Columns {
			values[j] = encodeValue(row[col])
		}
		rows[i] = values
	}

	start := time.Now()

	n, err := w.db.CopyFrom(ctx, tableIdentifier(table), t.Columns, pgx.CopyFromRows(rows))
	if err != nil {
		w.mu.Lock()
		w.metrics.Errors++
		w.mu.Unlock()
		return 0, &SinkError{Table: table, Rows: len(rows), Err: err}
	}

	w.mu.Lock()
	w.metrics.Inserts += n
	w.metrics.Appends++
	w.mu.Unlock()

	w.logger.Info("appended rows",
		"table", table,
		"rows", n,
		"duration", time.Since(start),
	)

	return n, nil
}

// Stats returns current metrics.
func (w *MarketWriter) Stats() WriterMetrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.metrics
}

// tableIdentifier splits an optionally schema-qualified table name.
func tableIdentifier(table string) pgx.Identifier {
	return pgx.Identifier(strings.Split(table, "."))
}

// encodeValue converts row values into types pgx encodes natively.
func encodeValue(v any) any {
	switch x := v.(type) {
	case decimal.NullDecimal:
		if !x.Valid {
			return nil
		}
		return decimalToNumeric(x.Decimal)
	case decimal.Decimal:
		return decimalToNumeric(x)
	default:
		return v
	}
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{
		Int:   d.Coefficient(),
		Exp:   d.Exponent(),
		Valid: true,
	}
}
