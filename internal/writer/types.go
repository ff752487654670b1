package writer

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// copyExecer is the part of *pgxpool.Pool the writer uses.
type copyExecer interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// SinkError wraps a failed append.
type SinkError struct {
	Table string
	Rows  int
	Err   error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("append %d rows to %s: %v", e.Rows, e.Table, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

// WriterMetrics holds metrics for a writer.
type WriterMetrics struct {
	Inserts int64
	Appends int64
	Errors  int64
}
