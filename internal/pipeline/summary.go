package pipeline

import (
	"log/slog"
	"time"

	"github.com/rickgao/cg-market-etl/internal/dedup"
)

// Summary describes the outcome of a run.
type Summary struct {
	RunID      string
	StartedAt  time.Time
	Duration   time.Duration
	Records    int          // Records collected from the API
	SchemaOK   bool         // First record carried every required field
	Rows       int          // Rows left after deduplication
	Duplicates dedup.Report // Removed rows grouped by report column
	Inserted   int64        // Rows appended to the sink
	ArchiveKey string       // Empty when archiving is off or failed
}

// LogValue implements slog.LogValuer.
func (s Summary) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("records", s.Records),
		slog.Bool("schema_ok", s.SchemaOK),
		slog.Int("rows", s.Rows),
		slog.Int("duplicates", s.Duplicates.Total()),
		slog.Int64("inserted", s.Inserted),
		slog.Duration("duration", s.Duration),
	}
	if s.ArchiveKey != "" {
		attrs = append(attrs, slog.String("archive_key", s.ArchiveKey))
	}
	return slog.GroupValue(attrs...)
}
