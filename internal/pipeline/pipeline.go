package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/cg-market-etl/internal/config"
	"github.com/rickgao/cg-market-etl/internal/dedup"
	"github.com/rickgao/cg-market-etl/internal/model"
	"github.com/rickgao/cg-market-etl/internal/schema"
)

// Collector fetches the full batch from the markets endpoint.
type Collector interface {
	CollectAll(ctx context.Context, path string) ([]model.Record, error)
}

// Validator checks the first record of a batch against required fields.
type Validator interface {
	Validate(ctx context.Context, batch []model.Record, required []string) bool
}

// Normalizer converts a batch into a storage table.
type Normalizer interface {
	Normalize(batch []model.Record, columns []string) (model.Table, error)
}

// Sink appends tables to storage.
type Sink interface {
	EnsureTable(ctx context.Context, table string) error
	Append(ctx context.Context, table string, t model.Table) (int64, error)
}

// Archiver stores the raw batch.
type Archiver interface {
	Store(ctx context.Context, runID string, ts time.Time, batch []model.Record) (string, error)
}

// Recorder receives run-level metrics.
type Recorder interface {
	ObserveDuplicates(n int)
	ObserveInserted(n int64)
	ObserveSchemaMismatch()
	ObserveRun(d time.Duration, err error)
}

type noopRecorder struct{}

func (noopRecorder) ObserveDuplicates(int)           {}
func (noopRecorder) ObserveInserted(int64)           {}
func (noopRecorder) ObserveSchemaMismatch()          {}
func (noopRecorder) ObserveRun(time.Duration, error) {}

// Config selects the endpoint and table shape of a run.
type Config struct {
	MarketsPath string
	config.PipelineConfig
}

// Pipeline wires the ingest stages together.
type Pipeline struct {
	cfg        Config
	collector  Collector
	validator  Validator
	normalizer Normalizer
	sink       Sink
	archiver   Archiver
	recorder   Recorder
	logger     *slog.Logger
	now        func() time.Time
	newRunID   func() string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithArchiver enables raw batch archiving.
func WithArchiver(a Archiver) Option {
	return func(p *Pipeline) {
		p.archiver = a
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) {
		p.recorder = r
	}
}

// WithClock sets the clock used for run timing and archive keys.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// WithRunID fixes the run identifier.
func WithRunID(id string) Option {
	return func(p *Pipeline) {
		p.newRunID = func() string { return id }
	}
}

// New creates a Pipeline.
func New(
	cfg Config,
	collector Collector,
	validator Validator,
	normalizer Normalizer,
	sink Sink,
	logger *slog.Logger,
	opts ...Option,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pipeline{
		cfg:        cfg,
		collector:  collector,
		validator:  validator,
		normalizer: normalizer,
		sink:       sink,
		recorder:   noopRecorder{},
		logger:     logger,
		now:        time.Now,
		newRunID:   uuid.NewString,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Run executes one ingest and returns its summary. The summary is filled in
// as far as the run got, even on error.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	start := p.now()
	summary := Summary{
		RunID:     p.newRunID(),
		StartedAt: start,
		SchemaOK:  true,
	}
	logger := p.logger.With("run_id", summary.RunID)

	err := p.run(ctx, logger, &summary)

	summary.Duration = p.now().Sub(start)
	p.recorder.ObserveRun(summary.Duration, err)

	if err != nil {
		logger.Error("run failed", "error", err, "summary", summary)
		return summary, err
	}

	logger.Info("run complete", "summary", summary)
	return summary, nil
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, summary *Summary) error {
	logger.Info("collecting markets", "endpoint", p.cfg.MarketsPath)
	batch, err := p.collector.CollectAll(ctx, p.cfg.MarketsPath)
	if err != nil {
		return fmt.Errorf("collect %s: %w", p.cfg.MarketsPath, err)
	}
	summary.Records = len(batch)
	logger.Info("markets collected", "records", len(batch))

	if p.archiver != nil && len(batch) > 0 {
		key, err := p.archiver.Store(ctx, summary.RunID, summary.StartedAt, batch)
		if err != nil {
			logger.Warn("raw archive failed", "error", err)
		} else {
			summary.ArchiveKey = key
		}
	}

	if !p.validator.Validate(ctx, batch, p.cfg.RequiredFields) {
		summary.SchemaOK = false
		p.recorder.ObserveSchemaMismatch()
		if p.cfg.AbortOnSchemaMismatch {
			if err := schema.Check(batch, p.cfg.RequiredFields); err != nil {
				return fmt.Errorf("validate batch: %w", err)
			}
			return errors.New("validate batch: schema mismatch")
		}
	}

	table, err := p.normalizer.Normalize(batch, p.cfg.Columns)
	if err != nil {
		return fmt.Errorf("normalize batch: %w", err)
	}

	deduped, report, err := dedup.Dedupe(table, p.cfg.DedupeKeys, p.cfg.ReportColumn)
	if err != nil {
		return fmt.Errorf("dedupe table: %w", err)
	}
	summary.Rows = deduped.Len()
	summary.Duplicates = report
	p.recorder.ObserveDuplicates(report.Total())
	if report.Total() > 0 {
		logger.Info("duplicates removed", "report", report)
	}

	if deduped.Len() == 0 {
		logger.Info("nothing to append", "table", p.cfg.Table)
		return nil
	}

	if p.cfg.CreateTable {
		if err := p.sink.EnsureTable(ctx, p.cfg.Table); err != nil {
			return fmt.Errorf("ensure table: %w", err)
		}
	}

	inserted, err := p.sink.Append(ctx, p.cfg.Table, deduped)
	if err != nil {
		return fmt.Errorf("append rows: %w", err)
	}
	summary.Inserted = inserted
	p.recorder.ObserveInserted(inserted)

	return nil
}
