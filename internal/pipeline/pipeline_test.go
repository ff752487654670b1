package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/cg-market-etl/internal/api"
	"github.com/rickgao/cg-market-etl/internal/config"
	"github.com/rickgao/cg-market-etl/internal/dedup"
	"github.com/rickgao/cg-market-etl/internal/model"
	"github.com/rickgao/cg-market-etl/internal/schema"
	"github.com/rickgao/cg-market-etl/internal/transform"
	"github.com/rickgao/cg-market-etl/internal/writer"
)

type MockCollector struct {
	mock.Mock
}

func (m *MockCollector) CollectAll(ctx context.Context, path string) ([]model.Record, error) {
	args := m.Called(ctx, path)
	batch, _ := args.Get(0).([]model.Record)
	return batch, args.Error(1)
}

type MockValidator struct {
	mock.Mock
}

func (m *MockValidator) Validate(ctx context.Context, batch []model.Record, required []string) bool {
	args := m.Called(ctx, batch, required)
	return args.Bool(0)
}

type MockSink struct {
	mock.Mock
}

func (m *MockSink) EnsureTable(ctx context.Context, table string) error {
	args := m.Called(ctx, table)
	return args.Error(0)
}

func (m *MockSink) Append(ctx context.Context, table string, t model.Table) (int64, error) {
	args := m.Called(ctx, table, t)
	return args.Get(0).(int64), args.Error(1)
}

type MockArchiver struct {
	mock.Mock
}

func (m *MockArchiver) Store(ctx context.Context, runID string, ts time.Time, batch []model.Record) (string, error) {
	args := m.Called(ctx, runID, ts, batch)
	return args.String(0), args.Error(1)
}

type countingRecorder struct {
	duplicates int
	inserted   int64
	mismatches int
	runs       int
	lastErr    error
}

func (r *countingRecorder) ObserveDuplicates(n int) { r.duplicates += n }
func (r *countingRecorder) ObserveInserted(n int64) { r.inserted += n }
func (r *countingRecorder) ObserveSchemaMismatch()  { r.mismatches++ }
func (r *countingRecorder) ObserveRun(_ time.Duration, err error) {
	r.runs++
	r.lastErr = err
}

var fixedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func record(id, symbol, price string) model.Record {
	return model.Record{
		"id":            id,
		"symbol":        symbol,
		"name":          id,
		"current_price": json.Number(price),
		"high_24h":      json.Number(price),
		"low_24h":       json.Number(price),
		"market_cap":    json.Number("1000"),
		"total_volume":  json.Number("10"),
		"last_updated":  "2024-03-10T11:59:00.000Z",
	}
}

func testConfig() Config {
	return Config{
		MarketsPath: api.MarketsPath,
		PipelineConfig: config.PipelineConfig{
			Table:          "market_data",
			Columns:        config.DefaultColumns,
			RequiredFields: config.DefaultColumns,
			DedupeKeys:     config.DefaultDedupeKeys,
			ReportColumn:   model.ColCoinID,
		},
	}
}

func newTestPipeline(cfg Config, c Collector, v Validator, s Sink, opts ...Option) *Pipeline {
	clock := func() time.Time { return fixedNow }
	normalizer := transform.NewNormalizer(nil, transform.WithClock(clock))
	opts = append([]Option{WithClock(clock), WithRunID("run-1")}, opts...)
	return New(cfg, c, v, normalizer, s, nil, opts...)
}

func TestPipeline_Run_DeduplicatesCaseVariants(t *testing.T) {
	ctx := context.Background()
	batch := []model.Record{
		record("BTC", "BTC", "67187.12"),
		record("ethereum", "eth", "3120.5"),
		record("btc", "btc", "67190"),
	}

	collector := new(MockCollector)
	collector.On("CollectAll", ctx, api.MarketsPath).Return(batch, nil)

	validator := new(MockValidator)
	validator.On("Validate", ctx, batch, config.DefaultColumns).Return(true)

	var appended model.Table
	sink := new(MockSink)
	sink.On("Append", ctx, "market_data", mock.AnythingOfType("model.Table")).
		Run(func(args mock.Arguments) { appended = args.Get(2).(model.Table) }).
		Return(int64(2), nil)

	rec := &countingRecorder{}
	p := newTestPipeline(testConfig(), collector, validator, sink, WithRecorder(rec))

	summary, err := p.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, "run-1", summary.RunID)
	assert.Equal(t, 3, summary.Records)
	assert.True(t, summary.SchemaOK)
	assert.Equal(t, 2, summary.Rows)
	assert.Equal(t, int64(2), summary.Inserted)
	assert.Equal(t, []dedup.DuplicateCount{{Value: "btc", Count: 1}}, summary.Duplicates.Groups)

	require.Equal(t, 2, appended.Len())
	assert.Equal(t, "btc", appended.Rows[0].String(model.ColCoinID))
	assert.Equal(t, "ethereum", appended.Rows[1].String(model.ColCoinID))

	assert.Equal(t, 1, rec.duplicates)
	assert.Equal(t, int64(2), rec.inserted)
	assert.Equal(t, 1, rec.runs)
	assert.NoError(t, rec.lastErr)

	sink.AssertNotCalled(t, "EnsureTable", mock.Anything, mock.Anything)
	collector.AssertExpectations(t)
	validator.AssertExpectations(t)
	sink.AssertExpectations(t)
}

func TestPipeline_Run_CreateTable(t *testing.T) {
	ctx := context.Background()
	batch := []model.Record{record("bitcoin", "btc", "1")}

	collector := new(MockCollector)
	collector.On("CollectAll", ctx, api.MarketsPath).Return(batch, nil)
	validator := new(MockValidator)
	validator.On("Validate", ctx, batch, mock.Anything).Return(true)
	sink := new(MockSink)
	sink.On("EnsureTable", ctx, "market_data").Return(nil).Once()
	sink.On("Append", ctx, "market_data", mock.Anything).Return(int64(1), nil).Once()

	cfg := testConfig()
	cfg.CreateTable = true
	_, err := newTestPipeline(cfg, collector, validator, sink).Run(ctx)
	require.NoError(t, err)

	sink.AssertExpectations(t)
}

func TestPipeline_Run_SchemaMismatchContinues(t *testing.T) {
	ctx := context.Background()
	batch := []model.Record{record("bitcoin", "btc", "1")}

	collector := new(MockCollector)
	collector.On("CollectAll", ctx, api.MarketsPath).Return(batch, nil)
	validator := new(MockValidator)
	validator.On("Validate", ctx, batch, mock.Anything).Return(false)
	sink := new(MockSink)
	sink.On("Append", ctx, "market_data", mock.Anything).Return(int64(1), nil)

	rec := &countingRecorder{}
	summary, err := newTestPipeline(testConfig(), collector, validator, sink, WithRecorder(rec)).Run(ctx)
	require.NoError(t, err)

	assert.False(t, summary.SchemaOK)
	assert.Equal(t, int64(1), summary.Inserted)
	assert.Equal(t, 1, rec.mismatches)
}

func TestPipeline_Run_SchemaMismatchAborts(t *testing.T) {
	ctx := context.Background()
	rec := record("bitcoin", "btc", "1")
	delete(rec, "current_price")
	batch := []model.Record{rec}

	collector := new(MockCollector)
	collector.On("CollectAll", ctx, api.MarketsPath).Return(batch, nil)
	validator := new(MockValidator)
	validator.On("Validate", ctx, batch, mock.Anything).Return(false)
	sink := new(MockSink)

	cfg := testConfig()
	cfg.AbortOnSchemaMismatch = true
	_, err := newTestPipeline(cfg, collector, validator, sink).Run(ctx)
	require.Error(t, err)

	var mismatch *schema.SchemaMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, []string{"current_price"}, mismatch.Missing)
	sink.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything)
}

func TestPipeline_Run_FetchErrorWritesNothing(t *testing.T) {
	ctx := context.Background()
	fetchErr := &api.FetchError{StatusCode: 500, URL: "https://example.test/coins/markets", Body: []byte("oops")}

	collector := new(MockCollector)
	collector.On("CollectAll", ctx, api.MarketsPath).Return(nil, fetchErr)
	validator := new(MockValidator)
	sink := new(MockSink)

	rec := &countingRecorder{}
	_, err := newTestPipeline(testConfig(), collector, validator, sink, WithRecorder(rec)).Run(ctx)
	require.Error(t, err)

	var fe *api.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 500, fe.StatusCode)
	assert.Error(t, rec.lastErr)

	validator.AssertNotCalled(t, "Validate", mock.Anything, mock.Anything, mock.Anything)
	sink.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything)
}

func TestPipeline_Run_MissingColumnWritesNothing(t *testing.T) {
	ctx := context.Background()
	broken := record("ethereum", "eth", "2")
	delete(broken, "current_price")
	batch := []model.Record{record("bitcoin", "btc", "1"), broken}

	collector := new(MockCollector)
	collector.On("CollectAll", ctx, api.MarketsPath).Return(batch, nil)
	validator := new(MockValidator)
	validator.On("Validate", ctx, batch, mock.Anything).Return(true)
	sink := new(MockSink)

	_, err := newTestPipeline(testConfig(), collector, validator, sink).Run(ctx)
	require.Error(t, err)

	var missing *transform.MissingColumnError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "current_price", missing.Column)
	assert.Equal(t, 1, missing.Index)
	sink.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything)
}

func TestPipeline_Run_SinkError(t *testing.T) {
	ctx := context.Background()
	batch := []model.Record{record("bitcoin", "btc", "1")}

	collector := new(MockCollector)
	collector.On("CollectAll", ctx, api.MarketsPath).Return(batch, nil)
	validator := new(MockValidator)
	validator.On("Validate", ctx, batch, mock.Anything).Return(true)
	sinkErr := &writer.SinkError{Table: "market_data", Rows: 1, Err: errors.New("connection refused")}
	sink := new(MockSink)
	sink.On("Append", ctx, "market_data", mock.Anything).Return(int64(0), sinkErr)

	_, err := newTestPipeline(testConfig(), collector, validator, sink).Run(ctx)
	require.Error(t, err)

	var se *writer.SinkError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "market_data", se.Table)
}

func TestPipeline_Run_EmptyBatch(t *testing.T) {
	ctx := context.Background()

	collector := new(MockCollector)
	collector.On("CollectAll", ctx, api.MarketsPath).Return([]model.Record{}, nil)
	validator := new(MockValidator)
	validator.On("Validate", ctx, mock.Anything, mock.Anything).Return(true)
	sink := new(MockSink)
	archiver := new(MockArchiver)

	summary, err := newTestPipeline(testConfig(), collector, validator, sink, WithArchiver(archiver)).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Records)
	assert.Equal(t, int64(0), summary.Inserted)
	sink.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything)
	archiver.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPipeline_Run_Archive(t *testing.T) {
	ctx := context.Background()
	batch := []model.Record{record("bitcoin", "btc", "1")}

	t.Run("key recorded", func(t *testing.T) {
		collector := new(MockCollector)
		collector.On("CollectAll", ctx, api.MarketsPath).Return(batch, nil)
		validator := new(MockValidator)
		validator.On("Validate", ctx, batch, mock.Anything).Return(true)
		sink := new(MockSink)
		sink.On("Append", ctx, "market_data", mock.Anything).Return(int64(1), nil)
		archiver := new(MockArchiver)
		archiver.On("Store", ctx, "run-1", fixedNow, batch).Return("coins_markets/2024-03-10/run-1.json.gz", nil)

		summary, err := newTestPipeline(testConfig(), collector, validator, sink, WithArchiver(archiver)).Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, "coins_markets/2024-03-10/run-1.json.gz", summary.ArchiveKey)
		archiver.AssertExpectations(t)
	})

	t.Run("failure is not fatal", func(t *testing.T) {
		collector := new(MockCollector)
		collector.On("CollectAll", ctx, api.MarketsPath).Return(batch, nil)
		validator := new(MockValidator)
		validator.On("Validate", ctx, batch, mock.Anything).Return(true)
		sink := new(MockSink)
		sink.On("Append", ctx, "market_data", mock.Anything).Return(int64(1), nil)
		archiver := new(MockArchiver)
		archiver.On("Store", ctx, "run-1", fixedNow, batch).Return("", errors.New("bucket missing"))

		summary, err := newTestPipeline(testConfig(), collector, validator, sink, WithArchiver(archiver)).Run(ctx)
		require.NoError(t, err)
		assert.Empty(t, summary.ArchiveKey)
		assert.Equal(t, int64(1), summary.Inserted)
	})
}
