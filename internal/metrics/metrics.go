package metrics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "cg_market_etl"

// Recorder holds the metrics of one run on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	apiRequests      *prometheus.CounterVec
	rateLimitWait    prometheus.Counter
	rateLimitDelays  prometheus.Counter
	pagesFetched     prometheus.Counter
	recordsCollected prometheus.Counter
	duplicates       prometheus.Counter
	rowsInserted     prometheus.Counter
	schemaMismatches prometheus.Counter
	runDuration      prometheus.Gauge
	lastSuccess      prometheus.Gauge
	runStatus        *prometheus.GaugeVec
}

// NewRecorder creates a Recorder with all metrics registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "CoinGecko API requests by HTTP status code.",
		}, []string{"code"}),
		rateLimitWait: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_wait_seconds_total",
			Help:      "Time spent waiting for the sliding-window rate limiter.",
		}),
		rateLimitDelays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_delays_total",
			Help:      "Requests that had to wait for a rate-limit slot.",
		}),
		pagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Market pages fetched, including the terminating empty page.",
		}),
		recordsCollected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_collected_total",
			Help:      "Market records collected from the API.",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_removed_total",
			Help:      "Rows dropped by deduplication.",
		}),
		rowsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_inserted_total",
			Help:      "Rows appended to the sink table.",
		}),
		schemaMismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schema_mismatches_total",
			Help:      "Batches whose first record lacked required fields.",
		}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of the last run.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
		runStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_status",
			Help:      "1 for the outcome of the last run, by status.",
		}, []string{"status"}),
	}

	r.registry.MustRegister(
		r.apiRequests,
		r.rateLimitWait,
		r.rateLimitDelays,
		r.pagesFetched,
		r.recordsCollected,
		r.duplicates,
		r.rowsInserted,
		r.schemaMismatches,
		r.runDuration,
		r.lastSuccess,
		r.runStatus,
	)

	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveRequest counts one API response.
func (r *Recorder) ObserveRequest(statusCode int) {
	r.apiRequests.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// ObserveRateLimitWait records a rate-limit delay.
func (r *Recorder) ObserveRateLimitWait(d time.Duration) {
	r.rateLimitDelays.Inc()
	r.rateLimitWait.Add(d.Seconds())
}

// ObservePage counts a fetched page and its records.
func (r *Recorder) ObservePage(records int) {
	r.pagesFetched.Inc()
	r.recordsCollected.Add(float64(records))
}

// ObserveDuplicates records rows removed by deduplication.
func (r *Recorder) ObserveDuplicates(n int) {
	r.duplicates.Add(float64(n))
}

// ObserveInserted records rows appended to the sink.
func (r *Recorder) ObserveInserted(n int64) {
	r.rowsInserted.Add(float64(n))
}

// ObserveSchemaMismatch counts a failed schema check.
func (r *Recorder) ObserveSchemaMismatch() {
	r.schemaMismatches.Inc()
}

// ObserveRun records the run outcome and duration.
func (r *Recorder) ObserveRun(d time.Duration, err error) {
	r.runDuration.Set(d.Seconds())
	if err != nil {
		r.runStatus.WithLabelValues("failure").Set(1)
		r.runStatus.WithLabelValues("success").Set(0)
		return
	}
	r.runStatus.WithLabelValues("success").Set(1)
	r.runStatus.WithLabelValues("failure").Set(0)
	r.lastSuccess.SetToCurrentTime()
}

// Push sends all metrics to a Pushgateway, replacing the previous push for
// the same job and instance.
func (r *Recorder) Push(ctx context.Context, url, job, instance string) error {
	err := push.New(url, job).
		Gatherer(r.registry).
		Grouping("instance", instance).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
