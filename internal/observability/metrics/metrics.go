package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "aggregation_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	runsTotal   *prometheus.CounterVec
	runLatency  *prometheus.HistogramVec
	inputRows   prometheus.Counter
	outputRows  prometheus.Counter
	exportTotal *prometheus.CounterVec
	httpTotal   *prometheus.CounterVec
	lastPeriod  prometheus.Gauge
)

// Init registers aggregation metrics; db may be nil when no result table is configured.
func Init(db *sql.DB, resultTable string, logger *log.Logger) {
	registerOnce.Do(func() {
		runsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "runs_total",
				Help: "Total aggregation invocations by result",
			},
			[]string{"result"},
		)
		runLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "run_latency_seconds",
				Help:    "Aggregation invocation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		inputRows = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "input_rows_total",
				Help: "Time series rows read by successful runs",
			},
		)
		outputRows = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "output_groups_total",
				Help: "Aggregated groups written by successful runs",
			},
		)
		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total result exports by format and result",
			},
			[]string{"format", "result"},
		)
		httpTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "Total aggregation API requests by route and result",
			},
			[]string{"route", "result"},
		)
		lastPeriod = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "last_completed_period_end_seconds",
				Help: "End of the most recently completed aggregation period as unix time",
			},
		)

		prometheus.MustRegister(
			runsTotal,
			runLatency,
			inputRows,
			outputRows,
			exportTotal,
			httpTotal,
			lastPeriod,
		)

		if db != nil && resultTable != "" {
			registerDBMetrics(db, resultTable, logger)
		}
	})
}

// ObserveAggregationRun records one invocation.
func ObserveAggregationRun(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if runsTotal != nil {
		runsTotal.WithLabelValues(result).Inc()
	}
	if runLatency != nil {
		runLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// AddAggregationRows adds the input and output cardinalities of a run.
func AddAggregationRows(input, groups int) {
	if inputRows != nil && input > 0 {
		inputRows.Add(float64(input))
	}
	if outputRows != nil && groups > 0 {
		outputRows.Add(float64(groups))
	}
}

// ObserveExport records a result export.
func ObserveExport(format, result string) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
}

// ObserveHTTP records an API request outcome.
func ObserveHTTP(route, result string) {
	if route == "" {
		route = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if httpTotal != nil {
		httpTotal.WithLabelValues(route, result).Inc()
	}
}

// ObserveCompletedPeriod moves the last completed period end forward.
func ObserveCompletedPeriod(periodEnd time.Time) {
	if lastPeriod == nil || periodEnd.IsZero() {
		return
	}
	lastPeriod.Set(float64(periodEnd.Unix()))
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
