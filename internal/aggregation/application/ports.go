package application

import (
	"context"
	"time"

	aggregation "metering-aggregations/internal/aggregation/domain"
	"metering-aggregations/internal/dataset"
	timeseries "metering-aggregations/internal/timeseries/domain"
)

// AggregationName identifies the hourly consumption per supplier aggregate in stores and events.
const AggregationName = "hourly_consumption_supplier"

// TimeSeriesLoader supplies the time series snapshot for a period.
// Loaders may push the window down but the service filters again.
type TimeSeriesLoader interface {
	Load(ctx context.Context, period aggregation.Period) (dataset.Table[timeseries.TimeSeriesRecord], error)
}

// ResultWriter persists an aggregation result. Writing the same period again replaces it.
type ResultWriter interface {
	Write(ctx context.Context, result Result) error
}

// BatchWriter persists the results of one invocation together.
// Transactional sinks commit all of them or none.
type BatchWriter interface {
	WriteAll(ctx context.Context, results []Result) error
}

// ResultReader loads a stored result for an exact period.
type ResultReader interface {
	FindByPeriod(ctx context.Context, period aggregation.Period) (*Result, error)
}

type snapshotTable = dataset.Table[timeseries.TimeSeriesRecord]

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Result is the aggregate of one period.
type Result struct {
	Period     aggregation.Period
	Records    []aggregation.AggregatedConsumptionRecord
	ComputedAt time.Time
}
