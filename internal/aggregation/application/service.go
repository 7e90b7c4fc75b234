package application

import (
	"context"
	"errors"
	"log"
	"time"

	"metering-aggregations/internal/aggregation/application/eventbus"
	"metering-aggregations/internal/aggregation/application/events"
	aggregation "metering-aggregations/internal/aggregation/domain"
	"metering-aggregations/internal/observability/metrics"
)

// Service runs the hourly consumption supplier aggregation job:
// load, window, aggregate, write, publish.
type Service struct {
	loader     TimeSeriesLoader
	writer     ResultWriter
	aggregator aggregation.HourlyConsumptionSupplierAggregator
	bus        eventbus.EventBus
	clock      Clock
	workers    int
	logger     *log.Logger
}

// Option configures the service.
type Option func(*Service)

// WithEventBus publishes AggregationCompleted after each written result.
func WithEventBus(bus eventbus.EventBus) Option {
	return func(s *Service) { s.bus = bus }
}

// WithClock overrides the clock.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithWorkers sets the number of partitions summed concurrently.
func WithWorkers(workers int) Option {
	return func(s *Service) { s.workers = workers }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService builds the job service.
func NewService(loader TimeSeriesLoader, writer ResultWriter, opts ...Option) (*Service, error) {
	if loader == nil {
		return nil, errors.New("aggregation service: nil loader")
	}
	if writer == nil {
		return nil, errors.New("aggregation service: nil writer")
	}
	s := &Service{
		loader:  loader,
		writer:  writer,
		clock:   SystemClock{},
		workers: 1,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run aggregates the whole period into one result.
// An inverted or empty period is rejected before anything is loaded.
func (s *Service) Run(ctx context.Context, period aggregation.Period) (Result, error) {
	results, err := s.run(ctx, period, []aggregation.Period{period})
	if err != nil {
		return Result{}, err
	}
	return results[0], nil
}

// RunHourly loads the period once and produces one result per UTC hour.
// Every hour is aggregated before any of them is written.
func (s *Service) RunHourly(ctx context.Context, period aggregation.Period) ([]Result, error) {
	return s.run(ctx, period, aggregation.HourPeriods(period))
}

// periodRun is one aggregated period waiting to be written.
type periodRun struct {
	result     Result
	windowRows int
	duration   time.Duration
}

func (s *Service) run(ctx context.Context, period aggregation.Period, periods []aggregation.Period) ([]Result, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	outcome := metrics.ResultSuccess
	defer func() {
		metrics.ObserveAggregationRun(outcome, time.Since(start))
	}()

	snapshot, err := s.loader.Load(ctx, period)
	if err != nil {
		outcome = metrics.ResultError
		return nil, err
	}

	runs := make([]periodRun, 0, len(periods))
	results := make([]Result, 0, len(periods))
	for _, p := range periods {
		run, err := s.aggregate(ctx, p, snapshot)
		if err != nil {
			outcome = metrics.ResultError
			return nil, err
		}
		runs = append(runs, run)
		results = append(results, run.result)
	}

	if err := writeAll(ctx, s.writer, results); err != nil {
		outcome = metrics.ResultError
		s.logger.Printf("aggregation write error: period_start=%s period_end=%s results=%d err=%v",
			period.Start.Format(time.RFC3339), period.End.Format(time.RFC3339), len(results), err)
		return nil, err
	}

	groups := 0
	for _, run := range runs {
		groups += len(run.result.Records)
	}
	metrics.AddAggregationRows(snapshot.Len(), groups)

	for _, run := range runs {
		s.completed(ctx, run, snapshot.Len())
	}
	return results, nil
}

func (s *Service) aggregate(ctx context.Context, period aggregation.Period, snapshot snapshotTable) (periodRun, error) {
	start := time.Now()
	windowed := aggregation.FilterTimePeriod(snapshot, period.Start, period.End)
	aggregated, err := s.aggregator.AggregateParallel(ctx, windowed, s.workers)
	if err != nil {
		return periodRun{}, err
	}
	return periodRun{
		result: Result{
			Period:     period,
			Records:    aggregated.Rows(),
			ComputedAt: s.clock.Now(),
		},
		windowRows: windowed.Len(),
		duration:   time.Since(start),
	}, nil
}

func (s *Service) completed(ctx context.Context, run periodRun, inputRows int) {
	result := run.result
	s.logger.Printf("aggregation=%s duration_ms=%d period_start=%s period_end=%s input_rows=%d window_rows=%d groups=%d",
		AggregationName,
		run.duration.Milliseconds(),
		result.Period.Start.Format(time.RFC3339),
		result.Period.End.Format(time.RFC3339),
		inputRows,
		run.windowRows,
		len(result.Records),
	)

	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, events.AggregationCompleted{
		Aggregation: AggregationName,
		PeriodStart: result.Period.Start,
		PeriodEnd:   result.Period.End,
		InputRows:   inputRows,
		WindowRows:  run.windowRows,
		Groups:      len(result.Records),
		Duration:    run.duration,
		OccurredAt:  result.ComputedAt,
	}); err != nil {
		s.logger.Printf("aggregation event publish error: %v", err)
	}
}
