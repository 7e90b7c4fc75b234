package interfaces

import (
	"context"
	"errors"
	"log"
	"time"

	"metering-aggregations/internal/aggregation/application/eventbus"
	"metering-aggregations/internal/aggregation/application/events"
	"metering-aggregations/internal/observability/metrics"
)

// AggregationCompletedConsumer logs completed runs and exports their freshness.
type AggregationCompletedConsumer struct {
	logger *log.Logger
}

// NewAggregationCompletedConsumer constructs the consumer.
func NewAggregationCompletedConsumer(logger *log.Logger) *AggregationCompletedConsumer {
	if logger == nil {
		logger = log.Default()
	}
	return &AggregationCompletedConsumer{logger: logger}
}

// Subscribe registers the consumer on bus.
func (c *AggregationCompletedConsumer) Subscribe(bus eventbus.EventBus) error {
	if bus == nil {
		return errors.New("aggregation completed consumer: nil event bus")
	}
	eventbus.On(bus, c.Consume)
	return nil
}

// Consume handles one AggregationCompleted event.
func (c *AggregationCompletedConsumer) Consume(ctx context.Context, event events.AggregationCompleted) error {
	metrics.ObserveCompletedPeriod(event.PeriodEnd)
	c.logger.Printf("aggregation_completed aggregation=%s period_start=%s period_end=%s input_rows=%d window_rows=%d groups=%d duration_ms=%d",
		event.Aggregation,
		event.PeriodStart.Format(time.RFC3339),
		event.PeriodEnd.Format(time.RFC3339),
		event.InputRows,
		event.WindowRows,
		event.Groups,
		event.Duration.Milliseconds(),
	)
	return nil
}
