package events

import "time"

// AggregationCompleted is published after a result has been written for a period.
type AggregationCompleted struct {
	Aggregation string
	PeriodStart time.Time
	PeriodEnd   time.Time
	InputRows   int
	WindowRows  int
	Groups      int
	Duration    time.Duration
	OccurredAt  time.Time
}
