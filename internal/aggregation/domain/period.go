package aggregation

import (
	"time"

	"metering-aggregations/internal/dataset"
	timeseries "metering-aggregations/internal/timeseries/domain"
)

// Period is a half-open time window [Start, End).
// A reading exactly at End belongs to the next period.
type Period struct {
	Start time.Time
	End   time.Time
}

// NewPeriod builds a period and rejects zero, empty or inverted windows.
func NewPeriod(start, end time.Time) (Period, error) {
	p := Period{Start: start, End: end}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// Validate is the upstream ordering check; FilterTimePeriod itself never fails.
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return ErrInvalidPeriod
	}
	if !p.Start.Before(p.End) {
		return ErrInvalidTimeRange
	}
	return nil
}

// Contains reports whether t falls in [Start, End). Comparison is on instants.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// Duration returns the length of the window, zero for inverted windows.
func (p Period) Duration() time.Duration {
	if !p.Start.Before(p.End) {
		return 0
	}
	return p.End.Sub(p.Start)
}

// UTC returns the period with both bounds converted to UTC.
func (p Period) UTC() Period { return Period{Start: p.Start.UTC(), End: p.End.UTC()} }

// InPeriod is the row predicate for the observation time window.
func InPeriod(p Period) dataset.Predicate[timeseries.TimeSeriesRecord] {
	return func(rec timeseries.TimeSeriesRecord) bool {
		return p.Contains(rec.ObservationTime)
	}
}

// FilterTimePeriod keeps the records observed in [start, end).
// start == end or start after end yields an empty table, not an error.
func FilterTimePeriod(table dataset.Table[timeseries.TimeSeriesRecord], start, end time.Time) dataset.Table[timeseries.TimeSeriesRecord] {
	return table.Filter(InPeriod(Period{Start: start, End: end}))
}

// HourPeriods splits p into consecutive periods aligned to UTC hour boundaries.
// The first and last periods are clipped to p.
func HourPeriods(p Period) []Period {
	if !p.Start.Before(p.End) {
		return nil
	}
	var periods []Period
	start := p.Start
	for start.Before(p.End) {
		next := start.UTC().Truncate(time.Hour).Add(time.Hour)
		if next.After(p.End) {
			next = p.End
		}
		periods = append(periods, Period{Start: start, End: next})
		start = next
	}
	return periods
}
