package aggregation

import "errors"

var (
	// ErrInvalidPeriod is returned when a period bound is zero.
	ErrInvalidPeriod = errors.New("aggregation: invalid period")
	// ErrInvalidTimeRange is returned when period start is not before period end.
	ErrInvalidTimeRange = errors.New("aggregation: period start must be before period end")
	// ErrResultNotFound is returned when no aggregation result is stored for a period.
	ErrResultNotFound = errors.New("aggregation: result not found")
)
