package aggregation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metering-aggregations/internal/dataset"
	timeseries "metering-aggregations/internal/timeseries/domain"
)

func at(ts time.Time) timeseries.TimeSeriesRecord {
	return record("800", "s1", "b1", "1", ts)
}

func TestFilterTimePeriod_HalfOpenBoundaries(t *testing.T) {
	start := time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	table := dataset.New([]timeseries.TimeSeriesRecord{
		at(start.Add(-time.Nanosecond)),
		at(start),
		at(start.Add(30 * time.Minute)),
		at(end.Add(-time.Nanosecond)),
		at(end),
	})

	got := FilterTimePeriod(table, start, end).Rows()
	require.Len(t, got, 3)
	assert.True(t, got[0].ObservationTime.Equal(start), "start is inclusive")
	for _, rec := range got {
		assert.True(t, rec.ObservationTime.Before(end), "end is exclusive")
	}
	assert.Equal(t, 5, table.Len(), "input is not mutated")
}

func TestFilterTimePeriod_ComparesInstantsAcrossZones(t *testing.T) {
	plusOne := time.FixedZone("+0100", 3600)
	minusOne := time.FixedZone("-0100", -3600)
	// 2020-01-03T00:00:00+0100 is 2020-01-02T23:00Z; the end is 2020-01-03T01:00Z.
	start := time.Date(2020, 1, 3, 0, 0, 0, 0, plusOne)
	end := time.Date(2020, 1, 3, 0, 0, 0, 0, minusOne)

	table := dataset.New([]timeseries.TimeSeriesRecord{
		at(time.Date(2020, 1, 2, 23, 0, 0, 0, time.UTC)),
		at(time.Date(2020, 1, 3, 0, 59, 0, 0, time.UTC)),
		at(time.Date(2020, 1, 3, 1, 0, 0, 0, time.UTC)),
	})

	assert.Equal(t, 2, FilterTimePeriod(table, start, end).Len())
}

func TestFilterTimePeriod_EmptyAndInvertedWindows(t *testing.T) {
	start := time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC)
	table := dataset.New([]timeseries.TimeSeriesRecord{at(start), at(start.Add(time.Minute))})

	assert.True(t, FilterTimePeriod(table, start, start).IsEmpty())
	assert.True(t, FilterTimePeriod(table, start.Add(time.Hour), start).IsEmpty())
	assert.True(t, FilterTimePeriod(table, start.Add(2*time.Hour), start.Add(3*time.Hour)).IsEmpty())
}

func TestPeriodValidate(t *testing.T) {
	start := time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC)

	_, err := NewPeriod(start, start.Add(time.Hour))
	assert.NoError(t, err)

	_, err = NewPeriod(start, start)
	assert.ErrorIs(t, err, ErrInvalidTimeRange)

	_, err = NewPeriod(start.Add(time.Hour), start)
	assert.ErrorIs(t, err, ErrInvalidTimeRange)

	_, err = NewPeriod(time.Time{}, start)
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	assert.Equal(t, time.Duration(0), Period{Start: start.Add(time.Hour), End: start}.Duration())
}

func TestHourPeriods(t *testing.T) {
	start := time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC)

	hours := HourPeriods(Period{Start: start, End: start.Add(3 * time.Hour)})
	require.Len(t, hours, 3)
	for i, h := range hours {
		assert.True(t, h.Start.Equal(start.Add(time.Duration(i)*time.Hour)))
		assert.Equal(t, time.Hour, h.Duration())
	}

	clipped := HourPeriods(Period{Start: start.Add(15 * time.Minute), End: start.Add(90 * time.Minute)})
	require.Len(t, clipped, 2)
	assert.Equal(t, 45*time.Minute, clipped[0].Duration())
	assert.True(t, clipped[1].Start.Equal(start.Add(time.Hour)))
	assert.Equal(t, 30*time.Minute, clipped[1].Duration())

	assert.Empty(t, HourPeriods(Period{Start: start, End: start}))
	assert.Empty(t, HourPeriods(Period{Start: start.Add(time.Hour), End: start}))
}

func TestHourPeriods_OffsetZoneAlignsToUTCHours(t *testing.T) {
	india := time.FixedZone("+0530", 5*3600+30*60)
	start := time.Date(2020, 1, 3, 6, 0, 0, 0, india) // 00:30Z
	hours := HourPeriods(Period{Start: start, End: start.Add(time.Hour)})
	require.Len(t, hours, 2)
	assert.True(t, hours[0].End.Equal(time.Date(2020, 1, 3, 1, 0, 0, 0, time.UTC)))
}
