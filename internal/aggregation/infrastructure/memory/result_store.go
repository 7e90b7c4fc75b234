package memory

import (
	"context"
	"sort"
	"sync"

	"metering-aggregations/internal/aggregation/application"
	aggregation "metering-aggregations/internal/aggregation/domain"
)

type periodKey struct {
	start int64
	end   int64
}

func keyOf(p aggregation.Period) periodKey {
	return periodKey{start: p.Start.UnixNano(), end: p.End.UnixNano()}
}

// ResultStore keeps aggregation results in memory, one per period.
type ResultStore struct {
	mu      sync.RWMutex
	results map[periodKey]application.Result
}

// NewResultStore constructs an empty store.
func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[periodKey]application.Result)}
}

// Write replaces any result stored for the same period.
func (s *ResultStore) Write(ctx context.Context, result application.Result) error {
	return s.WriteAll(ctx, []application.Result{result})
}

// WriteAll stores every result under one lock.
func (s *ResultStore) WriteAll(ctx context.Context, results []application.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored := make([]application.Result, len(results))
	for i, result := range results {
		stored[i] = result
		stored[i].Records = append([]aggregation.AggregatedConsumptionRecord(nil), result.Records...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, result := range stored {
		s.results[keyOf(result.Period)] = result
	}
	return nil
}

// FindByPeriod returns the result for the exact period or ErrResultNotFound.
func (s *ResultStore) FindByPeriod(ctx context.Context, period aggregation.Period) (*application.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[keyOf(period)]
	if !ok {
		return nil, aggregation.ErrResultNotFound
	}
	copied := result
	copied.Records = append([]aggregation.AggregatedConsumptionRecord(nil), result.Records...)
	return &copied, nil
}

// Periods lists stored periods ordered by start.
func (s *ResultStore) Periods() []aggregation.Period {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]aggregation.Period, 0, len(s.results))
	for _, result := range s.results {
		out = append(out, result.Period)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].End.Before(out[j].End)
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

var _ application.ResultWriter = (*ResultStore)(nil)
var _ application.BatchWriter = (*ResultStore)(nil)
var _ application.ResultReader = (*ResultStore)(nil)
