package aggregation

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"metering-aggregations/internal/dataset"
	timeseries "metering-aggregations/internal/timeseries/domain"
)

// GroupKey identifies one aggregate: grid area, energy supplier, balance responsible party.
type GroupKey struct {
	GridArea                string
	EnergySupplier          string
	BalanceResponsibleParty string
}

// Less orders keys by grid area, then supplier, then balance responsible party.
func (k GroupKey) Less(other GroupKey) bool {
	if c := strings.Compare(k.GridArea, other.GridArea); c != 0 {
		return c < 0
	}
	if c := strings.Compare(k.EnergySupplier, other.EnergySupplier); c != 0 {
		return c < 0
	}
	return k.BalanceResponsibleParty < other.BalanceResponsibleParty
}

// KeyOf returns the group key of a record, fields copied verbatim.
func KeyOf(rec timeseries.TimeSeriesRecord) GroupKey {
	return GroupKey{
		GridArea:                rec.MeteringGridAreaID,
		EnergySupplier:          rec.EnergySupplierID,
		BalanceResponsibleParty: rec.BalanceResponsiblePartyID,
	}
}

// AggregatedConsumptionRecord is the summed quantity of one group.
type AggregatedConsumptionRecord struct {
	GroupKey
	SumQuantity decimal.Decimal
}

// IsNonProfiledConsumption keeps consumption points settled as non-profiled.
func IsNonProfiledConsumption(rec timeseries.TimeSeriesRecord) bool {
	return rec.MarketEvaluationPointType == timeseries.MarketEvaluationPointTypeConsumption &&
		rec.SettlementMethod == timeseries.SettlementMethodNonProfiled
}

// HourlyConsumptionSupplierAggregator sums non-profiled consumption per
// grid area, energy supplier and balance responsible party.
// Input is expected to be time-windowed already; this is not re-checked.
type HourlyConsumptionSupplierAggregator struct{}

// Aggregate filters, groups, sums and sorts in a single pass.
func (HourlyConsumptionSupplierAggregator) Aggregate(table dataset.Table[timeseries.TimeSeriesRecord]) dataset.Table[AggregatedConsumptionRecord] {
	return toSortedTable(partialSums(table))
}

// AggregateParallel computes partial sums over up to workers partitions and merges them.
// The result equals Aggregate: decimal sums do not depend on partitioning.
func (a HourlyConsumptionSupplierAggregator) AggregateParallel(ctx context.Context, table dataset.Table[timeseries.TimeSeriesRecord], workers int) (dataset.Table[AggregatedConsumptionRecord], error) {
	if workers <= 1 || table.Len() < 2 {
		if err := ctx.Err(); err != nil {
			return dataset.Table[AggregatedConsumptionRecord]{}, err
		}
		return a.Aggregate(table), nil
	}

	parts := table.Partition(workers)
	partials := make([]map[GroupKey]decimal.Decimal, len(parts))

	g, gctx := errgroup.WithContext(ctx)
	for i, part := range parts {
		i, part := i, part
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			partials[i] = partialSums(part)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return dataset.Table[AggregatedConsumptionRecord]{}, err
	}

	merged := make(map[GroupKey]decimal.Decimal)
	for _, partial := range partials {
		dataset.MergeSums(merged, partial)
	}
	return toSortedTable(merged), nil
}

func partialSums(table dataset.Table[timeseries.TimeSeriesRecord]) map[GroupKey]decimal.Decimal {
	return dataset.GroupSum(
		table.Filter(IsNonProfiledConsumption),
		KeyOf,
		func(rec timeseries.TimeSeriesRecord) decimal.Decimal { return rec.Quantity },
	)
}

func toSortedTable(sums map[GroupKey]decimal.Decimal) dataset.Table[AggregatedConsumptionRecord] {
	records := make([]AggregatedConsumptionRecord, 0, len(sums))
	for key, sum := range sums {
		records = append(records, AggregatedConsumptionRecord{GroupKey: key, SumQuantity: sum})
	}
	return dataset.New(records).OrderBy(func(a, b AggregatedConsumptionRecord) bool {
		return a.GroupKey.Less(b.GroupKey)
	})
}
