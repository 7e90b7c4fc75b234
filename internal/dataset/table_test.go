package dataset

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	key   string
	value decimal.Decimal
}

func rows(values ...int64) []row {
	result := make([]row, 0, len(values))
	for i, v := range values {
		key := "a"
		if i%2 == 1 {
			key = "b"
		}
		result = append(result, row{key: key, value: decimal.NewFromInt(v)})
	}
	return result
}

func TestNewCopiesInput(t *testing.T) {
	input := rows(1, 2, 3)
	table := New(input)
	input[0].key = "mutated"

	assert.Equal(t, "a", table.Rows()[0].key)

	out := table.Rows()
	out[1].key = "mutated"
	assert.Equal(t, "b", table.Rows()[1].key)
}

func TestFilterComposesPredicates(t *testing.T) {
	table := New(rows(1, 2, 3, 4, 5))

	isA := func(r row) bool { return r.key == "a" }
	big := func(r row) bool { return r.value.GreaterThan(decimal.NewFromInt(1)) }

	filtered := table.Filter(isA, big)
	require.Equal(t, 2, filtered.Len())
	assert.True(t, filtered.Rows()[0].value.Equal(decimal.NewFromInt(3)))
	assert.True(t, filtered.Rows()[1].value.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, 5, table.Len(), "filter must not mutate receiver")
}

func TestFilterWithoutPredicatesKeepsAll(t *testing.T) {
	table := New(rows(1, 2))
	assert.Equal(t, 2, table.Filter().Len())
}

func TestEmptyTable(t *testing.T) {
	var table Table[row]
	assert.True(t, table.IsEmpty())
	assert.Empty(t, table.Rows())
	assert.Nil(t, table.Partition(4))
	assert.Empty(t, GroupSum(table, func(r row) string { return r.key }, func(r row) decimal.Decimal { return r.value }))
}

func TestPartitionCoversAllRows(t *testing.T) {
	table := New(rows(1, 2, 3, 4, 5, 6, 7))

	for n := 1; n <= 9; n++ {
		parts := table.Partition(n)
		total := 0
		for _, part := range parts {
			require.False(t, part.IsEmpty())
			total += part.Len()
		}
		assert.Equal(t, table.Len(), total, "n=%d", n)
		assert.LessOrEqual(t, len(parts), n)
	}
}

func TestGroupSumAndMerge(t *testing.T) {
	table := New(rows(1, 2, 3, 4, 5))
	key := func(r row) string { return r.key }
	value := func(r row) decimal.Decimal { return r.value }

	whole := GroupSum(table, key, value)
	assert.True(t, whole["a"].Equal(decimal.NewFromInt(9)))
	assert.True(t, whole["b"].Equal(decimal.NewFromInt(6)))

	merged := make(map[string]decimal.Decimal)
	for _, part := range table.Partition(3) {
		MergeSums(merged, GroupSum(part, key, value))
	}
	require.Len(t, merged, 2)
	assert.True(t, merged["a"].Equal(whole["a"]))
	assert.True(t, merged["b"].Equal(whole["b"]))
}

func TestOrderByIsStable(t *testing.T) {
	table := New([]row{
		{key: "b", value: decimal.NewFromInt(1)},
		{key: "a", value: decimal.NewFromInt(2)},
		{key: "b", value: decimal.NewFromInt(3)},
	})
	sorted := table.OrderBy(func(x, y row) bool { return x.key < y.key })
	got := sorted.Rows()
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].key)
	assert.True(t, got[1].value.Equal(decimal.NewFromInt(1)))
	assert.True(t, got[2].value.Equal(decimal.NewFromInt(3)))
}
