package timeseries

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func header() []string {
	return []string{
		ColumnGridArea,
		ColumnEnergySupplier,
		ColumnBalanceResponsibleParty,
		ColumnMarketEvaluationPointType,
		ColumnSettlementMethod,
		ColumnQuantity,
		ColumnObservationTime,
	}
}

func TestDecodeTable_TextCells(t *testing.T) {
	raw := RawTable{
		Columns: append(header(), "Ignored"),
		Rows: [][]any{
			{"800", "8100000000108", "8100000000207", "E17", "E02", "3.000", "2020-01-03T00:15:00+0100", "x"},
			{"801", "8100000000109", "8100000000208", "production", "profiled", "1.5", "2020-01-02T23:30:00Z", "y"},
		},
	}

	table, err := DecodeTable(raw)
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())

	first := table.Rows()[0]
	assert.Equal(t, "800", first.MeteringGridAreaID)
	assert.Equal(t, "8100000000108", first.EnergySupplierID)
	assert.Equal(t, "8100000000207", first.BalanceResponsiblePartyID)
	assert.Equal(t, MarketEvaluationPointTypeConsumption, first.MarketEvaluationPointType)
	assert.Equal(t, SettlementMethodNonProfiled, first.SettlementMethod)
	assert.True(t, first.Quantity.Equal(decimal.RequireFromString("3")))
	assert.True(t, first.ObservationTime.Equal(time.Date(2020, 1, 2, 23, 15, 0, 0, time.UTC)))

	second := table.Rows()[1]
	assert.Equal(t, MarketEvaluationPointTypeProduction, second.MarketEvaluationPointType)
	assert.Equal(t, SettlementMethodProfiled, second.SettlementMethod)
}

func TestDecodeTable_TypedCells(t *testing.T) {
	at := time.Date(2021, 5, 1, 10, 0, 0, 0, time.UTC)
	raw := RawTable{
		Columns: header(),
		Rows: [][]any{
			{[]byte("800"), "s", "b", "consumption", "non_profiled", 4.5, at},
			{"800", "s", "b", "consumption", "non_profiled", int64(2), at},
			{"800", "s", "b", "consumption", "non_profiled", decimal.NewFromFloat(0.25), at},
		},
	}

	table, err := DecodeTable(raw)
	require.NoError(t, err)
	rows := table.Rows()
	assert.Equal(t, "800", rows[0].MeteringGridAreaID)
	assert.True(t, rows[0].Quantity.Equal(decimal.RequireFromString("4.5")))
	assert.True(t, rows[1].Quantity.Equal(decimal.NewFromInt(2)))
	assert.True(t, rows[2].Quantity.Equal(decimal.RequireFromString("0.25")))
}

func TestDecodeTable_SchemaErrors(t *testing.T) {
	at := time.Date(2021, 5, 1, 10, 0, 0, 0, time.UTC)
	valid := []any{"800", "s", "b", "E17", "E02", "1", at}

	tests := []struct {
		name   string
		raw    RawTable
		column string
		row    int
	}{
		{
			name:   "missing column",
			raw:    RawTable{Columns: header()[:6], Rows: nil},
			column: ColumnObservationTime,
			row:    -1,
		},
		{
			name:   "quantity not numeric",
			raw:    RawTable{Columns: header(), Rows: [][]any{valid, {"800", "s", "b", "E17", "E02", "abc", at}}},
			column: ColumnQuantity,
			row:    1,
		},
		{
			name:   "quantity wrong type",
			raw:    RawTable{Columns: header(), Rows: [][]any{{"800", "s", "b", "E17", "E02", true, at}}},
			column: ColumnQuantity,
			row:    0,
		},
		{
			name:   "timestamp without offset",
			raw:    RawTable{Columns: header(), Rows: [][]any{{"800", "s", "b", "E17", "E02", "1", "2020-01-01T00:00:00"}}},
			column: ColumnObservationTime,
			row:    0,
		},
		{
			name:   "unknown classification",
			raw:    RawTable{Columns: header(), Rows: [][]any{{"800", "s", "b", "E99", "E02", "1", at}}},
			column: ColumnMarketEvaluationPointType,
			row:    0,
		},
		{
			name:   "null identifier",
			raw:    RawTable{Columns: header(), Rows: [][]any{{nil, "s", "b", "E17", "E02", "1", at}}},
			column: ColumnGridArea,
			row:    0,
		},
		{
			name:   "short row",
			raw:    RawTable{Columns: header(), Rows: [][]any{{"800", "s"}}},
			column: ColumnBalanceResponsibleParty,
			row:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTable(tt.raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSchemaMismatch))

			var schemaErr *SchemaError
			require.True(t, errors.As(err, &schemaErr))
			assert.Equal(t, tt.column, schemaErr.Column)
			assert.Equal(t, tt.row, schemaErr.Row)
		})
	}
}

func TestDecodeTable_EmptyRows(t *testing.T) {
	table, err := DecodeTable(RawTable{Columns: header()})
	require.NoError(t, err)
	assert.True(t, table.IsEmpty())
}

func TestClassificationParsing(t *testing.T) {
	kind, err := ParseMarketEvaluationPointType("e20")
	require.NoError(t, err)
	assert.Equal(t, MarketEvaluationPointTypeExchange, kind)
	assert.Equal(t, "E20", kind.Code())
	assert.True(t, kind.IsValid())
	assert.False(t, MarketEvaluationPointType("bogus").IsValid())

	method, err := ParseSettlementMethod(" D01 ")
	require.NoError(t, err)
	assert.Equal(t, SettlementMethodFlexSettled, method)
	assert.Equal(t, "E02", SettlementMethodNonProfiled.Code())

	_, err = ParseSettlementMethod("estimated")
	assert.Error(t, err)
}
