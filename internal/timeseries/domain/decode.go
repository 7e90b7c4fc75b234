package timeseries

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"metering-aggregations/internal/dataset"
)

// Timestamp layouts accepted for textual ObservationTime cells.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05Z07:00",
}

// RawTable is an untyped, column-named snapshot as produced by a loader.
// Cells may be strings or already-typed values (float64, int64, decimal.Decimal, time.Time, []byte).
type RawTable struct {
	Columns []string
	Rows    [][]any
}

// DecodeTable converts a raw snapshot into typed records.
// Columns not listed in Schema are ignored.
func DecodeTable(raw RawTable) (dataset.Table[TimeSeriesRecord], error) {
	index := make(map[string]int, len(raw.Columns))
	for i, name := range raw.Columns {
		index[strings.TrimSpace(name)] = i
	}
	positions := make([]int, len(Schema))
	for i, col := range Schema {
		pos, ok := index[col.Name]
		if !ok {
			return dataset.Table[TimeSeriesRecord]{}, MissingColumn(col.Name)
		}
		positions[i] = pos
	}

	records := make([]TimeSeriesRecord, 0, len(raw.Rows))
	for rowIdx, cells := range raw.Rows {
		cell := func(schemaIdx int) (any, error) {
			pos := positions[schemaIdx]
			if pos >= len(cells) {
				return nil, &SchemaError{Column: Schema[schemaIdx].Name, Row: rowIdx, Reason: "row is shorter than header"}
			}
			return cells[pos], nil
		}

		var rec TimeSeriesRecord
		for i, col := range Schema {
			value, err := cell(i)
			if err != nil {
				return dataset.Table[TimeSeriesRecord]{}, err
			}
			if err := assign(&rec, col, value); err != nil {
				return dataset.Table[TimeSeriesRecord]{}, &SchemaError{Column: col.Name, Row: rowIdx, Reason: err.Error()}
			}
		}
		records = append(records, rec)
	}
	return dataset.New(records), nil
}

func assign(rec *TimeSeriesRecord, col Column, value any) error {
	switch col.Kind {
	case KindString:
		s, err := asString(value)
		if err != nil {
			return err
		}
		switch col.Name {
		case ColumnGridArea:
			rec.MeteringGridAreaID = s
		case ColumnEnergySupplier:
			rec.EnergySupplierID = s
		case ColumnBalanceResponsibleParty:
			rec.BalanceResponsiblePartyID = s
		case ColumnMarketEvaluationPointType:
			kind, err := ParseMarketEvaluationPointType(s)
			if err != nil {
				return err
			}
			rec.MarketEvaluationPointType = kind
		case ColumnSettlementMethod:
			method, err := ParseSettlementMethod(s)
			if err != nil {
				return err
			}
			rec.SettlementMethod = method
		}
	case KindDecimal:
		d, err := asDecimal(value)
		if err != nil {
			return err
		}
		rec.Quantity = d
	case KindTimestamp:
		ts, err := asTimestamp(value)
		if err != nil {
			return err
		}
		rec.ObservationTime = ts
	}
	return nil
}

func asString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case nil:
		return "", fmt.Errorf("null value")
	default:
		return "", fmt.Errorf("expected string, got %T", value)
	}
}

func asDecimal(value any) (decimal.Decimal, error) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case string:
		return parseDecimal(v)
	case []byte:
		return parseDecimal(string(v))
	case nil:
		return decimal.Decimal{}, fmt.Errorf("null value")
	default:
		return decimal.Decimal{}, fmt.Errorf("expected decimal, got %T", value)
	}
}

func parseDecimal(value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid decimal %q", value)
	}
	return d, nil
}

func asTimestamp(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		if v.IsZero() {
			return time.Time{}, fmt.Errorf("zero timestamp")
		}
		return v, nil
	case string:
		return ParseTimestamp(v)
	case []byte:
		return ParseTimestamp(string(v))
	case nil:
		return time.Time{}, fmt.Errorf("null value")
	default:
		return time.Time{}, fmt.Errorf("expected timestamp, got %T", value)
	}
}

// ParseTimestamp parses a zone-aware timestamp. Values without an offset are rejected.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", value)
}
