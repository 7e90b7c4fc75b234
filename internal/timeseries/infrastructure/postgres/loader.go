package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	aggregation "metering-aggregations/internal/aggregation/domain"
	"metering-aggregations/internal/dataset"
	timeseries "metering-aggregations/internal/timeseries/domain"
)

const defaultTimeSeriesTable = "time_series_points"

// Column data types, as reported by information_schema, accepted per kind.
var compatibleTypes = map[timeseries.Kind][]string{
	timeseries.KindString:    {"text", "character varying", "character"},
	timeseries.KindDecimal:   {"numeric", "double precision", "real", "integer", "bigint", "smallint"},
	timeseries.KindTimestamp: {"timestamp with time zone"},
}

// Loader reads time series snapshots from a Postgres table.
type Loader struct {
	db     *sql.DB
	table  string
	schema string
	logger *log.Logger
}

// Option configures the loader and the repository.
type Option func(*options)

type options struct {
	table  string
	schema string
	logger *log.Logger
}

// WithTable overrides the default table name.
func WithTable(table string) Option {
	return func(o *options) {
		if table != "" {
			o.table = table
		}
	}
}

// WithSchema overrides the default "public" schema.
func WithSchema(schema string) Option {
	return func(o *options) {
		if schema != "" {
			o.schema = schema
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{table: defaultTimeSeriesTable, schema: "public", logger: log.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewLoader constructs a loader.
func NewLoader(db *sql.DB, opts ...Option) (*Loader, error) {
	if db == nil {
		return nil, errors.New("timeseries loader: nil db")
	}
	o := buildOptions(opts)
	return &Loader{db: db, table: o.table, schema: o.schema, logger: o.logger}, nil
}

// Load verifies the table columns and reads rows with ObservationTime in [start, end).
func (l *Loader) Load(ctx context.Context, period aggregation.Period) (dataset.Table[timeseries.TimeSeriesRecord], error) {
	if l == nil || l.db == nil {
		return dataset.Table[timeseries.TimeSeriesRecord]{}, errors.New("timeseries loader: nil db")
	}
	if err := l.VerifySchema(ctx); err != nil {
		return dataset.Table[timeseries.TimeSeriesRecord]{}, err
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE %s >= $1
	AND %s < $2`,
		selectList(),
		qualified(l.schema, l.table),
		quoteIdent(timeseries.ColumnObservationTime),
		quoteIdent(timeseries.ColumnObservationTime),
	)

	started := time.Now()
	rows, err := l.db.QueryContext(ctx, query, period.Start, period.End)
	if err != nil {
		return dataset.Table[timeseries.TimeSeriesRecord]{}, err
	}
	defer rows.Close()

	raw := timeseries.RawTable{Columns: columnNames()}
	for rows.Next() {
		var (
			gridArea, supplier, brp, pointType, settlement, quantity sql.NullString
			observed                                                 sql.NullTime
		)
		if err := rows.Scan(&gridArea, &supplier, &brp, &pointType, &settlement, &quantity, &observed); err != nil {
			return dataset.Table[timeseries.TimeSeriesRecord]{}, err
		}
		raw.Rows = append(raw.Rows, []any{
			nullableString(gridArea),
			nullableString(supplier),
			nullableString(brp),
			nullableString(pointType),
			nullableString(settlement),
			nullableString(quantity),
			nullableTime(observed),
		})
	}
	if err := rows.Err(); err != nil {
		return dataset.Table[timeseries.TimeSeriesRecord]{}, err
	}

	table, err := timeseries.DecodeTable(raw)
	if err != nil {
		return dataset.Table[timeseries.TimeSeriesRecord]{}, err
	}
	l.logger.Printf("postgres snapshot loaded: table=%s rows=%d duration_ms=%d",
		l.table, table.Len(), time.Since(started).Milliseconds())
	return table, nil
}

// VerifySchema checks that every required column exists with a compatible type.
func (l *Loader) VerifySchema(ctx context.Context) error {
	rows, err := l.db.QueryContext(ctx, `
SELECT column_name, data_type
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2`, l.schema, l.table)
	if err != nil {
		return err
	}
	defer rows.Close()

	types := make(map[string]string)
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return err
		}
		types[name] = dataType
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return checkColumns(types)
}

func checkColumns(types map[string]string) error {
	for _, col := range timeseries.Schema {
		actual, ok := types[col.Name]
		if !ok {
			return timeseries.MissingColumn(col.Name)
		}
		if !compatible(col.Kind, actual) {
			return timeseries.IncompatibleColumn(col.Name, col.Kind, actual)
		}
	}
	return nil
}

func compatible(kind timeseries.Kind, dataType string) bool {
	for _, candidate := range compatibleTypes[kind] {
		if strings.EqualFold(candidate, dataType) {
			return true
		}
	}
	return false
}

func columnNames() []string {
	names := make([]string, len(timeseries.Schema))
	for i, col := range timeseries.Schema {
		names[i] = col.Name
	}
	return names
}

// Quantity is read as text so numeric values keep their exact digits.
func selectList() string {
	parts := make([]string, len(timeseries.Schema))
	for i, col := range timeseries.Schema {
		ident := quoteIdent(col.Name)
		if col.Kind == timeseries.KindDecimal {
			ident += "::text"
		}
		parts[i] = ident
	}
	return strings.Join(parts, ", ")
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func qualified(schema, table string) string {
	return quoteIdent(schema) + "." + quoteIdent(table)
}

func nullableString(v sql.NullString) any {
	if !v.Valid {
		return nil
	}
	return v.String
}

func nullableTime(v sql.NullTime) any {
	if !v.Valid {
		return nil
	}
	return v.Time
}
