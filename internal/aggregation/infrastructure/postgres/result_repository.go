package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"metering-aggregations/internal/aggregation/application"
	aggregation "metering-aggregations/internal/aggregation/domain"
)

const defaultResultTable = "hourly_consumption_supplier"

// ResultRepository stores aggregation results in Postgres.
// Each period has a header row in <table>_runs and one row per group in <table>.
type ResultRepository struct {
	db    *sql.DB
	table string
}

// RepositoryOption configures the repository.
type RepositoryOption func(*ResultRepository)

// WithTable overrides the default table name.
func WithTable(table string) RepositoryOption {
	return func(repo *ResultRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewResultRepository constructs a repository with default table name.
func NewResultRepository(db *sql.DB, opts ...RepositoryOption) *ResultRepository {
	repo := &ResultRepository{db: db, table: defaultResultTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// QuotedTable returns the result table as a quoted, optionally schema-qualified identifier.
func (r *ResultRepository) QuotedTable() string { return quoteTable(r.table) }

func (r *ResultRepository) runsTable() string { return quoteTable(r.table + "_runs") }

// Write replaces the stored result of the period in one transaction.
func (r *ResultRepository) Write(ctx context.Context, result application.Result) error {
	return r.WriteAll(ctx, []application.Result{result})
}

// WriteAll replaces the stored results of every period in one transaction.
func (r *ResultRepository) WriteAll(ctx context.Context, results []application.Result) error {
	if r == nil || r.db == nil {
		return errors.New("result repo: nil db")
	}
	for _, result := range results {
		if err := result.Period.Validate(); err != nil {
			return err
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, result := range results {
		if err := r.writeResult(ctx, tx, result); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (r *ResultRepository) writeResult(ctx context.Context, tx *sql.Tx, result application.Result) error {
	table := r.QuotedTable()
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE period_start = $1 AND period_end = $2", table),
		result.Period.Start, result.Period.End,
	); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %s (period_start, period_end, group_count, computed_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (period_start, period_end)
DO UPDATE SET
	group_count = EXCLUDED.group_count,
	computed_at = EXCLUDED.computed_at`, r.runsTable()),
		result.Period.Start, result.Period.End, len(result.Records), result.ComputedAt,
	); err != nil {
		return err
	}

	if len(result.Records) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
INSERT INTO %s (
	period_start,
	period_end,
	grid_area,
	energy_supplier,
	balance_responsible_party,
	sum_quantity,
	computed_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7
)`, table))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range result.Records {
		if _, err := stmt.ExecContext(
			ctx,
			result.Period.Start,
			result.Period.End,
			rec.GridArea,
			rec.EnergySupplier,
			rec.BalanceResponsibleParty,
			rec.SumQuantity.String(),
			result.ComputedAt,
		); err != nil {
			return err
		}
	}
	return nil
}

// FindByPeriod loads the result stored for exactly this period.
func (r *ResultRepository) FindByPeriod(ctx context.Context, period aggregation.Period) (*application.Result, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("result repo: nil db")
	}

	result := &application.Result{Period: period}
	err := r.db.QueryRowContext(ctx, fmt.Sprintf(`
SELECT computed_at
FROM %s
WHERE period_start = $1 AND period_end = $2`, r.runsTable()),
		period.Start, period.End,
	).Scan(&result.ComputedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, aggregation.ErrResultNotFound
	}
	if err != nil {
		return nil, err
	}
	result.ComputedAt = result.ComputedAt.UTC()

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
SELECT grid_area, energy_supplier, balance_responsible_party, sum_quantity::text
FROM %s
WHERE period_start = $1 AND period_end = $2
ORDER BY grid_area ASC, energy_supplier ASC, balance_responsible_party ASC`, r.QuotedTable()),
		period.Start, period.End,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var rec aggregation.AggregatedConsumptionRecord
		var sum string
		if err := rows.Scan(&rec.GridArea, &rec.EnergySupplier, &rec.BalanceResponsibleParty, &sum); err != nil {
			return nil, err
		}
		rec.SumQuantity, err = decimal.NewFromString(sum)
		if err != nil {
			return nil, fmt.Errorf("result repo: sum_quantity: %w", err)
		}
		result.Records = append(result.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortRecords(result.Records)
	return result, nil
}

// Postgres collation may not be byte-wise; results are returned in key order.
func sortRecords(records []aggregation.AggregatedConsumptionRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].GroupKey.Less(records[j].GroupKey)
	})
}

// quoteTable quotes each dot-separated part, so "reporting.results" stays schema-qualified.
func quoteTable(name string) string {
	parts := strings.Split(name, ".")
	for i, part := range parts {
		parts[i] = `"` + strings.ReplaceAll(part, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}

var _ application.BatchWriter = (*ResultRepository)(nil)
