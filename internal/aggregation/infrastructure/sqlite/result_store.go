// Package sqlite keeps aggregation results in a local SQLite file.
// Timestamps are stored as unix nanoseconds and sums as decimal text.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	_ "modernc.org/sqlite"

	"metering-aggregations/internal/aggregation/application"
	aggregation "metering-aggregations/internal/aggregation/domain"
)

//go:embed schema.sql
var schemaSQL string

// ResultStore is a SQLite-backed result writer and reader.
type ResultStore struct {
	db *sql.DB
}

// Open opens (or creates) the database file and applies the schema.
func Open(ctx context.Context, path string) (*ResultStore, error) {
	if path == "" {
		return nil, errors.New("sqlite store: path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer at a time; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite store: apply schema: %w", err)
	}
	return &ResultStore{db: db}, nil
}

// Close closes the database.
func (s *ResultStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Write replaces the stored result of the period in one transaction.
func (s *ResultStore) Write(ctx context.Context, result application.Result) error {
	return s.WriteAll(ctx, []application.Result{result})
}

// WriteAll replaces the stored results of every period in one transaction.
func (s *ResultStore) WriteAll(ctx context.Context, results []application.Result) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite store: nil db")
	}
	for _, result := range results {
		if err := result.Period.Validate(); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, result := range results {
		if err := writeResult(ctx, tx, result); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func writeResult(ctx context.Context, tx *sql.Tx, result application.Result) error {
	start, end := result.Period.Start.UnixNano(), result.Period.End.UnixNano()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM hourly_consumption_supplier WHERE period_start = ? AND period_end = ?", start, end,
	); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO hourly_consumption_supplier_runs (period_start, period_end, group_count, computed_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (period_start, period_end)
DO UPDATE SET group_count = excluded.group_count, computed_at = excluded.computed_at`,
		start, end, len(result.Records), result.ComputedAt.UnixNano(),
	); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO hourly_consumption_supplier (
	period_start, period_end, grid_area, energy_supplier, balance_responsible_party, sum_quantity
) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range result.Records {
		if _, err := stmt.ExecContext(ctx, start, end,
			rec.GridArea, rec.EnergySupplier, rec.BalanceResponsibleParty, rec.SumQuantity.String(),
		); err != nil {
			return err
		}
	}
	return nil
}

// FindByPeriod loads the result stored for exactly this period.
func (s *ResultStore) FindByPeriod(ctx context.Context, period aggregation.Period) (*application.Result, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlite store: nil db")
	}
	start, end := period.Start.UnixNano(), period.End.UnixNano()

	var computedAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT computed_at FROM hourly_consumption_supplier_runs WHERE period_start = ? AND period_end = ?",
		start, end,
	).Scan(&computedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, aggregation.ErrResultNotFound
	}
	if err != nil {
		return nil, err
	}

	// BINARY collation keeps the byte-wise key order.
	rows, err := s.db.QueryContext(ctx, `
SELECT grid_area, energy_supplier, balance_responsible_party, sum_quantity
FROM hourly_consumption_supplier
WHERE period_start = ? AND period_end = ?
ORDER BY grid_area, energy_supplier, balance_responsible_party`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := &application.Result{Period: period, ComputedAt: time.Unix(0, computedAt).UTC()}
	for rows.Next() {
		var rec aggregation.AggregatedConsumptionRecord
		var sum string
		if err := rows.Scan(&rec.GridArea, &rec.EnergySupplier, &rec.BalanceResponsibleParty, &sum); err != nil {
			return nil, err
		}
		if rec.SumQuantity, err = decimal.NewFromString(sum); err != nil {
			return nil, fmt.Errorf("sqlite store: sum_quantity: %w", err)
		}
		result.Records = append(result.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
