package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	timeseries "metering-aggregations/internal/timeseries/domain"
)

// Repository writes time series records. Used for seeding and tests.
type Repository struct {
	db     *sql.DB
	table  string
	schema string
}

// NewRepository constructs a repository with the default table name.
func NewRepository(db *sql.DB, opts ...Option) *Repository {
	o := buildOptions(opts)
	return &Repository{db: db, table: o.table, schema: o.schema}
}

// InsertRecords inserts records in one transaction.
func (r *Repository) InsertRecords(ctx context.Context, records []timeseries.TimeSeriesRecord) error {
	if r == nil || r.db == nil {
		return errors.New("timeseries repo: nil db")
	}
	if len(records) == 0 {
		return nil
	}

	placeholders := make([]string, len(timeseries.Schema))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (%s) VALUES (%s)`,
		qualified(r.schema, r.table),
		strings.Join(quotedColumns(), ", "),
		strings.Join(placeholders, ", "),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		if rec.ObservationTime.IsZero() || !rec.MarketEvaluationPointType.IsValid() || !rec.SettlementMethod.IsValid() {
			_ = tx.Rollback()
			return errors.New("timeseries repo: invalid record")
		}
		if _, err := stmt.ExecContext(
			ctx,
			rec.MeteringGridAreaID,
			rec.EnergySupplierID,
			rec.BalanceResponsiblePartyID,
			rec.MarketEvaluationPointType.Code(),
			rec.SettlementMethod.Code(),
			rec.Quantity.String(),
			rec.ObservationTime,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// DeleteGridArea removes all rows of a grid area.
func (r *Repository) DeleteGridArea(ctx context.Context, gridArea string) error {
	if r == nil || r.db == nil {
		return errors.New("timeseries repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = $1",
		qualified(r.schema, r.table), quoteIdent(timeseries.ColumnGridArea)), gridArea)
	return err
}

func quotedColumns() []string {
	names := columnNames()
	for i, name := range names {
		names[i] = quoteIdent(name)
	}
	return names
}
