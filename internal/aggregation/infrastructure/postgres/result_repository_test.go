package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	_ "github.com/jackc/pgx/v5/stdlib"

	"metering-aggregations/internal/aggregation/application"
	aggregation "metering-aggregations/internal/aggregation/domain"
)

func TestSortRecordsByteOrder(t *testing.T) {
	records := []aggregation.AggregatedConsumptionRecord{
		{GroupKey: aggregation.GroupKey{GridArea: "b", EnergySupplier: "s", BalanceResponsibleParty: "x"}},
		{GroupKey: aggregation.GroupKey{GridArea: "B", EnergySupplier: "s", BalanceResponsibleParty: "x"}},
		{GroupKey: aggregation.GroupKey{GridArea: "a", EnergySupplier: "t", BalanceResponsibleParty: "x"}},
		{GroupKey: aggregation.GroupKey{GridArea: "a", EnergySupplier: "s", BalanceResponsibleParty: "y"}},
	}
	sortRecords(records)

	want := []string{"B", "a", "a", "b"}
	for i, rec := range records {
		if rec.GridArea != want[i] {
			t.Fatalf("position %d: got %q want %q", i, rec.GridArea, want[i])
		}
	}
	if records[1].EnergySupplier != "s" || records[2].EnergySupplier != "t" {
		t.Fatalf("supplier order mismatch: %+v", records)
	}
}

func TestWriteRejectsNilDB(t *testing.T) {
	repo := NewResultRepository(nil)
	if err := repo.Write(context.Background(), application.Result{}); err == nil {
		t.Fatalf("expected error for nil db")
	}
}

func TestQuotedTableNames(t *testing.T) {
	cases := []struct {
		table string
		want  string
		runs  string
	}{
		{"", `"hourly_consumption_supplier"`, `"hourly_consumption_supplier_runs"`},
		{"reporting.hourly", `"reporting"."hourly"`, `"reporting"."hourly_runs"`},
		{`odd"name`, `"odd""name"`, `"odd""name_runs"`},
	}
	for _, tc := range cases {
		repo := NewResultRepository(nil, WithTable(tc.table))
		if got := repo.QuotedTable(); got != tc.want {
			t.Fatalf("QuotedTable(%q) = %s, want %s", tc.table, got, tc.want)
		}
		if got := repo.runsTable(); got != tc.runs {
			t.Fatalf("runsTable(%q) = %s, want %s", tc.table, got, tc.runs)
		}
	}
}

func TestResultRepository_Postgres(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if !tableExists(db, defaultResultTable) || !tableExists(db, defaultResultTable+"_runs") {
		t.Skip("hourly_consumption_supplier tables missing; run migrations")
	}

	ctx := context.Background()
	start := time.Date(2031, time.March, 4, 10, 0, 0, 0, time.UTC)
	period := aggregation.Period{Start: start, End: start.Add(time.Hour)}
	repo := NewResultRepository(db)

	defer func() {
		_, _ = db.ExecContext(ctx, "DELETE FROM hourly_consumption_supplier WHERE period_start = $1", start)
		_, _ = db.ExecContext(ctx, "DELETE FROM hourly_consumption_supplier_runs WHERE period_start = $1", start)
	}()

	first := application.Result{
		Period:     period,
		ComputedAt: start.Add(2 * time.Hour),
		Records: []aggregation.AggregatedConsumptionRecord{
			{GroupKey: aggregation.GroupKey{GridArea: "800", EnergySupplier: "s1", BalanceResponsibleParty: "b1"}, SumQuantity: decimal.RequireFromString("7.5")},
			{GroupKey: aggregation.GroupKey{GridArea: "801", EnergySupplier: "s1", BalanceResponsibleParty: "b1"}, SumQuantity: decimal.RequireFromString("1")},
		},
	}
	if err := repo.Write(ctx, first); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := repo.FindByPeriod(ctx, period)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got.Records) != 2 || !got.Records[0].SumQuantity.Equal(decimal.RequireFromString("7.5")) {
		t.Fatalf("unexpected records: %+v", got.Records)
	}

	empty := application.Result{Period: period, ComputedAt: start.Add(3 * time.Hour)}
	if err := repo.Write(ctx, empty); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	got, err = repo.FindByPeriod(ctx, period)
	if err != nil {
		t.Fatalf("find after rewrite: %v", err)
	}
	if len(got.Records) != 0 {
		t.Fatalf("expected replaced result to be empty, got %d", len(got.Records))
	}

	_, err = repo.FindByPeriod(ctx, aggregation.Period{Start: start, End: start.Add(2 * time.Hour)})
	if !errors.Is(err, aggregation.ErrResultNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResultRepository_PostgresBatch(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if !tableExists(db, defaultResultTable) || !tableExists(db, defaultResultTable+"_runs") {
		t.Skip("hourly_consumption_supplier tables missing; run migrations")
	}

	ctx := context.Background()
	start := time.Date(2031, time.March, 5, 10, 0, 0, 0, time.UTC)
	first := aggregation.Period{Start: start, End: start.Add(time.Hour)}
	second := aggregation.Period{Start: first.End, End: first.End.Add(time.Hour)}
	repo := NewResultRepository(db)

	defer func() {
		_, _ = db.ExecContext(ctx, "DELETE FROM hourly_consumption_supplier WHERE period_start IN ($1, $2)", first.Start, second.Start)
		_, _ = db.ExecContext(ctx, "DELETE FROM hourly_consumption_supplier_runs WHERE period_start IN ($1, $2)", first.Start, second.Start)
	}()

	key := aggregation.GroupKey{GridArea: "800", EnergySupplier: "s1", BalanceResponsibleParty: "b1"}
	err = repo.WriteAll(ctx, []application.Result{
		{Period: first, ComputedAt: start, Records: []aggregation.AggregatedConsumptionRecord{
			{GroupKey: key, SumQuantity: decimal.RequireFromString("0.0000001")},
		}},
		{Period: second, ComputedAt: start, Records: []aggregation.AggregatedConsumptionRecord{
			{GroupKey: key, SumQuantity: decimal.NewFromInt(1)},
			{GroupKey: key, SumQuantity: decimal.NewFromInt(2)},
		}},
	})
	if err == nil {
		t.Fatalf("expected duplicate key error")
	}
	if _, err := repo.FindByPeriod(ctx, first); !errors.Is(err, aggregation.ErrResultNotFound) {
		t.Fatalf("expected rolled back first period, got %v", err)
	}

	if err := repo.WriteAll(ctx, []application.Result{
		{Period: first, ComputedAt: start, Records: []aggregation.AggregatedConsumptionRecord{
			{GroupKey: key, SumQuantity: decimal.RequireFromString("0.0000001")},
		}},
		{Period: second, ComputedAt: start},
	}); err != nil {
		t.Fatalf("write all: %v", err)
	}
	got, err := repo.FindByPeriod(ctx, first)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got.Records) != 1 || got.Records[0].SumQuantity.String() != "0.0000001" {
		t.Fatalf("sum_quantity lost precision: %+v", got.Records)
	}
	if _, err := repo.FindByPeriod(ctx, second); err != nil {
		t.Fatalf("find second: %v", err)
	}
}

func tableExists(db *sql.DB, table string) bool {
	var exists bool
	err := db.QueryRow(`
SELECT EXISTS (
	SELECT 1
	FROM information_schema.tables
	WHERE table_schema = 'public' AND table_name = $1
)`, table).Scan(&exists)
	if err != nil {
		return false
	}
	return exists
}
