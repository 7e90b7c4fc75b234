package console

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"metering-aggregations/internal/aggregation/application"
)

// Writer prints results as an aligned table.
type Writer struct {
	out io.Writer
}

// NewWriter constructs a writer on out.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Write prints one header line for the period and one line per group.
func (w *Writer) Write(ctx context.Context, result application.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "# %s [%s, %s) groups=%d\n",
		application.AggregationName,
		result.Period.Start.UTC().Format(time.RFC3339),
		result.Period.End.UTC().Format(time.RFC3339),
		len(result.Records),
	)
	fmt.Fprintln(tw, "grid_area\tenergy_supplier\tbalance_responsible_party\tsum_quantity")
	for _, rec := range result.Records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", rec.GridArea, rec.EnergySupplier, rec.BalanceResponsibleParty, rec.SumQuantity.String())
	}
	return tw.Flush()
}
