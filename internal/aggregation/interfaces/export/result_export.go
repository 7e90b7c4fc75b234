package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"metering-aggregations/internal/aggregation/application"
)

// Supported export formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
)

var header = []string{"grid_area", "energy_supplier", "balance_responsible_party", "sum_quantity"}

// ContentType returns the MIME type of a format.
func ContentType(format string) string {
	switch format {
	case FormatCSV:
		return "text/csv"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// Build renders the result in the given format.
func Build(format string, result *application.Result) ([]byte, error) {
	switch format {
	case FormatCSV:
		return BuildResultCSV(result)
	case FormatXLSX:
		return BuildResultXLSX(result)
	case FormatPDF:
		return BuildResultPDF(result)
	default:
		return nil, fmt.Errorf("export: unsupported format %q", format)
	}
}

// BuildResultCSV renders the records with a header row, sums as exact decimals.
func BuildResultCSV(result *application.Result) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, rec := range result.Records {
		if err := w.Write([]string{rec.GridArea, rec.EnergySupplier, rec.BalanceResponsibleParty, rec.SumQuantity.String()}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildResultXLSX renders a summary sheet and a records sheet.
func BuildResultXLSX(result *application.Result) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "summary"
	recordsSheet := "records"
	f.SetSheetName("Sheet1", summarySheet)
	if _, err := f.NewSheet(recordsSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Hourly Consumption per Supplier")
	_ = f.SetCellValue(summarySheet, "A3", "Period Start")
	_ = f.SetCellValue(summarySheet, "B3", result.Period.Start.UTC().Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A4", "Period End")
	_ = f.SetCellValue(summarySheet, "B4", result.Period.End.UTC().Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A5", "Groups")
	_ = f.SetCellValue(summarySheet, "B5", len(result.Records))
	_ = f.SetCellValue(summarySheet, "A6", "Computed At")
	_ = f.SetCellValue(summarySheet, "B6", result.ComputedAt.UTC().Format(time.RFC3339))

	for i, name := range header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(recordsSheet, cell, name)
	}
	for i, rec := range result.Records {
		row := i + 2
		_ = f.SetCellValue(recordsSheet, fmt.Sprintf("A%d", row), rec.GridArea)
		_ = f.SetCellValue(recordsSheet, fmt.Sprintf("B%d", row), rec.EnergySupplier)
		_ = f.SetCellValue(recordsSheet, fmt.Sprintf("C%d", row), rec.BalanceResponsibleParty)
		_ = f.SetCellValue(recordsSheet, fmt.Sprintf("D%d", row), rec.SumQuantity.String())
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildResultPDF renders a one-table PDF report.
func BuildResultPDF(result *application.Result) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Hourly Consumption per Supplier")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Period: %s - %s",
		result.Period.Start.UTC().Format(time.RFC3339), result.Period.End.UTC().Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Groups: %d", len(result.Records)))
	pdf.Ln(5)
	if !result.ComputedAt.IsZero() {
		pdf.Cell(0, 6, fmt.Sprintf("Computed: %s", result.ComputedAt.UTC().Format(time.RFC3339)))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(35, 6, "Grid Area", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, "Energy Supplier", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, "Balance Resp. Party", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Sum Quantity", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, rec := range result.Records {
		pdf.CellFormat(35, 6, rec.GridArea, "1", 0, "L", false, 0, "")
		pdf.CellFormat(50, 6, rec.EnergySupplier, "1", 0, "L", false, 0, "")
		pdf.CellFormat(50, 6, rec.BalanceResponsibleParty, "1", 0, "L", false, 0, "")
		pdf.CellFormat(45, 6, rec.SumQuantity.String(), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
