package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	aggregation "metering-aggregations/internal/aggregation/domain"
	"metering-aggregations/internal/dataset"
	timeseries "metering-aggregations/internal/timeseries/domain"
)

var ErrEmptyFile = errors.New("csvfile: missing header row")

// Loader reads a time series snapshot from a CSV file with a header row.
type Loader struct {
	path   string
	logger *log.Logger
}

// NewLoader constructs a CSV loader.
func NewLoader(path string, logger *log.Logger) (*Loader, error) {
	if path == "" {
		return nil, errors.New("csvfile: path is required")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Loader{path: path, logger: logger}, nil
}

// Load reads the file and keeps rows observed inside the period.
func (l *Loader) Load(ctx context.Context, period aggregation.Period) (dataset.Table[timeseries.TimeSeriesRecord], error) {
	if err := ctx.Err(); err != nil {
		return dataset.Table[timeseries.TimeSeriesRecord]{}, err
	}
	file, err := os.Open(l.path)
	if err != nil {
		return dataset.Table[timeseries.TimeSeriesRecord]{}, fmt.Errorf("csvfile: open: %w", err)
	}
	defer file.Close()

	table, err := ReadTable(file)
	if err != nil {
		return dataset.Table[timeseries.TimeSeriesRecord]{}, err
	}
	windowed := table.Filter(aggregation.InPeriod(period))
	l.logger.Printf("csv snapshot loaded: path=%s rows=%d window_rows=%d", l.path, table.Len(), windowed.Len())
	return windowed, nil
}

// ReadTable decodes a whole CSV snapshot. The first record is the header.
func ReadTable(r io.Reader) (dataset.Table[timeseries.TimeSeriesRecord], error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return dataset.Table[timeseries.TimeSeriesRecord]{}, ErrEmptyFile
	}
	if err != nil {
		return dataset.Table[timeseries.TimeSeriesRecord]{}, fmt.Errorf("csvfile: read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = trimBOM(header[0])
	}

	raw := timeseries.RawTable{Columns: header}
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return dataset.Table[timeseries.TimeSeriesRecord]{}, fmt.Errorf("csvfile: read row %d: %w", len(raw.Rows), err)
		}
		cells := make([]any, len(fields))
		for i, f := range fields {
			cells[i] = f
		}
		raw.Rows = append(raw.Rows, cells)
	}
	return timeseries.DecodeTable(raw)
}

func trimBOM(value string) string {
	const bom = "\uFEFF"
	if len(value) >= len(bom) && value[:len(bom)] == bom {
		return value[len(bom):]
	}
	return value
}
