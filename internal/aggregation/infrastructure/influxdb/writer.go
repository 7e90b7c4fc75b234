package influxdb

import (
	"context"
	"errors"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"metering-aggregations/internal/aggregation/application"
)

const measurement = "hourly_consumption_supplier"

// Config holds the InfluxDB v2 connection settings.
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// pointWriter is the part of api.WriteAPIBlocking the writer needs.
type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Writer writes aggregation results as InfluxDB points, one per group.
type Writer struct {
	client   influxdb2.Client
	writeAPI pointWriter
}

// NewWriter connects to InfluxDB and verifies the server is healthy.
func NewWriter(ctx context.Context, cfg Config) (*Writer, error) {
	if cfg.URL == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, errors.New("influxdb writer: url, org and bucket are required")
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	if _, err := client.Health(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("influxdb writer: connect: %w", err)
	}
	return &Writer{client: client, writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket)}, nil
}

func newWriterWithAPI(api pointWriter) *Writer {
	return &Writer{writeAPI: api}
}

// Write sends all points of the result in one blocking request.
// Influx points are keyed by tags and time, so rewriting a period overwrites its groups.
func (w *Writer) Write(ctx context.Context, result application.Result) error {
	if w == nil || w.writeAPI == nil {
		return errors.New("influxdb writer: not initialised")
	}
	points := Points(result)
	if len(points) == 0 {
		return nil
	}
	return w.writeAPI.WritePoint(ctx, points...)
}

// Close releases the client.
func (w *Writer) Close() {
	if w != nil && w.client != nil {
		w.client.Close()
	}
}

// Points converts a result to points stamped with the period start.
func Points(result application.Result) []*write.Point {
	points := make([]*write.Point, 0, len(result.Records))
	for _, rec := range result.Records {
		points = append(points, write.NewPoint(
			measurement,
			map[string]string{
				"grid_area":                 rec.GridArea,
				"energy_supplier":           rec.EnergySupplier,
				"balance_responsible_party": rec.BalanceResponsibleParty,
			},
			map[string]interface{}{
				"sum_quantity":  rec.SumQuantity.InexactFloat64(),
				"period_end_ns": result.Period.End.UnixNano(),
			},
			result.Period.Start,
		))
	}
	return points
}
