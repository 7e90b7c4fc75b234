package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"

	"metering-aggregations/internal/aggregation/application"
	"metering-aggregations/internal/aggregation/infrastructure/console"
	"metering-aggregations/internal/aggregation/infrastructure/influxdb"
	"metering-aggregations/internal/aggregation/infrastructure/memory"
	resultpostgres "metering-aggregations/internal/aggregation/infrastructure/postgres"
	"metering-aggregations/internal/aggregation/infrastructure/sqlite"
	"metering-aggregations/internal/aggregation/interfaces/kafka"
	"metering-aggregations/internal/config"
	"metering-aggregations/internal/observability/metrics"
	"metering-aggregations/internal/timeseries/infrastructure/csvfile"
	tspostgres "metering-aggregations/internal/timeseries/infrastructure/postgres"
)

// components holds the adapters selected by configuration.
type components struct {
	db      *sql.DB
	loader  application.TimeSeriesLoader
	writer  *application.MultiWriter
	reader  application.ResultReader
	closers []func()
}

func (r *components) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

func (r *components) service(cfg config.Config, logger *log.Logger) (*application.Service, error) {
	bus, err := newEventBus(logger)
	if err != nil {
		return nil, err
	}
	return application.NewService(r.loader, r.writer,
		application.WithEventBus(bus),
		application.WithWorkers(cfg.Workers),
		application.WithLogger(logger),
	)
}

func needsDB(cfg config.Config) bool {
	return cfg.Input.Source == config.InputPostgres || cfg.HasSink(config.SinkPostgres)
}

func buildComponents(ctx context.Context, cfg config.Config, logger *log.Logger) (*components, error) {
	rt := &components{}
	ok := false
	defer func() {
		if !ok {
			rt.Close()
		}
	}()

	if needsDB(cfg) {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
		rt.closers = append(rt.closers, func() { _ = db.Close() })
		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("db ping: %w", err)
		}
		rt.db = db
	}

	switch cfg.Input.Source {
	case config.InputPostgres:
		loader, err := tspostgres.NewLoader(rt.db, tspostgres.WithTable(cfg.Input.Table), tspostgres.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		rt.loader = loader
	default:
		loader, err := csvfile.NewLoader(cfg.Input.Path, logger)
		if err != nil {
			return nil, err
		}
		rt.loader = loader
	}

	resultTable := ""
	var sinks []application.NamedWriter
	for _, sink := range cfg.Sinks {
		switch sink {
		case config.SinkPostgres:
			repo := resultpostgres.NewResultRepository(rt.db, resultpostgres.WithTable(cfg.ResultTable))
			resultTable = repo.QuotedTable()
			sinks = append(sinks, application.NamedWriter{Name: sink, Writer: repo})
			if rt.reader == nil {
				rt.reader = repo
			}
		case config.SinkSQLite:
			store, err := sqlite.Open(ctx, cfg.SQLitePath)
			if err != nil {
				return nil, err
			}
			rt.closers = append(rt.closers, func() { _ = store.Close() })
			sinks = append(sinks, application.NamedWriter{Name: sink, Writer: store})
			if rt.reader == nil {
				rt.reader = store
			}
		case config.SinkInfluxDB:
			writer, err := influxdb.NewWriter(ctx, influxdb.Config{
				URL:    cfg.InfluxDB.URL,
				Token:  cfg.InfluxDB.Token,
				Org:    cfg.InfluxDB.Org,
				Bucket: cfg.InfluxDB.Bucket,
			})
			if err != nil {
				return nil, err
			}
			rt.closers = append(rt.closers, writer.Close)
			sinks = append(sinks, application.NamedWriter{Name: sink, Writer: writer})
		case config.SinkKafka:
			publisher, err := kafka.NewPublisher(kafka.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic}, logger)
			if err != nil {
				return nil, err
			}
			rt.closers = append(rt.closers, func() { _ = publisher.Close() })
			sinks = append(sinks, application.NamedWriter{Name: sink, Writer: publisher})
		case config.SinkStdout:
			sinks = append(sinks, application.NamedWriter{Name: sink, Writer: console.NewWriter(os.Stdout)})
		}
	}

	// Without a durable store, results are kept in memory so the API can serve them.
	if rt.reader == nil {
		store := memory.NewResultStore()
		sinks = append(sinks, application.NamedWriter{Name: "memory", Writer: store})
		rt.reader = store
	}
	rt.writer = application.NewMultiWriter(sinks...)
	metrics.Init(rt.db, resultTable, logger)

	ok = true
	return rt, nil
}
