package main

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	aggregation "metering-aggregations/internal/aggregation/domain"
	"metering-aggregations/internal/config"
	timeseries "metering-aggregations/internal/timeseries/domain"
)

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", config.ErrInvalidConfig), 2},
		{aggregation.ErrInvalidTimeRange, 2},
		{timeseries.MissingColumn(timeseries.ColumnQuantity), 2},
		{fmt.Errorf("sink kafka: %w", http.ErrHandlerTimeout), 1},
	}
	for _, tc := range cases {
		if got := exitCode(tc.err); got != tc.want {
			t.Fatalf("exitCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestAggregateUsageErrorsExitWithConfigCode(t *testing.T) {
	cases := []struct {
		name string
		args []string
	}{
		{"missing end", []string{"aggregate", "--beginning-date-time", "2020-01-03T00:00:00+0000"}},
		{"missing both", []string{"aggregate"}},
		{"unknown flag", []string{"aggregate", "--no-such-flag"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var logged string
			app := newApp(testLogger(&logged))
			app.Writer = io.Discard
			app.ErrWriter = io.Discard

			err := app.Run(append([]string{"metering-aggregations"}, tc.args...))
			if err == nil {
				t.Fatalf("expected an error")
			}
			if got := exitCode(err); got != 2 {
				t.Fatalf("exitCode(%v) = %d, want 2", err, got)
			}
		})
	}
}

func TestEveryFlagHasEnvBinding(t *testing.T) {
	var logged string
	app := newApp(testLogger(&logged))
	for _, cmd := range app.Commands {
		for _, flag := range cmd.Flags {
			bound, ok := flag.(interface{ GetEnvVars() []string })
			if !ok || len(bound.GetEnvVars()) == 0 {
				t.Fatalf("%s --%s has no env binding", cmd.Name, flag.Names()[0])
			}
		}
	}
}

func TestLoggingMiddlewareRecordsStatus(t *testing.T) {
	var logged string
	logger := testLogger(&logged)
	handler := loggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}), logger)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if resp.Code != http.StatusTeapot {
		t.Fatalf("expected 418, got %d", resp.Code)
	}
	if logged == "" {
		t.Fatalf("expected a log line")
	}
}

func TestNeedsDB(t *testing.T) {
	if needsDB(config.Config{Input: config.InputConfig{Source: config.InputCSV}, Sinks: []string{config.SinkStdout}}) {
		t.Fatalf("csv to stdout must not need a database")
	}
	if !needsDB(config.Config{Input: config.InputConfig{Source: config.InputCSV}, Sinks: []string{config.SinkPostgres}}) {
		t.Fatalf("postgres sink needs a database")
	}
}

type captureWriter struct{ out *string }

func (w captureWriter) Write(p []byte) (int, error) {
	*w.out += string(p)
	return len(p), nil
}

func testLogger(out *string) *log.Logger { return log.New(captureWriter{out: out}, "", 0) }
