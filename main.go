package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"metering-aggregations/internal/aggregation/application"
	"metering-aggregations/internal/aggregation/application/eventbus"
	aggregation "metering-aggregations/internal/aggregation/domain"
	aggregationinterfaces "metering-aggregations/internal/aggregation/interfaces"
	"metering-aggregations/internal/auth"
	"metering-aggregations/internal/config"
	timeseries "metering-aggregations/internal/timeseries/domain"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	if err := newApp(logger).Run(os.Args); err != nil {
		logger.Printf("error: %v", err)
		os.Exit(exitCode(err))
	}
}

func newApp(logger *log.Logger) *cli.App {
	return &cli.App{
		Name:         "metering-aggregations",
		Usage:        "Hourly consumption per energy supplier from metering time series",
		OnUsageError: usageError,
		Commands: []*cli.Command{
			aggregateCommand(logger),
			serveCommand(logger),
			tokenCommand(),
		},
	}
}

// Flag parsing problems are configuration errors.
func usageError(c *cli.Context, err error, isSubcommand bool) error {
	return fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
}

func requireFlags(c *cli.Context, names ...string) error {
	for _, name := range names {
		if strings.TrimSpace(c.String(name)) == "" {
			return fmt.Errorf("%w: flag --%s is required", config.ErrInvalidConfig, name)
		}
	}
	return nil
}

// Configuration, window and schema problems exit with 2, everything else with 1.
func exitCode(err error) int {
	switch {
	case errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, config.ErrInvalidDateTime),
		errors.Is(err, aggregation.ErrInvalidPeriod),
		errors.Is(err, aggregation.ErrInvalidTimeRange),
		errors.Is(err, timeseries.ErrSchemaMismatch):
		return 2
	default:
		return 1
	}
}

func sharedFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "input",
			Usage:   "Time series source (csv, postgres)",
			EnvVars: []string{"AGGREGATION_INPUT"},
		},
		&cli.StringFlag{
			Name:    "input-path",
			Usage:   "CSV snapshot path for --input csv",
			EnvVars: []string{"AGGREGATION_INPUT_PATH"},
		},
		&cli.StringFlag{
			Name:    "sink",
			Usage:   "Comma separated result sinks (postgres, sqlite, influxdb, kafka, stdout)",
			EnvVars: []string{"AGGREGATION_SINKS"},
		},
		&cli.IntFlag{
			Name:    "workers",
			Usage:   "Partitions summed concurrently",
			EnvVars: []string{"AGGREGATION_WORKERS"},
		},
	}
}

func aggregateCommand(logger *log.Logger) *cli.Command {
	flags := append([]cli.Flag{
		&cli.StringFlag{
			Name:    "beginning-date-time",
			Usage:   "Period start, e.g. 2020-01-03T00:00:00+0000 (required)",
			EnvVars: []string{"AGGREGATION_BEGINNING_DATE_TIME"},
		},
		&cli.StringFlag{
			Name:    "end-date-time",
			Usage:   "Period end, exclusive (required)",
			EnvVars: []string{"AGGREGATION_END_DATE_TIME"},
		},
		&cli.BoolFlag{
			Name:    "hourly",
			Usage:   "Write one result per UTC hour",
			EnvVars: []string{"AGGREGATION_HOURLY"},
		},
	}, sharedFlags()...)

	return &cli.Command{
		Name:         "aggregate",
		Usage:        "Run the hourly consumption supplier aggregation for a period",
		Flags:        flags,
		OnUsageError: usageError,
		Action: func(c *cli.Context) error {
			return runAggregate(c, logger)
		},
	}
}

func serveCommand(logger *log.Logger) *cli.Command {
	return &cli.Command{
		Name:         "serve",
		Usage:        "Serve the aggregation HTTP API",
		OnUsageError: usageError,
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "http-addr",
				Usage:   "Listen address",
				EnvVars: []string{"HTTP_ADDR"},
			},
		}, sharedFlags()...),
		Action: func(c *cli.Context) error {
			return runServe(c, logger)
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:         "token",
		Usage:        "Issue an API token signed with AUTH_JWT_SECRET",
		OnUsageError: usageError,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "role", Value: string(auth.RoleViewer), Usage: "viewer, operator or admin", EnvVars: []string{"AGGREGATION_TOKEN_ROLE"}},
			&cli.StringFlag{Name: "subject", Value: "cli", EnvVars: []string{"AGGREGATION_TOKEN_SUBJECT"}},
			&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour, EnvVars: []string{"AGGREGATION_TOKEN_TTL"}},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			token, err := auth.IssueJWT([]byte(cfg.JWTSecret), auth.Role(c.String("role")), c.String("subject"), c.Duration("ttl"))
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, token)
			return nil
		},
	}
}

func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	if c.IsSet("input") {
		cfg.Input.Source = c.String("input")
	}
	if c.IsSet("input-path") {
		cfg.Input.Path = c.String("input-path")
	}
	if c.IsSet("sink") {
		cfg.Sinks = config.SplitCSV(c.String("sink"))
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	if c.IsSet("hourly") {
		cfg.Hourly = c.Bool("hourly")
	}
	if c.IsSet("http-addr") {
		cfg.HTTPAddr = c.String("http-addr")
	}
	return cfg, cfg.Validate()
}

func runAggregate(c *cli.Context, logger *log.Logger) error {
	if err := requireFlags(c, "beginning-date-time", "end-date-time"); err != nil {
		return err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	period, err := config.ParsePeriod(c.String("beginning-date-time"), c.String("end-date-time"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := buildComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	svc, err := rt.service(cfg, logger)
	if err != nil {
		return err
	}

	start := time.Now()
	var results []application.Result
	if cfg.Hourly {
		results, err = svc.RunHourly(ctx, period)
	} else {
		var result application.Result
		result, err = svc.Run(ctx, period)
		results = append(results, result)
	}
	if err != nil {
		return err
	}

	groups := 0
	for _, result := range results {
		groups += len(result.Records)
	}
	logger.Printf("aggregate done: duration_ms=%d period_start=%s period_end=%s results=%d groups=%d sinks=%d",
		time.Since(start).Milliseconds(),
		period.Start.Format(time.RFC3339),
		period.End.Format(time.RFC3339),
		len(results),
		groups,
		rt.writer.Len(),
	)
	return nil
}

func runServe(c *cli.Context, logger *log.Logger) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := buildComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	svc, err := rt.service(cfg, logger)
	if err != nil {
		return err
	}
	handler, err := aggregationinterfaces.NewAggregationHandler(svc, rt.reader, logger)
	if err != nil {
		return err
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)
	authMiddleware.Logger = logger
	if cfg.JWTSecret == "" {
		logger.Printf("warning: AUTH_JWT_SECRET is empty; API requests will be rejected")
	}

	mux := http.NewServeMux()
	handler.Register(mux)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(authMiddleware.Wrap(mux), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("http listening on %s", cfg.HTTPAddr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Printf("http shutting down")
		return server.Shutdown(shutdownCtx)
	}
}

func newEventBus(logger *log.Logger) (eventbus.EventBus, error) {
	bus := eventbus.NewInMemoryBus()
	if err := aggregationinterfaces.NewAggregationCompletedConsumer(logger).Subscribe(bus); err != nil {
		return nil, err
	}
	return bus, nil
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
