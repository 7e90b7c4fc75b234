package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"metering-aggregations/internal/aggregation/application"
	aggregation "metering-aggregations/internal/aggregation/domain"
	"metering-aggregations/internal/aggregation/interfaces/export"
	"metering-aggregations/internal/auth"
	"metering-aggregations/internal/config"
	"metering-aggregations/internal/observability/metrics"
	timeseries "metering-aggregations/internal/timeseries/domain"
)

// BasePath is the root of the hourly consumption supplier routes.
const BasePath = "/api/v1/aggregations/hourly-consumption-supplier"

// Runner runs the aggregation job.
type Runner interface {
	Run(ctx context.Context, period aggregation.Period) (application.Result, error)
	RunHourly(ctx context.Context, period aggregation.Period) ([]application.Result, error)
}

// AggregationHandler serves job runs, stored results and exports.
type AggregationHandler struct {
	runner Runner
	reader application.ResultReader
	logger *log.Logger
}

// NewAggregationHandler constructs the handler.
func NewAggregationHandler(runner Runner, reader application.ResultReader, logger *log.Logger) (*AggregationHandler, error) {
	if runner == nil {
		return nil, errors.New("aggregation handler: nil runner")
	}
	if reader == nil {
		return nil, errors.New("aggregation handler: nil result reader")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &AggregationHandler{runner: runner, reader: reader, logger: logger}, nil
}

// Register mounts the routes on mux.
func (h *AggregationHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc(BasePath+"/run", h.handleRun)
	mux.HandleFunc(BasePath, h.handleGet)
	for _, format := range []string{export.FormatCSV, export.FormatXLSX, export.FormatPDF} {
		format := format
		mux.HandleFunc(BasePath+"/export."+format, func(w http.ResponseWriter, r *http.Request) {
			h.handleExport(w, r, format)
		})
	}
}

type runRequest struct {
	PeriodStart string `json:"periodStart"`
	PeriodEnd   string `json:"periodEnd"`
	Hourly      bool   `json:"hourly"`
}

type recordResponse struct {
	GridArea                string `json:"gridArea"`
	EnergySupplier          string `json:"energySupplier"`
	BalanceResponsibleParty string `json:"balanceResponsibleParty"`
	SumQuantity             string `json:"sumQuantity"`
}

type resultResponse struct {
	PeriodStart string           `json:"periodStart"`
	PeriodEnd   string           `json:"periodEnd"`
	ComputedAt  string           `json:"computedAt"`
	Records     []recordResponse `json:"records"`
}

func (h *AggregationHandler) handleRun(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() { metrics.ObserveHTTP("run", result) }()

	if r.Method != http.MethodPost {
		result = metrics.ResultError
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		result = metrics.ResultError
		h.logger.Printf("aggregation run: read body error: %v", err)
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req runRequest
	if err := json.Unmarshal(body, &req); err != nil {
		result = metrics.ResultError
		h.logger.Printf("aggregation run: decode error: %v", err)
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	period, err := config.ParsePeriod(req.PeriodStart, req.PeriodEnd)
	if err != nil {
		result = metrics.ResultError
		h.writeError(w, "aggregation run", err)
		return
	}

	var results []application.Result
	if req.Hourly {
		results, err = h.runner.RunHourly(r.Context(), period)
	} else {
		var single application.Result
		single, err = h.runner.Run(r.Context(), period)
		results = []application.Result{single}
	}
	if err != nil {
		result = metrics.ResultError
		h.writeError(w, "aggregation run", err)
		return
	}

	resp := make([]resultResponse, 0, len(results))
	for i := range results {
		resp = append(resp, toResponse(&results[i]))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "results": resp})

	h.logger.Printf("aggregation_run_http subject=%s duration_ms=%d period_start=%s period_end=%s hourly=%t results=%d result=%s",
		auth.SubjectFromContext(r.Context()),
		time.Since(start).Milliseconds(),
		period.Start.Format(time.RFC3339),
		period.End.Format(time.RFC3339),
		req.Hourly,
		len(results),
		result,
	)
}

func (h *AggregationHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	result := metrics.ResultSuccess
	defer func() { metrics.ObserveHTTP("get", result) }()

	if r.Method != http.MethodGet {
		result = metrics.ResultError
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	stored, err := h.lookup(r)
	if err != nil {
		result = metrics.ResultError
		h.writeError(w, "aggregation get", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toResponse(stored))
}

func (h *AggregationHandler) handleExport(w http.ResponseWriter, r *http.Request, format string) {
	result := metrics.ResultSuccess
	defer func() { metrics.ObserveExport(format, result) }()

	if r.Method != http.MethodGet {
		result = metrics.ResultError
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	stored, err := h.lookup(r)
	if err != nil {
		result = metrics.ResultError
		h.writeError(w, "aggregation export", err)
		return
	}
	data, err := export.Build(format, stored)
	if err != nil {
		result = metrics.ResultError
		h.writeError(w, "aggregation export", err)
		return
	}

	filename := fmt.Sprintf("hourly_consumption_supplier_%s.%s", stored.Period.Start.UTC().Format("20060102T150405Z"), format)
	w.Header().Set("Content-Type", export.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(data)
}

func (h *AggregationHandler) lookup(r *http.Request) (*application.Result, error) {
	query := r.URL.Query()
	period, err := config.ParsePeriod(queryTime(query.Get("periodStart")), queryTime(query.Get("periodEnd")))
	if err != nil {
		return nil, err
	}
	return h.reader.FindByPeriod(r.Context(), period)
}

// An unescaped "+0100" offset arrives as " 0100".
func queryTime(value string) string {
	return strings.ReplaceAll(value, " ", "+")
}

func (h *AggregationHandler) writeError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Printf("%s: error: %v", op, err)
	}
	http.Error(w, err.Error(), status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, config.ErrInvalidDateTime),
		errors.Is(err, aggregation.ErrInvalidPeriod),
		errors.Is(err, aggregation.ErrInvalidTimeRange):
		return http.StatusBadRequest
	case errors.Is(err, aggregation.ErrResultNotFound):
		return http.StatusNotFound
	case errors.Is(err, timeseries.ErrSchemaMismatch):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func toResponse(result *application.Result) resultResponse {
	resp := resultResponse{
		PeriodStart: result.Period.Start.UTC().Format(time.RFC3339),
		PeriodEnd:   result.Period.End.UTC().Format(time.RFC3339),
		Records:     make([]recordResponse, 0, len(result.Records)),
	}
	if !result.ComputedAt.IsZero() {
		resp.ComputedAt = result.ComputedAt.UTC().Format(time.RFC3339)
	}
	for _, rec := range result.Records {
		resp.Records = append(resp.Records, recordResponse{
			GridArea:                rec.GridArea,
			EnergySupplier:          rec.EnergySupplier,
			BalanceResponsibleParty: rec.BalanceResponsibleParty,
			SumQuantity:             rec.SumQuantity.String(),
		})
	}
	return resp
}
