package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Runs
	RunsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scaffoldgen_runs_created_total",
			Help: "Total number of generation runs created",
		},
	)
	RunStatusChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scaffoldgen_run_status_changes_total",
			Help: "Number of run status transitions",
		},
		[]string{"to"},
	)
	ActiveRuns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scaffoldgen_runs_active",
			Help: "Current number of runs being generated",
		},
	)
	RunDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scaffoldgen_run_duration_seconds",
			Help:    "Histogram of run durations in seconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 9), // 5s..1280s
		},
	)
	StageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scaffoldgen_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: prometheus.ExponentialBuckets(1, 2, 9),
		},
		[]string{"stage", "result"},
	)

	// LLM
	LLMRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scaffoldgen_llm_requests_total",
			Help: "Number of model calls by provider and stage",
		},
		[]string{"model", "stage"},
	)
	LLMRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scaffoldgen_llm_rate_limit_retries_total",
			Help: "Number of backoff retries after a rate limit",
		},
		[]string{"stage"},
	)
	LLMTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scaffoldgen_llm_tokens_total",
			Help: "Tokens consumed by stage",
		},
		[]string{"stage"},
	)

	// Response interpretation
	ParseOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scaffoldgen_parse_outcomes_total",
			Help: "Interpretation results by strategy",
		},
		[]string{"strategy", "result"}, // result: accepted|rejected|failed
	)

	// Validation
	ValidationRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scaffoldgen_validation_runs_total",
			Help: "Number of validation checks by check and result",
		},
		[]string{"check", "result"}, // result: pass|warn|fail
	)
	ValidationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scaffoldgen_validation_duration_seconds",
			Help:    "Duration of validation runs",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"check"},
	)

	// Build
	BuildRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scaffoldgen_build_requests_total",
			Help: "Build verifications by result",
		},
		[]string{"result"},
	)

	// DB / file storage ops
	DBFileOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scaffoldgen_db_ops_total",
			Help: "Storage operations performed",
		},
		[]string{"store", "op"}, // op: get|put|delete|list|count
	)

	// HTTP
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scaffoldgen_http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scaffoldgen_http_requests_total",
			Help: "Total number of HTTP requests processed.",
		},
		[]string{"method", "path"},
	)
	HTTPErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scaffoldgen_http_errors_total",
			Help: "Total number of HTTP request errors.",
		},
		[]string{"method", "path", "status"},
	)

	// Websockets / realtime
	WebsocketConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scaffoldgen_ws_connections",
			Help: "Current number of open websocket connections",
		},
	)
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scaffoldgen_progress_events_total",
			Help: "Progress events delivered by sink",
		},
		[]string{"sink"},
	)

	// Errors
	Errors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scaffoldgen_errors_total",
			Help: "Errors encountered in components",
		},
		[]string{"component", "type"},
	)
)

func init() {
	prometheus.MustRegister(
		// Runs
		RunsCreated,
		RunStatusChanges,
		ActiveRuns,
		RunDurationSeconds,
		StageDurationSeconds,
		// LLM
		LLMRequests,
		LLMRetries,
		LLMTokens,
		// Parse
		ParseOutcomes,
		// Validation
		ValidationRuns,
		ValidationDurationSeconds,
		// Build
		BuildRequests,
		// DB
		DBFileOps,
		// HTTP
		HTTPRequestDuration,
		HTTPRequests,
		HTTPErrors,
		// WS
		WebsocketConnections,
		EventsPublished,
		// Errors
		Errors,
	)
}

// NewServer returns the metrics endpoint server. Callers own its lifecycle.
func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
}

// Serve runs srv until ctx is done.
func Serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Runs
func IncRunsCreated() {
	RunsCreated.Inc()
}

func IncRunStatusChange(to string) {
	RunStatusChanges.WithLabelValues(to).Inc()
}

func IncActiveRuns() {
	ActiveRuns.Inc()
}

func DecActiveRuns() {
	ActiveRuns.Dec()
}

func ObserveRunDuration(d time.Duration) {
	RunDurationSeconds.Observe(d.Seconds())
}

func ObserveStageDuration(stage, result string, d time.Duration) {
	StageDurationSeconds.WithLabelValues(stage, result).Observe(d.Seconds())
}

// LLM
func IncLLMRequest(model, stage string) {
	LLMRequests.WithLabelValues(model, stage).Inc()
}

func IncLLMRetry(stage string) {
	LLMRetries.WithLabelValues(stage).Inc()
}

func AddLLMTokens(stage string, n int) {
	if n > 0 {
		LLMTokens.WithLabelValues(stage).Add(float64(n))
	}
}

// Parse
func IncParseOutcome(strategy, result string) {
	ParseOutcomes.WithLabelValues(strategy, result).Inc()
}

func AddParseOutcome(strategy, result string, n int) {
	if n > 0 {
		ParseOutcomes.WithLabelValues(strategy, result).Add(float64(n))
	}
}

// Validation
func IncValidationRun(check, result string) {
	ValidationRuns.WithLabelValues(check, result).Inc()
}

func ObserveValidationDuration(check string, d time.Duration) {
	ValidationDurationSeconds.WithLabelValues(check).Observe(d.Seconds())
}

// Build
func IncBuildRequest(result string) {
	BuildRequests.WithLabelValues(result).Inc()
}

// DB / file ops
func IncDBFileOp(store, op string) {
	DBFileOps.WithLabelValues(store, op).Inc()
}

// HTTP
func ObserveHTTPRequest(method, path string, status int, d time.Duration) {
	code := strconv.Itoa(status)
	HTTPRequests.WithLabelValues(method, path).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, code).Observe(d.Seconds())
	if status >= 400 {
		HTTPErrors.WithLabelValues(method, path, code).Inc()
	}
}

// Websocket
func IncWSConnections() {
	WebsocketConnections.Inc()
}

func DecWSConnections() {
	WebsocketConnections.Dec()
}

func IncEventPublished(sink string) {
	EventsPublished.WithLabelValues(sink).Inc()
}

// Errors
func IncError(component, typ string) {
	Errors.WithLabelValues(component, typ).Inc()
}
