package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Counter: script cache lookups by result (hit | miss | error).
	ScriptCacheResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "script_cache_results_total",
			Help: "Script cache lookups by result.",
		},
		[]string{"result"},
	)

	// Counter: completion calls by outcome (ok | rate_limited | unconfigured | upstream_error).
	CompletionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_completions_total",
			Help: "LLM completion calls by outcome.",
		},
		[]string{"outcome"},
	)

	// Counter: sandbox executions by outcome (ok | compile | timeout | runtime).
	ScriptExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "script_executions_total",
			Help: "Sandboxed script executions by outcome.",
		},
		[]string{"outcome"},
	)

	// Histogram: sandbox wall-clock time in seconds.
	ScriptDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "script_duration_seconds",
			Help:    "Wall-clock time spent executing generated scripts.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 20, 30},
		},
	)

	// Histogram: HTTP latency in seconds.
	HTTPLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"route", "method", "status_code"},
	)
)

// Register is called once in main() to register metrics.
func Register() {
	prometheus.MustRegister(
		ScriptCacheResultsTotal,
		CompletionsTotal,
		ScriptExecutionsTotal,
		ScriptDurationSeconds,
		HTTPLatencySeconds,
	)
}

// Handler exposes the /metrics endpoint for Prometheus to scrape.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware measures latency for each HTTP request, labelled by route
// pattern so path parameters don't explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rec := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}

		HTTPLatencySeconds.
			WithLabelValues(route, r.Method, strconv.Itoa(rec.statusCode)).
			Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
