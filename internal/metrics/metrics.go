package metrics

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"code", "method", "path"},
	)
	httpRequestsDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current Number of HTTP requests being processed.",
		},
	)

	cartsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "carts_created_total",
			Help: "Total number of carts created.",
		},
	)
	cartsConvertedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "carts_converted_total",
			Help: "Total number of carts converted to orders.",
		},
	)
	cartsAbandonedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "carts_abandoned_total",
			Help: "Total number of carts marked abandoned by the sweep.",
		},
	)
	cartsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "carts_expired_total",
			Help: "Total number of carts expired by the sweep.",
		},
	)
	cartMergesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cart_merges_total",
			Help: "Total number of completed cart merges.",
		},
	)
	checkoutFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_failures_total",
			Help: "Total number of failed checkouts by reason.",
		},
		[]string{"reason"},
	)
	versionConflictRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cart_version_conflict_retries_total",
			Help: "Total number of optimistic-lock retries on cart writes.",
		},
	)
)

func init() {
	if err := prometheus.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		slog.Debug("ProcessCollector registration skipped (likely already registered)",
			slog.String("error", err.Error()))
	}

	if err := prometheus.Register(collectors.NewGoCollector()); err != nil {
		slog.Debug("GoCollector registration skipped (likely already registered)",
			slog.String("error", err.Error()))
	}
}

func CartCreated()           { cartsCreatedTotal.Inc() }
func CartConverted()         { cartsConvertedTotal.Inc() }
func CartMerged()            { cartMergesTotal.Inc() }
func VersionConflictRetry()  { versionConflictRetries.Inc() }
func CartsAbandoned(n int64) { cartsAbandonedTotal.Add(float64(n)) }
func CartsExpired(n int64)   { cartsExpiredTotal.Add(float64(n)) }

func CheckoutFailed(reason string) {
	checkoutFailuresTotal.WithLabelValues(reason).Inc()
}

// wrapper around http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{w, http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()

		rw := newResponseWriter(w)

		pathPattern := r.URL.Path
		if itemID := r.PathValue("itemId"); itemID != "" {
			pathPattern = "/api/v1/carts/{id}/items/{itemId}"
		} else if id := r.PathValue("id"); id != "" {
			pathPattern = r.URL.Path[:len(r.URL.Path)-len(id)] + "{id}"
		}

		defer func() {
			duration := time.Since(start)
			statusCodeStr := strconv.Itoa(rw.statusCode)

			httpRequestsTotal.WithLabelValues(statusCodeStr, r.Method, pathPattern).Inc()
			httpRequestsDuration.WithLabelValues(r.Method, pathPattern).Observe(duration.Seconds())
			httpRequestsInFlight.Dec()
		}()

		next.ServeHTTP(rw, r)
	})
}

// http.Handler for the Prometheus /metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
