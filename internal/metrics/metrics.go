// Package metrics provides Prometheus instrumentation for the arbitrage engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SalesTotal counts sales recorded, partitioned by asset.
	SalesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_sales_total",
		Help: "Total number of sales recorded",
	}, []string{"asset"})

	// SaleRejections counts sales rejected before booking, by reason.
	SaleRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_sale_rejections_total",
		Help: "Sales rejected before booking",
	}, []string{"reason"})

	// DaysOpened counts operating days opened.
	DaysOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arb_days_opened_total",
		Help: "Total operating days opened",
	})

	// CyclesStarted counts cycles started.
	CyclesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arb_cycles_started_total",
		Help: "Total cycles started",
	})

	// VaultValue tracks the current total vault valuation in USD.
	VaultValue = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arb_vault_value_usd",
		Help: "Current total vault valuation in USD",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arb_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arb_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; the API surface is small enough
		// that cardinality stays bounded.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
