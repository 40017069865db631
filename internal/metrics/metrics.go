// Package metrics provides Prometheus instrumentation for the staking ledger.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// StakesTotal counts committed stakes, partitioned by stance.
	StakesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oddsrow_stakes_total",
		Help: "Total number of stakes committed",
	}, []string{"stance"})

	// StakePoints tracks the cumulative points staked, by stance.
	StakePoints = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oddsrow_stake_points_total",
		Help: "Cumulative points staked",
	}, []string{"stance"})

	// StakeRejections counts stakes rejected by a business rule.
	StakeRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oddsrow_stake_rejections_total",
		Help: "Stakes rejected by a business rule",
	}, []string{"reason"})

	// SettlementsTotal counts resolved predictions, partitioned by outcome.
	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oddsrow_settlements_total",
		Help: "Total number of predictions resolved",
	}, []string{"outcome"})

	// PointsDestroyed counts points removed from circulation at settlement
	// (zero-winner pools and flooring residue).
	PointsDestroyed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oddsrow_points_destroyed_total",
		Help: "Points destroyed at settlement",
	})

	// LedgerTxDuration tracks ledger transaction latency by operation.
	LedgerTxDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "oddsrow_ledger_tx_duration_seconds",
		Help:    "Ledger transaction duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "oddsrow_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oddsrow_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "oddsrow_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})

	// SweepRuns counts sweeper passes, partitioned by result.
	SweepRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oddsrow_sweep_runs_total",
		Help: "Deadline sweeper passes",
	}, []string{"result"})
)

// StanceLabel maps a stance flag to its metric label.
func StanceLabel(stance bool) string {
	if stance {
		return "yes"
	}
	return "no"
}

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

		// The ServeMux fills in r.Pattern during routing, so the path label
		// stays bounded ("/api/predictions/{id}", not one value per ID).
		// Patterns carry a method prefix; strip it since method is its own
		// label. Unmatched requests collapse into a single value.
		path := r.Pattern
		if i := strings.IndexByte(path, ' '); i >= 0 {
			path = path[i+1:]
		}
		if path == "" {
			path = "unmatched"
		}
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
