// Package metrics exposes Prometheus instrumentation for backtest runs and
// the API surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"coinsignal/internal/backtest"
)

// Compile-time interface check.
var _ backtest.Observer = (*Recorder)(nil)

// Recorder holds all Prometheus metrics of the service on a private
// registry.
type Recorder struct {
	registry *prometheus.Registry

	RunsTotal    *prometheus.CounterVec
	RunDuration  *prometheus.HistogramVec
	TradesPerRun *prometheus.HistogramVec
	Requests     *prometheus.CounterVec
	InFlight     prometheus.Gauge
}

// NewRecorder creates a Recorder with every metric registered, plus the Go
// runtime and process collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinsignal_backtest_runs_total",
				Help: "Total number of backtest runs by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),

		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coinsignal_backtest_duration_seconds",
				Help:    "Wall time of a backtest run including data loading",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"strategy"},
		),

		TradesPerRun: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coinsignal_backtest_trades",
				Help:    "Number of completed trades per successful run",
				Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100, 250, 500},
			},
			[]string{"strategy"},
		),

		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinsignal_api_requests_total",
				Help: "Total number of API requests by transport, route and status",
			},
			[]string{"transport", "route", "status"},
		),

		InFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "coinsignal_api_in_flight",
				Help: "Number of API requests currently being served",
			},
		),
	}

	r.registry.MustRegister(
		r.RunsTotal,
		r.RunDuration,
		r.TradesPerRun,
		r.Requests,
		r.InFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveRun implements backtest.Observer.
func (r *Recorder) ObserveRun(strategy, outcome string, elapsed time.Duration, trades int) {
	r.RunsTotal.WithLabelValues(strategy, outcome).Inc()
	r.RunDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
	if outcome == "ok" {
		r.TradesPerRun.WithLabelValues(strategy).Observe(float64(trades))
	}
}

// ObserveRequest counts one served API request.
func (r *Recorder) ObserveRequest(transport, route string, status int) {
	r.Requests.WithLabelValues(transport, route, strconv.Itoa(status)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }
