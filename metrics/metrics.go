// Package metrics exposes Prometheus instrumentation for the oracle and a
// standalone metrics server listening apart from the API.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer serves the Prometheus scrape endpoint.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server for the given service name and listen
// address. An empty address disables the server.
func New(name, listenAddr string) (*MetricsServer, error) {
	if name == "" {
		return nil, fmt.Errorf("metrics server requires a service name")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &MetricsServer{
		srv: &http.Server{
			Addr:         listenAddr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}, nil
}

// ListenAndServe blocks serving the scrape endpoint.
func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

// Shutdown gracefully stops the metrics server.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}

// Metrics holds the oracle's instrument set. A nil *Metrics is valid and
// records nothing, which keeps tests free of registry collisions.
type Metrics struct {
	// Authorization outcomes by result (granted, reduced_assurance,
	// conflict, denied, failed).
	AuthorizationOutcome *prometheus.CounterVec

	// Gate check latencies by gate (otp, biometric).
	GateDuration *prometheus.HistogramVec

	// Ledger grant latency, submission through confirmation.
	GrantDuration prometheus.Histogram

	// Relayed governance events by kind.
	RelayEvents *prometheus.CounterVec

	// Currently attached live subscribers.
	RelaySubscribers prometheus.Gauge

	// Subscribers dropped for not keeping up with the event stream.
	RelayDropped prometheus.Counter
}

// NewMetrics registers and returns the oracle instrument set.
func NewMetrics() *Metrics {
	return &Metrics{
		AuthorizationOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "oracle_authorization_outcomes_total",
			Help: "Total authorization requests by outcome",
		}, []string{"outcome"}),

		GateDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "oracle_gate_duration_seconds",
			Help:    "Duration of identity gate checks by gate",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"gate"}),

		GrantDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "oracle_ledger_grant_duration_seconds",
			Help:    "Duration of ledger grant submission through confirmation",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60},
		}),

		RelayEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "oracle_relay_events_total",
			Help: "Total governance events relayed by kind",
		}, []string{"kind"}),

		RelaySubscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "oracle_relay_subscribers",
			Help: "Currently attached live event subscribers",
		}),

		RelayDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "oracle_relay_dropped_subscribers_total",
			Help: "Subscribers dropped for not keeping up with event delivery",
		}),
	}
}

// IncAuthorizationOutcome records one authorization result.
func (m *Metrics) IncAuthorizationOutcome(outcome string) {
	if m != nil {
		m.AuthorizationOutcome.WithLabelValues(outcome).Inc()
	}
}

// ObserveGateDuration records one gate check latency.
func (m *Metrics) ObserveGateDuration(gate string, d time.Duration) {
	if m != nil {
		m.GateDuration.WithLabelValues(gate).Observe(d.Seconds())
	}
}

// ObserveGrantDuration records one ledger grant latency.
func (m *Metrics) ObserveGrantDuration(d time.Duration) {
	if m != nil {
		m.GrantDuration.Observe(d.Seconds())
	}
}

// IncRelayEvent records one relayed event.
func (m *Metrics) IncRelayEvent(kind string) {
	if m != nil {
		m.RelayEvents.WithLabelValues(kind).Inc()
	}
}

// SetRelaySubscribers records the current subscriber count.
func (m *Metrics) SetRelaySubscribers(n int) {
	if m != nil {
		m.RelaySubscribers.Set(float64(n))
	}
}

// IncRelayDropped records one dropped subscriber.
func (m *Metrics) IncRelayDropped() {
	if m != nil {
		m.RelayDropped.Inc()
	}
}
