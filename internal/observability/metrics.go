// Package observability provides Prometheus metrics and structured logging.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Operation metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	RejectedOps       *prometheus.CounterVec

	// Market metrics
	TokensSold      prometheus.Counter
	TokensRedeemed  prometheus.Counter
	TokensBurned    prometheus.Counter
	WeiSpent        *prometheus.CounterVec
	FeesPaid        *prometheus.CounterVec
	RoundTransition *prometheus.CounterVec

	// State gauges
	CurrentRound prometheus.Gauge
	OpenOrders   prometheus.Gauge
	Referrals    prometheus.Gauge

	// Store metrics
	StoreDuration *prometheus.HistogramVec
	StoreErrors   *prometheus.CounterVec

	// Stream metrics
	StreamClients prometheus.Gauge
	EventsTotal   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith registers the metrics with reg. Tests pass a fresh registry.
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "acdm_platform"
	}
	f := promauto.With(reg)

	return &Metrics{
		OperationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "platform",
			Name:      "operations_total",
			Help:      "Total number of committed platform operations",
		}, []string{"operation"}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "platform",
			Name:      "operation_duration_seconds",
			Help:      "Platform operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		RejectedOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "platform",
			Name:      "rejected_operations_total",
			Help:      "Total number of rejected operations by error kind",
		}, []string{"operation", "kind"}),

		TokensSold: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "tokens_sold_total",
			Help:      "Total number of tokens sold in sale rounds",
		}),
		TokensRedeemed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "tokens_redeemed_total",
			Help:      "Total number of tokens bought from orders",
		}),
		TokensBurned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "tokens_burned_total",
			Help:      "Total number of unsold tokens burned",
		}),
		WeiSpent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "wei_spent_total",
			Help:      "Total coin volume by fill kind, in wei",
		}, []string{"kind"}),
		FeesPaid: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "fees_paid_wei_total",
			Help:      "Total payouts by reason, in wei",
		}, []string{"kind", "reason"}),
		RoundTransition: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rounds",
			Name:      "transitions_total",
			Help:      "Total number of started rounds by kind",
		}, []string{"kind"}),

		CurrentRound: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rounds",
			Name:      "current_number",
			Help:      "Cycle number of the current round",
		}),
		OpenOrders: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "open",
			Help:      "Number of open orders",
		}),
		Referrals: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "referrals",
			Name:      "registered",
			Help:      "Number of registered participants",
		}),

		StoreDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Store write duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"store", "operation"}),
		StoreErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of store errors",
		}, []string{"store", "operation"}),

		StreamClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "clients",
			Help:      "Number of connected event stream clients",
		}),
		EventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "events_total",
			Help:      "Total number of published events by type",
		}, []string{"type"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordOperation records a committed operation and its duration.
func (m *Metrics) RecordOperation(op string, seconds float64) {
	m.OperationsTotal.WithLabelValues(op).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(seconds)
}

// RecordRejected records an operation rejected with an error of the given kind.
func (m *Metrics) RecordRejected(op, kind string) {
	m.RejectedOps.WithLabelValues(op, kind).Inc()
}

// RecordFill records the volume and payouts of one purchase or redemption.
// Amounts above float64 precision are approximated.
func (m *Metrics) RecordFill(kind string, tokens, cost float64, fees map[string]float64) {
	if kind == "purchase" {
		m.TokensSold.Add(tokens)
	} else {
		m.TokensRedeemed.Add(tokens)
	}
	m.WeiSpent.WithLabelValues(kind).Add(cost)
	for reason, v := range fees {
		m.FeesPaid.WithLabelValues(kind, reason).Add(v)
	}
}

// RecordRoundStarted records a round transition.
func (m *Metrics) RecordRoundStarted(kind string, number int, burned float64) {
	m.RoundTransition.WithLabelValues(kind).Inc()
	m.CurrentRound.Set(float64(number))
	if burned > 0 {
		m.TokensBurned.Add(burned)
	}
}

// UpdateState updates the state gauges.
func (m *Metrics) UpdateState(openOrders, referrals int) {
	m.OpenOrders.Set(float64(openOrders))
	m.Referrals.Set(float64(referrals))
}

// RecordStoreWrite records store write metrics.
func (m *Metrics) RecordStoreWrite(store, operation string, seconds float64, err error) {
	m.StoreDuration.WithLabelValues(store, operation).Observe(seconds)
	if err != nil {
		m.StoreErrors.WithLabelValues(store, operation).Inc()
	}
}

// RecordEvent counts a published stream event.
func (m *Metrics) RecordEvent(eventType string) {
	m.EventsTotal.WithLabelValues(eventType).Inc()
}
