// Package metrics exposes Prometheus metrics for the marketplace backend.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns every collector the service records into.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	transitions      *prometheus.CounterVec
	ledgerMovements  *prometheus.CounterVec
	ledgerAmount     *prometheus.CounterVec
	reliabilityScore prometheus.Histogram

	chatDelivered   prometheus.Counter
	chatDuplicates  prometheus.Counter
	chatSubscribers prometheus.Gauge

	profilesBootstrapped prometheus.Counter

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var globalManager = NewManager() //nolint:gochecknoglobals // process-wide metrics

// NewManager creates a Manager registered on its own registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "campusgig",
		subsystem:        "marketplace",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.transitions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "task_transitions_total",
		Help:      "Lifecycle operations by operation and outcome",
	}, []string{"operation", "outcome"})

	m.ledgerMovements = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ledger_movements_total",
		Help:      "Escrow ledger movements by kind and outcome",
	}, []string{"kind", "outcome"})

	m.ledgerAmount = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ledger_amount_minor_total",
		Help:      "Sum of committed escrow movements in minor currency units",
	}, []string{"kind"})

	m.reliabilityScore = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reliability_score",
		Help:      "Freelancer reliability scores after each completed task",
		Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
	})

	m.chatDelivered = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "chat_messages_delivered_total",
		Help:      "Chat messages handed to subscribers",
	})

	m.chatDuplicates = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "chat_messages_duplicate_total",
		Help:      "Chat deliveries dropped because the subscriber already saw the message",
	})

	m.chatSubscribers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "chat_subscribers",
		Help:      "Currently registered chat consumers",
	})

	m.profilesBootstrapped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "profiles_bootstrapped_total",
		Help:      "Profiles or wallets created on first session",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status code",
	}, []string{"route", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   m.histogramBuckets,
	}, []string{"route", "method", "status_code"})
}

// Handler serves the manager's registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the registry the manager's collectors live on.
func (m *Manager) Registry() *prometheus.Registry { return m.registry }

// Handler serves the global registry.
func Handler() http.Handler { return globalManager.Handler() }

// GetRegistry returns the global registry.
func GetRegistry() *prometheus.Registry { return globalManager.registry }

// RecordTransition counts a lifecycle operation outcome ("ok" or an error kind).
func RecordTransition(operation, outcome string) {
	globalManager.transitions.WithLabelValues(operation, outcome).Inc()
}

// RecordLedgerMovement counts an escrow movement and, when committed, its amount.
func RecordLedgerMovement(kind, outcome string, amountMinor int64) {
	globalManager.ledgerMovements.WithLabelValues(kind, outcome).Inc()
	if outcome == "ok" {
		globalManager.ledgerAmount.WithLabelValues(kind).Add(float64(amountMinor))
	}
}

// ObserveReliabilityScore records a freshly computed score.
func ObserveReliabilityScore(score int) {
	globalManager.reliabilityScore.Observe(float64(score))
}

// RecordChatDelivered counts a message handed to a consumer.
func RecordChatDelivered() { globalManager.chatDelivered.Inc() }

// RecordChatDuplicate counts a dropped duplicate delivery.
func RecordChatDuplicate() { globalManager.chatDuplicates.Inc() }

// AddChatSubscribers moves the subscriber gauge by delta.
func AddChatSubscribers(delta int) { globalManager.chatSubscribers.Add(float64(delta)) }

// RecordProfileBootstrapped counts a profile or wallet row created on first session.
func RecordProfileBootstrapped() { globalManager.profilesBootstrapped.Inc() }

// RecordHTTPRequest counts a request and observes its latency.
func RecordHTTPRequest(route, method, statusCode string, seconds float64) {
	globalManager.httpRequests.WithLabelValues(route, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(route, method, statusCode).Observe(seconds)
}
