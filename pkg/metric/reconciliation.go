package metric

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var _ Reconciliation = (*reconciliationMetrics)(nil)

type reconciliationMetrics struct {
	created      *prometheus.CounterVec
	createFailed *prometheus.CounterVec
	webhooks     *prometheus.CounterVec
	classified   *prometheus.CounterVec
	duration     *prometheus.HistogramVec
}

func newReconciliationMetrics(reg prometheus.Registerer) *reconciliationMetrics {
	created := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_intents_created_total",
			Help: "Payment intents created, labelled by content code attempts used",
		},
		[]string{"attempts"},
	)

	createFailed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_intent_create_failures_total",
			Help: "Payment intent creations that failed",
		},
		[]string{"reason"},
	)

	webhooks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhooks_total",
			Help: "Gateway webhook deliveries by reconciliation outcome",
		},
		[]string{"outcome"},
	)

	classified := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_intents_classified_total",
			Help: "Reconciled payment intents by resulting status",
		},
		[]string{"status"},
	)

	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_operation_duration_seconds",
			Help:    "Duration of reconciliation engine operations in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0},
		},
		[]string{"operation"},
	)

	reg.MustRegister(created, createFailed, webhooks, classified, duration)

	return &reconciliationMetrics{
		created:      created,
		createFailed: createFailed,
		webhooks:     webhooks,
		classified:   classified,
		duration:     duration,
	}
}

func (m *reconciliationMetrics) Created(attempts int) {
	m.created.WithLabelValues(strconv.Itoa(attempts)).Inc()
}

func (m *reconciliationMetrics) CreateFailed(reason string) {
	m.createFailed.WithLabelValues(reason).Inc()
}

func (m *reconciliationMetrics) Webhook(outcome string) {
	m.webhooks.WithLabelValues(outcome).Inc()
}

func (m *reconciliationMetrics) Classified(status string) {
	m.classified.WithLabelValues(status).Inc()
}

func (m *reconciliationMetrics) ObserveDuration(operation string, duration time.Duration) {
	m.duration.WithLabelValues(operation).Observe(duration.Seconds())
}
