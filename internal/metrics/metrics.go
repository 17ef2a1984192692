package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "saarthi_portal",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	classifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "saarthi_portal",
			Name:      "session_classifications_total",
			Help:      "Derived session statuses by status label.",
		},
		[]string{"status"},
	)

	statusAnomalies = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "saarthi_portal",
			Name:      "status_anomalies_total",
			Help:      "Bookings seen with an unrecognized stored status.",
		},
	)

	reconcileOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "saarthi_portal",
			Name:      "reconcile_ops_total",
			Help:      "Booking list reconciliations by operation.",
		},
		[]string{"op"},
	)

	backendRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "saarthi_portal",
			Name:      "backend_requests_total",
			Help:      "Backend API calls by operation and result.",
		},
		[]string{"op", "result"},
	)

	riskFlags = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "saarthi_portal",
			Name:      "screening_risk_flags_total",
			Help:      "Screening submissions that raised a risk flag.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			classifications,
			statusAnomalies,
			reconcileOps,
			backendRequests,
			riskFlags,
		)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncClassification counts one derived session status.
func IncClassification(status string) {
	classifications.WithLabelValues(status).Inc()
}

// IncStatusAnomaly counts a booking with an unknown stored status.
func IncStatusAnomaly() {
	statusAnomalies.Inc()
}

// IncReconcile counts one reconciler operation (replace_all, upsert, remove).
func IncReconcile(op string) {
	reconcileOps.WithLabelValues(op).Inc()
}

// IncBackend counts one backend call outcome.
func IncBackend(op, result string) {
	backendRequests.WithLabelValues(op, result).Inc()
}

// IncRiskFlag counts a flagged screening.
func IncRiskFlag() {
	riskFlags.Inc()
}
