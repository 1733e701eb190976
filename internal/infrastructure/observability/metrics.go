package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Payment metrics
	PaymentsTotal   *prometheus.CounterVec
	PaymentDuration *prometheus.HistogramVec
	PaymentErrors   *prometheus.CounterVec

	// Payout metrics
	PayoutsTotal      *prometheus.CounterVec
	PayoutAmount      *prometheus.HistogramVec
	PayoutDuration    *prometheus.HistogramVec
	PayoutRetries     *prometheus.CounterVec
	PayoutsInProgress prometheus.Gauge
	DuplicateClaims   *prometheus.CounterVec

	// Dispute metrics
	DisputesClosed *prometheus.CounterVec

	// Provider metrics
	ProviderRequests       *prometheus.CounterVec
	ProviderDuration       *prometheus.HistogramVec
	CircuitBreakerState    *prometheus.GaugeVec
	CircuitBreakerRequests *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Worker metrics
	WorkerTasksProcessed     *prometheus.CounterVec
	WorkerProcessingDuration *prometheus.HistogramVec

	// Webhook metrics
	WebhookEvents *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics against the given registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := prometheus.WrapRegistererWith(nil, reg)

	m := &Metrics{
		PaymentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payments_total",
				Help:      "Total number of payment transitions by operation and status",
			},
			[]string{"operation", "status"},
		),
		PaymentDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "payment_duration_seconds",
				Help:      "Payment operation duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"operation", "status"},
		),
		PaymentErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payment_errors_total",
				Help:      "Total number of payment errors",
			},
			[]string{"operation", "error_type"},
		),
		PayoutsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payouts_total",
				Help:      "Total number of payout attempts by direction and outcome",
			},
			[]string{"direction", "outcome"},
		),
		PayoutAmount: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "payout_amount_pi",
				Help:      "Disbursed amount per payout in Pi",
				Buckets:   []float64{0.1, 1, 5, 10, 50, 100, 500, 1000},
			},
			[]string{"direction"},
		),
		PayoutDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "payout_duration_seconds",
				Help:      "Payout flow duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"direction", "outcome"},
		),
		PayoutRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payout_retries_total",
				Help:      "Total number of scheduled payout retries",
			},
			[]string{"reason"},
		),
		PayoutsInProgress: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "payouts_in_progress",
				Help:      "Number of currently claimed payout attempts",
			},
		),
		DuplicateClaims: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payout_duplicate_claims_total",
				Help:      "Payout claims deflected by the ledger",
			},
			[]string{"outcome"},
		),
		DisputesClosed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "disputes_closed_total",
				Help:      "Total number of disputes closed by terminal status",
			},
			[]string{"status"},
		),
		ProviderRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_requests_total",
				Help:      "Total number of Pi platform API requests",
			},
			[]string{"endpoint", "status"},
		),
		ProviderDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_request_duration_seconds",
				Help:      "Pi platform API request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
		CircuitBreakerRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_requests_total",
				Help:      "Total number of circuit breaker requests",
			},
			[]string{"name", "result"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		WorkerTasksProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "worker_tasks_processed_total",
				Help:      "Total number of retry tasks processed by the worker",
			},
			[]string{"status"},
		),
		WorkerProcessingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "worker_processing_duration_seconds",
				Help:      "Retry task processing duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"status"},
		),
		WebhookEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_events_total",
				Help:      "Total number of webhook events by type and result",
			},
			[]string{"event_type", "result"},
		),
	}

	// Register all collectors
	factory.MustRegister(
		m.PaymentsTotal,
		m.PaymentDuration,
		m.PaymentErrors,
		m.PayoutsTotal,
		m.PayoutAmount,
		m.PayoutDuration,
		m.PayoutRetries,
		m.PayoutsInProgress,
		m.DuplicateClaims,
		m.DisputesClosed,
		m.ProviderRequests,
		m.ProviderDuration,
		m.CircuitBreakerState,
		m.CircuitBreakerRequests,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.WorkerTasksProcessed,
		m.WorkerProcessingDuration,
		m.WebhookEvents,
	)

	return m
}
