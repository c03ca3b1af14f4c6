package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// GatewayRequestsTotal counts outbound gateway attempts by path and outcome.
	GatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "settlement",
			Name:      "gateway_requests_total",
			Help:      "Outbound payment gateway requests by path and status class.",
		},
		[]string{"method", "path", "status"},
	)

	GatewayRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "settlement",
			Name:      "gateway_request_duration_seconds",
			Help:      "Latency of outbound payment gateway requests.",
			Buckets:   []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.8, 1.2, 2, 3, 5, 10},
		},
		[]string{"method", "path"},
	)

	GatewayRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "settlement",
			Name:      "gateway_retries_total",
			Help:      "Gateway requests retried after a transient status.",
		},
		[]string{"path", "status"},
	)

	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "settlement",
			Name:      "webhook_events_total",
			Help:      "Inbound gateway webhooks by result.",
		},
		[]string{"result"},
	)

	PaymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "settlement",
			Name:      "payments_total",
			Help:      "Payment outcomes by method and status.",
		},
		[]string{"method", "status"},
	)

	CommissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "settlement",
			Name:      "commissions_total",
			Help:      "Commission lifecycle events by action.",
		},
		[]string{"action"},
	)

	PartialFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "settlement",
			Name:      "partial_failures_total",
			Help:      "Downstream steps that failed after state was committed and need manual follow-up.",
		},
		[]string{"step"},
	)
)

func init() {
	prometheus.MustRegister(
		GatewayRequestsTotal,
		GatewayRequestDuration,
		GatewayRetriesTotal,
		WebhookEventsTotal,
		PaymentsTotal,
		CommissionsTotal,
		PartialFailuresTotal,
	)
}

// ObserveGateway records one gateway attempt.
func ObserveGateway(method, path, status string, seconds float64) {
	GatewayRequestsTotal.WithLabelValues(method, path, status).Inc()
	GatewayRequestDuration.WithLabelValues(method, path).Observe(seconds)
}

// IncRetry records a retried gateway request.
func IncRetry(path, status string) {
	GatewayRetriesTotal.WithLabelValues(path, status).Inc()
}

// IncWebhook records a webhook outcome.
func IncWebhook(result string) {
	WebhookEventsTotal.WithLabelValues(result).Inc()
}

// IncPayment records a payment outcome.
func IncPayment(method, status string) {
	PaymentsTotal.WithLabelValues(method, status).Inc()
}

// IncCommission records a commission lifecycle action.
func IncCommission(action string) {
	CommissionsTotal.WithLabelValues(action).Inc()
}

// IncPartialFailure records a downstream step left for manual reconciliation.
func IncPartialFailure(step string) {
	PartialFailuresTotal.WithLabelValues(step).Inc()
}
