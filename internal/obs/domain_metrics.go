package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CalculateTotal counts calculate-shipping outcomes by result code.
	CalculateTotal *prometheus.CounterVec
	// CalculateServices observes how many shipping services a calculation returned.
	CalculateServices prometheus.Histogram
	// TagWebhookTotal counts store webhook outcomes.
	TagWebhookTotal *prometheus.CounterVec
	// PostalLookupTotal counts address resolutions by the source that answered.
	PostalLookupTotal *prometheus.CounterVec
	// UpstreamDuration records outbound API latency in milliseconds.
	UpstreamDuration *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CalculateTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calculate_total",
			Help:      "Count of calculate-shipping requests by result.",
		}, []string{"result"}))
		CalculateServices = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "calculate_services",
			Help:      "Number of shipping services returned per calculation.",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32},
		}))
		TagWebhookTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tag_webhook_total",
			Help:      "Count of store webhooks by outcome.",
		}, []string{"result"}))
		PostalLookupTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "postal_lookup_total",
			Help:      "Count of address resolutions by answering source.",
		}, []string{"source"}))
		UpstreamDuration = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_ms",
			Help:      "Latency of outbound API calls in milliseconds.",
			Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"upstream", "operation", "result"}))
	})
}

// IncCalculate records one calculate outcome when metrics are registered.
func IncCalculate(result string) {
	if CalculateTotal != nil {
		CalculateTotal.WithLabelValues(result).Inc()
	}
}

// IncTagWebhook records one webhook outcome when metrics are registered.
func IncTagWebhook(result string) {
	if TagWebhookTotal != nil {
		TagWebhookTotal.WithLabelValues(result).Inc()
	}
}

// IncPostalLookup records which source resolved an address.
func IncPostalLookup(source string) {
	if PostalLookupTotal != nil {
		PostalLookupTotal.WithLabelValues(source).Inc()
	}
}

// ObserveUpstream records the latency of one outbound call.
func ObserveUpstream(upstream, operation, result string, ms float64) {
	if UpstreamDuration != nil {
		UpstreamDuration.WithLabelValues(upstream, operation, result).Observe(ms)
	}
}
