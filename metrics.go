package ddns

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts update outcomes and provider failures.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	failures *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ddns",
			Name:      "update_requests_total",
			Help:      "Update requests by terminal result.",
		}, []string{"result"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ddns",
			Name:      "provider_failures_total",
			Help:      "Failed provider calls by stage and error kind.",
		}, []string{"stage", "kind"}),
	}
	m.registry.MustRegister(m.requests, m.failures)
	return m
}

// Handler serves the collected metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) request(result string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(result).Inc()
}

func (m *Metrics) providerFailure(stage string, kind ErrorKind) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(stage, metricKind(kind)).Inc()
}

// metricKind folds free-form provider messages into one label value.
func metricKind(kind ErrorKind) string {
	switch kind {
	case ErrVerifyFailed, ErrAPIFailed, ErrUpdateFailed:
		return string(kind)
	}
	if strings.HasPrefix(string(kind), "CF_") {
		return "CF_OTHER"
	}
	return string(kind)
}
