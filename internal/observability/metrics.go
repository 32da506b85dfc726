// Package observability exposes Prometheus metrics for the admin center.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Provider struct {
	registry *prometheus.Registry

	httpRequestCounter *prometheus.CounterVec
	httpRequestLatency *prometheus.HistogramVec
	tokensRecorded     prometheus.Counter
	messagesRecorded   prometheus.Counter
}

func New() *Provider {
	registry := prometheus.NewRegistry()

	p := &Provider{
		registry: registry,
		httpRequestCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_admin_http_requests_total",
			Help: "HTTP requests processed, labeled by method, route, and status.",
		}, []string{"method", "route", "status"}),
		httpRequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chat_admin_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		tokensRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_admin_tokens_recorded_total",
			Help: "Tokens accumulated into daily usage counters.",
		}),
		messagesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_admin_messages_recorded_total",
			Help: "Messages accumulated into daily usage counters.",
		}),
	}

	registry.MustRegister(
		p.httpRequestCounter,
		p.httpRequestLatency,
		p.tokensRecorded,
		p.messagesRecorded,
	)
	return p
}

// RecordHTTPRequest captures a completed request for the traffic metrics.
func (p *Provider) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if p == nil {
		return
	}
	p.httpRequestCounter.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpRequestLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordUsage captures counters flowing through the accounting core.
func (p *Provider) RecordUsage(tokens, messages int64) {
	if p == nil {
		return
	}
	if tokens > 0 {
		p.tokensRecorded.Add(float64(tokens))
	}
	if messages > 0 {
		p.messagesRecorded.Add(float64(messages))
	}
}

// Handler serves the metrics endpoint.
func (p *Provider) Handler() http.Handler {
	if p == nil {
		return nil
	}
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
