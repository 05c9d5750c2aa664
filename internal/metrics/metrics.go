// Package metrics exposes Prometheus counters for the scrubbing and alerting
// paths. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Event sources.
const (
	SourceSDK    = "sdk"
	SourceTunnel = "tunnel"
	SourceAdmin  = "admin"
)

type Metrics struct {
	registry *prometheus.Registry

	scrubbed        *prometheus.CounterVec
	dropped         *prometheus.CounterVec
	alerts          *prometheus.CounterVec
	tunnelRequests  *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec
	upstreamLatency prometheus.Histogram
}

// New creates the collectors on a private registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{registry: reg}

	m.scrubbed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "telemetry",
		Name:      "events_scrubbed_total",
		Help:      "Events passed through the PII sanitizer",
	}, []string{"source"})
	m.dropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "telemetry",
		Name:      "events_dropped_total",
		Help:      "Events discarded by the drop policy",
	}, []string{"source", "reason"})
	m.alerts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "telemetry",
		Name:      "alerts_total",
		Help:      "Alert decisions by outcome",
	}, []string{"outcome"})
	m.tunnelRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "telemetry",
		Name:      "tunnel_requests_total",
		Help:      "Tunnel requests by response status",
	}, []string{"status"})
	m.rateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "telemetry",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by a per-client rate limiter",
	}, []string{"limiter"})
	m.upstreamLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "telemetry",
		Name:      "tunnel_upstream_duration_seconds",
		Help:      "Time spent forwarding envelopes to the ingest API",
		Buckets:   prometheus.DefBuckets,
	})

	reg.MustRegister(
		m.scrubbed, m.dropped, m.alerts, m.tunnelRequests, m.rateLimited, m.upstreamLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) EventScrubbed(source string) {
	if m == nil {
		return
	}
	m.scrubbed.WithLabelValues(source).Inc()
}

func (m *Metrics) EventDropped(source, reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(source, reason).Inc()
}

// AlertOutcome implements alert.Recorder.
func (m *Metrics) AlertOutcome(outcome string) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) TunnelRequest(status int) {
	if m == nil {
		return
	}
	m.tunnelRequests.WithLabelValues(strconv.Itoa(status)).Inc()
}

func (m *Metrics) RateLimited(limiter string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(limiter).Inc()
}

func (m *Metrics) UpstreamLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.upstreamLatency.Observe(d.Seconds())
}
