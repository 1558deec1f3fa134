// Package metrics exposes Prometheus instrumentation for the gateway and protector.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder captures request and artifact metrics.
type Recorder interface {
	ObserveRequest(method, route, status string, durationSeconds float64)
	IncDocuments(operation, outcome string)
	IncArtifactReleases(outcome string)
	AddRelayedBytes(bytes int)
}

// Noop implements Recorder without emitting anything.
type Noop struct{}

func (Noop) ObserveRequest(string, string, string, float64) {}
func (Noop) IncDocuments(string, string)                    {}
func (Noop) IncArtifactReleases(string)                     {}
func (Noop) AddRelayedBytes(int)                            {}

// Prom implements Recorder backed by Prometheus collectors.
type Prom struct {
	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	documents    *prometheus.CounterVec
	releases     *prometheus.CounterVec
	relayedBytes prometheus.Counter
	gatherer     prometheus.Gatherer
}

// NewProm registers the gateway collectors on reg. A nil reg uses a private registry,
// which keeps repeated construction in tests free of duplicate registrations.
func NewProm(namespace string, reg *prometheus.Registry) *Prom {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	p := &Prom{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method/route/status",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method/route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_processed_total",
			Help:      "Documents processed by operation and outcome",
		}, []string{"operation", "outcome"}),
		releases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_releases_total",
			Help:      "Temporary artifact releases by outcome",
		}, []string{"outcome"}),
		relayedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relayed_bytes_total",
			Help:      "Bytes streamed from the downstream protection service",
		}),
		gatherer: reg,
	}

	reg.MustRegister(p.requests, p.latency, p.documents, p.releases, p.relayedBytes)

	return p
}

func (p *Prom) ObserveRequest(method, route, status string, durationSeconds float64) {
	p.requests.WithLabelValues(method, route, status).Inc()
	p.latency.WithLabelValues(method, route).Observe(durationSeconds)
}

func (p *Prom) IncDocuments(operation, outcome string) {
	p.documents.WithLabelValues(operation, outcome).Inc()
}

func (p *Prom) IncArtifactReleases(outcome string) {
	p.releases.WithLabelValues(outcome).Inc()
}

func (p *Prom) AddRelayedBytes(bytes int) {
	p.relayedBytes.Add(float64(bytes))
}

// Handler returns an HTTP handler for /metrics over the collectors' registry.
func (p *Prom) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}

// ReleaseOutcome maps a release error to a label value.
func ReleaseOutcome(releaseErr error) string {
	if releaseErr != nil {
		return "failed"
	}

	return "ok"
}
