// Package metrics holds the Prometheus collectors of the server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chatsync"

// Metrics is created once per process and passed to the components that record into it.
// A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	MessagesSent         *prometheus.CounterVec
	ActiveSubscriptions  *prometheus.GaugeVec
	SubscriptionFailures *prometheus.CounterVec
	CallEvents           *prometheus.CounterVec
	Uploads              *prometheus.CounterVec
	RequestDuration      *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Messages written, by message type.",
		}, []string{"type"}),
		ActiveSubscriptions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_subscriptions",
			Help:      "Live subscriptions currently held by view models, by kind.",
		}, []string{"kind"}),
		SubscriptionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscription_failures_total",
			Help:      "Live subscriptions that ended with an error, by kind.",
		}, []string{"kind"}),
		CallEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_events_total",
			Help:      "Call SDK events received, by event.",
		}, []string{"event"}),
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Objects uploaded to storage, by key prefix.",
		}, []string{"prefix"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by route template and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.MessagesSent,
		m.ActiveSubscriptions,
		m.SubscriptionFailures,
		m.CallEvents,
		m.Uploads,
		m.RequestDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) MessageSent(msgType string) {
	if m != nil {
		m.MessagesSent.WithLabelValues(msgType).Inc()
	}
}

func (m *Metrics) SubscriptionOpened(kind string) {
	if m != nil {
		m.ActiveSubscriptions.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) SubscriptionClosed(kind string, err error) {
	if m == nil {
		return
	}
	m.ActiveSubscriptions.WithLabelValues(kind).Dec()
	if err != nil {
		m.SubscriptionFailures.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) CallEvent(event string) {
	if m != nil {
		m.CallEvents.WithLabelValues(event).Inc()
	}
}

func (m *Metrics) Uploaded(prefix string) {
	if m != nil {
		m.Uploads.WithLabelValues(prefix).Inc()
	}
}
