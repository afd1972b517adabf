package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	ScansTotal            *prometheus.CounterVec
	ScansRejectedTotal    prometheus.Counter
	AuthCallbacksTotal    *prometheus.CounterVec
	PlaybackCommandsTotal *prometheus.CounterVec
	LookupFetchesTotal    *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ScansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "songseeker_scans_total",
				Help: "Total number of distinct scans handled",
			},
			[]string{"kind", "result"},
		),
		ScansRejectedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "songseeker_scans_rejected_total",
				Help: "Total number of scan submissions rejected by the flood limiter",
			},
		),
		AuthCallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "songseeker_auth_callbacks_total",
				Help: "Total number of authorization callbacks",
			},
			[]string{"result"},
		),
		PlaybackCommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "songseeker_playback_commands_total",
				Help: "Total number of playback commands",
			},
			[]string{"command", "status"},
		),
		LookupFetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "songseeker_lookup_fetches_total",
				Help: "Total number of lookup table downloads",
			},
			[]string{"language", "status"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ScansTotal,
		m.ScansRejectedTotal,
		m.AuthCallbacksTotal,
		m.PlaybackCommandsTotal,
		m.LookupFetchesTotal,
	)

	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordScan(kind, result string) {
	m.ScansTotal.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) RecordRejectedScan() {
	m.ScansRejectedTotal.Inc()
}

func (m *Metrics) RecordAuthCallback(result string) {
	m.AuthCallbacksTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordPlaybackCommand(command string, err error) {
	m.PlaybackCommandsTotal.WithLabelValues(command, statusLabel(err)).Inc()
}

// RecordLookupFetch has the shape of musiclink.FetchObserver.
func (m *Metrics) RecordLookupFetch(language string, err error) {
	m.LookupFetchesTotal.WithLabelValues(language, statusLabel(err)).Inc()
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
