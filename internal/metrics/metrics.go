// Package metrics holds the Prometheus collectors shared by the waypoint adapters.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records action-plan requests and markdown renders.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	renders  *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
// Passing nil registers on prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "waypoint_action_plan_requests_total",
				Help: "Action plan requests by outcome stage (ok, ok_repaired, transport, timeout, status, envelope, payload).",
			},
			[]string{"stage"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "waypoint_action_plan_request_duration_seconds",
				Help:    "Duration of action plan requests, including parsing.",
				Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 20, 30, 60, 120},
			},
			[]string{"stage"},
		),
		renders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "waypoint_render_total",
				Help: "Markdown renders by mode (markdown or plaintext fallback).",
			},
			[]string{"mode"},
		),
	}
	reg.MustRegister(m.requests, m.duration, m.renders)
	return m
}

// ObserveRequest records one finished action plan request.
func (m *Metrics) ObserveRequest(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(stage).Inc()
	m.duration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveRender records one markdown render.
func (m *Metrics) ObserveRender(mode string) {
	if m == nil {
		return
	}
	m.renders.WithLabelValues(mode).Inc()
}
