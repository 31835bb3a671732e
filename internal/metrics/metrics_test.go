package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_ObserveRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveRequest("ok", 10*time.Millisecond)
	m.ObserveRequest("ok", 20*time.Millisecond)
	m.ObserveRequest("status", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("status")))
}

func TestMetrics_ObserveRender(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRender("markdown")
	m.ObserveRender("plaintext")
	m.ObserveRender("markdown")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.renders.WithLabelValues("markdown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.renders.WithLabelValues("plaintext")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("ok", time.Second)
		m.ObserveRender("markdown")
	})
}
