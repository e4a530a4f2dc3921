package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatherValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metricLoop:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metricLoop
				}
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				return float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	t.Fatalf("metric %s %v not found", name, labels)
	return 0
}

func TestRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New()
	require.NoError(t, m.Register(reg))

	// A second registration of the same collectors must fail.
	assert.Error(t, m.Register(reg))
}

func TestRecording(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New()
	require.NoError(t, m.Register(reg))

	m.ObserveRequest("listed", 200, 120*time.Millisecond)
	m.ObserveRequest("listed", 200, 80*time.Millisecond)
	m.ObserveRequest("otc", 429, 10*time.Millisecond)
	m.Retry("otc")
	m.Blocked("http_429")
	m.Instrument("listed", "succeeded")
	m.Records(RecordWritten, 3)
	m.Records(RecordDuplicate, 0)
	m.SetDelay("www.twse.com.tw", 1500*time.Millisecond)
	m.SetBreakerOpen("otc", true)
	m.SetPoolAvailable(7)

	assert.Equal(t, 2.0, gatherValue(t, reg, "twstock_upstream_requests_total", map[string]string{"market": "listed", "code": "200"}))
	assert.Equal(t, 1.0, gatherValue(t, reg, "twstock_upstream_requests_total", map[string]string{"market": "otc", "code": "429"}))
	assert.Equal(t, 2.0, gatherValue(t, reg, "twstock_upstream_request_duration_seconds", map[string]string{"market": "listed"}))
	assert.Equal(t, 1.0, gatherValue(t, reg, "twstock_upstream_retries_total", map[string]string{"market": "otc"}))
	assert.Equal(t, 1.0, gatherValue(t, reg, "twstock_pool_blocks_total", map[string]string{"reason": "http_429"}))
	assert.Equal(t, 1.0, gatherValue(t, reg, "twstock_run_instruments_total", map[string]string{"market": "listed", "result": "succeeded"}))
	assert.Equal(t, 3.0, gatherValue(t, reg, "twstock_sink_records_total", map[string]string{"result": RecordWritten}))
	assert.Equal(t, 1.5, gatherValue(t, reg, "twstock_throttle_delay_seconds", map[string]string{"host": "www.twse.com.tw"}))
	assert.Equal(t, 1.0, gatherValue(t, reg, "twstock_upstream_breaker_open", map[string]string{"name": "otc"}))
	assert.Equal(t, 7.0, gatherValue(t, reg, "twstock_pool_available_endpoints", nil))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("listed", 200, time.Second)
		m.Retry("listed")
		m.Blocked("x")
		m.Instrument("listed", "failed")
		m.Records(RecordRejected, 1)
		m.SetDelay("h", time.Second)
		m.SetBreakerOpen("listed", false)
		m.SetPoolAvailable(1)
	})
}
