package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "twstock"

// Record dispositions used as the "result" label of RecordsTotal.
const (
	RecordWritten   = "written"
	RecordDuplicate = "duplicate"
	RecordRejected  = "rejected"
	RecordError     = "error"
)

// Metrics is the set of collectors for one process.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RetriesTotal     *prometheus.CounterVec
	BlocksTotal      *prometheus.CounterVec
	InstrumentsTotal *prometheus.CounterVec
	RecordsTotal     *prometheus.CounterVec
	ThrottleDelay    *prometheus.GaugeVec
	BreakerOpen      *prometheus.GaugeVec
	PoolAvailable    prometheus.Gauge
}

// New creates unregistered collectors.
func New() *Metrics {
	return &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Upstream request attempts by market and status code (0 for transport errors)",
		}, []string{"market", "code"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Upstream request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"market"}),
		RetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "retries_total",
			Help:      "Upstream request retries",
		}, []string{"market"}),
		BlocksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "blocks_total",
			Help:      "Endpoint block signals by reason",
		}, []string{"reason"}),
		InstrumentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "instruments_total",
			Help:      "Instruments processed by market and result",
		}, []string{"market", "result"}),
		RecordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "records_total",
			Help:      "Canonical records by disposition",
		}, []string{"result"}),
		ThrottleDelay: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "throttle",
			Name:      "delay_seconds",
			Help:      "Current adaptive delay per upstream host",
		}, []string{"host"}),
		BreakerOpen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "breaker_open",
			Help:      "1 while the upstream circuit breaker is open",
		}, []string{"name"}),
		PoolAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "available_endpoints",
			Help:      "Endpoints currently idle in the rotation",
		}),
	}
}

// Register registers all collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.RequestsTotal,
		m.RequestDuration,
		m.RetriesTotal,
		m.BlocksTotal,
		m.InstrumentsTotal,
		m.RecordsTotal,
		m.ThrottleDelay,
		m.BreakerOpen,
		m.PoolAvailable,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveRequest records one upstream attempt.
func (m *Metrics) ObserveRequest(market string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(market, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(market).Observe(d.Seconds())
}

// Retry records one retry.
func (m *Metrics) Retry(market string) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(market).Inc()
}

// Blocked records one endpoint block signal.
func (m *Metrics) Blocked(reason string) {
	if m == nil {
		return
	}
	m.BlocksTotal.WithLabelValues(reason).Inc()
}

// Instrument records one instrument outcome ("succeeded" or "failed").
func (m *Metrics) Instrument(market, result string) {
	if m == nil {
		return
	}
	m.InstrumentsTotal.WithLabelValues(market, result).Inc()
}

// Records adds n records with the given disposition.
func (m *Metrics) Records(result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RecordsTotal.WithLabelValues(result).Add(float64(n))
}

// SetDelay publishes host's adaptive delay.
func (m *Metrics) SetDelay(host string, d time.Duration) {
	if m == nil {
		return
	}
	m.ThrottleDelay.WithLabelValues(host).Set(d.Seconds())
}

// SetBreakerOpen publishes whether the named breaker is open.
func (m *Metrics) SetBreakerOpen(name string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.BreakerOpen.WithLabelValues(name).Set(v)
}

// SetPoolAvailable publishes the idle endpoint count.
func (m *Metrics) SetPoolAvailable(n int) {
	if m == nil {
		return
	}
	m.PoolAvailable.Set(float64(n))
}
