// Package prometheus is the Prometheus-backed implementation of
// pkg/metrics.HAPMetrics.
package prometheus

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hapcore/hapd/pkg/metrics"
)

// hapMetrics is the Prometheus implementation of metrics.HAPMetrics.
type hapMetrics struct {
	sessionsAccepted   prometheus.Counter
	sessionsClosed     *prometheus.CounterVec
	activeSessions     prometheus.Gauge
	dispatches         *prometheus.CounterVec
	eventBatchSize     prometheus.Histogram
	characteristicWrites *prometheus.CounterVec
}

// NewHAPMetrics creates a new Prometheus-backed metrics.HAPMetrics.
//
// Returns nil if metrics are not enabled (metrics.InitRegistry not called),
// so callers can assign the result directly to an interface variable and
// treat every method as a safe no-op.
func NewHAPMetrics() *hapMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &hapMetrics{
		sessionsAccepted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "hapd_sessions_accepted_total",
			Help: "Total number of accessory server sessions accepted.",
		}),
		sessionsClosed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hapd_sessions_closed_total",
			Help: "Total number of sessions closed, by reason.",
		}, []string{"reason"}),
		activeSessions: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "hapd_sessions_active",
			Help: "Current number of open sessions.",
		}),
		dispatches: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hapd_dispatch_total",
			Help: "Total HTTP dispatches, by path and HAP status code.",
		}, []string{"path", "status"}),
		eventBatchSize: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "hapd_event_batch_size",
			Help:    "Size of coalesced event-notification batches.",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
		}),
		characteristicWrites: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hapd_characteristic_writes_total",
			Help: "Total characteristic writes, by HAP status code.",
		}, []string{"status"}),
	}
}

func (m *hapMetrics) RecordSessionAccepted() {
	if m == nil {
		return
	}
	m.sessionsAccepted.Inc()
}

func (m *hapMetrics) RecordSessionClosed(reason string) {
	if m == nil {
		return
	}
	m.sessionsClosed.WithLabelValues(reason).Inc()
}

func (m *hapMetrics) SetActiveSessions(count int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(count))
}

func (m *hapMetrics) RecordDispatch(path string, status int) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(path, strconv.Itoa(status)).Inc()
}

func (m *hapMetrics) RecordEventBatch(size int) {
	if m == nil {
		return
	}
	m.eventBatchSize.Observe(float64(size))
}

func (m *hapMetrics) RecordCharacteristicWrite(status int) {
	if m == nil {
		return
	}
	m.characteristicWrites.WithLabelValues(strconv.Itoa(status)).Inc()
}
