// Package metrics defines hapd's observability interfaces.
//
// Implementations are optional: every HAPMetrics method is also satisfiable
// by a nil receiver so callers can wire metrics collection in or out with
// zero overhead and no nil checks at call sites.
package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu       sync.Mutex
	enabled  atomic.Bool
	registry *prometheus.Registry
)

// InitRegistry creates the process-wide Prometheus registry and marks
// metrics collection enabled. Call once during startup before any
// NewXMetrics constructor runs.
func InitRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()

	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	enabled.Store(true)
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return enabled.Load()
}

// GetRegistry returns the process-wide registry, creating it if necessary.
func GetRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()

	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	return registry
}

// HAPMetrics provides observability for the accessory server's session and
// dispatch lifecycle.
//
// Pass nil to disable metrics collection with zero overhead.
type HAPMetrics interface {
	// RecordSessionAccepted increments the total accepted sessions counter.
	RecordSessionAccepted()

	// RecordSessionClosed increments the total closed sessions counter,
	// tagged with the reason the session ended ("client" or "shutdown"; a
	// session closed by the idle sweep reports "client").
	RecordSessionClosed(reason string)

	// SetActiveSessions updates the current session count gauge.
	SetActiveSessions(count int)

	// RecordDispatch records a completed HTTP dispatch by path and HAP
	// status code.
	RecordDispatch(path string, status int)

	// RecordEventBatch records the size of a coalesced event-notification
	// batch delivered to a session.
	RecordEventBatch(size int)

	// RecordCharacteristicWrite records a single characteristic write
	// outcome by HAP status code.
	RecordCharacteristicWrite(status int)
}
