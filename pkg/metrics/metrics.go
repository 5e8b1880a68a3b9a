// Package metrics provides the shared Prometheus registry background
// components register counters against. Grounded on the donor's
// pkg/metrics/prometheus package: metrics are opt-in (InitRegistry(false)
// leaves GetRegistry nil) so collectors built with promauto.With(reg) are
// cheap no-ops when metrics are disabled.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
)

// InitRegistry enables or disables metrics collection. Called once at
// startup from the resolved MetricsConfig.Enabled.
func InitRegistry(enabled bool) *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()

	if !enabled {
		registry = nil
		return nil
	}
	registry = prometheus.NewRegistry()
	return registry
}

// IsEnabled reports whether metrics collection is active.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return registry != nil
}

// GetRegistry returns the active registry, or nil if metrics are disabled.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}
