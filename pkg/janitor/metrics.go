package janitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vaultd/vaultd/pkg/metrics"
)

// sweepMetrics counts cleanup actions per §4.9 step, nil (and safely
// no-op) when metrics collection is disabled.
type sweepMetrics struct {
	deleted *prometheus.CounterVec
}

func newSweepMetrics() *sweepMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	return &sweepMetrics{
		deleted: promauto.With(metrics.GetRegistry()).NewCounterVec(
			prometheus.CounterOpts{
				Name: "vaultd_janitor_deleted_total",
				Help: "Total entities removed by the janitor sweep, by kind.",
			},
			[]string{"kind"}, // "session", "share_link", "file", "transaction"
		),
	}
}

func (m *sweepMetrics) add(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.deleted.WithLabelValues(kind).Add(float64(n))
}
