package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics holds the server's counters on its own registry, so multiple
// servers (e.g. in tests) never collide on registration.
type metrics struct {
	registry    *prometheus.Registry
	sessions    prometheus.Gauge
	advances    prometheus.Counter
	blocked     prometheus.Counter
	submissions prometheus.Counter
	restores    prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &metrics{
		registry: registry,
		sessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "onboard_active_sessions",
			Help: "Number of wizard sessions currently held by this server.",
		}),
		advances: factory.NewCounter(prometheus.CounterOpts{
			Name: "onboard_advances_total",
			Help: "Successful step advances.",
		}),
		blocked: factory.NewCounter(prometheus.CounterOpts{
			Name: "onboard_blocked_advances_total",
			Help: "Advance attempts rejected by validation.",
		}),
		submissions: factory.NewCounter(prometheus.CounterOpts{
			Name: "onboard_submissions_total",
			Help: "Successful final submissions.",
		}),
		restores: factory.NewCounter(prometheus.CounterOpts{
			Name: "onboard_restores_total",
			Help: "Sessions resumed from a persisted snapshot.",
		}),
	}
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
