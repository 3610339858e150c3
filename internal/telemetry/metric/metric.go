// Package metric provides Prometheus metrics for KVMesh.
//
// It exposes metrics in Prometheus format for monitoring connection
// counts, command rates, and keyspace size.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all application metrics.
type Registry struct {
	// Connection metrics
	ConnectionsActive prometheus.Gauge
	ConnectionsTotal  prometheus.Counter

	// Command metrics
	CommandsTotal *prometheus.CounterVec
	CommandErrors prometheus.Counter

	// Keyspace metrics
	KeysExpired prometheus.Counter

	reg *prometheus.Registry
}

// NewRegistry creates a new metrics registry. keyCount, when non-nil,
// is sampled on each scrape to report the current keyspace size.
func NewRegistry(keyCount func() float64) *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	factory := promauto.With(reg)

	r := &Registry{
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "kvmesh",
			Name:      "connections_active",
			Help:      "Number of currently open client connections.",
		}),
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "kvmesh",
			Name:      "connections_total",
			Help:      "Total number of client connections accepted.",
		}),
		CommandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kvmesh",
			Name:      "commands_total",
			Help:      "Total number of commands dispatched, by command name.",
		}, []string{"command"}),
		CommandErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "kvmesh",
			Name:      "command_errors_total",
			Help:      "Total number of commands that returned an error reply.",
		}),
		KeysExpired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "kvmesh",
			Name:      "keys_expired_total",
			Help:      "Total number of keys removed due to TTL expiry.",
		}),
		reg: reg,
	}

	if keyCount != nil {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "kvmesh",
			Name:      "keys",
			Help:      "Current number of live keys in the store.",
		}, keyCount)
	}

	return r
}

// Handler returns an HTTP handler serving the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
