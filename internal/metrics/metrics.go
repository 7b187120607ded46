// Package metrics exposes pod-local and process-wide crawl metrics via
// Prometheus (spec.md §4.8's "aggregates metrics", §6's
// `prometheus_port`/`enable_prometheus` config). Grounded on
// kalbasit-ncps's pkg/prometheus, which wires client_golang against a
// dedicated registry rather than the global default one; the HTTP
// server lifecycle follows the teacher crawler's internal/api.go
// StartHTTPServer shape.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every counter/gauge podcrawl publishes, backed by its
// own prometheus.Registry rather than the global default one.
type Registry struct {
	registry *prometheus.Registry

	PagesCrawledTotal prometheus.Counter
	BytesFetchedTotal prometheus.Counter
	FetchErrorsTotal  *prometheus.CounterVec
	ParseQueueDepth   *prometheus.GaugeVec
	ReadyDomains      *prometheus.GaugeVec
	FrontierBacklog   *prometheus.GaugeVec
	StopFlagSet       prometheus.Gauge
}

// New builds a Registry with every metric registered.
func New() *Registry {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Registry{
		registry: reg,

		PagesCrawledTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "podcrawl_pages_crawled_total",
			Help: "Total pages successfully fetched and parsed.",
		}),
		BytesFetchedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "podcrawl_bytes_fetched_total",
			Help: "Total response bytes fetched across all pods.",
		}),
		FetchErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "podcrawl_fetch_errors_total",
			Help: "Fetch errors by reason.",
		}, []string{"reason"}),
		ParseQueueDepth: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "podcrawl_parse_queue_depth",
			Help: "Current depth of each pod's parse queue.",
		}, []string{"pod"}),
		ReadyDomains: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "podcrawl_ready_domains",
			Help: "Number of domains currently in each pod's ready queue.",
		}, []string{"pod"}),
		FrontierBacklog: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "podcrawl_frontier_backlog_estimate",
			Help: "Approximate unread frontier bytes remaining per pod.",
		}, []string{"pod"}),
		StopFlagSet: f.NewGauge(prometheus.GaugeOpts{
			Name: "podcrawl_stop_flag",
			Help: "1 if the coordinator's stop flag is set, 0 otherwise.",
		}),
	}
}

// Gatherer exposes the underlying registry for the HTTP exposition
// handler.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.registry }
