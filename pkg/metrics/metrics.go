// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Route outcomes.
const (
	OutcomeOK         = "ok"
	OutcomeNoRoute    = "no_route"
	OutcomeTooFar     = "too_far"
	OutcomeBadRequest = "bad_request"
	OutcomeTimeout    = "timeout"
	OutcomeError      = "error"
)

// Collector owns a private registry with the router's metrics.
type Collector struct {
	registry      *prometheus.Registry
	routesTotal   *prometheus.CounterVec
	routeDuration prometheus.Histogram
	mutations     *prometheus.CounterVec
	graphNodes    prometheus.Gauge
	graphEdges    prometheus.Gauge
	polylines     prometheus.Gauge
}

// NewCollector initializes a registry with the router metrics and the Go
// runtime collector.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	c := &Collector{
		registry: registry,
		routesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "access_router_routes_total", Help: "Route requests by outcome"},
			[]string{"outcome"},
		),
		routeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "access_router_route_duration_seconds",
			Help:    "Route computation time in seconds",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "access_router_graph_mutations_total", Help: "Graph mutations by operation"},
			[]string{"op"},
		),
		graphNodes: prometheus.NewGauge(prometheus.GaugeOpts{Name: "access_router_graph_nodes", Help: "Junctions in the route graph"}),
		graphEdges: prometheus.NewGauge(prometheus.GaugeOpts{Name: "access_router_graph_edges", Help: "Edges in the route graph"}),
		polylines:  prometheus.NewGauge(prometheus.GaugeOpts{Name: "access_router_polylines", Help: "Polylines in the route graph"}),
	}
	registry.MustRegister(
		c.routesTotal, c.routeDuration, c.mutations,
		c.graphNodes, c.graphEdges, c.polylines,
		collectors.NewGoCollector(),
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveRoute records one route request.
func (c *Collector) ObserveRoute(outcome string, d time.Duration) {
	c.routesTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK {
		c.routeDuration.Observe(d.Seconds())
	}
}

// ObserveMutation records one graph edit.
func (c *Collector) ObserveMutation(op string) {
	c.mutations.WithLabelValues(op).Inc()
}

// SetGraphSize records the current graph size.
func (c *Collector) SetGraphSize(nodes, edges, polylines int) {
	c.graphNodes.Set(float64(nodes))
	c.graphEdges.Set(float64(edges))
	c.polylines.Set(float64(polylines))
}
