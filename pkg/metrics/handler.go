package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Set groups every collector the service exports.
type Set struct {
	Registry *prometheus.Registry
	Watch    *WatchMetrics
	Tracker  *TrackerMetrics
	Sales    *SalesMetrics
	Bus      *BusMetrics
}

// NewSet builds a fresh registry with process collectors and all service metrics.
func NewSet() *Set {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return &Set{
		Registry: reg,
		Watch:    NewWatchMetrics(reg),
		Tracker:  NewTrackerMetrics(reg),
		Sales:    NewSalesMetrics(reg),
		Bus:      NewBusMetrics(reg),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (s *Set) Handler() http.Handler {
	return promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{})
}
