// Package registry is the process-wide Prometheus registry backing pg_exporter's
// runtime self-metrics (Go runtime and process stats), kept separate from the
// version-aware collector catalogue in internal/collector. Grounded on
// cherts-pgscv's internal/registry/registry.go, which wraps a prometheus.Registry the
// same way to attach collectors.NewProcessCollector/collectors.NewGoCollector.
package registry

import (
	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry wraps a prometheus.Registry holding only pg_exporter's own process and Go
// runtime metrics. It is gathered alongside the scrape coordinator's own
// version-aware samples so both are rendered through one exposition pass.
type Registry struct {
	reg *prometheus.Registry
}

// New creates a Registry with the standard process and Go runtime collectors
// registered.
func New() *Registry {
	r := &Registry{reg: prometheus.NewRegistry()}
	r.reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.reg.MustRegister(collectors.NewGoCollector())
	return r
}

// Gather returns the current runtime metric families, in the same dto.MetricFamily
// shape the exposition layer otherwise builds by hand for the collector catalogue.
func (r *Registry) Gather() ([]*dto.MetricFamily, error) {
	return r.reg.Gather()
}
