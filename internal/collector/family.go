// Package collector is the collector registry: the static, process-global catalogue of
// collector definitions, each declaring the metric families it emits, the query
// variants that implement it across PostgreSQL versions/capabilities, and the pure
// projector that turns rows into samples.
package collector

import "github.com/prometheus/client_golang/prometheus"

// Family is a Prometheus metric identity: a name, help text, value type and the fixed
// list of dimension label keys a collector attaches to every sample of that family.
// Constant labels (per-instance) are not part of Labels; the exposition layer merges
// them in.
type Family struct {
	Name   string
	Help   string
	Type   prometheus.ValueType
	Labels []string
}

// Sample is one concrete data point within a Family, produced during exactly one
// scrape. LabelValues must align positionally with Family.Labels.
type Sample struct {
	Family      *Family
	LabelValues []string
	Value       float64
}
