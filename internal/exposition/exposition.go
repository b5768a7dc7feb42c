// Package exposition is the exposition layer: it renders merged samples from every
// instance worker in the Prometheus text format, the "known standard format" spec.md §1
// scopes out of the design's core and delegates to the ecosystem's own encoder
// (github.com/prometheus/common/expfmt) instead of hand-rolling it.
package exposition

import (
	"io"
	"sort"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/rustwizard/pg-exporter/internal/collector"
)

// InstanceSamples is one instance worker's contribution to a scrape: the samples it
// produced plus the constant labels that must be attached to every one of them. The
// collector and runner packages never see constant labels; they are merged in here,
// at the boundary the design calls "prepend the instance's constant labels" (spec.md
// §4.3 step 4), so a collector's projector and a family's declared Labels never need
// to know about them.
type InstanceSamples struct {
	Instance    string
	ConstLabels map[string]string
	Samples     []collector.Sample
}

// Build merges every instance's samples into one ordered list of Prometheus metric
// families, ready for encoding. Families are sorted by name; within a family, samples
// are emitted in the order instances and their own samples were given, which satisfies
// spec.md §4.5's "stable per scrape, unspecified order" requirement without forcing an
// arbitrary sort on label values.
func Build(instances []InstanceSamples) ([]*dto.MetricFamily, error) {
	byFamily := make(map[*collector.Family]*dto.MetricFamily)
	var order []*collector.Family

	for _, inst := range instances {
		for _, s := range inst.Samples {
			mf, ok := byFamily[s.Family]
			if !ok {
				name := s.Family.Name
				help := s.Family.Help
				typ := metricType(s.Family.Type)
				mf = &dto.MetricFamily{Name: &name, Help: &help, Type: &typ}
				byFamily[s.Family] = mf
				order = append(order, s.Family)
			}

			metric, err := buildMetric(s, inst.ConstLabels)
			if err != nil {
				return nil, err
			}
			mf.Metric = append(mf.Metric, metric)
		}
	}

	families := make([]*dto.MetricFamily, 0, len(order))
	for _, f := range order {
		families = append(families, byFamily[f])
	}
	sort.Slice(families, func(i, j int) bool { return families[i].GetName() < families[j].GetName() })
	return families, nil
}

func buildMetric(s collector.Sample, constLabels map[string]string) (*dto.Metric, error) {
	labels := make([]*dto.LabelPair, 0, len(constLabels)+len(s.LabelValues))
	for k, v := range constLabels {
		k, v := k, v
		labels = append(labels, &dto.LabelPair{Name: &k, Value: &v})
	}
	for i, v := range s.LabelValues {
		k := s.Family.Labels[i]
		k, v := k, v
		labels = append(labels, &dto.LabelPair{Name: &k, Value: &v})
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i].GetName() < labels[j].GetName() })

	value := s.Value
	m := &dto.Metric{Label: labels}
	switch s.Family.Type {
	case prometheus.CounterValue:
		m.Counter = &dto.Counter{Value: &value}
	default:
		m.Gauge = &dto.Gauge{Value: &value}
	}
	return m, nil
}

// metricType maps the family's declared prometheus.ValueType onto the protobuf enum
// client_model's MetricFamily.Type expects; the two enums are not defined with the
// same underlying values, so a direct numeric cast would mislabel every family.
func metricType(t prometheus.ValueType) dto.MetricType {
	if t == prometheus.CounterValue {
		return dto.MetricType_COUNTER
	}
	return dto.MetricType_GAUGE
}

// Write encodes families in the Prometheus text exposition format to w, the same
// format content-negotiated by promhttp, using FmtText exactly as spec.md §6 requires
// for the metrics endpoint's response ("200 text/plain; version=0.0.4").
func Write(w io.Writer, families []*dto.MetricFamily) error {
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

// ContentType is the response Content-Type header for the metrics endpoint.
var ContentType = string(expfmt.NewFormat(expfmt.TypeTextPlain))
