package exposition

import (
	"bytes"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustwizard/pg-exporter/internal/collector"
)

var famUp = &collector.Family{
	Name: "pg_up", Help: "Whether the last scrape succeeded.", Type: prometheus.GaugeValue,
}

var famConns = &collector.Family{
	Name: "pg_activity_connections_in_flight", Help: "Connections by state.",
	Type: prometheus.GaugeValue, Labels: []string{"state"},
}

func TestBuild_MergesAcrossInstances(t *testing.T) {
	instances := []InstanceSamples{
		{
			Instance:    "pg15",
			ConstLabels: map[string]string{"cluster": "c1"},
			Samples: []collector.Sample{
				{Family: famUp, Value: 1},
				{Family: famConns, LabelValues: []string{"active"}, Value: 3},
			},
		},
		{
			Instance:    "pg17",
			ConstLabels: map[string]string{"cluster": "c2"},
			Samples: []collector.Sample{
				{Family: famUp, Value: 0},
			},
		},
	}

	families, err := Build(instances)
	require.NoError(t, err)
	require.Len(t, families, 2)

	assert.Equal(t, "pg_activity_connections_in_flight", families[0].GetName())
	assert.Equal(t, "pg_up", families[1].GetName())
	require.Len(t, families[1].Metric, 2)
}

func TestBuild_LabelsSortedByName(t *testing.T) {
	instances := []InstanceSamples{
		{
			Instance:    "pg15",
			ConstLabels: map[string]string{"zzz": "last", "cluster": "c1"},
			Samples:     []collector.Sample{{Family: famConns, LabelValues: []string{"idle"}, Value: 1}},
		},
	}

	families, err := Build(instances)
	require.NoError(t, err)
	require.Len(t, families, 1)
	require.Len(t, families[0].Metric, 1)

	names := make([]string, 0)
	for _, l := range families[0].Metric[0].Label {
		names = append(names, l.GetName())
	}
	assert.Equal(t, []string{"cluster", "state", "zzz"}, names)
}

func TestWrite_ProducesHelpAndTypeLines(t *testing.T) {
	families, err := Build([]InstanceSamples{
		{Instance: "pg15", ConstLabels: map[string]string{"cluster": "c1"}, Samples: []collector.Sample{{Family: famUp, Value: 1}}},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, families))

	out := buf.String()
	assert.Contains(t, out, "# HELP pg_up")
	assert.Contains(t, out, "# TYPE pg_up gauge")
	assert.Contains(t, out, `pg_up{cluster="c1"} 1`)
}
