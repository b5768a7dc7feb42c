package runner

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustwizard/pg-exporter/internal/collector"
	"github.com/rustwizard/pg-exporter/internal/model"
)

var famTest = &collector.Family{
	Name: "test_family", Type: prometheus.GaugeValue, Labels: []string{"a"},
}

func TestRun_NoMatchingVariantSkipsWithoutError(t *testing.T) {
	def := &collector.Def{
		Name: "test/no-match",
		Variants: []collector.Variant{
			{
				Predicate: func(c model.Capabilities) bool { return c.HasPgStatIO },
				Build:     func(model.Capabilities, collector.InstanceSettings) (string, []any) { return "SELECT 1", nil },
			},
		},
	}

	samples, err := Run(context.Background(), def, nil, model.Capabilities{HasPgStatIO: false}, collector.InstanceSettings{})
	require.NoError(t, err)
	assert.Nil(t, samples)
}

func TestCheckUnique_NoDuplicates(t *testing.T) {
	samples := []collector.Sample{
		{Family: famTest, LabelValues: []string{"x"}, Value: 1},
		{Family: famTest, LabelValues: []string{"y"}, Value: 2},
	}
	assert.NoError(t, checkUnique("test/collector", samples))
}

func TestCheckUnique_DetectsDuplicateTuple(t *testing.T) {
	samples := []collector.Sample{
		{Family: famTest, LabelValues: []string{"x"}, Value: 1},
		{Family: famTest, LabelValues: []string{"x"}, Value: 2},
	}
	err := checkUnique("test/collector", samples)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate label tuple")
}

func TestCheckUnique_SameTupleDifferentFamiliesIsFine(t *testing.T) {
	other := &collector.Family{Name: "other_family", Type: prometheus.GaugeValue, Labels: []string{"a"}}
	samples := []collector.Sample{
		{Family: famTest, LabelValues: []string{"x"}, Value: 1},
		{Family: other, LabelValues: []string{"x"}, Value: 2},
	}
	assert.NoError(t, checkUnique("test/collector", samples))
}

func TestTupleKey_DistinguishesDifferentArities(t *testing.T) {
	// "a\x00b" and "ab" must never collide through naive concatenation; tupleKey's
	// NUL-joined separator guards against that.
	assert.NotEqual(t, tupleKey([]string{"a", "b"}), tupleKey([]string{"ab"}))
}
