package collector

import (
	"database/sql"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustwizard/pg-exporter/internal/model"
)

func TestProjectReplicationSlots_MapsRowsAndInactiveFlag(t *testing.T) {
	res := &model.PGResult{
		Nrows: 2,
		Colnames: []pgconn.FieldDescription{
			{Name: "database"}, {Name: "slot_name"}, {Name: "slot_type"}, {Name: "active"}, {Name: "retained_bytes"},
		},
		Rows: [][]sql.NullString{
			{{String: "app", Valid: true}, {String: "app_logical", Valid: true}, {String: "logical", Valid: true}, {String: "t", Valid: true}, {String: "1024", Valid: true}},
			{{Valid: false}, {String: "abandoned", Valid: true}, {String: "physical", Valid: true}, {String: "f", Valid: true}, {String: "1073741824", Valid: true}},
		},
	}

	samples, err := projectReplicationSlots(res, model.Capabilities{}, InstanceSettings{})
	require.NoError(t, err)
	require.Len(t, samples, 2)

	assert.Equal(t, []string{"app", "app_logical", "logical", "true"}, samples[0].LabelValues)
	assert.Equal(t, 1024.0, samples[0].Value)

	assert.Equal(t, []string{"", "abandoned", "physical", "false"}, samples[1].LabelValues)
	assert.Equal(t, 1073741824.0, samples[1].Value)
}

func TestProjectReplicationSlots_EmptyResultYieldsNoSamples(t *testing.T) {
	samples, err := projectReplicationSlots(&model.PGResult{Nrows: 0}, model.Capabilities{}, InstanceSettings{})
	require.NoError(t, err)
	assert.Empty(t, samples)
}
