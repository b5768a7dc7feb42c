package collector

import (
	"database/sql"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustwizard/pg-exporter/internal/model"
)

func TestProjectActivity_OneSamplePerState(t *testing.T) {
	res := &model.PGResult{
		Nrows: 2,
		Colnames: []pgconn.FieldDescription{{Name: "state"}, {Name: "count"}},
		Rows: [][]sql.NullString{
			{{String: "active", Valid: true}, {String: "3", Valid: true}},
			{{String: "idle", Valid: true}, {String: "7", Valid: true}},
		},
	}

	samples, err := projectActivity(res, model.Capabilities{}, InstanceSettings{})
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, []string{"active"}, samples[0].LabelValues)
	assert.Equal(t, 3.0, samples[0].Value)
	assert.Equal(t, []string{"idle"}, samples[1].LabelValues)
	assert.Equal(t, 7.0, samples[1].Value)
}

func TestProjectActivityAge_EmptyResultYieldsNoSamples(t *testing.T) {
	res := &model.PGResult{Nrows: 0}
	samples, err := projectActivityAge(res, model.Capabilities{}, InstanceSettings{})
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestProjectActivityAge_MapsBothAges(t *testing.T) {
	res := &model.PGResult{
		Nrows:    1,
		Colnames: []pgconn.FieldDescription{{Name: "max_xact_age"}, {Name: "max_query_age"}},
		Rows:     [][]sql.NullString{{{String: "12.5", Valid: true}, {String: "0.25", Valid: true}}},
	}

	samples, err := projectActivityAge(res, model.Capabilities{}, InstanceSettings{})
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, famActivityMaxXactAge, samples[0].Family)
	assert.Equal(t, 12.5, samples[0].Value)
	assert.Equal(t, famActivityMaxQueryAge, samples[1].Family)
	assert.Equal(t, 0.25, samples[1].Value)
}
