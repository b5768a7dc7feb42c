package collector

import (
	"database/sql"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustwizard/pg-exporter/internal/model"
)

func TestProjectLocks_MapsModesAndAggregates(t *testing.T) {
	res := &model.PGResult{
		Nrows: 1,
		Colnames: []pgconn.FieldDescription{
			{Name: "access_share_lock"}, {Name: "row_share_lock"}, {Name: "row_exclusive_lock"},
			{Name: "share_update_exclusive_lock"}, {Name: "share_lock"}, {Name: "share_row_exclusive_lock"},
			{Name: "exclusive_lock"}, {Name: "access_exclusive_lock"}, {Name: "not_granted"}, {Name: "total"},
		},
		Rows: [][]sql.NullString{{
			{String: "10", Valid: true}, {String: "0", Valid: true}, {String: "3", Valid: true},
			{String: "0", Valid: true}, {String: "0", Valid: true}, {String: "0", Valid: true},
			{String: "1", Valid: true}, {String: "0", Valid: true}, {String: "2", Valid: true}, {String: "14", Valid: true},
		}},
	}

	samples, err := projectLocks(res, model.Capabilities{}, InstanceSettings{})
	require.NoError(t, err)

	byMode := make(map[string]float64)
	var notGranted, total float64
	for _, s := range samples {
		switch s.Family {
		case famLocksCount:
			byMode[s.LabelValues[0]] = s.Value
		case famLocksNotGranted:
			notGranted = s.Value
		case famLocksTotal:
			total = s.Value
		}
	}

	assert.Equal(t, 10.0, byMode["access_share"])
	assert.Equal(t, 3.0, byMode["row_exclusive"])
	assert.Equal(t, 1.0, byMode["exclusive"])
	assert.Equal(t, 2.0, notGranted)
	assert.Equal(t, 14.0, total)
}

func TestProjectLocks_EmptyResultYieldsNoSamples(t *testing.T) {
	samples, err := projectLocks(&model.PGResult{Nrows: 0}, model.Capabilities{}, InstanceSettings{})
	require.NoError(t, err)
	assert.Empty(t, samples)
}
