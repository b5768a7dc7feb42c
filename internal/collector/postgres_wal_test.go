package collector

import (
	"database/sql"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustwizard/pg-exporter/internal/model"
)

func TestWALCollector_VariantSelection(t *testing.T) {
	def := Lookup("postgres/wal")
	require.NotNil(t, def)

	v, ok := def.Resolve(model.Capabilities{ServerVersionNum: model.PostgresV13})
	require.True(t, ok)
	q, _ := v.Build(model.Capabilities{}, InstanceSettings{})
	assert.Equal(t, walQueryPre14, q)

	v, ok = def.Resolve(model.Capabilities{ServerVersionNum: model.PostgresV16})
	require.True(t, ok)
	q, _ = v.Build(model.Capabilities{}, InstanceSettings{})
	assert.Equal(t, walQuery14, q)

	v, ok = def.Resolve(model.Capabilities{ServerVersionNum: model.PostgresV18})
	require.True(t, ok)
	q, _ = v.Build(model.Capabilities{}, InstanceSettings{})
	assert.Equal(t, walQueryLatest, q)
}

func TestProjectWAL_MapsLatestColumns(t *testing.T) {
	res := &model.PGResult{
		Nrows: 1,
		Colnames: []pgconn.FieldDescription{
			{Name: "recovery"}, {Name: "recovery_paused"}, {Name: "wal_records"}, {Name: "wal_fpi"},
			{Name: "wal_written"}, {Name: "wal_bytes"}, {Name: "wal_buffers_full"}, {Name: "reset_time"},
		},
		Rows: [][]sql.NullString{{
			{String: "0", Valid: true}, {String: "0", Valid: true}, {String: "100", Valid: true}, {String: "5", Valid: true},
			{String: "2048", Valid: true}, {String: "2048", Valid: true}, {String: "1", Valid: true}, {String: "1700000000", Valid: true},
		}},
	}

	samples, err := projectWAL(res, model.Capabilities{}, InstanceSettings{})
	require.NoError(t, err)

	byFamily := make(map[*Family]float64)
	for _, s := range samples {
		byFamily[s.Family] = s.Value
	}

	assert.Equal(t, 0.0, byFamily[famWalRecoveryInfo])
	assert.Equal(t, 100.0, byFamily[famWalRecordsTotal])
	assert.Equal(t, 5.0, byFamily[famWalFPITotal])
	assert.Equal(t, 2048.0, byFamily[famWalWrittenBytesTotal])
	assert.Equal(t, 2048.0, byFamily[famWalBytesTotal])
	assert.Equal(t, 1.0, byFamily[famWalBuffersFullTotal])
	assert.Equal(t, 1700000000.0, byFamily[famWalStatsResetTime])

	// wal_write/wal_sync columns are absent from the latest variant's result, so
	// no op-labeled samples should appear.
	for _, s := range samples {
		assert.NotEqual(t, famWalOpTotal, s.Family)
		assert.NotEqual(t, famWalSecondsTotal, s.Family)
	}
}

func TestProjectWAL_MapsMidVersionOpColumns(t *testing.T) {
	res := &model.PGResult{
		Nrows:    1,
		Colnames: []pgconn.FieldDescription{{Name: "wal_write"}, {Name: "wal_sync"}, {Name: "wal_write_time"}, {Name: "wal_sync_time"}},
		Rows:     [][]sql.NullString{{{String: "7", Valid: true}, {String: "3", Valid: true}, {String: "1500", Valid: true}, {String: "500", Valid: true}}},
	}

	samples, err := projectWAL(res, model.Capabilities{}, InstanceSettings{})
	require.NoError(t, err)

	var writeOp, syncOp, writeSeconds, syncSeconds float64
	for _, s := range samples {
		switch {
		case s.Family == famWalOpTotal && s.LabelValues[0] == "write":
			writeOp = s.Value
		case s.Family == famWalOpTotal && s.LabelValues[0] == "sync":
			syncOp = s.Value
		case s.Family == famWalSecondsTotal && s.LabelValues[0] == "write":
			writeSeconds = s.Value
		case s.Family == famWalSecondsTotal && s.LabelValues[0] == "sync":
			syncSeconds = s.Value
		}
	}

	assert.Equal(t, 7.0, writeOp)
	assert.Equal(t, 3.0, syncOp)
	assert.Equal(t, 1.5, writeSeconds)
	assert.Equal(t, 0.5, syncSeconds)
}

func TestProjectWAL_EmptyResultYieldsNoSamples(t *testing.T) {
	samples, err := projectWAL(&model.PGResult{Nrows: 0}, model.Capabilities{}, InstanceSettings{})
	require.NoError(t, err)
	assert.Empty(t, samples)
}
