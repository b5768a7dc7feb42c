package collector

import (
	"database/sql"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustwizard/pg-exporter/internal/model"
)

func TestBgwriterCollector_VariantSelection(t *testing.T) {
	def := Lookup("postgres/bgwriter")
	require.NotNil(t, def)

	v, ok := def.Resolve(model.Capabilities{ServerVersionNum: model.PostgresV15})
	require.True(t, ok)
	q, _ := v.Build(model.Capabilities{}, InstanceSettings{})
	assert.Equal(t, bgwriterQueryPre17, q)

	v, ok = def.Resolve(model.Capabilities{ServerVersionNum: model.PostgresV17})
	require.True(t, ok)
	q, _ = v.Build(model.Capabilities{}, InstanceSettings{})
	assert.Equal(t, bgwriterQuery17, q)

	v, ok = def.Resolve(model.Capabilities{ServerVersionNum: model.PostgresV18})
	require.True(t, ok)
	q, _ = v.Build(model.Capabilities{}, InstanceSettings{})
	assert.Equal(t, bgwriterQueryLatest, q)
}

func TestProjectBgwriter_BlockSizeConversion(t *testing.T) {
	cols := []string{"checkpoints_timed", "checkpoints_req", "checkpoint_write_time", "checkpoint_sync_time",
		"buffers_checkpoint", "buffers_clean", "maxwritten_clean", "buffers_backend", "buffers_backend_fsync", "buffers_alloc"}
	values := []string{"10", "2", "1500", "500", "100", "50", "3", "20", "1", "400"}

	colDescs := make([]pgconn.FieldDescription, len(cols))
	rowVals := make([]sql.NullString, len(cols))
	for i, c := range cols {
		colDescs[i] = pgconn.FieldDescription{Name: c}
		rowVals[i] = sql.NullString{String: values[i], Valid: true}
	}
	res := &model.PGResult{Nrows: 1, Ncols: len(cols), Colnames: colDescs, Rows: [][]sql.NullString{rowVals}}

	samples, err := projectBgwriter(res, model.Capabilities{BlockSize: 8192}, InstanceSettings{})
	require.NoError(t, err)
	require.NotEmpty(t, samples)

	found := false
	for _, s := range samples {
		if s.Family == famWrittenBytes && len(s.LabelValues) == 1 && s.LabelValues[0] == "checkpointer" {
			assert.Equal(t, 100*8192.0, s.Value)
			found = true
		}
	}
	assert.True(t, found, "expected a checkpointer buffers_checkpoint*block_size sample")
}

func TestProjectBgwriter_EmptyResultYieldsNoSamples(t *testing.T) {
	res := &model.PGResult{Nrows: 0}
	samples, err := projectBgwriter(res, model.Capabilities{}, InstanceSettings{})
	require.NoError(t, err)
	assert.Empty(t, samples)
}
