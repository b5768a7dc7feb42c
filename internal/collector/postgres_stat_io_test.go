package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustwizard/pg-exporter/internal/model"
)

func TestStatIOCollector_GatedOnCapability(t *testing.T) {
	def := Lookup("postgres/stat_io")
	require.NotNil(t, def)

	_, ok := def.Resolve(model.Capabilities{ServerVersionNum: model.PostgresV17, HasPgStatIO: false})
	assert.False(t, ok, "pg_stat_io absent must skip the collector entirely, not emit zeros")

	_, ok = def.Resolve(model.Capabilities{ServerVersionNum: model.PostgresV16, HasPgStatIO: true})
	assert.True(t, ok)
}
