package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rustwizard/pg-exporter/internal/model"
)

func TestDef_Resolve_FirstMatchWins(t *testing.T) {
	def := &Def{
		Name: "test/resolve",
		Variants: []Variant{
			{
				Predicate: func(c model.Capabilities) bool { return c.ServerVersionNum < model.PostgresV16 },
				Build:     func(model.Capabilities, InstanceSettings) (string, []any) { return "old", nil },
			},
			{
				Predicate: func(model.Capabilities) bool { return true },
				Build:     func(model.Capabilities, InstanceSettings) (string, []any) { return "new", nil },
			},
		},
	}

	v, ok := def.Resolve(model.Capabilities{ServerVersionNum: model.PostgresV15})
	assert.True(t, ok)
	q, _ := v.Build(model.Capabilities{}, InstanceSettings{})
	assert.Equal(t, "old", q)

	v, ok = def.Resolve(model.Capabilities{ServerVersionNum: model.PostgresV17})
	assert.True(t, ok)
	q, _ = v.Build(model.Capabilities{}, InstanceSettings{})
	assert.Equal(t, "new", q)
}

func TestDef_Resolve_NoMatch(t *testing.T) {
	def := &Def{
		Name: "test/no-match",
		Variants: []Variant{
			{
				Predicate: func(c model.Capabilities) bool { return c.HasPgStatIO },
				Build:     func(model.Capabilities, InstanceSettings) (string, []any) { return "io", nil },
			},
		},
	}

	_, ok := def.Resolve(model.Capabilities{HasPgStatIO: false})
	assert.False(t, ok)
}

func TestDef_Resolve_Deterministic(t *testing.T) {
	def := &Def{
		Name: "test/deterministic",
		Variants: []Variant{
			{Predicate: func(c model.Capabilities) bool { return c.ServerVersionNum >= model.PostgresV16 }, Build: func(model.Capabilities, InstanceSettings) (string, []any) { return "v16", nil }},
			{Predicate: func(model.Capabilities) bool { return true }, Build: func(model.Capabilities, InstanceSettings) (string, []any) { return "any", nil }},
		},
	}

	caps := model.Capabilities{ServerVersionNum: model.PostgresV17}
	first, _ := def.Resolve(caps)
	second, _ := def.Resolve(caps)
	q1, _ := first.Build(caps, InstanceSettings{})
	q2, _ := second.Build(caps, InstanceSettings{})
	assert.Equal(t, q1, q2)
}

func TestInstanceSettings_ExcludesDatabase(t *testing.T) {
	s := InstanceSettings{ExcludeDBNames: []string{"template1", "template0"}}
	assert.True(t, s.ExcludesDatabase("template1"))
	assert.False(t, s.ExcludesDatabase("postgres"))
}

func TestRegister_PanicsOnDuplicate(t *testing.T) {
	name := "test/duplicate-registration"
	Register(&Def{Name: name})
	defer func() {
		r := recover()
		assert.NotNil(t, r)
	}()
	Register(&Def{Name: name})
}

func TestAll_ContainsRegisteredCollectors(t *testing.T) {
	defs := All()
	names := make(map[string]bool)
	for _, d := range defs {
		names[d.Name] = true
	}
	assert.True(t, names["postgres/activity"])
	assert.True(t, names["postgres/bgwriter"])
	assert.True(t, names["postgres/locks"])
	assert.True(t, names["postgres/replication_slots"])
	assert.True(t, names["postgres/wal"])
}

func TestLookup(t *testing.T) {
	assert.NotNil(t, Lookup("postgres/activity"))
	assert.Nil(t, Lookup("postgres/does-not-exist"))
}
