package collector

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rustwizard/pg-exporter/internal/model"
)

// Recovery conflict counters only accumulate on a standby; on a primary the view exists
// but every row is always zero, so the collector still runs there, it is just inert.
const conflictsQueryPre16 = "SELECT " +
	"datname, confl_tablespace, confl_lock, confl_snapshot, confl_bufferpin, confl_deadlock " +
	"FROM pg_stat_database_conflicts"

const conflictsQueryLatest = "SELECT " +
	"datname, confl_tablespace, confl_lock, confl_snapshot, confl_bufferpin, confl_deadlock, confl_active_logicalslot " +
	"FROM pg_stat_database_conflicts"

var famConflicts = &Family{
	Name: "pg_recovery_conflicts_total", Help: "Total number of recovery conflicts by database and conflict type.",
	Type: prometheus.CounterValue, Labels: []string{"database", "conflict"},
}

func init() {
	Register(&Def{
		Name:     "postgres/conflicts",
		Families: []*Family{famConflicts},
		Variants: []Variant{
			{
				Predicate: func(c model.Capabilities) bool { return c.ServerVersionNum < model.PostgresV16 },
				Build:     func(model.Capabilities, InstanceSettings) (string, []any) { return conflictsQueryPre16, nil },
			},
			{
				Predicate: func(model.Capabilities) bool { return true },
				Build:     func(model.Capabilities, InstanceSettings) (string, []any) { return conflictsQueryLatest, nil },
			},
		},
		Project: projectConflicts,
	})
}

func projectConflicts(r *model.PGResult, _ model.Capabilities, _ InstanceSettings) ([]Sample, error) {
	datnameIdx := r.ColumnIndex("datname")
	kinds := []string{"tablespace", "lock", "snapshot", "bufferpin", "deadlock", "active_logicalslot"}
	cols := []string{"confl_tablespace", "confl_lock", "confl_snapshot", "confl_bufferpin", "confl_deadlock", "confl_active_logicalslot"}

	out := make([]Sample, 0, r.Nrows*len(kinds))
	for i := 0; i < r.Nrows; i++ {
		datname := stringAt(r, i, datnameIdx)
		for j, col := range cols {
			idx := r.ColumnIndex(col)
			if idx < 0 {
				continue
			}
			v, ok := floatAt(r, i, idx)
			if !ok {
				continue
			}
			out = append(out, Sample{famConflicts, []string{datname, kinds[j]}, v})
		}
	}
	return out, nil
}
