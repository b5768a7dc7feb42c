package collector

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rustwizard/pg-exporter/internal/model"
)

// replicationSlotsQuery reports, per slot, the amount of WAL the server must retain to
// satisfy that slot's consumer; an abandoned slot (active = false) grows this without
// bound and is the classic cause of disk exhaustion from WAL retention.
const replicationSlotsQuery = "SELECT database, slot_name, slot_type, active, " +
	"(CASE WHEN pg_is_in_recovery() THEN pg_wal_lsn_diff(pg_last_wal_receive_lsn(), restart_lsn) " +
	"ELSE pg_wal_lsn_diff(pg_current_wal_lsn(), restart_lsn) END)::float8 AS retained_bytes " +
	"FROM pg_replication_slots"

var famSlotRetainedBytes = &Family{
	Name: "pg_replication_slot_retained_bytes", Help: "Amount of WAL retained on disk to satisfy each replication slot's consumer, in bytes.",
	Type: prometheus.GaugeValue, Labels: []string{"database", "slot_name", "slot_type", "active"},
}

func init() {
	Register(&Def{
		Name:     "postgres/replication_slots",
		Families: []*Family{famSlotRetainedBytes},
		Variants: []Variant{
			{
				Predicate: func(model.Capabilities) bool { return true },
				Build:     func(model.Capabilities, InstanceSettings) (string, []any) { return replicationSlotsQuery, nil },
			},
		},
		Project: projectReplicationSlots,
	})
}

func projectReplicationSlots(r *model.PGResult, _ model.Capabilities, _ InstanceSettings) ([]Sample, error) {
	databaseIdx := r.ColumnIndex("database")
	slotNameIdx := r.ColumnIndex("slot_name")
	slotTypeIdx := r.ColumnIndex("slot_type")
	activeIdx := r.ColumnIndex("active")
	retainedIdx := r.ColumnIndex("retained_bytes")

	out := make([]Sample, 0, r.Nrows)
	for i := 0; i < r.Nrows; i++ {
		v, ok := floatAt(r, i, retainedIdx)
		if !ok {
			continue
		}
		active := "false"
		if boolAt(r, i, activeIdx) {
			active = "true"
		}
		out = append(out, Sample{
			famSlotRetainedBytes,
			[]string{stringAt(r, i, databaseIdx), stringAt(r, i, slotNameIdx), stringAt(r, i, slotTypeIdx), active},
			v,
		})
	}
	return out, nil
}
