package collector

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rustwizard/pg-exporter/internal/model"
)

const replicationPrimaryQuery = "SELECT " +
	"application_name, state, " +
	"COALESCE(pg_wal_lsn_diff(sent_lsn, replay_lsn), 0) AS lag_bytes, " +
	"COALESCE(EXTRACT(EPOCH FROM write_lag), 0) AS write_lag_seconds, " +
	"COALESCE(EXTRACT(EPOCH FROM flush_lag), 0) AS flush_lag_seconds, " +
	"COALESCE(EXTRACT(EPOCH FROM replay_lag), 0) AS replay_lag_seconds " +
	"FROM pg_stat_replication"

const replicationStandbyQuery = "SELECT " +
	"COALESCE(EXTRACT(EPOCH FROM (now() - pg_last_xact_replay_timestamp())), 0) AS replay_delay_seconds, " +
	"pg_is_wal_replay_paused() AS replay_paused"

var (
	famReplicationLag = &Family{
		Name: "pg_replication_lag_bytes", Help: "Replication lag in bytes between a standby's replay position and the primary's sent position, per standby.",
		Type: prometheus.GaugeValue, Labels: []string{"application"},
	}
	famReplicationStageLag = &Family{
		Name: "pg_replication_stage_lag_seconds", Help: "Replication lag in seconds at each WAL stage, per standby.",
		Type: prometheus.GaugeValue, Labels: []string{"application", "stage"},
	}
	famStandbyReplayDelay = &Family{
		Name: "pg_standby_replay_delay_seconds", Help: "Time in seconds between the last transaction replayed on this standby and now.",
		Type: prometheus.GaugeValue,
	}
	famStandbyReplayPaused = &Family{
		Name: "pg_standby_replay_paused", Help: "Whether WAL replay is currently paused on this standby (1) or not (0).",
		Type: prometheus.GaugeValue,
	}
)

func init() {
	Register(&Def{
		Name:     "postgres/replication_primary",
		Families: []*Family{famReplicationLag, famReplicationStageLag},
		Variants: []Variant{
			{
				Predicate: func(c model.Capabilities) bool { return !c.IsInRecovery },
				Build:     func(model.Capabilities, InstanceSettings) (string, []any) { return replicationPrimaryQuery, nil },
			},
		},
		Project: projectReplicationPrimary,
	})

	Register(&Def{
		Name:     "postgres/replication_standby",
		Families: []*Family{famStandbyReplayDelay, famStandbyReplayPaused},
		Variants: []Variant{
			{
				Predicate: func(c model.Capabilities) bool { return c.IsInRecovery },
				Build:     func(model.Capabilities, InstanceSettings) (string, []any) { return replicationStandbyQuery, nil },
			},
		},
		Project: projectReplicationStandby,
	})
}

func projectReplicationPrimary(r *model.PGResult, _ model.Capabilities, _ InstanceSettings) ([]Sample, error) {
	appIdx := r.ColumnIndex("application_name")

	out := make([]Sample, 0, r.Nrows*4)
	for i := 0; i < r.Nrows; i++ {
		app := stringAt(r, i, appIdx)
		if v, ok := floatAt(r, i, r.ColumnIndex("lag_bytes")); ok {
			out = append(out, Sample{famReplicationLag, []string{app}, v})
		}
		for _, stage := range []string{"write", "flush", "replay"} {
			if v, ok := floatAt(r, i, r.ColumnIndex(stage+"_lag_seconds")); ok {
				out = append(out, Sample{famReplicationStageLag, []string{app, stage}, v})
			}
		}
	}
	return out, nil
}

func projectReplicationStandby(r *model.PGResult, _ model.Capabilities, _ InstanceSettings) ([]Sample, error) {
	if r.Nrows == 0 {
		return nil, nil
	}
	var out []Sample
	if v, ok := floatAt(r, 0, r.ColumnIndex("replay_delay_seconds")); ok {
		out = append(out, Sample{famStandbyReplayDelay, nil, v})
	}
	paused := 0.0
	if boolAt(r, 0, r.ColumnIndex("replay_paused")) {
		paused = 1
	}
	out = append(out, Sample{famStandbyReplayPaused, nil, paused})
	return out, nil
}
