package collector

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rustwizard/pg-exporter/internal/model"
)

// WAL generation queries, version-dispatched across the PG14 boundary where
// pg_stat_wal was introduced and the PG18 boundary where its write/sync-latency
// columns were removed in favor of pg_stat_io.
const (
	walQueryPre14 = "SELECT pg_is_in_recovery()::int AS recovery, " +
		"(CASE pg_is_in_recovery() WHEN true THEN pg_last_wal_receive_lsn() ELSE pg_current_wal_lsn() END - '0/00000000'::pg_lsn)::float8 AS wal_written"

	walQuery14 = "SELECT pg_is_in_recovery()::int AS recovery, wal_records, wal_fpi, " +
		"(CASE pg_is_in_recovery() WHEN true THEN pg_last_wal_receive_lsn() ELSE pg_current_wal_lsn() END - '0/00000000'::pg_lsn)::float8 AS wal_written, " +
		"wal_bytes::float8, wal_buffers_full, wal_write, wal_sync, wal_write_time, wal_sync_time, " +
		"extract(epoch from stats_reset)::float8 AS reset_time " +
		"FROM pg_stat_wal"

	walQueryLatest = "SELECT pg_is_in_recovery()::int AS recovery, " +
		"(CASE pg_is_in_recovery() WHEN false THEN 0 ELSE pg_is_wal_replay_paused()::int END) AS recovery_paused, " +
		"wal_records, wal_fpi, " +
		"(CASE pg_is_in_recovery() WHEN true THEN pg_last_wal_receive_lsn() ELSE pg_current_wal_lsn() END - '0/00000000'::pg_lsn)::float8 AS wal_written, " +
		"wal_bytes::float8, wal_buffers_full, extract(epoch from stats_reset)::float8 AS reset_time " +
		"FROM pg_stat_wal"
)

var (
	famWalRecoveryInfo = &Family{
		Name: "pg_recovery_info", Help: "Current recovery state: 1 if the server is a standby, 0 if it is a primary.",
		Type: prometheus.GaugeValue,
	}
	famWalRecoveryPaused = &Family{
		Name: "pg_recovery_paused_info", Help: "Whether WAL replay is currently paused on a standby; always 0 on a primary. Present since PostgreSQL 18.",
		Type: prometheus.GaugeValue,
	}
	famWalRecordsTotal = &Family{
		Name: "pg_wal_records_total", Help: "Total number of WAL records generated (zero on a standby).",
		Type: prometheus.CounterValue,
	}
	famWalFPITotal = &Family{
		Name: "pg_wal_fpi_total", Help: "Total number of WAL full page images generated (zero on a standby).",
		Type: prometheus.CounterValue,
	}
	famWalBytesTotal = &Family{
		Name: "pg_wal_bytes_total", Help: "Total amount of WAL generated since the last stats reset, in bytes (zero on a standby).",
		Type: prometheus.CounterValue,
	}
	famWalWrittenBytesTotal = &Family{
		Name: "pg_wal_written_bytes_total", Help: "Total amount of WAL written, or received in case of a standby, since cluster init, in bytes.",
		Type: prometheus.CounterValue,
	}
	famWalBuffersFullTotal = &Family{
		Name: "pg_wal_buffers_full_total", Help: "Total number of times WAL data was written to disk because WAL buffers became full (zero on a standby).",
		Type: prometheus.CounterValue,
	}
	famWalOpTotal = &Family{
		Name: "pg_wal_op_total", Help: "Total number of WAL write/sync operations performed (zero on a standby). Removed in PostgreSQL 18.",
		Type: prometheus.CounterValue, Labels: []string{"op"},
	}
	famWalSecondsTotal = &Family{
		Name: "pg_wal_seconds_total", Help: "Total time spent on each WAL write/sync operation, in seconds (zero on a standby). Removed in PostgreSQL 18.",
		Type: prometheus.CounterValue, Labels: []string{"op"},
	}
	famWalStatsResetTime = &Family{
		Name: "pg_wal_stats_reset_time_seconds", Help: "Time at which WAL statistics were last reset, in unixtime.",
		Type: prometheus.GaugeValue,
	}
)

func init() {
	Register(&Def{
		Name: "postgres/wal",
		Families: []*Family{
			famWalRecoveryInfo, famWalRecoveryPaused, famWalRecordsTotal, famWalFPITotal,
			famWalBytesTotal, famWalWrittenBytesTotal, famWalBuffersFullTotal,
			famWalOpTotal, famWalSecondsTotal, famWalStatsResetTime,
		},
		Variants: []Variant{
			{
				Predicate: func(c model.Capabilities) bool { return c.ServerVersionNum < model.PostgresV14 },
				Build:     func(model.Capabilities, InstanceSettings) (string, []any) { return walQueryPre14, nil },
			},
			{
				Predicate: func(c model.Capabilities) bool { return c.ServerVersionNum < model.PostgresV18 },
				Build:     func(model.Capabilities, InstanceSettings) (string, []any) { return walQuery14, nil },
			},
			{
				Predicate: func(model.Capabilities) bool { return true },
				Build:     func(model.Capabilities, InstanceSettings) (string, []any) { return walQueryLatest, nil },
			},
		},
		Project: projectWAL,
	})
}

func projectWAL(r *model.PGResult, _ model.Capabilities, _ InstanceSettings) ([]Sample, error) {
	if r.Nrows == 0 {
		return nil, nil
	}

	col := r.ColumnIndex
	get := func(name string) (float64, bool) { return floatAt(r, 0, col(name)) }

	var out []Sample
	if v, ok := get("recovery"); ok {
		out = append(out, Sample{famWalRecoveryInfo, nil, v})
	}
	if v, ok := get("recovery_paused"); ok {
		out = append(out, Sample{famWalRecoveryPaused, nil, v})
	}
	if v, ok := get("wal_records"); ok {
		out = append(out, Sample{famWalRecordsTotal, nil, v})
	}
	if v, ok := get("wal_fpi"); ok {
		out = append(out, Sample{famWalFPITotal, nil, v})
	}
	if v, ok := get("wal_bytes"); ok {
		out = append(out, Sample{famWalBytesTotal, nil, v})
	}
	if v, ok := get("wal_written"); ok {
		out = append(out, Sample{famWalWrittenBytesTotal, nil, v})
	}
	if v, ok := get("wal_buffers_full"); ok {
		out = append(out, Sample{famWalBuffersFullTotal, nil, v})
	}
	if v, ok := get("wal_write"); ok {
		out = append(out, Sample{famWalOpTotal, []string{"write"}, v})
	}
	if v, ok := get("wal_sync"); ok {
		out = append(out, Sample{famWalOpTotal, []string{"sync"}, v})
	}
	if v, ok := get("wal_write_time"); ok {
		out = append(out, Sample{famWalSecondsTotal, []string{"write"}, v / 1000})
	}
	if v, ok := get("wal_sync_time"); ok {
		out = append(out, Sample{famWalSecondsTotal, []string{"sync"}, v / 1000})
	}
	if v, ok := get("reset_time"); ok {
		out = append(out, Sample{famWalStatsResetTime, nil, v})
	}

	return out, nil
}
