package collector

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rustwizard/pg-exporter/internal/model"
)

const databaseQueryPre14 = "SELECT " +
	"datname, numbackends, xact_commit, xact_rollback, blks_read, blks_hit, " +
	"tup_returned, tup_fetched, tup_inserted, tup_updated, tup_deleted, " +
	"conflicts, temp_files, temp_bytes, deadlocks, blk_read_time, blk_write_time " +
	"FROM pg_stat_database WHERE datname IS NOT NULL"

const databaseQueryLatest = "SELECT " +
	"datname, numbackends, xact_commit, xact_rollback, blks_read, blks_hit, " +
	"tup_returned, tup_fetched, tup_inserted, tup_updated, tup_deleted, " +
	"conflicts, temp_files, temp_bytes, deadlocks, blk_read_time, blk_write_time, " +
	"checksum_failures, session_time, active_time, idle_in_transaction_time, sessions, " +
	"sessions_abandoned, sessions_fatal, sessions_killed " +
	"FROM pg_stat_database WHERE datname IS NOT NULL"

var (
	famDBBackends = &Family{Name: "pg_database_backends", Help: "Number of backends currently connected to each database.", Type: prometheus.GaugeValue, Labels: []string{"database"}}
	famDBXact     = &Family{Name: "pg_database_xact_total", Help: "Total number of transactions by database and outcome.", Type: prometheus.CounterValue, Labels: []string{"database", "outcome"}}
	famDBBlocks   = &Family{Name: "pg_database_blocks_total", Help: "Total number of disk blocks by database and source.", Type: prometheus.CounterValue, Labels: []string{"database", "source"}}
	famDBTuples   = &Family{Name: "pg_database_tuples_total", Help: "Total number of tuples by database and operation.", Type: prometheus.CounterValue, Labels: []string{"database", "op"}}
	famDBConflict = &Family{Name: "pg_database_conflicts_total", Help: "Total number of queries cancelled due to recovery conflicts by database.", Type: prometheus.CounterValue, Labels: []string{"database"}}
	famDBTemp     = &Family{Name: "pg_database_temp_bytes_total", Help: "Total amount of data written to temporary files by database, in bytes.", Type: prometheus.CounterValue, Labels: []string{"database"}}
	famDBDeadlock = &Family{Name: "pg_database_deadlocks_total", Help: "Total number of deadlocks detected by database.", Type: prometheus.CounterValue, Labels: []string{"database"}}
	famDBIOTime   = &Family{Name: "pg_database_blocks_time_seconds_total", Help: "Total time spent reading and writing data blocks by database and direction, in seconds.", Type: prometheus.CounterValue, Labels: []string{"database", "direction"}}
	famDBSessions = &Family{Name: "pg_database_sessions_total", Help: "Total number of sessions established to each database, since PostgreSQL 14.", Type: prometheus.CounterValue, Labels: []string{"database"}}
)

func init() {
	Register(&Def{
		Name: "postgres/database",
		Families: []*Family{
			famDBBackends, famDBXact, famDBBlocks, famDBTuples,
			famDBConflict, famDBTemp, famDBDeadlock, famDBIOTime, famDBSessions,
		},
		Variants: []Variant{
			{
				Predicate: func(c model.Capabilities) bool { return c.ServerVersionNum < model.PostgresV14 },
				Build:     func(model.Capabilities, InstanceSettings) (string, []any) { return databaseQueryPre14, nil },
			},
			{
				Predicate: func(model.Capabilities) bool { return true },
				Build:     func(model.Capabilities, InstanceSettings) (string, []any) { return databaseQueryLatest, nil },
			},
		},
		Project: projectDatabase,
	})
}

func projectDatabase(r *model.PGResult, _ model.Capabilities, _ InstanceSettings) ([]Sample, error) {
	datnameIdx := r.ColumnIndex("datname")

	out := make([]Sample, 0, r.Nrows*8)
	for i := 0; i < r.Nrows; i++ {
		datname := stringAt(r, i, datnameIdx)

		if v, ok := floatAt(r, i, r.ColumnIndex("numbackends")); ok {
			out = append(out, Sample{famDBBackends, []string{datname}, v})
		}
		if v, ok := floatAt(r, i, r.ColumnIndex("xact_commit")); ok {
			out = append(out, Sample{famDBXact, []string{datname, "commit"}, v})
		}
		if v, ok := floatAt(r, i, r.ColumnIndex("xact_rollback")); ok {
			out = append(out, Sample{famDBXact, []string{datname, "rollback"}, v})
		}
		if v, ok := floatAt(r, i, r.ColumnIndex("blks_read")); ok {
			out = append(out, Sample{famDBBlocks, []string{datname, "read"}, v})
		}
		if v, ok := floatAt(r, i, r.ColumnIndex("blks_hit")); ok {
			out = append(out, Sample{famDBBlocks, []string{datname, "hit"}, v})
		}
		for _, op := range []string{"returned", "fetched", "inserted", "updated", "deleted"} {
			if v, ok := floatAt(r, i, r.ColumnIndex("tup_"+op)); ok {
				out = append(out, Sample{famDBTuples, []string{datname, op}, v})
			}
		}
		if v, ok := floatAt(r, i, r.ColumnIndex("conflicts")); ok {
			out = append(out, Sample{famDBConflict, []string{datname}, v})
		}
		if v, ok := floatAt(r, i, r.ColumnIndex("temp_bytes")); ok {
			out = append(out, Sample{famDBTemp, []string{datname}, v})
		}
		if v, ok := floatAt(r, i, r.ColumnIndex("deadlocks")); ok {
			out = append(out, Sample{famDBDeadlock, []string{datname}, v})
		}
		if v, ok := floatAt(r, i, r.ColumnIndex("blk_read_time")); ok {
			out = append(out, Sample{famDBIOTime, []string{datname, "read"}, v / 1000})
		}
		if v, ok := floatAt(r, i, r.ColumnIndex("blk_write_time")); ok {
			out = append(out, Sample{famDBIOTime, []string{datname, "write"}, v / 1000})
		}
		if v, ok := floatAt(r, i, r.ColumnIndex("sessions")); ok {
			out = append(out, Sample{famDBSessions, []string{datname}, v})
		}
	}
	return out, nil
}
