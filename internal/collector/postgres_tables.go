package collector

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rustwizard/pg-exporter/internal/model"
)

const tablesQuery = "SELECT " +
	"schemaname AS schema, relname AS table, seq_scan, seq_tup_read, idx_scan, idx_tup_fetch, " +
	"n_tup_ins, n_tup_upd, n_tup_del, n_tup_hot_upd, n_live_tup, n_dead_tup, n_mod_since_analyze, " +
	"COALESCE(EXTRACT(EPOCH FROM AGE(now(), last_vacuum)), 0) AS last_vacuum_seconds, " +
	"COALESCE(EXTRACT(EPOCH FROM AGE(now(), last_analyze)), 0) AS last_analyze_seconds, " +
	"vacuum_count, autovacuum_count, analyze_count, autoanalyze_count, " +
	"heap_blks_read, heap_blks_hit, idx_blks_read, idx_blks_hit, " +
	"COALESCE(toast_blks_read, 0) AS toast_blks_read, COALESCE(toast_blks_hit, 0) AS toast_blks_hit, " +
	"COALESCE(tidx_blks_read, 0) AS tidx_blks_read, COALESCE(tidx_blks_hit, 0) AS tidx_blks_hit, " +
	"pg_table_size(relid) AS size_bytes, reltuples " +
	"FROM pg_stat_user_tables t " +
	"JOIN pg_statio_user_tables io USING (schemaname, relname) " +
	"JOIN pg_class c ON c.oid = t.relid"

const tablesQueryTopK = "WITH stat AS (SELECT schemaname AS schema, relname AS table, seq_scan, seq_tup_read, idx_scan, idx_tup_fetch, " +
	"n_tup_ins, n_tup_upd, n_tup_del, n_tup_hot_upd, n_live_tup, n_dead_tup, n_mod_since_analyze, " +
	"COALESCE(EXTRACT(EPOCH FROM AGE(now(), last_vacuum)), 0) AS last_vacuum_seconds, " +
	"COALESCE(EXTRACT(EPOCH FROM AGE(now(), last_analyze)), 0) AS last_analyze_seconds, " +
	"vacuum_count, autovacuum_count, analyze_count, autoanalyze_count, " +
	"heap_blks_read, heap_blks_hit, idx_blks_read, idx_blks_hit, " +
	"COALESCE(toast_blks_read, 0) AS toast_blks_read, COALESCE(toast_blks_hit, 0) AS toast_blks_hit, " +
	"COALESCE(tidx_blks_read, 0) AS tidx_blks_read, COALESCE(tidx_blks_hit, 0) AS tidx_blks_hit, " +
	"pg_table_size(relid) AS size_bytes, reltuples, " +
	"(row_number() OVER (ORDER BY seq_scan DESC NULLS LAST) < $1) OR (row_number() OVER (ORDER BY n_tup_ins + n_tup_upd + n_tup_del DESC NULLS LAST) < $1) OR " +
	"(row_number() OVER (ORDER BY n_dead_tup DESC NULLS LAST) < $1) OR (row_number() OVER (ORDER BY pg_table_size(relid) DESC NULLS LAST) < $1) AS visible " +
	"FROM pg_stat_user_tables t " +
	"JOIN pg_statio_user_tables io USING (schemaname, relname) " +
	"JOIN pg_class c ON c.oid = t.relid) " +
	"SELECT * FROM stat WHERE visible"

var (
	famTableSeqScans = &Family{
		Name: "pg_table_seq_scans_total", Help: "Total number of sequential scans initiated, by database, schema and table.",
		Type: prometheus.CounterValue, Labels: []string{"database", "schema", "table"},
	}
	famTableSeqTupRead = &Family{
		Name: "pg_table_seq_tuples_read_total", Help: "Total number of tuples read by sequential scans, by database, schema and table.",
		Type: prometheus.CounterValue, Labels: []string{"database", "schema", "table"},
	}
	famTableIdxScans = &Family{
		Name: "pg_table_idx_scans_total", Help: "Total number of index scans initiated on a table, by database, schema and table.",
		Type: prometheus.CounterValue, Labels: []string{"database", "schema", "table"},
	}
	famTableTuples = &Family{
		Name: "pg_table_tuples_total", Help: "Total number of tuples affected, by database, schema, table and operation.",
		Type: prometheus.CounterValue, Labels: []string{"database", "schema", "table", "op"},
	}
	famTableTuplesLive = &Family{
		Name: "pg_table_tuples_live", Help: "Estimated number of live tuples, by database, schema and table.",
		Type: prometheus.GaugeValue, Labels: []string{"database", "schema", "table"},
	}
	famTableTuplesDead = &Family{
		Name: "pg_table_tuples_dead", Help: "Estimated number of dead tuples, by database, schema and table.",
		Type: prometheus.GaugeValue, Labels: []string{"database", "schema", "table"},
	}
	famTableMaintenance = &Family{
		Name: "pg_table_maintenance_total", Help: "Total number of vacuum/analyze operations performed, by database, schema, table, operation and initiator.",
		Type: prometheus.CounterValue, Labels: []string{"database", "schema", "table", "op", "initiator"},
	}
	famTableMaintenanceAge = &Family{
		Name: "pg_table_since_last_maintenance_seconds", Help: "Time since the table was last vacuumed or analyzed, in seconds, by database, schema, table and operation.",
		Type: prometheus.GaugeValue, Labels: []string{"database", "schema", "table", "op"},
	}
	famTableIOBlocks = &Family{
		Name: "pg_table_io_blocks_total", Help: "Total number of disk blocks processed, by database, schema, table, relation part and access outcome.",
		Type: prometheus.CounterValue, Labels: []string{"database", "schema", "table", "relpart", "access"},
	}
	famTableSize = &Family{
		Name: "pg_table_size_bytes", Help: "Total size of the table's heap, in bytes, by database, schema and table.",
		Type: prometheus.GaugeValue, Labels: []string{"database", "schema", "table"},
	}
)

func init() {
	Register(&Def{
		Name:        "postgres/tables",
		PerDatabase: true,
		Families: []*Family{
			famTableSeqScans, famTableSeqTupRead, famTableIdxScans, famTableTuples,
			famTableTuplesLive, famTableTuplesDead, famTableMaintenance, famTableMaintenanceAge,
			famTableIOBlocks, famTableSize,
		},
		Variants: []Variant{
			{
				Predicate: func(model.Capabilities) bool { return true },
				Build: func(_ model.Capabilities, settings InstanceSettings) (string, []any) {
					if settings.TopTable > 0 {
						return tablesQueryTopK, []any{settings.TopTable}
					}
					return tablesQuery, nil
				},
			},
		},
		Project: projectTables,
	})
}

func projectTables(r *model.PGResult, _ model.Capabilities, _ InstanceSettings) ([]Sample, error) {
	schemaIdx, tableIdx := r.ColumnIndex("schema"), r.ColumnIndex("table")

	out := make([]Sample, 0, r.Nrows*10)
	for i := 0; i < r.Nrows; i++ {
		schema, table := stringAt(r, i, schemaIdx), stringAt(r, i, tableIdx)
		lbl := func(extra ...string) []string { return append([]string{schema, table}, extra...) }

		if v, ok := floatAt(r, i, r.ColumnIndex("seq_scan")); ok {
			out = append(out, Sample{famTableSeqScans, lbl(), v})
		}
		if v, ok := floatAt(r, i, r.ColumnIndex("seq_tup_read")); ok {
			out = append(out, Sample{famTableSeqTupRead, lbl(), v})
		}
		if v, ok := floatAt(r, i, r.ColumnIndex("idx_scan")); ok {
			out = append(out, Sample{famTableIdxScans, lbl(), v})
		}
		for _, op := range []string{"ins", "upd", "del", "hot_upd"} {
			if v, ok := floatAt(r, i, r.ColumnIndex("n_tup_"+op)); ok {
				out = append(out, Sample{famTableTuples, lbl(op), v})
			}
		}
		if v, ok := floatAt(r, i, r.ColumnIndex("n_live_tup")); ok {
			out = append(out, Sample{famTableTuplesLive, lbl(), v})
		}
		if v, ok := floatAt(r, i, r.ColumnIndex("n_dead_tup")); ok {
			out = append(out, Sample{famTableTuplesDead, lbl(), v})
		}
		for _, op := range []string{"vacuum", "autovacuum", "analyze", "autoanalyze"} {
			if v, ok := floatAt(r, i, r.ColumnIndex(op+"_count")); ok {
				initiator := "manual"
				base := op
				if op == "autovacuum" {
					base, initiator = "vacuum", "auto"
				} else if op == "autoanalyze" {
					base, initiator = "analyze", "auto"
				}
				out = append(out, Sample{famTableMaintenance, lbl(base, initiator), v})
			}
		}
		if v, ok := floatAt(r, i, r.ColumnIndex("last_vacuum_seconds")); ok {
			out = append(out, Sample{famTableMaintenanceAge, lbl("vacuum"), v})
		}
		if v, ok := floatAt(r, i, r.ColumnIndex("last_analyze_seconds")); ok {
			out = append(out, Sample{famTableMaintenanceAge, lbl("analyze"), v})
		}
		for _, part := range []struct{ col, label string }{
			{"heap", "heap"}, {"idx", "index"}, {"toast", "toast"}, {"tidx", "toast_index"},
		} {
			if v, ok := floatAt(r, i, r.ColumnIndex(part.col+"_blks_read")); ok {
				out = append(out, Sample{famTableIOBlocks, lbl(part.label, "read"), v})
			}
			if v, ok := floatAt(r, i, r.ColumnIndex(part.col+"_blks_hit")); ok {
				out = append(out, Sample{famTableIOBlocks, lbl(part.label, "hit"), v})
			}
		}
		if v, ok := floatAt(r, i, r.ColumnIndex("size_bytes")); ok {
			out = append(out, Sample{famTableSize, lbl(), v})
		}
	}
	return out, nil
}
