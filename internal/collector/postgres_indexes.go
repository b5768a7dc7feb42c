package collector

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rustwizard/pg-exporter/internal/model"
)

const indexesQuery = "SELECT " +
	"schemaname AS schema, relname AS table, indexrelname AS index, (i.indisprimary OR i.indisunique) AS key, " +
	"i.indisvalid AS isvalid, idx_scan, idx_tup_read, idx_tup_fetch, idx_blks_read, idx_blks_hit, pg_relation_size(s1.indexrelid) AS size_bytes " +
	"FROM pg_stat_user_indexes s1 " +
	"JOIN pg_statio_user_indexes s2 USING (schemaname, relname, indexrelname) " +
	"JOIN pg_index i ON (s1.indexrelid = i.indexrelid) " +
	"WHERE NOT EXISTS (SELECT 1 FROM pg_locks WHERE relation = s1.indexrelid AND mode = 'AccessExclusiveLock' AND granted)"

const indexesQueryTopK = "WITH stat AS (SELECT schemaname AS schema, relname AS table, indexrelname AS index, (i.indisprimary OR i.indisunique) AS key, " +
	"i.indisvalid AS isvalid, idx_scan, idx_tup_read, idx_tup_fetch, idx_blks_read, idx_blks_hit, pg_relation_size(s1.indexrelid) AS size_bytes, " +
	"NOT i.indisvalid OR (idx_scan = 0 AND pg_relation_size(s1.indexrelid) > 50*1024*1024) OR " +
	"(row_number() OVER (ORDER BY idx_scan DESC NULLS LAST) < $1) OR (row_number() OVER (ORDER BY idx_tup_read DESC NULLS LAST) < $1) OR " +
	"(row_number() OVER (ORDER BY idx_tup_fetch DESC NULLS LAST) < $1) OR (row_number() OVER (ORDER BY idx_blks_read DESC NULLS LAST) < $1) OR " +
	"(row_number() OVER (ORDER BY idx_blks_hit DESC NULLS LAST) < $1) OR (row_number() OVER (ORDER BY pg_relation_size(s1.indexrelid) DESC NULLS LAST) < $1) AS visible " +
	"FROM pg_stat_user_indexes s1 " +
	"JOIN pg_statio_user_indexes s2 USING (schemaname, relname, indexrelname) " +
	"JOIN pg_index i ON (s1.indexrelid = i.indexrelid) " +
	"WHERE NOT EXISTS (SELECT 1 FROM pg_locks WHERE relation = s1.indexrelid AND mode = 'AccessExclusiveLock' AND granted)) " +
	"SELECT \"schema\", \"table\", \"index\", \"key\", isvalid, idx_scan, idx_tup_read, idx_tup_fetch, idx_blks_read, idx_blks_hit, size_bytes " +
	"FROM stat WHERE visible " +
	"UNION ALL SELECT 'all_schemas', 'all_other_tables', 'all_other_indexes', true, null, " +
	"NULLIF(SUM(COALESCE(idx_scan,0)),0), NULLIF(SUM(COALESCE(idx_tup_read,0)),0), NULLIF(SUM(COALESCE(idx_tup_fetch,0)),0), " +
	"NULLIF(SUM(COALESCE(idx_blks_read,0)),0), NULLIF(SUM(COALESCE(idx_blks_hit,0)),0), " +
	"NULLIF(SUM(COALESCE(size_bytes,0)),0) FROM stat WHERE NOT visible HAVING EXISTS (SELECT 1 FROM stat WHERE NOT visible)"

// Per-database Families always declare "database" as their first label; the runner's
// per-database fan-out fills it in, so projectors here never see or set it themselves.
var (
	famIndexScans = &Family{
		Name: "pg_index_scans_total", Help: "Total number of index scans initiated, by database, schema, table and index.",
		Type: prometheus.CounterValue, Labels: []string{"database", "schema", "table", "index", "key", "isvalid"},
	}
	famIndexTuples = &Family{
		Name: "pg_index_tuples_total", Help: "Total number of index entries processed by scans, by database, schema, table, index and tuple outcome.",
		Type: prometheus.CounterValue, Labels: []string{"database", "schema", "table", "index", "tuples"},
	}
	famIndexBlocks = &Family{
		Name: "pg_index_blocks_total", Help: "Total number of index blocks processed, by database, schema, table, index and access outcome.",
		Type: prometheus.CounterValue, Labels: []string{"database", "schema", "table", "index", "access"},
	}
	famIndexSize = &Family{
		Name: "pg_index_size_bytes", Help: "Total size of the index, in bytes, by database, schema, table and index.",
		Type: prometheus.GaugeValue, Labels: []string{"database", "schema", "table", "index"},
	}
)

func init() {
	Register(&Def{
		Name:        "postgres/indexes",
		PerDatabase: true,
		Families:    []*Family{famIndexScans, famIndexTuples, famIndexBlocks, famIndexSize},
		Variants: []Variant{
			{
				Predicate: func(model.Capabilities) bool { return true },
				Build: func(_ model.Capabilities, settings InstanceSettings) (string, []any) {
					if settings.TopIndex > 0 {
						return indexesQueryTopK, []any{settings.TopIndex}
					}
					return indexesQuery, nil
				},
			},
		},
		Project: projectIndexes,
	})
}

func projectIndexes(r *model.PGResult, _ model.Capabilities, _ InstanceSettings) ([]Sample, error) {
	schemaIdx, tableIdx, indexIdx := r.ColumnIndex("schema"), r.ColumnIndex("table"), r.ColumnIndex("index")
	keyIdx, validIdx := r.ColumnIndex("key"), r.ColumnIndex("isvalid")

	out := make([]Sample, 0, r.Nrows*4)
	for i := 0; i < r.Nrows; i++ {
		schema, table, index := stringAt(r, i, schemaIdx), stringAt(r, i, tableIdx), stringAt(r, i, indexIdx)
		key, isvalid := stringAt(r, i, keyIdx), stringAt(r, i, validIdx)

		if v, ok := floatAt(r, i, r.ColumnIndex("idx_scan")); ok {
			out = append(out, Sample{famIndexScans, []string{schema, table, index, key, isvalid}, v})
		}
		if v, ok := floatAt(r, i, r.ColumnIndex("size_bytes")); ok {
			out = append(out, Sample{famIndexSize, []string{schema, table, index}, v})
		}
		if v, ok := floatAt(r, i, r.ColumnIndex("idx_tup_read")); ok && v > 0 {
			out = append(out, Sample{famIndexTuples, []string{schema, table, index, "read"}, v})
		}
		if v, ok := floatAt(r, i, r.ColumnIndex("idx_tup_fetch")); ok && v > 0 {
			out = append(out, Sample{famIndexTuples, []string{schema, table, index, "fetched"}, v})
		}
		if v, ok := floatAt(r, i, r.ColumnIndex("idx_blks_read")); ok && v > 0 {
			out = append(out, Sample{famIndexBlocks, []string{schema, table, index, "read"}, v})
		}
		if v, ok := floatAt(r, i, r.ColumnIndex("idx_blks_hit")); ok && v > 0 {
			out = append(out, Sample{famIndexBlocks, []string{schema, table, index, "hit"}, v})
		}
	}
	return out, nil
}
