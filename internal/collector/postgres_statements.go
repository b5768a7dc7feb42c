package collector

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rustwizard/pg-exporter/internal/model"
)

// noTrackQueryText is substituted for the statement's query text when no_track_mode is
// enabled, so query literals and table names never leave the instance.
const noTrackQueryText = "'[REDACTED]'"

const statementsQueryPre16 = "SELECT d.datname AS database, pg_get_userbyid(p.userid) AS \"user\", p.queryid, " +
	"%s AS query, p.calls, p.rows, p.total_exec_time, p.blk_read_time, p.blk_write_time, " +
	"NULLIF(p.shared_blks_hit, 0) AS shared_blks_hit, NULLIF(p.shared_blks_read, 0) AS shared_blks_read, " +
	"NULLIF(p.temp_blks_read, 0) AS temp_blks_read, NULLIF(p.temp_blks_written, 0) AS temp_blks_written " +
	"FROM %s.pg_stat_statements p JOIN pg_database d ON d.oid = p.dbid " +
	"WHERE d.datname = current_database()"

const statementsQueryTopKPre16 = "WITH stat AS (SELECT d.datname AS database, pg_get_userbyid(p.userid) AS \"user\", p.queryid, " +
	"%s AS query, p.calls, p.rows, p.total_exec_time, p.blk_read_time, p.blk_write_time, " +
	"NULLIF(p.shared_blks_hit, 0) AS shared_blks_hit, NULLIF(p.shared_blks_read, 0) AS shared_blks_read, " +
	"NULLIF(p.temp_blks_read, 0) AS temp_blks_read, NULLIF(p.temp_blks_written, 0) AS temp_blks_written, " +
	"(ROW_NUMBER() OVER (ORDER BY p.calls DESC NULLS LAST) < $1) OR (ROW_NUMBER() OVER (ORDER BY p.total_exec_time DESC NULLS LAST) < $1) OR " +
	"(ROW_NUMBER() OVER (ORDER BY p.rows DESC NULLS LAST) < $1) AS visible " +
	"FROM %s.pg_stat_statements p JOIN pg_database d ON d.oid = p.dbid " +
	"WHERE d.datname = current_database()) " +
	"SELECT * FROM stat WHERE visible"

const statementsQueryLatest = "SELECT d.datname AS database, pg_get_userbyid(p.userid) AS \"user\", p.queryid, " +
	"%s AS query, p.calls, p.rows, p.total_exec_time, p.shared_blk_read_time AS blk_read_time, p.shared_blk_write_time AS blk_write_time, " +
	"NULLIF(p.shared_blks_hit, 0) AS shared_blks_hit, NULLIF(p.shared_blks_read, 0) AS shared_blks_read, " +
	"NULLIF(p.temp_blks_read, 0) AS temp_blks_read, NULLIF(p.temp_blks_written, 0) AS temp_blks_written, " +
	"NULLIF(p.wal_bytes, 0) AS wal_bytes " +
	"FROM %s.pg_stat_statements p JOIN pg_database d ON d.oid = p.dbid " +
	"WHERE d.datname = current_database()"

const statementsQueryTopKLatest = "WITH stat AS (SELECT d.datname AS database, pg_get_userbyid(p.userid) AS \"user\", p.queryid, " +
	"%s AS query, p.calls, p.rows, p.total_exec_time, p.shared_blk_read_time AS blk_read_time, p.shared_blk_write_time AS blk_write_time, " +
	"NULLIF(p.shared_blks_hit, 0) AS shared_blks_hit, NULLIF(p.shared_blks_read, 0) AS shared_blks_read, " +
	"NULLIF(p.temp_blks_read, 0) AS temp_blks_read, NULLIF(p.temp_blks_written, 0) AS temp_blks_written, " +
	"NULLIF(p.wal_bytes, 0) AS wal_bytes, " +
	"(ROW_NUMBER() OVER (ORDER BY p.calls DESC NULLS LAST) < $1) OR (ROW_NUMBER() OVER (ORDER BY p.total_exec_time DESC NULLS LAST) < $1) OR " +
	"(ROW_NUMBER() OVER (ORDER BY p.rows DESC NULLS LAST) < $1) AS visible " +
	"FROM %s.pg_stat_statements p JOIN pg_database d ON d.oid = p.dbid " +
	"WHERE d.datname = current_database()) " +
	"SELECT * FROM stat WHERE visible"

var (
	famStmtCalls = &Family{
		Name: "pg_statements_calls_total", Help: "Total number of times each statement has been executed, by database, user and query.",
		Type: prometheus.CounterValue, Labels: []string{"database", "user", "queryid", "query"},
	}
	famStmtRows = &Family{
		Name: "pg_statements_rows_total", Help: "Total number of rows retrieved or affected by each statement, by database, user and query.",
		Type: prometheus.CounterValue, Labels: []string{"database", "user", "queryid", "query"},
	}
	famStmtTime = &Family{
		Name: "pg_statements_time_seconds_total", Help: "Total time spent executing each statement, by database, user, query and mode.",
		Type: prometheus.CounterValue, Labels: []string{"database", "user", "queryid", "query", "mode"},
	}
	famStmtBlocks = &Family{
		Name: "pg_statements_blocks_total", Help: "Total number of shared buffer blocks processed by each statement, by database, user, query and outcome.",
		Type: prometheus.CounterValue, Labels: []string{"database", "user", "queryid", "query", "outcome"},
	}
	famStmtTemp = &Family{
		Name: "pg_statements_temp_blocks_total", Help: "Total number of temp file blocks processed by each statement, by database, user, query and direction.",
		Type: prometheus.CounterValue, Labels: []string{"database", "user", "queryid", "query", "direction"},
	}
	famStmtWAL = &Family{
		Name: "pg_statements_wal_bytes_total", Help: "Total amount of WAL generated by each statement, in bytes, by database, user and query.",
		Type: prometheus.CounterValue, Labels: []string{"database", "user", "queryid", "query"},
	}
)

func init() {
	Register(&Def{
		Name:        "postgres/statements",
		PerDatabase: true,
		Families:    []*Family{famStmtCalls, famStmtRows, famStmtTime, famStmtBlocks, famStmtTemp, famStmtWAL},
		Variants: []Variant{
			{
				Predicate: func(c model.Capabilities) bool { return c.HasPgStatStatements && c.ServerVersionNum < model.PostgresV16 },
				Build:     buildStatementsQuery(statementsQueryPre16, statementsQueryTopKPre16),
			},
			{
				Predicate: func(c model.Capabilities) bool { return c.HasPgStatStatements },
				Build:     buildStatementsQuery(statementsQueryLatest, statementsQueryTopKLatest),
			},
		},
		Project: projectStatements,
	})
}

// buildStatementsQuery closes over the (plain, topK) query templates for one version
// family and substitutes the query-text expression and pg_stat_statements schema.
func buildStatementsQuery(plain, topK string) func(model.Capabilities, InstanceSettings) (string, []any) {
	return func(caps model.Capabilities, settings InstanceSettings) (string, []any) {
		queryExpr := "COALESCE(p.query, '')"
		if settings.NoTrackMode {
			queryExpr = noTrackQueryText
		}
		schema := caps.PgStatStatementsSchema
		if schema == "" {
			schema = "public"
		}
		if settings.TopQuery > 0 {
			return fmt.Sprintf(topK, queryExpr, schema), []any{settings.TopQuery}
		}
		return fmt.Sprintf(plain, queryExpr, schema), nil
	}
}

func projectStatements(r *model.PGResult, _ model.Capabilities, _ InstanceSettings) ([]Sample, error) {
	userIdx, queryidIdx, queryIdx := r.ColumnIndex("user"), r.ColumnIndex("queryid"), r.ColumnIndex("query")

	out := make([]Sample, 0, r.Nrows*4)
	for i := 0; i < r.Nrows; i++ {
		user, queryid, query := stringAt(r, i, userIdx), stringAt(r, i, queryidIdx), stringAt(r, i, queryIdx)
		lbl := func(extra ...string) []string { return append([]string{user, queryid, query}, extra...) }

		if v, ok := floatAt(r, i, r.ColumnIndex("calls")); ok {
			out = append(out, Sample{famStmtCalls, lbl(), v})
		}
		if v, ok := floatAt(r, i, r.ColumnIndex("rows")); ok {
			out = append(out, Sample{famStmtRows, lbl(), v})
		}
		if v, ok := floatAt(r, i, r.ColumnIndex("total_exec_time")); ok {
			out = append(out, Sample{famStmtTime, lbl("exec"), v / 1000})
		}
		if v, ok := floatAt(r, i, r.ColumnIndex("blk_read_time")); ok {
			out = append(out, Sample{famStmtTime, lbl("blk_read"), v / 1000})
		}
		if v, ok := floatAt(r, i, r.ColumnIndex("blk_write_time")); ok {
			out = append(out, Sample{famStmtTime, lbl("blk_write"), v / 1000})
		}
		if v, ok := floatAt(r, i, r.ColumnIndex("shared_blks_hit")); ok {
			out = append(out, Sample{famStmtBlocks, lbl("hit"), v})
		}
		if v, ok := floatAt(r, i, r.ColumnIndex("shared_blks_read")); ok {
			out = append(out, Sample{famStmtBlocks, lbl("read"), v})
		}
		if v, ok := floatAt(r, i, r.ColumnIndex("temp_blks_read")); ok {
			out = append(out, Sample{famStmtTemp, lbl("read"), v})
		}
		if v, ok := floatAt(r, i, r.ColumnIndex("temp_blks_written")); ok {
			out = append(out, Sample{famStmtTemp, lbl("written"), v})
		}
		if v, ok := floatAt(r, i, r.ColumnIndex("wal_bytes")); ok {
			out = append(out, Sample{famStmtWAL, lbl(), v})
		}
	}
	return out, nil
}
