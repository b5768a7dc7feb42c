package collector

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rustwizard/pg-exporter/internal/model"
)

// Background writer and checkpointer queries across the PG15/16/17/18 boundary where
// pg_stat_bgwriter was split and pg_stat_checkpointer introduced.
// See https://www.postgresql.org/docs/current/monitoring-stats.html#PG-STAT-BGWRITER-VIEW
const (
	bgwriterQueryPre17 = "SELECT " +
		"checkpoints_timed, checkpoints_req, checkpoint_write_time, checkpoint_sync_time, " +
		"buffers_checkpoint, buffers_clean, maxwritten_clean, buffers_backend, buffers_backend_fsync, buffers_alloc, " +
		"COALESCE(EXTRACT(EPOCH FROM AGE(now(), stats_reset)), 0) AS bgwr_stats_age_seconds " +
		"FROM pg_stat_bgwriter"

	bgwriterQuery17 = "WITH ckpt AS (" +
		"SELECT num_timed AS checkpoints_timed, num_requested AS checkpoints_req, restartpoints_timed, restartpoints_req, " +
		"restartpoints_done, write_time AS checkpoint_write_time, sync_time AS checkpoint_sync_time, buffers_written AS buffers_checkpoint, " +
		"COALESCE(EXTRACT(EPOCH FROM AGE(now(), stats_reset)), 0) AS ckpt_stats_age_seconds FROM pg_stat_checkpointer), " +
		"bgwr AS (SELECT buffers_clean, maxwritten_clean, buffers_alloc FROM pg_stat_bgwriter), " +
		"stat_io AS (SELECT SUM(writes) AS buffers_backend, SUM(fsyncs) AS buffers_backend_fsync FROM pg_stat_io WHERE backend_type = 'background writer') " +
		"SELECT ckpt.*, bgwr.*, stat_io.* FROM ckpt, bgwr, stat_io"

	bgwriterQueryLatest = "WITH ckpt AS (" +
		"SELECT num_timed AS checkpoints_timed, num_requested AS checkpoints_req, num_done AS checkpoints_done, " +
		"restartpoints_timed, restartpoints_req, restartpoints_done, write_time AS checkpoint_write_time, sync_time AS checkpoint_sync_time, " +
		"buffers_written AS buffers_checkpoint, slru_written AS buffers_slru, " +
		"COALESCE(EXTRACT(EPOCH FROM AGE(now(), stats_reset)), 0) AS ckpt_stats_age_seconds FROM pg_stat_checkpointer), " +
		"bgwr AS (SELECT buffers_clean, maxwritten_clean, buffers_alloc FROM pg_stat_bgwriter), " +
		"stat_io AS (SELECT SUM(writes) AS buffers_backend, SUM(fsyncs) AS buffers_backend_fsync FROM pg_stat_io WHERE backend_type = 'background writer') " +
		"SELECT ckpt.*, bgwr.*, stat_io.* FROM ckpt, bgwr, stat_io"
)

var (
	famCheckpoints = &Family{
		Name: "pg_checkpoints_total", Help: "Total number of checkpoints that have been performed, by type.",
		Type: prometheus.CounterValue, Labels: []string{"checkpoint"},
	}
	famCheckpointSeconds = &Family{
		Name: "pg_checkpoints_seconds_total", Help: "Total time spent processing checkpoints, by stage, in seconds.",
		Type: prometheus.CounterValue, Labels: []string{"stage"},
	}
	famBgwriterMaxWritten = &Family{
		Name: "pg_bgwriter_maxwritten_clean_total", Help: "Total number of times the background writer stopped a cleaning scan because it had written too many buffers.",
		Type: prometheus.CounterValue,
	}
	famWrittenBytes = &Family{
		Name: "pg_written_bytes_total", Help: "Total number of bytes written by each subsystem.",
		Type: prometheus.CounterValue, Labels: []string{"process"},
	}
	famBackendFsync = &Family{
		Name: "pg_backends_fsync_total", Help: "Total number of times a backend had to execute its own fsync call.",
		Type: prometheus.CounterValue,
	}
	famBackendAllocated = &Family{
		Name: "pg_backends_allocated_bytes_total", Help: "Total number of bytes allocated by backends.",
		Type: prometheus.CounterValue,
	}
	famRestartpoints = &Family{
		Name: "pg_checkpoints_restartpoints_total", Help: "Number of restartpoints, by outcome (timed, requested, done); only present since PostgreSQL 17.",
		Type: prometheus.CounterValue, Labels: []string{"restartpoint"},
	}
)

func init() {
	Register(&Def{
		Name: "postgres/bgwriter",
		Families: []*Family{
			famCheckpoints, famCheckpointSeconds, famBgwriterMaxWritten,
			famWrittenBytes, famBackendFsync, famBackendAllocated, famRestartpoints,
		},
		Variants: []Variant{
			{
				Predicate: func(c model.Capabilities) bool { return c.ServerVersionNum < model.PostgresV17 },
				Build:     func(model.Capabilities, InstanceSettings) (string, []any) { return bgwriterQueryPre17, nil },
			},
			{
				Predicate: func(c model.Capabilities) bool { return c.ServerVersionNum < model.PostgresV18 },
				Build:     func(model.Capabilities, InstanceSettings) (string, []any) { return bgwriterQuery17, nil },
			},
			{
				Predicate: func(model.Capabilities) bool { return true },
				Build:     func(model.Capabilities, InstanceSettings) (string, []any) { return bgwriterQueryLatest, nil },
			},
		},
		Project: projectBgwriter,
	})
}

func projectBgwriter(r *model.PGResult, caps model.Capabilities, _ InstanceSettings) ([]Sample, error) {
	if r.Nrows == 0 {
		return nil, nil
	}

	col := r.ColumnIndex
	bs := float64(caps.BlockSize)
	var out []Sample

	get := func(name string) (float64, bool) { return floatAt(r, 0, col(name)) }

	if v, ok := get("checkpoints_timed"); ok {
		out = append(out, Sample{famCheckpoints, []string{"timed"}, v})
	}
	if v, ok := get("checkpoints_req"); ok {
		out = append(out, Sample{famCheckpoints, []string{"req"}, v})
	}
	if v, ok := get("checkpoints_done"); ok {
		out = append(out, Sample{famCheckpoints, []string{"done"}, v})
	}
	if v, ok := get("checkpoint_write_time"); ok {
		out = append(out, Sample{famCheckpointSeconds, []string{"write"}, v / 1000})
	}
	if v, ok := get("checkpoint_sync_time"); ok {
		out = append(out, Sample{famCheckpointSeconds, []string{"sync"}, v / 1000})
	}
	if v, ok := get("maxwritten_clean"); ok {
		out = append(out, Sample{famBgwriterMaxWritten, nil, v})
	}
	if v, ok := get("buffers_checkpoint"); ok {
		out = append(out, Sample{famWrittenBytes, []string{"checkpointer"}, v * bs})
	}
	if v, ok := get("buffers_clean"); ok {
		out = append(out, Sample{famWrittenBytes, []string{"bgwriter"}, v * bs})
	}
	if v, ok := get("buffers_backend"); ok {
		out = append(out, Sample{famWrittenBytes, []string{"backend"}, v * bs})
	}
	if v, ok := get("buffers_slru"); ok {
		out = append(out, Sample{famWrittenBytes, []string{"slru"}, v * bs})
	}
	if v, ok := get("buffers_backend_fsync"); ok {
		out = append(out, Sample{famBackendFsync, nil, v})
	}
	if v, ok := get("buffers_alloc"); ok {
		out = append(out, Sample{famBackendAllocated, nil, v * bs})
	}
	if v, ok := get("restartpoints_timed"); ok {
		out = append(out, Sample{famRestartpoints, []string{"timed"}, v})
	}
	if v, ok := get("restartpoints_req"); ok {
		out = append(out, Sample{famRestartpoints, []string{"req"}, v})
	}
	if v, ok := get("restartpoints_done"); ok {
		out = append(out, Sample{famRestartpoints, []string{"done"}, v})
	}

	return out, nil
}
