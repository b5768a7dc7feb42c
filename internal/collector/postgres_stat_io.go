package collector

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rustwizard/pg-exporter/internal/model"
)

// pg_stat_io was introduced in PostgreSQL 16; this collector only matches when the
// capability probe confirmed the view exists, so it is absent from the output entirely
// on older servers rather than emitting an all-zero row.
const statIOQuery = "SELECT " +
	"backend_type, object, context, " +
	"COALESCE(reads, 0) AS reads, COALESCE(read_time, 0) AS read_time, " +
	"COALESCE(writes, 0) AS writes, COALESCE(write_time, 0) AS write_time, " +
	"COALESCE(extends, 0) AS extends, COALESCE(hits, 0) AS hits, " +
	"COALESCE(evictions, 0) AS evictions, COALESCE(fsyncs, 0) AS fsyncs " +
	"FROM pg_stat_io"

var (
	famStatIOOps = &Family{
		Name: "pg_stat_io_ops_total", Help: "Total number of I/O operations by backend type, target object, IO context and operation.",
		Type: prometheus.CounterValue, Labels: []string{"backend", "object", "context", "op"},
	}
	famStatIOTime = &Family{
		Name: "pg_stat_io_time_seconds_total", Help: "Total time spent in I/O operations by backend type, target object, IO context and operation, in seconds.",
		Type: prometheus.CounterValue, Labels: []string{"backend", "object", "context", "op"},
	}
)

func init() {
	Register(&Def{
		Name:     "postgres/stat_io",
		Families: []*Family{famStatIOOps, famStatIOTime},
		Variants: []Variant{
			{
				Predicate: func(c model.Capabilities) bool { return c.HasPgStatIO },
				Build:     func(model.Capabilities, InstanceSettings) (string, []any) { return statIOQuery, nil },
			},
		},
		Project: projectStatIO,
	})
}

func projectStatIO(r *model.PGResult, _ model.Capabilities, _ InstanceSettings) ([]Sample, error) {
	backendIdx := r.ColumnIndex("backend_type")
	objectIdx := r.ColumnIndex("object")
	contextIdx := r.ColumnIndex("context")

	countCols := map[string]int{
		"read": r.ColumnIndex("reads"), "write": r.ColumnIndex("writes"),
		"extend": r.ColumnIndex("extends"), "hit": r.ColumnIndex("hits"),
		"eviction": r.ColumnIndex("evictions"), "fsync": r.ColumnIndex("fsyncs"),
	}
	timeCols := map[string]int{
		"read": r.ColumnIndex("read_time"), "write": r.ColumnIndex("write_time"),
	}

	out := make([]Sample, 0, r.Nrows*4)
	for i := 0; i < r.Nrows; i++ {
		backend := stringAt(r, i, backendIdx)
		object := stringAt(r, i, objectIdx)
		ioctx := stringAt(r, i, contextIdx)

		for op, idx := range countCols {
			v, ok := floatAt(r, i, idx)
			if !ok {
				continue
			}
			out = append(out, Sample{famStatIOOps, []string{backend, object, ioctx, op}, v})
		}
		for op, idx := range timeCols {
			v, ok := floatAt(r, i, idx)
			if !ok {
				continue
			}
			out = append(out, Sample{famStatIOTime, []string{backend, object, ioctx, op}, v / 1000})
		}
	}
	return out, nil
}
