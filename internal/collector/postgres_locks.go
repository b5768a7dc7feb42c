package collector

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rustwizard/pg-exporter/internal/model"
)

const locksQuery = "SELECT " +
	"count(*) FILTER (WHERE mode = 'AccessShareLock') AS access_share_lock, " +
	"count(*) FILTER (WHERE mode = 'RowShareLock') AS row_share_lock, " +
	"count(*) FILTER (WHERE mode = 'RowExclusiveLock') AS row_exclusive_lock, " +
	"count(*) FILTER (WHERE mode = 'ShareUpdateExclusiveLock') AS share_update_exclusive_lock, " +
	"count(*) FILTER (WHERE mode = 'ShareLock') AS share_lock, " +
	"count(*) FILTER (WHERE mode = 'ShareRowExclusiveLock') AS share_row_exclusive_lock, " +
	"count(*) FILTER (WHERE mode = 'ExclusiveLock') AS exclusive_lock, " +
	"count(*) FILTER (WHERE mode = 'AccessExclusiveLock') AS access_exclusive_lock, " +
	"count(*) FILTER (WHERE NOT granted) AS not_granted, " +
	"count(*) AS total " +
	"FROM pg_locks"

var (
	famLocksCount = &Family{
		Name: "pg_locks_count", Help: "Number of locks currently held or awaited, by lock mode.",
		Type: prometheus.GaugeValue, Labels: []string{"mode"},
	}
	famLocksNotGranted = &Family{
		Name: "pg_locks_not_granted_count", Help: "Number of locks currently awaited but not yet granted.",
		Type: prometheus.GaugeValue,
	}
	famLocksTotal = &Family{
		Name: "pg_locks_total", Help: "Total number of locks currently recorded in pg_locks, across all modes.",
		Type: prometheus.GaugeValue,
	}
)

func init() {
	Register(&Def{
		Name:     "postgres/locks",
		Families: []*Family{famLocksCount, famLocksNotGranted, famLocksTotal},
		Variants: []Variant{
			{
				Predicate: func(model.Capabilities) bool { return true },
				Build:     func(model.Capabilities, InstanceSettings) (string, []any) { return locksQuery, nil },
			},
		},
		Project: projectLocks,
	})
}

func projectLocks(r *model.PGResult, _ model.Capabilities, _ InstanceSettings) ([]Sample, error) {
	if r.Nrows == 0 {
		return nil, nil
	}

	modes := []string{
		"access_share", "row_share", "row_exclusive", "share_update_exclusive",
		"share", "share_row_exclusive", "exclusive", "access_exclusive",
	}
	cols := []string{
		"access_share_lock", "row_share_lock", "row_exclusive_lock", "share_update_exclusive_lock",
		"share_lock", "share_row_exclusive_lock", "exclusive_lock", "access_exclusive_lock",
	}

	var out []Sample
	for i, col := range cols {
		if v, ok := floatAt(r, 0, r.ColumnIndex(col)); ok {
			out = append(out, Sample{famLocksCount, []string{modes[i]}, v})
		}
	}
	if v, ok := floatAt(r, 0, r.ColumnIndex("not_granted")); ok {
		out = append(out, Sample{famLocksNotGranted, nil, v})
	}
	if v, ok := floatAt(r, 0, r.ColumnIndex("total")); ok {
		out = append(out, Sample{famLocksTotal, nil, v})
	}
	return out, nil
}
