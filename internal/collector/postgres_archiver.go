package collector

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rustwizard/pg-exporter/internal/model"
)

const archiverQuery = "SELECT " +
	"archived_count, failed_count, " +
	"COALESCE(EXTRACT(EPOCH FROM AGE(now(), last_archived_time)), 0) AS last_archived_age_seconds, " +
	"COALESCE(EXTRACT(EPOCH FROM AGE(now(), stats_reset)), 0) AS stats_age_seconds " +
	"FROM pg_stat_archiver"

var (
	famArchiverArchived = &Family{
		Name: "pg_archiver_archived_total", Help: "Total number of WAL files successfully archived.",
		Type: prometheus.CounterValue,
	}
	famArchiverFailed = &Family{
		Name: "pg_archiver_failed_total", Help: "Total number of failed attempts to archive WAL files.",
		Type: prometheus.CounterValue,
	}
	famArchiverLastAge = &Family{
		Name: "pg_archiver_last_archived_age_seconds", Help: "Time since the last successful WAL archive operation, in seconds.",
		Type: prometheus.GaugeValue,
	}
)

func init() {
	Register(&Def{
		Name:     "postgres/archiver",
		Families: []*Family{famArchiverArchived, famArchiverFailed, famArchiverLastAge},
		Variants: []Variant{
			{
				Predicate: func(model.Capabilities) bool { return true },
				Build:     func(model.Capabilities, InstanceSettings) (string, []any) { return archiverQuery, nil },
			},
		},
		Project: projectArchiver,
	})
}

func projectArchiver(r *model.PGResult, _ model.Capabilities, _ InstanceSettings) ([]Sample, error) {
	if r.Nrows == 0 {
		return nil, nil
	}
	var out []Sample
	if v, ok := floatAt(r, 0, r.ColumnIndex("archived_count")); ok {
		out = append(out, Sample{famArchiverArchived, nil, v})
	}
	if v, ok := floatAt(r, 0, r.ColumnIndex("failed_count")); ok {
		out = append(out, Sample{famArchiverFailed, nil, v})
	}
	if v, ok := floatAt(r, 0, r.ColumnIndex("last_archived_age_seconds")); ok {
		out = append(out, Sample{famArchiverLastAge, nil, v})
	}
	return out, nil
}
