package collector

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rustwizard/pg-exporter/internal/model"
)

const activityQuery = "SELECT " +
	"COALESCE(state, 'undefined') AS state, COUNT(*) AS count " +
	"FROM pg_stat_activity WHERE backend_type = 'client backend' " +
	"GROUP BY COALESCE(state, 'undefined')"

const activityMaxAgeQuery = "SELECT " +
	"COALESCE(MAX(EXTRACT(EPOCH FROM (clock_timestamp() - xact_start))), 0) AS max_xact_age, " +
	"COALESCE(MAX(EXTRACT(EPOCH FROM (clock_timestamp() - query_start))), 0) AS max_query_age " +
	"FROM pg_stat_activity WHERE backend_type = 'client backend' AND state != 'idle'"

var (
	famActivityConnections = &Family{
		Name: "pg_activity_connections_all_in_flight", Help: "Number of client backends in each state.",
		Type: prometheus.GaugeValue, Labels: []string{"state"},
	}
	famActivityMaxXactAge = &Family{
		Name: "pg_activity_max_xact_age_seconds", Help: "Age in seconds of the oldest open transaction among active client backends.",
		Type: prometheus.GaugeValue,
	}
	famActivityMaxQueryAge = &Family{
		Name: "pg_activity_max_query_age_seconds", Help: "Age in seconds of the longest-running query among active client backends.",
		Type: prometheus.GaugeValue,
	}
)

func init() {
	Register(&Def{
		Name:     "postgres/activity",
		Families: []*Family{famActivityConnections},
		Variants: []Variant{
			{
				Predicate: func(model.Capabilities) bool { return true },
				Build:     func(model.Capabilities, InstanceSettings) (string, []any) { return activityQuery, nil },
			},
		},
		Project: projectActivity,
	})

	Register(&Def{
		Name:     "postgres/activity_age",
		Families: []*Family{famActivityMaxXactAge, famActivityMaxQueryAge},
		Variants: []Variant{
			{
				Predicate: func(model.Capabilities) bool { return true },
				Build:     func(model.Capabilities, InstanceSettings) (string, []any) { return activityMaxAgeQuery, nil },
			},
		},
		Project: projectActivityAge,
	})
}

func projectActivity(r *model.PGResult, _ model.Capabilities, _ InstanceSettings) ([]Sample, error) {
	stateIdx := r.ColumnIndex("state")
	countIdx := r.ColumnIndex("count")

	out := make([]Sample, 0, r.Nrows)
	for i := 0; i < r.Nrows; i++ {
		state := stringAt(r, i, stateIdx)
		v, ok := floatAt(r, i, countIdx)
		if !ok {
			continue
		}
		out = append(out, Sample{famActivityConnections, []string{state}, v})
	}
	return out, nil
}

func projectActivityAge(r *model.PGResult, _ model.Capabilities, _ InstanceSettings) ([]Sample, error) {
	if r.Nrows == 0 {
		return nil, nil
	}
	var out []Sample
	if v, ok := floatAt(r, 0, r.ColumnIndex("max_xact_age")); ok {
		out = append(out, Sample{famActivityMaxXactAge, nil, v})
	}
	if v, ok := floatAt(r, 0, r.ColumnIndex("max_query_age")); ok {
		out = append(out, Sample{famActivityMaxQueryAge, nil, v})
	}
	return out, nil
}
