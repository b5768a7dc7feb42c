// Package runner implements the collector runner: for a single instance, it resolves
// each registered collector against the probed capabilities, executes the chosen query
// variant, and yields metric samples with per-family uniqueness enforced.
package runner

import (
	"context"
	"fmt"
	"strings"

	"github.com/rustwizard/pg-exporter/internal/collector"
	"github.com/rustwizard/pg-exporter/internal/model"
	"github.com/rustwizard/pg-exporter/internal/store"
)

// Run resolves def against caps, executes its chosen variant against db, and projects
// the result into samples. If no variant matches caps, it returns (nil, nil): per
// spec.md §4.3, an unmatched collector is skipped, not an error.
func Run(ctx context.Context, def *collector.Def, db *store.DB, caps model.Capabilities, settings collector.InstanceSettings) ([]collector.Sample, error) {
	variant, ok := def.Resolve(caps)
	if !ok {
		return nil, nil
	}

	query, args := variant.Build(caps, settings)

	res, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, model.NewCollectorError(model.KindQueryFailed, "", def.Name, err)
	}

	samples, err := def.Project(res, caps, settings)
	if err != nil {
		return nil, model.NewCollectorError(model.KindProjector, "", def.Name, err)
	}

	if err := checkUnique(def.Name, samples); err != nil {
		return nil, model.NewCollectorError(model.KindProjector, "", def.Name, err)
	}

	return samples, nil
}

// RunPerDatabase executes a per-database collector once against each database in dbs,
// sequentially (per spec.md §5, per-database fan-out stays sequential to bound load).
// Per-database collectors' projectors are unaware of which database they ran against;
// RunPerDatabase prepends the database name to every sample's label values here, so a
// per-database Family's first declared label must always be "database". Per-database
// query failures do not abort the fan-out; they are skipped and surfaced to the caller
// as a slice of errors alongside whatever samples were collected successfully.
func RunPerDatabase(ctx context.Context, def *collector.Def, dbs map[string]*store.DB, order []string, caps model.Capabilities, settings collector.InstanceSettings) ([]collector.Sample, []error) {
	var all []collector.Sample
	var errs []error

	for _, name := range order {
		db, ok := dbs[name]
		if !ok {
			continue
		}

		samples, err := Run(ctx, def, db, caps, settings)
		if err != nil {
			errs = append(errs, fmt.Errorf("database %q: %w", name, err))
			continue
		}
		for _, s := range samples {
			values := make([]string, 0, len(s.LabelValues)+1)
			values = append(values, name)
			values = append(values, s.LabelValues...)
			all = append(all, collector.Sample{Family: s.Family, LabelValues: values, Value: s.Value})
		}
	}

	if err := checkUnique(def.Name, all); err != nil {
		errs = append(errs, err)
		return nil, errs
	}

	return all, errs
}

// checkUnique enforces that, within each family, no two samples share the same
// label-value tuple. A violation indicates an upstream query or projector bug.
func checkUnique(collectorName string, samples []collector.Sample) error {
	seen := make(map[*collector.Family]map[string]struct{})

	for _, s := range samples {
		byFamily, ok := seen[s.Family]
		if !ok {
			byFamily = make(map[string]struct{})
			seen[s.Family] = byFamily
		}

		key := tupleKey(s.LabelValues)
		if _, dup := byFamily[key]; dup {
			return fmt.Errorf("collector %q: duplicate label tuple %v in family %q", collectorName, s.LabelValues, s.Family.Name)
		}
		byFamily[key] = struct{}{}
	}

	return nil
}

func tupleKey(values []string) string {
	return strings.Join(values, "\x00")
}
