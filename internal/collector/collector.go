package collector

import (
	"github.com/rustwizard/pg-exporter/internal/model"
)

// InstanceSettings carries the per-instance knobs a collector's query variants and
// projector may need: which databases to skip in per-database fan-out, how many rows
// top-K collectors should keep, and whether query text should be redacted.
type InstanceSettings struct {
	ExcludeDBNames []string
	TopQuery       int
	TopIndex       int
	TopTable       int
	NoTrackMode    bool
}

// ExcludesDatabase reports whether name is in the instance's exclude list.
func (s InstanceSettings) ExcludesDatabase(name string) bool {
	for _, excluded := range s.ExcludeDBNames {
		if excluded == name {
			return true
		}
	}
	return false
}

// Variant is one (predicate, query) pair within a collector. Build receives the
// resolved instance settings so the SQL text itself can depend on top-K caps or
// no_track_mode without the caller needing to know which variant was chosen.
type Variant struct {
	// Predicate reports whether this variant applies to the given capability snapshot.
	// Variants are evaluated in declaration order; the first match wins.
	Predicate func(model.Capabilities) bool
	// Build returns the SQL text and its positional arguments for this variant. It
	// receives the resolved capabilities too, for variants whose query text depends on
	// a probed detail beyond which variant matched (pg_stat_statements' schema).
	Build func(caps model.Capabilities, settings InstanceSettings) (query string, args []any)
}

// Projector is a pure mapping from a query result to zero or more samples. It must not
// perform I/O; NULL handling and unit conversions happen here.
type Projector func(res *model.PGResult, caps model.Capabilities, settings InstanceSettings) ([]Sample, error)

// Def is a collector definition: a name, the families it can emit, its ordered query
// variants, and its projector.
type Def struct {
	Name string
	// PerDatabase marks collectors that must be executed once per user database on the
	// instance (pg_statements, pg_indexes, pg_tables), rather than once against the
	// instance's configured default database.
	PerDatabase bool
	Families    []*Family
	Variants    []Variant
	Project     Projector
}

// Resolve returns the first variant whose predicate matches caps, and true, or the
// zero Variant and false if none match. Selection is total-ordered and reproducible:
// given identical Capabilities, the same variant is chosen every time.
func (d *Def) Resolve(caps model.Capabilities) (Variant, bool) {
	for _, v := range d.Variants {
		if v.Predicate(caps) {
			return v, true
		}
	}
	return Variant{}, false
}

var registry = map[string]*Def{}
var order []string

// Register adds a collector definition to the process-global catalogue. It must only
// be called from package-level init functions; the catalogue is read-only thereafter.
func Register(def *Def) {
	if _, exists := registry[def.Name]; exists {
		panic("collector: duplicate registration for " + def.Name)
	}
	registry[def.Name] = def
	order = append(order, def.Name)
}

// All returns every registered collector definition, in registration order.
func All() []*Def {
	defs := make([]*Def, 0, len(order))
	for _, name := range order {
		defs = append(defs, registry[name])
	}
	return defs
}

// Lookup returns the named collector definition, or nil if it is not registered.
func Lookup(name string) *Def {
	return registry[name]
}
