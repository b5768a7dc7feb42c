// Package worker implements the instance worker: for a single configured PostgreSQL
// instance it owns the connection pool (and any per-database sub-pools), keeps the
// capability probe fresh across reconnects, and drives the collector catalogue once per
// scrape.
package worker

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rustwizard/pg-exporter/internal/collector"
	"github.com/rustwizard/pg-exporter/internal/log"
	"github.com/rustwizard/pg-exporter/internal/model"
	"github.com/rustwizard/pg-exporter/internal/probe"
	"github.com/rustwizard/pg-exporter/internal/runner"
	"github.com/rustwizard/pg-exporter/internal/store"
)

// PgUpFamily is the synthetic success gauge every instance emits exactly once per
// scrape, independent of the collector catalogue: 1 if the instance was reachable and
// probed successfully, 0 otherwise. Exported so the scrape coordinator can substitute
// a pg_up=0 sample itself when it cancels a worker for missing the scrape deadline.
var PgUpFamily = &collector.Family{
	Name: "pg_up", Help: "Whether the last scrape of this instance succeeded (1) or not (0).",
	Type: prometheus.GaugeValue,
}

const maxBackoff = 2 * time.Minute

// Config is one configured instance: its connection string, the constant labels the
// coordinator should attach to every sample from it, and its per-instance settings.
type Config struct {
	Name        string
	DSN         string
	ConnTimeout time.Duration
	ConstLabels map[string]string
	Settings    collector.InstanceSettings
}

// Worker owns the live state for one configured instance across scrapes: its default
// connection pool, any per-database sub-pools opened for per-database collectors, the
// last successful capability probe, and reconnect backoff bookkeeping.
type Worker struct {
	cfg Config

	mu          sync.Mutex
	db          *store.DB
	subPools    map[string]*store.DB
	caps        model.Capabilities
	hasCaps     bool
	failures    int
	nextAttempt time.Time
}

// New creates a worker for the given instance configuration. It does not connect; the
// first Scrape call establishes the pool.
func New(cfg Config) *Worker {
	return &Worker{cfg: cfg, subPools: make(map[string]*store.DB)}
}

// Name returns the instance's configured name, used by the coordinator to tag the
// instance's result; it is never emitted as a metric label.
func (w *Worker) Name() string { return w.cfg.Name }

// ConstLabels returns the instance's configured constant labels.
func (w *Worker) ConstLabels() map[string]string { return w.cfg.ConstLabels }

// Scrape runs one full pass of the collector catalogue against this instance: it
// ensures a healthy connection and fresh capability probe, runs every registered
// collector def that applies, and always returns exactly one pg_up sample (the last
// element on success).
// A connect or probe failure is not returned as an error: it yields pg_up=0 and no
// other samples, per the instance-isolation policy.
func (w *Worker) Scrape(ctx context.Context) []collector.Sample {
	db, caps, err := w.ensureConnected(ctx)
	if err != nil {
		log.Warnf("instance %q: %s", w.cfg.Name, err)
		return []collector.Sample{{Family: PgUpFamily, Value: 0}}
	}

	samples := make([]collector.Sample, 0, 64)
	for _, def := range collector.All() {
		if def.PerDatabase {
			dbSamples := w.scrapePerDatabase(ctx, def, caps)
			samples = append(samples, dbSamples...)
			continue
		}

		s, err := runner.Run(ctx, def, db, caps, w.cfg.Settings)
		if err != nil {
			log.Warnf("instance %q: collector %q: %s", w.cfg.Name, def.Name, err)
			continue
		}
		samples = append(samples, s...)
	}

	samples = append(samples, collector.Sample{Family: PgUpFamily, Value: 1})
	return samples
}

// scrapePerDatabase discovers the instance's databases (honoring exclude_db_names),
// opens or reuses a sub-pool for each, and fans the collector out sequentially.
func (w *Worker) scrapePerDatabase(ctx context.Context, def *collector.Def, caps model.Capabilities) []collector.Sample {
	w.mu.Lock()
	base := w.db
	w.mu.Unlock()
	if base == nil {
		return nil
	}

	names, err := store.Databases(ctx, base)
	if err != nil {
		log.Warnf("instance %q: list databases failed: %s", w.cfg.Name, err)
		return nil
	}

	dbs := make(map[string]*store.DB, len(names))
	order := make([]string, 0, len(names))
	for _, name := range names {
		if w.cfg.Settings.ExcludesDatabase(name) {
			continue
		}
		sub, err := w.subPool(ctx, name)
		if err != nil {
			log.Warnf("instance %q: database %q: connect failed: %s", w.cfg.Name, name, err)
			continue
		}
		dbs[name] = sub
		order = append(order, name)
	}

	samples, errs := runner.RunPerDatabase(ctx, def, dbs, order, caps, w.cfg.Settings)
	for _, err := range errs {
		log.Warnf("instance %q: collector %q: %s", w.cfg.Name, def.Name, err)
	}
	return samples
}

// subPool returns the cached sub-pool for database, opening one if this is the first
// time it has been seen. Sub-pools persist across scrapes and are reused.
func (w *Worker) subPool(ctx context.Context, database string) (*store.DB, error) {
	w.mu.Lock()
	if sub, ok := w.subPools[database]; ok {
		w.mu.Unlock()
		return sub, nil
	}
	w.mu.Unlock()

	dsn, err := store.WithDatabase(w.cfg.DSN, database)
	if err != nil {
		return nil, err
	}
	sub, err := store.New(ctx, dsn, w.cfg.ConnTimeout)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.subPools[database] = sub
	w.mu.Unlock()
	return sub, nil
}

// ensureConnected returns a healthy default pool and its capability snapshot, opening
// or re-probing as needed. Repeated connect failures back off exponentially, capped at
// maxBackoff, so an unreachable instance does not hammer the server every scrape.
func (w *Worker) ensureConnected(ctx context.Context) (*store.DB, model.Capabilities, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db != nil && w.hasCaps {
		if err := w.db.Ping(ctx); err == nil {
			return w.db, w.caps, nil
		}
		w.discardLocked()
	}

	if now := time.Now(); now.Before(w.nextAttempt) {
		return nil, model.Capabilities{}, model.NewError(model.KindConnect, w.cfg.Name, errNotYetDue(w.nextAttempt))
	}

	db, err := store.New(ctx, w.cfg.DSN, w.cfg.ConnTimeout)
	if err != nil {
		w.backoffLocked()
		return nil, model.Capabilities{}, model.NewError(model.KindConnect, w.cfg.Name, err)
	}

	caps, err := probe.Probe(ctx, db)
	if err != nil {
		db.Close()
		w.backoffLocked()
		return nil, model.Capabilities{}, err
	}

	w.db = db
	w.caps = caps
	w.hasCaps = true
	w.failures = 0
	w.nextAttempt = time.Time{}
	return w.db, w.caps, nil
}

func (w *Worker) discardLocked() {
	if w.db != nil {
		w.db.Close()
	}
	w.db = nil
	w.hasCaps = false
	for name, sub := range w.subPools {
		sub.Close()
		delete(w.subPools, name)
	}
}

func (w *Worker) backoffLocked() {
	w.failures++
	backoff := time.Duration(math.Pow(2, float64(w.failures))) * time.Second
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	w.nextAttempt = time.Now().Add(backoff)
}

// Close releases every connection pool owned by the worker.
func (w *Worker) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.discardLocked()
}

type notYetDueError struct{ until time.Time }

func (e notYetDueError) Error() string {
	return "reconnect suppressed until " + e.until.Format(time.RFC3339)
}

func errNotYetDue(until time.Time) error { return notYetDueError{until} }
