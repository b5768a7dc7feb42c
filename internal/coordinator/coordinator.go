// Package coordinator implements the scrape coordinator: it fans out to every
// configured instance worker in parallel on each HTTP scrape, enforces a scrape-wide
// deadline, merges their samples with the process's own runtime metrics, and writes the
// result through the exposition layer.
package coordinator

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/rustwizard/pg-exporter/internal/collector"
	"github.com/rustwizard/pg-exporter/internal/exposition"
	"github.com/rustwizard/pg-exporter/internal/log"
	"github.com/rustwizard/pg-exporter/internal/registry"
	"github.com/rustwizard/pg-exporter/internal/worker"
)

// scrapeTimeoutHeader is the header Prometheus sets on every scrape request carrying
// the scrape_timeout configured for that job, per spec.md §4.5 ("derived from
// Prometheus header").
const scrapeTimeoutHeader = "X-Prometheus-Scrape-Timeout-Seconds"

// Coordinator owns the full set of instance workers and answers HTTP scrape requests.
type Coordinator struct {
	workers         []*worker.Worker
	runtime         *registry.Registry
	defaultDeadline time.Duration
}

// New creates a Coordinator over workers. defaultDeadline is used when a scrape request
// carries no Prometheus scrape-timeout header.
func New(workers []*worker.Worker, defaultDeadline time.Duration) *Coordinator {
	return &Coordinator{workers: workers, runtime: registry.New(), defaultDeadline: defaultDeadline}
}

// ServeHTTP implements the metrics endpoint contract of spec.md §6: it computes the
// scrape-wide deadline, fans out to every worker, and writes the merged result in
// Prometheus text format.
func (c *Coordinator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), deadlineFor(r, c.defaultDeadline))
	defer cancel()

	instances := c.scrapeAll(ctx)

	families, err := exposition.Build(instances)
	if err != nil {
		http.Error(w, "internal error building metrics", http.StatusInternalServerError)
		log.Errorf("exposition: %s", err)
		return
	}

	if runtimeFamilies, err := c.runtime.Gather(); err != nil {
		log.Warnf("gather runtime metrics: %s", err)
	} else {
		families = append(families, runtimeFamilies...)
	}

	w.Header().Set("Content-Type", exposition.ContentType)
	if err := exposition.Write(w, families); err != nil {
		log.Warnf("write metrics response: %s", err)
	}
}

// indexedResult carries one worker's scrape outcome back to scrapeAll's collection
// loop, tagged with its slot so late arrivals after the deadline can be told apart
// from ones the loop is still waiting on.
type indexedResult struct {
	idx    int
	result exposition.InstanceSamples
}

// scrapeAll runs every worker's Scrape concurrently and collects their samples. A
// worker that has not reported back by ctx's deadline is abandoned: its result channel
// send is simply never read, and a synthetic pg_up=0 sample is reported in its place,
// per spec.md §4.5's deadline-enforcement rule. The abandoned goroutine still runs to
// completion on its own time; pgx's context-aware cancellation ensures its in-flight
// query is cut short rather than leaking a connection (spec.md §5, "a cancelled scrape
// must not leak connections"), and the channel is buffered so that late send never
// blocks or leaks the goroutine.
func (c *Coordinator) scrapeAll(ctx context.Context) []exposition.InstanceSamples {
	ch := make(chan indexedResult, len(c.workers))
	for i, w := range c.workers {
		go func(i int, w *worker.Worker) {
			ch <- indexedResult{idx: i, result: scrapeOne(ctx, w)}
		}(i, w)
	}

	results := make([]exposition.InstanceSamples, len(c.workers))
	filled := make([]bool, len(c.workers))
	remaining := len(c.workers)

collect:
	for remaining > 0 {
		select {
		case ir := <-ch:
			results[ir.idx] = ir.result
			filled[ir.idx] = true
			remaining--
		case <-ctx.Done():
			log.Warnf("scrape deadline exceeded with %d instance(s) still pending; reporting them down", remaining)
			break collect
		}
	}

	for i, w := range c.workers {
		if !filled[i] {
			results[i] = downResult(w)
		}
	}
	return results
}

func scrapeOne(ctx context.Context, w *worker.Worker) exposition.InstanceSamples {
	samples := w.Scrape(ctx)
	return exposition.InstanceSamples{Instance: w.Name(), ConstLabels: w.ConstLabels(), Samples: samples}
}

// downResult is the result substituted for a worker the coordinator gave up waiting
// on: a single pg_up=0 sample, and nothing else, matching exactly what Worker.Scrape
// itself returns on a connection failure.
func downResult(w *worker.Worker) exposition.InstanceSamples {
	return exposition.InstanceSamples{
		Instance:    w.Name(),
		ConstLabels: w.ConstLabels(),
		Samples:     []collector.Sample{{Family: worker.PgUpFamily, Value: 0}},
	}
}

// deadlineFor computes the scrape-wide deadline: the Prometheus scrape-timeout header
// when present and valid, otherwise the coordinator's configured default.
func deadlineFor(r *http.Request, fallback time.Duration) time.Duration {
	header := r.Header.Get(scrapeTimeoutHeader)
	if header == "" {
		return fallback
	}
	seconds, err := strconv.ParseFloat(header, 64)
	if err != nil || seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds * float64(time.Second))
}
