// Package app wires the configuration, instance workers, scrape coordinator and HTTP
// server together into a running exporter process, mirroring cherts-pgscv's
// internal/pgscv.Start/runMetricsListener split between overall lifecycle and the
// listener itself.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rustwizard/pg-exporter/internal/config"
	"github.com/rustwizard/pg-exporter/internal/coordinator"
	"github.com/rustwizard/pg-exporter/internal/log"
	"github.com/rustwizard/pg-exporter/internal/worker"
)

// DefaultScrapeTimeout is used for any scrape request that carries no Prometheus
// scrape-timeout header.
const DefaultScrapeTimeout = 10 * time.Second

// Run starts the exporter: it builds one worker per configured instance, wires them
// into a scrape coordinator, and serves HTTP until ctx is cancelled or the listener
// fails. It always closes every worker's connection pools before returning.
func Run(ctx context.Context, cfg *config.Config) error {
	workers := make([]*worker.Worker, 0, len(cfg.Instances))
	for _, wc := range cfg.Workers() {
		workers = append(workers, worker.New(wc))
	}
	defer func() {
		for _, w := range workers {
			w.Close()
		}
	}()

	coord := coordinator.New(workers, DefaultScrapeTimeout)

	mux := http.NewServeMux()
	mux.HandleFunc("/", coordinator.RootHandler)
	mux.HandleFunc(cfg.Endpoint, coord.ServeHTTP)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      mux,
		IdleTimeout:  10 * time.Second,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listen on http://%s%s", cfg.ListenAddr, cfg.Endpoint)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Infoln("shutdown requested, stopping HTTP listener")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
