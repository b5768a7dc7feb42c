// Package main is the pg_exporter command-line entry point.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"

	"github.com/rustwizard/pg-exporter/internal/app"
	"github.com/rustwizard/pg-exporter/internal/config"
	"github.com/rustwizard/pg-exporter/internal/log"
)

// Exit codes per spec.md §6: 0 success, 1 config error, 2 runtime error.
const (
	exitOK          = 0
	exitConfigError = 1
	exitRuntime     = 2
)

func main() {
	cli := kingpin.New("pg_exporter", "Prometheus exporter for PostgreSQL")

	configFile := cli.Flag("config", "path to config file").Short('c').Default("pg_exporter.yml").String()
	logLevel := cli.Flag("log-level", "set log level: debug, info, warn, error").Default("info").Envar("PGE_LOG_LEVEL").String()

	runCmd := cli.Command("run", "start the exporter")
	listenAddr := runCmd.Flag("listen-addr", "bind host:port").Short('l').String()
	endpoint := runCmd.Flag("endpoint", "metrics path").Short('e').String()

	configcheckCmd := cli.Command("configcheck", "validate the config file and exit")

	log.SetApplication("pg_exporter")

	command, err := cli.Parse(os.Args[1:])
	if err != nil {
		kingpin.Fatalf("%s", err)
	}

	log.SetLevel(*logLevel)

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Errorf("load config: %s", err)
		os.Exit(exitConfigError)
	}

	switch command {
	case configcheckCmd.FullCommand():
		log.Infoln("configuration is valid")
		os.Exit(exitOK)

	case runCmd.FullCommand():
		if *listenAddr != "" {
			cfg.ListenAddr = *listenAddr
		}
		if *endpoint != "" {
			cfg.Endpoint = *endpoint
		}

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			c := make(chan os.Signal, 1)
			signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
			sig := <-c
			log.Warnf("received shutdown signal: %s", sig)
			cancel()
		}()

		if err := app.Run(ctx, cfg); err != nil {
			log.Errorf("exporter stopped: %s", err)
			os.Exit(exitRuntime)
		}
		os.Exit(exitOK)
	}
}
