// This file is part of NNTSC.
//
// Copyright (C) 2013-2026 The University of Waikato, Hamilton, New Zealand.
//
// This code has been developed by the WAND Network Research Group at the
// University of Waikato. For further information please see
// http://www.wand.net.nz/
//
// NNTSC is free software; you can redistribute it and/or modify
// it under the terms of the GNU General Public License version 2 as
// published by the Free Software Foundation.

// Command nntscd is the NNTSC collection daemon: it consumes measurement
// deliveries from the broker, polls RRD files for the collections that
// are rrdtool-backed rather than broker-fed, stores everything through
// the measurement store, and serves both the TCP query protocol and the
// ambient HTTP health/metrics surface, all under one supervision tree.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wanduow/nntsc/internal/broker"
	"github.com/wanduow/nntsc/internal/config"
	"github.com/wanduow/nntsc/internal/exportbus"
	"github.com/wanduow/nntsc/internal/httpadmin"
	"github.com/wanduow/nntsc/internal/logging"
	"github.com/wanduow/nntsc/internal/parser"
	"github.com/wanduow/nntsc/internal/queryserver"
	"github.com/wanduow/nntsc/internal/rrdpoll"
	"github.com/wanduow/nntsc/internal/rrdtool"
	"github.com/wanduow/nntsc/internal/store"
	"github.com/wanduow/nntsc/internal/streamcache"
	"github.com/wanduow/nntsc/internal/supervisor"
	"github.com/wanduow/nntsc/internal/tsstore"
)

// Exit codes, per the daemon's documented CLI surface: 0 clean shutdown,
// 1 configuration error, 2 database setup failure, 3 broker publisher
// connect failure or fatal supervision tree error.
const (
	exitOK              = 0
	exitConfigError     = 1
	exitDatabaseError   = 2
	exitSupervisorError = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath        string
		foreground        bool
		createDB          bool
		continuousQueries bool
	)

	cmd := &cobra.Command{
		Use:   "nntscd",
		Short: "NNTSC measurement collection daemon",
		Long: "nntscd ingests AMP and LPI measurements from the broker and RRD\n" +
			"files from rrdtool, stores them in Postgres, and serves the NNTSC\n" +
			"query protocol and an HTTP admin surface.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), daemonOptions{
				configPath:        configPath,
				foreground:        foreground,
				createDB:          createDB,
				continuousQueries: continuousQueries,
			})
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to the YAML configuration file")
	cmd.Flags().BoolVar(&foreground, "foreground", false, "use the human-readable console log format instead of the configured one (logs always go to stderr)")
	cmd.Flags().BoolVar(&createDB, "create-db", false, "create core tables and register known collections before starting")
	cmd.Flags().BoolVar(&continuousQueries, "continuous-queries", false, "install pg_cron rollup jobs for every registered collection")

	ctx, cancel := signalContext()
	defer cancel()

	if err := cmd.ExecuteContext(ctx); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Unwrap())
			return exitErr.code
		}
		fmt.Fprintln(os.Stderr, err)
		return exitConfigError
	}
	return exitOK
}

// exitError pins a specific process exit code to an error returned from
// deep inside runDaemon, so cobra's single error return can still carry
// the distinction the daemon's exit-code contract requires.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

type daemonOptions struct {
	configPath        string
	foreground        bool
	createDB          bool
	continuousQueries bool
}

func runDaemon(ctx context.Context, opts daemonOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return &exitError{code: exitConfigError, err: fmt.Errorf("load config: %w", err)}
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	if opts.foreground {
		logCfg.Format = "console"
	} else {
		logCfg.Format = cfg.Logging.Format
	}
	logCfg.Caller = cfg.Logging.Caller
	logCfg.Timestamp = cfg.Logging.Timestamp
	logging.Init(logCfg)

	st, err := store.New(cfg.Database)
	if err != nil {
		return &exitError{code: exitDatabaseError, err: fmt.Errorf("connect to database: %w", err)}
	}
	defer st.Close()

	parsers := buildParsers(st)

	if opts.createDB {
		if err := st.EnsureCoreSchema(ctx); err != nil {
			return &exitError{code: exitDatabaseError, err: fmt.Errorf("ensure core schema: %w", err)}
		}
		for _, p := range parsers.messageParsers {
			module, modsubtype := splitCollection(p.Collection())
			if _, err := st.RegisterCollection(ctx, module, modsubtype, p.Schema()); err != nil {
				return &exitError{code: exitDatabaseError, err: fmt.Errorf("register collection %s: %w", p.Collection(), err)}
			}
		}
		module, modsubtype := splitCollection(parsers.rrdParser.Collection())
		if _, err := st.RegisterCollection(ctx, module, modsubtype, parsers.rrdParser.Schema()); err != nil {
			return &exitError{code: exitDatabaseError, err: fmt.Errorf("register collection %s: %w", parsers.rrdParser.Collection(), err)}
		}
		logging.Info().Msg("core schema and collections registered")
	}

	if opts.continuousQueries {
		if err := st.EnsureContinuousQueries(ctx, cfg.RRD.PollInterval); err != nil {
			return &exitError{code: exitDatabaseError, err: fmt.Errorf("ensure continuous queries: %w", err)}
		}
		logging.Info().Msg("continuous queries installed")
	}

	bus := exportbus.New(cfg.ExportBus.QueueSize, cfg.ExportBus.SubscriberSize)

	publisher, err := broker.NewPublisher(cfg.Broker)
	if err != nil {
		return &exitError{code: exitSupervisorError, err: fmt.Errorf("connect broker publisher: %w", err)}
	}
	defer publisher.Close()
	publisher.SetCircuitBreaker(exportbus.NewCircuitBreaker(exportbus.DefaultCircuitBreakerConfig("broker-publish")))
	bus.SetPublisher(publisher)

	consumer := broker.NewConsumer(cfg.Broker, parser.NewBrokerHandler(bus, parsers.messageParsers...))

	reader := rrdtool.NewReader()
	poller := rrdpoll.New(reader, bus, st, map[string]rrdpoll.Parser{
		"smokeping": parsers.rrdParser,
	}, cfg.RRD.PollInterval)

	cache := streamcache.New(st)
	qserver := queryserver.NewServer(cfg.QueryServer, st, bus, cache)

	tree := supervisor.New(logging.NewSlogLogger(), supervisor.DefaultConfig())
	tree.AddIngest(consumer)
	tree.AddIngest(poller)
	tree.AddExport(supervisor.NewExportBusService(bus))
	tree.AddAPI(qserver)

	if cfg.Admin.Enabled {
		admin := httpadmin.NewServer(cfg.Admin, st)
		tree.AddAPI(admin)
	}

	if cfg.TimeSeriesStore.DSN != "" {
		mirrorStore, err := tsstore.Open(cfg.TimeSeriesStore.DSN)
		if err != nil {
			return &exitError{code: exitDatabaseError, err: fmt.Errorf("open time-series store: %w", err)}
		}
		defer mirrorStore.Close()
		tree.AddExport(tsstore.NewMirror(mirrorStore, bus))
		logging.Info().Str("dsn", cfg.TimeSeriesStore.DSN).Msg("time-series mirror enabled")
	}

	logging.Info().Msg("nntscd starting")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return &exitError{code: exitSupervisorError, err: fmt.Errorf("supervision tree stopped: %w", err)}
	}
	logging.Info().Msg("nntscd stopped")
	return nil
}

// parserSet groups the message-broker-fed parsers (one per AMP/LPI test
// type) and the single RRD-polled parser wired up today. A new AMP test
// type or RRD module only needs a constructor added here.
type parserSet struct {
	messageParsers []parser.MessageParser
	rrdParser      *parser.RRDSmokepingParser
}

func buildParsers(st *store.Store) parserSet {
	return parserSet{
		messageParsers: []parser.MessageParser{
			parser.NewAmpICMPParser(st),
			parser.NewAmpTcppingParser(st),
			parser.NewLPIPacketsParser(st),
		},
		rrdParser: parser.NewRRDSmokepingParser(st),
	}
}

// splitCollection turns a "module_modsubtype"-shaped collection name (e.g.
// "amp_icmp") back into its module and modsubtype parts for
// RegisterCollection, which wants them separately to match the reference
// implementation's collection catalog.
func splitCollection(collection string) (module, modsubtype string) {
	for i := 0; i < len(collection); i++ {
		if collection[i] == '_' {
			return collection[:i], collection[i+1:]
		}
	}
	return collection, ""
}
