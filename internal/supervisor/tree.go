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

package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// Config controls the tree's restart behaviour, shared across every
// child supervisor. Default values match suture's own recommended
// production defaults.
type Config struct {
	// FailureThreshold is the number of decayed failures a child
	// supervisor tolerates before entering backoff.
	FailureThreshold float64
	// FailureDecay is the rate, in seconds, at which the failure count
	// decays back toward zero.
	FailureDecay float64
	// FailureBackoff is how long a child supervisor waits before
	// retrying a service once FailureThreshold is exceeded.
	FailureBackoff time.Duration
	// ShutdownTimeout bounds how long Serve waits for a service to stop
	// after its context is cancelled before logging it as unstopped.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns suture's own recommended defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	if c.FailureDecay == 0 {
		c.FailureDecay = 30
	}
	if c.FailureBackoff == 0 {
		c.FailureBackoff = 15 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	return c
}

// Tree is cmd/nntscd's top-level suture supervisor, split into ingest,
// export, and api layers so a crash in one doesn't restart the others.
type Tree struct {
	root   *suture.Supervisor
	ingest *suture.Supervisor
	export *suture.Supervisor
	api    *suture.Supervisor
	cfg    Config
}

// New builds a Tree. logger drives sutureslog's event hook on the root
// supervisor, so every child's start/stop/failure events are logged
// through the same structured logger as the rest of the daemon (see
// internal/logging's slog adapter).
func New(logger *slog.Logger, cfg Config) *Tree {
	cfg = cfg.withDefaults()

	hook := (&sutureslog.Handler{Logger: logger}).MustHook()

	rootSpec := suture.Spec{
		EventHook:        hook,
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	}
	childSpec := suture.Spec{
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	}

	root := suture.New("nntscd", rootSpec)
	ingest := suture.New("ingest-layer", childSpec)
	export := suture.New("export-layer", childSpec)
	api := suture.New("api-layer", childSpec)

	root.Add(ingest)
	root.Add(export)
	root.Add(api)

	return &Tree{root: root, ingest: ingest, export: export, api: api, cfg: cfg}
}

// AddIngest adds a service to the ingest layer (broker consumer, RRD
// poller).
func (t *Tree) AddIngest(svc suture.Service) suture.ServiceToken {
	return t.ingest.Add(svc)
}

// AddExport adds a service to the export layer (the export bus's Run
// loop).
func (t *Tree) AddExport(svc suture.Service) suture.ServiceToken {
	return t.export.Add(svc)
}

// AddAPI adds a service to the api layer (query server, admin HTTP
// endpoint).
func (t *Tree) AddAPI(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// Serve runs every added service and blocks until ctx is cancelled or a
// child supervisor gives up permanently.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground starts the tree in a goroutine and returns a channel
// that receives its terminal error.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that failed to stop within
// ShutdownTimeout after the last Serve call's context was cancelled.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
