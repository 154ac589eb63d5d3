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
	"testing"
	"time"

	"github.com/wanduow/nntsc/internal/logging"
)

// fakeService is a minimal suture.Service that records whether it ran
// and stops as soon as its context is cancelled.
type fakeService struct {
	name    string
	started chan struct{}
}

func newFakeService(name string) *fakeService {
	return &fakeService{name: name, started: make(chan struct{}, 1)}
}

func (f *fakeService) Serve(ctx context.Context) error {
	select {
	case f.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeService) String() string { return f.name }

func TestTreeRunsServicesFromEveryLayer(t *testing.T) {
	tree := New(logging.NewSlogLogger(), DefaultConfig())

	ingest := newFakeService("fake-ingest")
	export := newFakeService("fake-export")
	api := newFakeService("fake-api")

	tree.AddIngest(ingest)
	tree.AddExport(export)
	tree.AddAPI(api)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	for _, svc := range []*fakeService{ingest, export, api} {
		select {
		case <-svc.started:
		case <-time.After(2 * time.Second):
			t.Fatalf("%s never started", svc.name)
		}
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Serve returned %v, want nil on clean shutdown", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not shut down within timeout")
	}
}

func TestDefaultConfigMatchesSutureDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.FailureThreshold != 5 || cfg.FailureDecay != 30 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.FailureBackoff != 15*time.Second || cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestConfigWithDefaultsFillsZeroFields(t *testing.T) {
	var cfg Config
	filled := cfg.withDefaults()
	want := DefaultConfig()
	if filled != want {
		t.Errorf("withDefaults() = %+v, want %+v", filled, want)
	}
}
