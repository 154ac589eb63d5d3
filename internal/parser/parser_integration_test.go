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

//go:build integration

package parser

import (
	"context"
	"testing"
	"time"

	"github.com/wanduow/nntsc/internal/config"
	"github.com/wanduow/nntsc/internal/exportbus"
	"github.com/wanduow/nntsc/internal/rrdpoll"
	"github.com/wanduow/nntsc/internal/store"
	"github.com/wanduow/nntsc/internal/testinfra"
)

func newParserTestStore(t *testing.T) *store.Store {
	t.Helper()
	testinfra.SkipIfNoDocker(t)

	ctx := context.Background()
	pg, err := testinfra.NewPostgresContainer(ctx)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() { testinfra.CleanupContainer(t, ctx, pg.Container) })

	s, err := store.New(config.DatabaseConfig{
		Host: pg.Host, Port: pg.Port, Name: pg.Database,
		User: pg.User, Password: pg.Password, SSLMode: "disable",
	})
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.EnsureCoreSchema(ctx); err != nil {
		t.Fatalf("EnsureCoreSchema: %v", err)
	}
	return s
}

// TestAmpICMPColdStartSingleStream mirrors the spec's worked "cold start,
// single stream" scenario: one ICMP payload (rtts [120,130,140], loss 0)
// creates stream 1 with exactly one data row; the row's values are not
// inspected here.
func TestAmpICMPColdStartSingleStream(t *testing.T) {
	ctx := context.Background()
	st := newParserTestStore(t)
	p := NewAmpICMPParser(st)
	schema := p.Schema()
	if _, err := st.RegisterCollection(ctx, "amp", "icmp", schema); err != nil {
		t.Fatalf("RegisterCollection: %v", err)
	}

	bus := exportbus.New(10, 10)
	body := []byte(`{"source":"probeA","target":"10.0.0.1","address":"10.0.0.1","packet_size":84,"rtts":[120,130,140],"loss":0}`)

	if err := p.Process(ctx, bus, body, "probeA", time.Unix(1000, 0)); err != nil {
		t.Fatalf("Process: %v", err)
	}

	cur, err := st.SelectData(ctx, &schema, store.HistoryQuery{StreamIDs: []int{1}, StartTs: 0, EndTs: 10000})
	if err != nil {
		t.Fatalf("SelectData: %v", err)
	}
	defer cur.Close(ctx)

	rows, err := cur.Fetch(ctx, 10)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		count++
	}
	if count != 1 {
		t.Fatalf("expected 1 data row, got %d", count)
	}
}

// TestAmpICMPDuplicateStream mirrors the spec's "duplicate stream"
// scenario: a second payload with the same key reuses the existing stream,
// so the parser still caches exactly one stream.
func TestAmpICMPDuplicateStream(t *testing.T) {
	ctx := context.Background()
	st := newParserTestStore(t)
	p := NewAmpICMPParser(st)
	schema := p.Schema()
	if _, err := st.RegisterCollection(ctx, "amp", "icmp", schema); err != nil {
		t.Fatalf("RegisterCollection: %v", err)
	}

	body := []byte(`{"source":"probeA","target":"10.0.0.1","address":"10.0.0.1","packet_size":84,"rtts":[120,130,140],"loss":0}`)
	if err := p.Process(ctx, nil, body, "probeA", time.Unix(1000, 0)); err != nil {
		t.Fatalf("Process (first): %v", err)
	}
	if err := p.Process(ctx, nil, body, "probeA", time.Unix(1060, 0)); err != nil {
		t.Fatalf("Process (second): %v", err)
	}

	p.mu.Lock()
	numStreams := len(p.streams)
	p.mu.Unlock()
	if numStreams != 1 {
		t.Fatalf("expected exactly one cached stream, got %d", numStreams)
	}
}

func TestLPIPacketsSuppressesEmptyStream(t *testing.T) {
	ctx := context.Background()
	st := newParserTestStore(t)
	p := NewLPIPacketsParser(st)
	schema := p.Schema()
	if _, err := st.RegisterCollection(ctx, "lpi", "packets", schema); err != nil {
		t.Fatalf("RegisterCollection: %v", err)
	}

	body := []byte(`{"id":"mon1","user":"alice","dir":"out","freq":60,"results":{"tcp":0}}`)
	if err := p.Process(ctx, nil, body, "mon1", time.Unix(1000, 0)); err != nil {
		t.Fatalf("Process: %v", err)
	}

	p.mu.Lock()
	numStreams := len(p.streams)
	p.mu.Unlock()
	if numStreams != 0 {
		t.Fatalf("expected no stream created for a zero-valued protocol, got %d", numStreams)
	}

	body2 := []byte(`{"id":"mon1","user":"alice","dir":"out","freq":60,"results":{"tcp":42}}`)
	if err := p.Process(ctx, nil, body2, "mon1", time.Unix(1060, 0)); err != nil {
		t.Fatalf("Process (non-zero): %v", err)
	}
	p.mu.Lock()
	numStreams = len(p.streams)
	p.mu.Unlock()
	if numStreams != 1 {
		t.Fatalf("expected a stream once a non-zero value arrives, got %d", numStreams)
	}
}

func TestRRDSmokepingProcessSample(t *testing.T) {
	ctx := context.Background()
	st := newParserTestStore(t)
	p := NewRRDSmokepingParser(st)
	schema := p.Schema()
	if _, err := st.RegisterCollection(ctx, "rrd", "smokeping", schema); err != nil {
		t.Fatalf("RegisterCollection: %v", err)
	}

	streamID, err := p.RegisterStream(ctx, "/var/lib/smokeping/host.rrd", "monA", "host1", "ipv4")
	if err != nil {
		t.Fatalf("RegisterStream: %v", err)
	}

	loss := 0.0
	pingMed := 0.02
	ping1 := 0.018
	row, err := p.ProcessSample(ctx, streamID, 1000, rrdpoll.Sample{
		Ts:     1000,
		Values: []*float64{&loss, &pingMed, &ping1},
	})
	if err != nil {
		t.Fatalf("ProcessSample: %v", err)
	}
	if row["pingsent"] != 1 {
		t.Fatalf("pingsent = %v, want 1", row["pingsent"])
	}
}
