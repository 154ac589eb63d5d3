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

package queryserver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/wanduow/nntsc/internal/config"
	"github.com/wanduow/nntsc/internal/exportbus"
	"github.com/wanduow/nntsc/internal/parser"
	"github.com/wanduow/nntsc/internal/protocol"
	"github.com/wanduow/nntsc/internal/store"
	"github.com/wanduow/nntsc/internal/testinfra"
)

func newQueryServerTestStore(t *testing.T) *store.Store {
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

// TestSubscribeBackfillsThenFollowsLive drives a real TCP connection
// through SUBSCRIBE: one pre-existing data row should arrive as a HISTORY
// backfill, then a measurement processed after SUBSCRIBE arrives as LIVE.
func TestSubscribeBackfillsThenFollowsLive(t *testing.T) {
	ctx := context.Background()
	st := newQueryServerTestStore(t)

	p := parser.NewAmpICMPParser(st)
	schema := p.Schema()
	if _, err := st.RegisterCollection(ctx, "amp", "icmp", schema); err != nil {
		t.Fatalf("RegisterCollection: %v", err)
	}

	body := []byte(`{"source":"probeA","target":"10.0.0.1","address":"10.0.0.1","packet_size":84,"rtts":[120,130,140],"loss":0}`)
	if err := p.Process(ctx, nil, body, "probeA", time.Unix(1000, 0)); err != nil {
		t.Fatalf("Process (backfill row): %v", err)
	}

	bus := exportbus.New(16, 16)
	busCtx, cancelBus := context.WithCancel(ctx)
	defer cancelBus()
	go func() { _ = bus.Run(busCtx) }()

	srv := NewServer(config.QueryServerConfig{ListenAddr: "127.0.0.1:0", HistoryChunkRows: 100}, st, bus, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srvCtx, cancelSrv := context.WithCancel(ctx)
	defer cancelSrv()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go srv.handleConn(srvCtx, conn)
		}
	}()
	t.Cleanup(func() { _ = ln.Close() })

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	readVersionCheck(t, client)

	sub := protocol.SubscribeMessage{
		Name:   "amp_icmp",
		Labels: map[string][]int{"all": {1}},
		Start:  0,
		End:    2000,
	}
	sendFrame(t, client, protocol.Subscribe, protocol.EncodeSubscribe(sub))

	_ = client.SetReadDeadline(time.Now().Add(5 * time.Second))
	hdr, respBody, err := protocol.ReadFrame(client)
	if err != nil {
		t.Fatalf("read HISTORY backfill: %v", err)
	}
	if hdr.Type != protocol.History {
		t.Fatalf("expected HISTORY, got %v", hdr.Type)
	}
	hist, err := protocol.DecodeHistoryFrame(respBody)
	if err != nil {
		t.Fatalf("decode HISTORY: %v", err)
	}
	if hist.More {
		t.Fatalf("expected More=false for the only backfill chunk")
	}
	if len(hist.Rows) != 1 {
		t.Fatalf("expected 1 backfilled row, got %d", len(hist.Rows))
	}
	if median, _ := hist.Rows[0].Values["median"].(int64); median != 130 {
		t.Fatalf("expected median=130, got %v", hist.Rows[0].Values["median"])
	}

	// Give handleSubscribe's goroutine time to reach its bus.Subscribe()
	// call before publishing, since streamHistoryCursor's backfill frame
	// reaches the client before the live subscription is registered.
	time.Sleep(50 * time.Millisecond)

	// A second payload processed after SUBSCRIBE should surface as a LIVE
	// event via the export bus.
	if err := p.Process(ctx, bus, body, "probeA", time.Unix(1060, 0)); err != nil {
		t.Fatalf("Process (live row): %v", err)
	}

	_ = client.SetReadDeadline(time.Now().Add(5 * time.Second))
	hdr, respBody, err = protocol.ReadFrame(client)
	if err != nil {
		t.Fatalf("read LIVE event: %v", err)
	}
	if hdr.Type != protocol.Live {
		t.Fatalf("expected LIVE, got %v", hdr.Type)
	}
	live, err := protocol.DecodeLive(respBody)
	if err != nil {
		t.Fatalf("decode LIVE: %v", err)
	}
	if live.StreamID != 1 {
		t.Fatalf("expected stream id 1, got %d", live.StreamID)
	}
}
