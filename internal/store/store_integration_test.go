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

package store

import (
	"context"
	"testing"

	"github.com/wanduow/nntsc/internal/config"
	"github.com/wanduow/nntsc/internal/testinfra"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	testinfra.SkipIfNoDocker(t)

	ctx := context.Background()
	pg, err := testinfra.NewPostgresContainer(ctx)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() { testinfra.CleanupContainer(t, ctx, pg.Container) })

	s, err := New(config.DatabaseConfig{
		Host:     pg.Host,
		Port:     pg.Port,
		Name:     pg.Database,
		User:     pg.User,
		Password: pg.Password,
		SSLMode:  "disable",
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

func icmpSchema() CollectionSchema {
	return CollectionSchema{
		Name:        "amp_icmp",
		StreamTable: "streams_amp_icmp",
		DataTable:   "data_amp_icmp",
		StreamColumns: []Column{
			{Name: "source", Type: "varchar", Null: false},
			{Name: "destination", Type: "varchar", Null: false},
			{Name: "packet_size", Type: "varchar", Null: false},
		},
		DataColumns: []Column{
			{Name: "median", Type: "integer", Null: true},
			{Name: "loss", Type: "integer", Null: true},
			{Name: "results", Type: "integer", Null: false},
		},
		UniqueColumns: []string{"source", "destination", "packet_size"},
	}
}

func TestStoreInsertStreamIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	schema := icmpSchema()

	if _, err := s.RegisterCollection(ctx, "amp", "icmp", schema); err != nil {
		t.Fatalf("RegisterCollection: %v", err)
	}

	attrs := StreamAttrs{"source": "mon1", "destination": "8.8.8.8", "packet_size": "84"}
	id1, created1, err := s.InsertStream(ctx, &schema, "mon1 to 8.8.8.8", 1000, attrs)
	if err != nil {
		t.Fatalf("InsertStream: %v", err)
	}
	if !created1 {
		t.Fatal("expected first InsertStream to create a new row")
	}

	id2, created2, err := s.InsertStream(ctx, &schema, "mon1 to 8.8.8.8", 2000, attrs)
	if err != nil {
		t.Fatalf("InsertStream (repeat): %v", err)
	}
	if created2 {
		t.Fatal("expected repeat InsertStream not to create a new row")
	}

	if id1 != id2 {
		t.Fatalf("expected idempotent InsertStream to return the same id, got %d and %d", id1, id2)
	}
}

func TestStoreCommitBatchAndSelect(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	schema := icmpSchema()

	if _, err := s.RegisterCollection(ctx, "amp", "icmp", schema); err != nil {
		t.Fatalf("RegisterCollection: %v", err)
	}

	attrs := StreamAttrs{"source": "mon1", "destination": "8.8.8.8", "packet_size": "84"}
	streamID, _, err := s.InsertStream(ctx, &schema, "mon1 to 8.8.8.8", 1000, attrs)
	if err != nil {
		t.Fatalf("InsertStream: %v", err)
	}

	rows := []DataRow{
		{StreamID: streamID, Ts: 1000, Values: map[string]interface{}{"median": 10, "loss": 0, "results": 5}},
		{StreamID: streamID, Ts: 1600, Values: map[string]interface{}{"median": 12, "loss": 0, "results": 5}},
	}
	if err := s.CommitBatch(ctx, &schema, rows); err != nil {
		t.Fatalf("CommitBatch: %v", err)
	}

	cur, err := s.SelectData(ctx, &schema, HistoryQuery{
		StreamIDs: []int{streamID},
		StartTs:   0,
		EndTs:     10000,
	})
	if err != nil {
		t.Fatalf("SelectData: %v", err)
	}
	defer cur.Close(ctx)

	fetched, err := cur.Fetch(ctx, 10)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	defer fetched.Close()

	count := 0
	for fetched.Next() {
		count++
	}
	if count != 2 {
		t.Fatalf("expected 2 rows, got %d", count)
	}
}

func TestStoreUpdateLastTimestampIsMonotonic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	schema := icmpSchema()

	if _, err := s.RegisterCollection(ctx, "amp", "icmp", schema); err != nil {
		t.Fatalf("RegisterCollection: %v", err)
	}
	attrs := StreamAttrs{"source": "mon1", "destination": "8.8.8.8", "packet_size": "84"}
	streamID, _, err := s.InsertStream(ctx, &schema, "mon1 to 8.8.8.8", 1000, attrs)
	if err != nil {
		t.Fatalf("InsertStream: %v", err)
	}

	if err := s.UpdateLastTimestamp(ctx, schema.StreamTable, streamID, 2000); err != nil {
		t.Fatalf("UpdateLastTimestamp: %v", err)
	}
	if err := s.UpdateLastTimestamp(ctx, schema.StreamTable, streamID, 1500); err != nil {
		t.Fatalf("UpdateLastTimestamp (older): %v", err)
	}

	var toTs int64
	row := s.db.QueryRowContext(ctx, `SELECT to_ts FROM `+schema.StreamTable+` WHERE stream_id = $1`, streamID)
	if err := row.Scan(&toTs); err != nil {
		t.Fatalf("scan to_ts: %v", err)
	}
	if toTs != 2000 {
		t.Fatalf("to_ts regressed to %d, want 2000", toTs)
	}
}
