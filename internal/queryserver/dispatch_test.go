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

package queryserver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/wanduow/nntsc/internal/config"
	"github.com/wanduow/nntsc/internal/protocol"
	"github.com/wanduow/nntsc/internal/store"
)

// fakeStore implements dataStore over fixed in-memory data, so dispatch
// logic can be exercised without a real Postgres connection.
type fakeStore struct {
	collections []store.CollectionInfo
	schemas     map[int]*store.CollectionSchema
	byName      map[string]*store.CollectionSchema
	streams     map[string][]store.StreamRow
}

func (f *fakeStore) ListCollections() []store.CollectionInfo { return f.collections }

func (f *fakeStore) SchemaByColID(colID int) (*store.CollectionSchema, bool) {
	s, ok := f.schemas[colID]
	return s, ok
}

func (f *fakeStore) Schema(name string) (*store.CollectionSchema, bool) {
	s, ok := f.byName[name]
	return s, ok
}

func (f *fakeStore) ListStreams(ctx context.Context, schema *store.CollectionSchema, minStreamID int) ([]store.StreamRow, error) {
	var out []store.StreamRow
	for _, row := range f.streams[schema.Name] {
		if row.StreamID >= minStreamID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeStore) SelectData(ctx context.Context, schema *store.CollectionSchema, q store.HistoryQuery) (*store.Cursor, error) {
	return nil, errNotImplemented
}

func (f *fakeStore) SelectAggregated(ctx context.Context, schema *store.CollectionSchema, q store.AggregateQuery) (*store.Cursor, error) {
	return nil, errNotImplemented
}

var errNotImplemented = &fakeErr{"not implemented in fakeStore"}

type fakeErr struct{ msg string }

func (e *fakeErr) Error() string { return e.msg }

func newTestSchema() *store.CollectionSchema {
	return &store.CollectionSchema{
		Name:        "amp_icmp",
		StreamTable: "streams_amp_icmp",
		DataTable:   "data_amp_icmp",
		StreamColumns: []store.Column{
			{Name: "source", Type: "varchar"},
			{Name: "destination", Type: "varchar"},
		},
		DataColumns: []store.Column{
			{Name: "median", Type: "integer"},
			{Name: "loss", Type: "float"},
		},
	}
}

// newTestConn wires a Server's connection handler to an in-memory net.Pipe so
// tests can speak the wire protocol without a real socket.
func newTestConn(t *testing.T, srv *Server) (client net.Conn, done <-chan struct{}) {
	t.Helper()
	clientSide, serverSide := net.Pipe()
	finished := make(chan struct{})
	go func() {
		srv.handleConn(context.Background(), serverSide)
		close(finished)
	}()
	t.Cleanup(func() { _ = clientSide.Close() })
	return clientSide, finished
}

func readVersionCheck(t *testing.T, c net.Conn) {
	t.Helper()
	hdr, body, err := protocol.ReadFrame(c)
	if err != nil {
		t.Fatalf("read version check: %v", err)
	}
	if hdr.Type != protocol.VersionCheck {
		t.Fatalf("expected VERSION_CHECK, got %v", hdr.Type)
	}
	v, err := protocol.DecodeVersionCheck(body)
	if err != nil {
		t.Fatalf("decode version check: %v", err)
	}
	if v != uint32(protocol.Version) {
		t.Fatalf("unexpected version %d", v)
	}
}

func sendFrame(t *testing.T, c net.Conn, msgType protocol.MessageType, body []byte) {
	t.Helper()
	if err := protocol.WriteFrame(c, msgType, body); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func TestHandleRequestCollections(t *testing.T) {
	schema := newTestSchema()
	fs := &fakeStore{
		collections: []store.CollectionInfo{
			{ColID: 1, Module: "amp", ModSubtype: "icmp", StreamTable: schema.StreamTable, DataTable: schema.DataTable},
		},
		schemas: map[int]*store.CollectionSchema{1: schema},
		byName:  map[string]*store.CollectionSchema{"amp_icmp": schema},
		streams: map[string][]store.StreamRow{},
	}
	srv := &Server{cfg: config.QueryServerConfig{ListenAddr: ":0"}, store: fs}

	c, done := newTestConn(t, srv)
	defer c.Close()

	readVersionCheck(t, c)

	body := protocol.RequestBody{ReqType: protocol.ReqCollections}.Encode()
	sendFrame(t, c, protocol.Request, body)

	hdr, respBody, err := protocol.ReadFrame(c)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	if hdr.Type != protocol.Collections {
		t.Fatalf("expected COLLECTIONS, got %v", hdr.Type)
	}
	cols, err := protocol.DecodeCollections(respBody)
	if err != nil {
		t.Fatalf("decode collections: %v", err)
	}
	if len(cols) != 1 || cols[0].Module != "amp" || cols[0].ModSubtype != "icmp" {
		t.Fatalf("unexpected collections: %+v", cols)
	}

	_ = c.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handleConn did not exit after connection close")
	}
}

func TestHandleRequestSchemas(t *testing.T) {
	schema := newTestSchema()
	fs := &fakeStore{
		schemas: map[int]*store.CollectionSchema{1: schema},
		byName:  map[string]*store.CollectionSchema{"amp_icmp": schema},
		streams: map[string][]store.StreamRow{},
	}
	srv := &Server{cfg: config.QueryServerConfig{}, store: fs}

	c, _ := newTestConn(t, srv)
	defer c.Close()
	readVersionCheck(t, c)

	body := protocol.RequestBody{ReqType: protocol.ReqSchemas, ColID: 1}.Encode()
	sendFrame(t, c, protocol.Request, body)

	hdr, respBody, err := protocol.ReadFrame(c)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	if hdr.Type != protocol.Schemas {
		t.Fatalf("expected SCHEMAS, got %v", hdr.Type)
	}
	m, err := protocol.DecodeSchemas(respBody)
	if err != nil {
		t.Fatalf("decode schemas: %v", err)
	}
	if m.Collection != "amp_icmp" {
		t.Fatalf("unexpected collection %q", m.Collection)
	}
	foundMedian := false
	for _, col := range m.DataSchema {
		if col.Name == "median" {
			foundMedian = true
		}
	}
	if !foundMedian {
		t.Fatalf("expected median column in data schema, got %+v", m.DataSchema)
	}
}

func TestHandleRequestSchemasUnknownColID(t *testing.T) {
	fs := &fakeStore{schemas: map[int]*store.CollectionSchema{}, byName: map[string]*store.CollectionSchema{}}
	srv := &Server{cfg: config.QueryServerConfig{}, store: fs}

	c, _ := newTestConn(t, srv)
	defer c.Close()
	readVersionCheck(t, c)

	body := protocol.RequestBody{ReqType: protocol.ReqSchemas, ColID: 99}.Encode()
	sendFrame(t, c, protocol.Request, body)

	hdr, respBody, err := protocol.ReadFrame(c)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	if hdr.Type != protocol.QueryCancelled {
		t.Fatalf("expected QUERY_CANCELLED, got %v", hdr.Type)
	}
	m, err := protocol.DecodeQueryCancelled(respBody)
	if err != nil {
		t.Fatalf("decode query cancelled: %v", err)
	}
	if m.Request != protocol.Schemas || m.ColID != 99 {
		t.Fatalf("unexpected query cancelled body: %+v", m)
	}
}

func TestHandleRequestStreams(t *testing.T) {
	schema := newTestSchema()
	fs := &fakeStore{
		schemas: map[int]*store.CollectionSchema{1: schema},
		byName:  map[string]*store.CollectionSchema{"amp_icmp": schema},
		streams: map[string][]store.StreamRow{
			"amp_icmp": {
				{StreamID: 1, Name: "s1", FirstTs: 100, LastTs: 200, HasLast: true, Attrs: map[string]string{"source": "a", "destination": "b"}},
				{StreamID: 2, Name: "s2", FirstTs: 150, HasLast: false, Attrs: map[string]string{"source": "c", "destination": "d"}},
			},
		},
	}
	srv := &Server{cfg: config.QueryServerConfig{}, store: fs}

	c, _ := newTestConn(t, srv)
	defer c.Close()
	readVersionCheck(t, c)

	body := protocol.RequestBody{ReqType: protocol.ReqStreams, ColID: 1}.Encode()
	sendFrame(t, c, protocol.Request, body)

	hdr, respBody, err := protocol.ReadFrame(c)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	if hdr.Type != protocol.Streams {
		t.Fatalf("expected STREAMS, got %v", hdr.Type)
	}
	m, err := protocol.DecodeStreams(respBody)
	if err != nil {
		t.Fatalf("decode streams: %v", err)
	}
	if m.More {
		t.Fatalf("expected More=false for a single small chunk")
	}
	if len(m.Streams) != 2 {
		t.Fatalf("expected 2 streams, got %d", len(m.Streams))
	}
	if m.Streams[1].HasLast {
		t.Fatalf("stream 2 should have HasLast=false")
	}
}

func TestHandleRequestActiveStreamsRejected(t *testing.T) {
	fs := &fakeStore{schemas: map[int]*store.CollectionSchema{}, byName: map[string]*store.CollectionSchema{}}
	srv := &Server{cfg: config.QueryServerConfig{}, store: fs}

	c, _ := newTestConn(t, srv)
	defer c.Close()
	readVersionCheck(t, c)

	body := protocol.RequestBody{ReqType: protocol.ReqActiveStreams, ColID: 7}.Encode()
	sendFrame(t, c, protocol.Request, body)

	hdr, respBody, err := protocol.ReadFrame(c)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	if hdr.Type != protocol.QueryCancelled {
		t.Fatalf("expected QUERY_CANCELLED, got %v", hdr.Type)
	}
	m, err := protocol.DecodeQueryCancelled(respBody)
	if err != nil {
		t.Fatalf("decode query cancelled: %v", err)
	}
	if m.Request != protocol.Streams || m.ColID != 7 {
		t.Fatalf("unexpected query cancelled body: %+v", m)
	}
}

func TestBuildSchemasMessageIncludesCommonColumns(t *testing.T) {
	m := buildSchemasMessage(newTestSchema())
	names := map[string]bool{}
	for _, c := range m.StreamSchema {
		names[c.Name] = true
	}
	for _, want := range []string{"stream_id", "name", "from_ts", "to_ts", "source", "destination"} {
		if !names[want] {
			t.Fatalf("expected stream schema to contain %q, got %+v", want, m.StreamSchema)
		}
	}
}
