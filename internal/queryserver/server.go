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

	"github.com/wanduow/nntsc/internal/config"
	"github.com/wanduow/nntsc/internal/exportbus"
	"github.com/wanduow/nntsc/internal/logging"
	"github.com/wanduow/nntsc/internal/metrics"
	"github.com/wanduow/nntsc/internal/store"
	"github.com/wanduow/nntsc/internal/streamcache"
)

// dataStore is the subset of *store.Store the query server needs. Kept
// narrow so dispatch logic can be tested against a fake without a real
// Postgres connection.
type dataStore interface {
	ListCollections() []store.CollectionInfo
	SchemaByColID(colID int) (*store.CollectionSchema, bool)
	Schema(name string) (*store.CollectionSchema, bool)
	ListStreams(ctx context.Context, schema *store.CollectionSchema, minStreamID int) ([]store.StreamRow, error)
	SelectData(ctx context.Context, schema *store.CollectionSchema, q store.HistoryQuery) (*store.Cursor, error)
	SelectAggregated(ctx context.Context, schema *store.CollectionSchema, q store.AggregateQuery) (*store.Cursor, error)
}

// Server is the query server's top-level handle, implementing suture's
// Service interface (Serve(ctx) error) so it can be run alongside the
// broker consumer and RRD poller under one supervisor tree.
type Server struct {
	cfg   config.QueryServerConfig
	store dataStore
	bus   *exportbus.Bus
	cache *streamcache.Cache
}

// NewServer builds a Server. st and bus must already be usable (schema
// registered, bus running); cache may be nil, in which case active-stream
// filtering falls back to treating every requested stream as active.
func NewServer(cfg config.QueryServerConfig, st *store.Store, bus *exportbus.Bus, cache *streamcache.Cache) *Server {
	return &Server{cfg: cfg, store: st, bus: bus, cache: cache}
}

// Serve runs the accept loop until ctx is cancelled. It satisfies
// suture.Service.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	logging.Info().Str("addr", s.cfg.ListenAddr).Msg("query server listening")

	sem := make(chan struct{}, maxConnOr(s.cfg.MaxConnections))
	limiter := newConnRateLimiter(5, 10)
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return err
			}
		}

		if !limiter.allow(conn.RemoteAddr()) {
			logging.Warn().Str("remote", conn.RemoteAddr().String()).Msg("rejecting connection: rate limited")
			_ = conn.Close()
			continue
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			_ = conn.Close()
			return ctx.Err()
		}

		metrics.QueryServerConnections.Inc()
		go func() {
			defer func() {
				<-sem
				metrics.QueryServerConnections.Dec()
			}()
			s.handleConn(ctx, conn)
		}()
	}
}

func maxConnOr(n int) int {
	if n <= 0 {
		return 256
	}
	return n
}
