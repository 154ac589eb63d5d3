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

// Package store implements the NNTSC measurement store gateway: schema
// management, idempotent stream registration, batched data insertion, and
// cursor-based historical/aggregated queries against Postgres.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/lib/pq"

	"github.com/wanduow/nntsc/internal/config"
	"github.com/wanduow/nntsc/internal/logging"
)

// Store wraps a Postgres connection pool plus the per-collection schema
// metadata (stream/data columns, unique keys) that parsers register at
// startup via RegisterCollection.
type Store struct {
	db  *sql.DB
	cfg config.DatabaseConfig

	mu          sync.RWMutex
	collections map[string]*CollectionSchema
	colIDs      map[string]int
	colNames    map[int]string
	colModules  map[string][2]string // schema.Name -> [module, modsubtype]

	stmtMu    sync.Mutex
	stmtCache map[string]*sql.Stmt
}

// New opens a connection pool to the Postgres measurement store and applies
// the pool tuning parameters from cfg. It does not create or migrate schema;
// call EnsureCoreSchema for that.
func New(cfg config.DatabaseConfig) (*Store, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Name, cfg.User, cfg.Password, sslModeOrDefault(cfg.SSLMode),
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, WrapError(err)
	}

	db.SetMaxOpenConns(maxOr(cfg.MaxOpenConns, 16))
	db.SetMaxIdleConns(maxOr(cfg.MaxIdleConns, 4))
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	s := &Store{
		db:          db,
		cfg:         cfg,
		collections: make(map[string]*CollectionSchema),
		colIDs:      make(map[string]int),
		colNames:    make(map[int]string),
		colModules:  make(map[string][2]string),
		stmtCache:   make(map[string]*sql.Stmt),
	}
	return s, nil
}

func sslModeOrDefault(mode string) string {
	if mode == "" {
		return "disable"
	}
	return mode
}

func maxOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

// Ping verifies the store connection is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return WrapError(err)
	}
	return nil
}

// Close releases the connection pool and any cached prepared statements.
func (s *Store) Close() error {
	s.stmtMu.Lock()
	for key, stmt := range s.stmtCache {
		if cerr := stmt.Close(); cerr != nil {
			logging.Warn().Err(cerr).Str("stmt", key).Msg("failed to close cached statement")
		}
	}
	s.stmtCache = nil
	s.stmtMu.Unlock()

	return s.db.Close()
}

// DB exposes the underlying *sql.DB for components (the RRD poller's
// checkpoint store, admin health checks) that need raw access without
// going through the collection-schema-aware helpers.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) prepared(ctx context.Context, key, query string) (*sql.Stmt, error) {
	s.stmtMu.Lock()
	defer s.stmtMu.Unlock()

	if s.stmtCache == nil {
		return nil, WrapError(fmt.Errorf("store closed"))
	}
	if stmt, ok := s.stmtCache[key]; ok {
		return stmt, nil
	}
	stmt, err := s.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, WrapError(err)
	}
	s.stmtCache[key] = stmt
	return stmt, nil
}
