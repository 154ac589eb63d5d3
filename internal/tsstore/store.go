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

// Package tsstore is the optional local analytics mirror named by
// spec.md §6's "optional time-series-store connection string". When
// configured, it subscribes to the export bus and persists a flattened
// copy of every STREAM/LIVE event to an embedded DuckDB database, giving
// operators an ad hoc SQL surface over recent measurements without
// touching the authoritative Postgres store. It is never consulted by
// the query protocol; Postgres remains the source of truth.
package tsstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/wanduow/nntsc/internal/logging"
)

// Store wraps a DuckDB connection used to mirror export bus events.
type Store struct {
	db *sql.DB
}

// Open connects to the DuckDB database at dsn (a file path, or
// ":memory:" for an ephemeral store) and ensures the mirror schema
// exists. dsn is passed through verbatim to duckdb-go, following the
// driver's own connection-string conventions.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb store: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb store: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS streams (
			collection TEXT NOT NULL,
			col_id INTEGER NOT NULL,
			stream_id INTEGER NOT NULL,
			attrs JSON,
			seen_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (col_id, stream_id)
		);

		CREATE TABLE IF NOT EXISTS live_events (
			collection TEXT NOT NULL,
			col_id INTEGER NOT NULL,
			stream_id INTEGER NOT NULL,
			ts BIGINT NOT NULL,
			row JSON,
			inserted_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_live_events_stream ON live_events(col_id, stream_id, ts DESC);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure tsstore schema: %w", err)
	}
	logging.Info().Msg("time-series mirror schema created/verified")
	return nil
}

// upsertStream records (or refreshes) a stream's attributes.
func (s *Store) upsertStream(ctx context.Context, collection string, colID, streamID int, attrsJSON string) error {
	const q = `
		INSERT INTO streams (collection, col_id, stream_id, attrs, seen_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (col_id, stream_id) DO UPDATE SET
			attrs = excluded.attrs, seen_at = excluded.seen_at
	`
	_, err := s.db.ExecContext(ctx, q, collection, colID, streamID, attrsJSON)
	return err
}

// insertLive appends a single measurement row.
func (s *Store) insertLive(ctx context.Context, collection string, colID, streamID int, ts int64, rowJSON string) error {
	const q = `
		INSERT INTO live_events (collection, col_id, stream_id, ts, row)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, q, collection, colID, streamID, ts, rowJSON)
	return err
}
