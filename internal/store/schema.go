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

package store

import (
	"context"
	"fmt"
	"strings"
)

// weekSeconds is the width of one data-table partition, matching the
// weekly-partitioned layout the store lays data tables out in.
const weekSeconds = 7 * 24 * 3600

// Column describes one column of a stream or data table.
type Column struct {
	Name    string
	Type    string
	Null    bool
	Default string
}

// CollectionSchema captures everything a parser's capability interface
// (see internal/parser) contributes about the shape of its collection: the
// stream and data table names, their extra columns beyond the common ones
// every collection carries, and the columns that together uniquely
// identify a stream.
type CollectionSchema struct {
	Name          string // e.g. "amp_icmp", "lpi_bytes", "rrd_smokeping"
	StreamTable   string
	DataTable     string
	StreamColumns []Column
	DataColumns   []Column
	UniqueColumns []string
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func columnDDL(c Column) string {
	ddl := quoteIdent(c.Name) + " " + c.Type
	if !c.Null {
		ddl += " NOT NULL"
	}
	if c.Default != "" {
		ddl += " DEFAULT " + c.Default
	}
	return ddl
}

// EnsureCoreSchema creates the collections catalog table if it does not
// already exist. It must run before any call to RegisterCollection.
func (s *Store) EnsureCoreSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS collections (
	col_id SERIAL PRIMARY KEY,
	module VARCHAR NOT NULL,
	modsubtype VARCHAR NOT NULL DEFAULT '',
	streamtable VARCHAR NOT NULL,
	datatable VARCHAR NOT NULL,
	UNIQUE (module, modsubtype)
)`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return WrapError(err)
	}
	return nil
}

// RegisterCollection creates the stream and (partitioned) data tables for a
// collection if they do not already exist, records the collection in the
// catalog, and caches the schema for later insert/select calls. It is safe
// to call repeatedly across restarts: table and catalog creation use
// IF NOT EXISTS / ON CONFLICT semantics.
func (s *Store) RegisterCollection(ctx context.Context, module, modsubtype string, schema CollectionSchema) (int, error) {
	streamDDL := buildStreamTableDDL(schema)
	if _, err := s.db.ExecContext(ctx, streamDDL); err != nil {
		return 0, WrapError(err)
	}

	dataDDL := buildDataTableDDL(schema)
	if _, err := s.db.ExecContext(ctx, dataDDL); err != nil {
		return 0, WrapError(err)
	}

	var colID int
	row := s.db.QueryRowContext(ctx, `
INSERT INTO collections (module, modsubtype, streamtable, datatable)
VALUES ($1, $2, $3, $4)
ON CONFLICT (module, modsubtype) DO UPDATE SET module = EXCLUDED.module
RETURNING col_id`, module, modsubtype, schema.StreamTable, schema.DataTable)
	if err := row.Scan(&colID); err != nil {
		return 0, WrapError(err)
	}

	s.mu.Lock()
	s.collections[schema.Name] = &schema
	s.colIDs[schema.Name] = colID
	s.colNames[colID] = schema.Name
	s.colModules[schema.Name] = [2]string{module, modsubtype}
	s.mu.Unlock()

	return colID, nil
}

func buildStreamTableDDL(schema CollectionSchema) string {
	var cols []string
	cols = append(cols,
		"stream_id SERIAL PRIMARY KEY",
		"name VARCHAR NOT NULL",
		"from_ts BIGINT NOT NULL",
		"to_ts BIGINT",
		"active BOOLEAN NOT NULL DEFAULT TRUE",
	)
	for _, c := range schema.StreamColumns {
		cols = append(cols, columnDDL(c))
	}
	if len(schema.UniqueColumns) > 0 {
		quoted := make([]string, len(schema.UniqueColumns))
		for i, c := range schema.UniqueColumns {
			quoted[i] = quoteIdent(c)
		}
		cols = append(cols, fmt.Sprintf("UNIQUE (%s)", strings.Join(quoted, ", ")))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
		quoteIdent(schema.StreamTable), strings.Join(cols, ",\n\t"))
}

func buildDataTableDDL(schema CollectionSchema) string {
	var cols []string
	cols = append(cols,
		"stream_id INTEGER NOT NULL",
		`"timestamp" BIGINT NOT NULL`,
	)
	for _, c := range schema.DataColumns {
		cols = append(cols, columnDDL(c))
	}
	cols = append(cols, `PRIMARY KEY (stream_id, "timestamp")`)
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	%s
) PARTITION BY RANGE ("timestamp")`,
		quoteIdent(schema.DataTable), strings.Join(cols, ",\n\t"))
}

// EnsurePartition creates the weekly partition of table covering ts if it
// does not already exist. Partition boundaries are aligned to multiples of
// weekSeconds so the same ts always maps to the same partition name,
// regardless of which caller creates it first.
func (s *Store) EnsurePartition(ctx context.Context, table string, ts int64) error {
	start := (ts / weekSeconds) * weekSeconds
	end := start + weekSeconds
	partName := fmt.Sprintf("part_%s_%d", table, start)

	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_class WHERE relname = $1)`, partName).Scan(&exists)
	if err != nil {
		return WrapError(err)
	}
	if exists {
		return nil
	}

	ddl := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s PARTITION OF %s FOR VALUES FROM (%d) TO (%d)`,
		quoteIdent(partName), quoteIdent(table), start, end)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return WrapError(err)
	}
	return nil
}

// Schema returns the cached CollectionSchema for name, if registered.
func (s *Store) Schema(name string) (*CollectionSchema, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	schema, ok := s.collections[name]
	return schema, ok
}

// Collections returns the names of every registered collection, for
// REQ_COLLECTIONS responses.
func (s *Store) Collections() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	return names
}
