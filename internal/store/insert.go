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
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// StreamAttrs holds the collection-specific stream key/attribute values a
// parser supplies when registering a new stream (e.g. source, destination,
// protocol). Keys must match CollectionSchema.StreamColumns names.
type StreamAttrs map[string]interface{}

// InsertStream idempotently registers a stream: if a row already exists
// with the same unique-column values it returns that row's stream_id
// instead of erroring, matching the "insert_stream never fails on a
// pre-existing stream" invariant parsers depend on. created reports
// whether this call actually inserted the row (true) or found an existing
// one (false), so callers can decide whether to emit a STREAM event.
func (s *Store) InsertStream(ctx context.Context, schema *CollectionSchema, name string, firstTS int64, attrs StreamAttrs) (streamID int, created bool, err error) {
	cols := []string{"name", "from_ts", "active"}
	placeholders := []string{"$1", "$2", "$3"}
	args := []interface{}{name, firstTS, true}

	var extraNames []string
	for _, c := range schema.StreamColumns {
		extraNames = append(extraNames, c.Name)
	}
	sort.Strings(extraNames)
	for _, colName := range extraNames {
		val, ok := attrs[colName]
		if !ok {
			continue
		}
		cols = append(cols, colName)
		args = append(args, val)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}

	quotedCols := make([]string, len(cols))
	for i, c := range cols {
		quotedCols[i] = quoteIdent(c)
	}

	conflictCols := make([]string, len(schema.UniqueColumns))
	for i, c := range schema.UniqueColumns {
		conflictCols[i] = quoteIdent(c)
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (%s)
ON CONFLICT (%s) DO NOTHING
RETURNING stream_id`,
		quoteIdent(schema.StreamTable), strings.Join(quotedCols, ", "),
		strings.Join(placeholders, ", "), strings.Join(conflictCols, ", "))

	scanErr := s.db.QueryRowContext(ctx, query, args...).Scan(&streamID)
	switch {
	case scanErr == nil:
		return streamID, true, nil
	case errors.Is(scanErr, sql.ErrNoRows):
		// ON CONFLICT DO NOTHING suppressed the insert: the stream already
		// exists, so look up its id instead of treating this as a failure.
		id, lookupErr := s.lookupStreamID(ctx, schema, attrs)
		return id, false, lookupErr
	default:
		return 0, false, WrapError(scanErr)
	}
}

func (s *Store) lookupStreamID(ctx context.Context, schema *CollectionSchema, attrs StreamAttrs) (int, error) {
	var clauses []string
	var args []interface{}
	for _, colName := range schema.UniqueColumns {
		val, ok := attrs[colName]
		if !ok {
			return 0, WrapError(&Error{Code: CodingError, Cause: fmt.Errorf("missing unique column %q in stream attrs", colName)})
		}
		args = append(args, val)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", quoteIdent(colName), len(args)))
	}

	query := fmt.Sprintf(`SELECT stream_id FROM %s WHERE %s`,
		quoteIdent(schema.StreamTable), strings.Join(clauses, " AND "))

	var streamID int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&streamID); err != nil {
		return 0, WrapError(err)
	}
	return streamID, nil
}

// DataRow is one measurement sample queued for CommitBatch.
type DataRow struct {
	StreamID int
	Ts       int64
	Values   map[string]interface{}
}

// CommitBatch inserts rows into dataTable inside a single transaction,
// creating any missing weekly partitions first. Rows for the same
// (stream_id, timestamp) pair that already exist are left untouched
// (ON CONFLICT DO NOTHING), matching the store's at-least-once delivery
// tolerance: a redelivered broker message must not corrupt existing data.
func (s *Store) CommitBatch(ctx context.Context, schema *CollectionSchema, rows []DataRow) error {
	if len(rows) == 0 {
		return nil
	}

	weeks := make(map[int64]bool)
	for _, r := range rows {
		weeks[(r.Ts/weekSeconds)*weekSeconds] = true
	}
	for start := range weeks {
		if err := s.EnsurePartition(ctx, schema.DataTable, start); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return WrapError(err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range rows {
		if err := insertOneRow(ctx, tx, schema, r); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return WrapError(err)
	}
	return nil
}

func insertOneRow(ctx context.Context, tx *sql.Tx, schema *CollectionSchema, r DataRow) error {
	cols := []string{"stream_id", `"timestamp"`}
	placeholders := []string{"$1", "$2"}
	args := []interface{}{r.StreamID, r.Ts}

	var names []string
	for _, c := range schema.DataColumns {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	for _, colName := range names {
		val, ok := r.Values[colName]
		if !ok {
			continue
		}
		cols = append(cols, quoteIdent(colName))
		args = append(args, val)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (stream_id, "timestamp") DO NOTHING`,
		quoteIdent(schema.DataTable), strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return WrapError(err)
	}
	return nil
}

// UpdateLastTimestamp advances a stream's recorded to_ts, but only forward:
// a redelivered or out-of-order message with an older ts never rolls the
// stored value back.
func (s *Store) UpdateLastTimestamp(ctx context.Context, streamTable string, streamID int, ts int64) error {
	query := fmt.Sprintf(
		`UPDATE %s SET to_ts = $1 WHERE stream_id = $2 AND (to_ts IS NULL OR to_ts < $1)`,
		quoteIdent(streamTable))
	if _, err := s.db.ExecContext(ctx, query, ts, streamID); err != nil {
		return WrapError(err)
	}
	return nil
}
