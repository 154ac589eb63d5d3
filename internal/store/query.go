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
	"fmt"
	"strings"
)

// HistoryQuery describes an unbinned, unaggregated HISTORY request: every
// raw sample for the given streams in [startTs, endTs).
type HistoryQuery struct {
	StreamIDs []int
	StartTs   int64
	EndTs     int64
	Columns   []string
}

// SelectData opens a server-side cursor over raw samples, ordered by
// stream then timestamp so the query server can hand results to clients
// in chunks without buffering the whole range in memory.
func (s *Store) SelectData(ctx context.Context, schema *CollectionSchema, q HistoryQuery) (*Cursor, error) {
	if len(q.StreamIDs) == 0 {
		return nil, WrapError(&Error{Code: DataError, Cause: fmt.Errorf("select_data requires at least one stream id")})
	}

	cols := q.Columns
	if len(cols) == 0 {
		cols = allColumnNames(schema)
	}
	selectList := buildSelectList(cols)

	query := fmt.Sprintf(
		`SELECT stream_id, "timestamp", %s FROM %s WHERE stream_id = ANY($1) AND "timestamp" >= $2 AND "timestamp" < $3 ORDER BY stream_id, "timestamp"`,
		selectList, quoteIdent(schema.DataTable))

	return s.openCursor(ctx, query, pqIntArray(q.StreamIDs), q.StartTs, q.EndTs)
}

// AggregateQuery describes a binned AGGREGATE or PERCENTILE request: roll
// samples for each stream up into fixed-width time bins, applying one
// AggFunc per requested column.
type AggregateQuery struct {
	StreamIDs    []int
	StartTs      int64
	EndTs        int64
	BinSize      int64
	AggColumns   map[string]AggFunc
	GroupColumns []string
}

// SelectAggregated opens a server-side cursor over binned, aggregated
// samples. Bins are aligned to multiples of BinSize from the Unix epoch so
// callers requesting the same bin size always see the same bin boundaries
// regardless of StartTs.
func (s *Store) SelectAggregated(ctx context.Context, schema *CollectionSchema, q AggregateQuery) (*Cursor, error) {
	if len(q.StreamIDs) == 0 {
		return nil, WrapError(&Error{Code: DataError, Cause: fmt.Errorf("select_aggregated requires at least one stream id")})
	}
	if q.BinSize <= 0 {
		return nil, WrapError(&Error{Code: DataError, Cause: fmt.Errorf("select_aggregated requires a positive bin size")})
	}

	var aggExprs []string
	var aggAliases []string
	for col, fn := range q.AggColumns {
		expr, err := AggregateExpr(fn, col)
		if err != nil {
			return nil, err
		}
		alias := quoteIdent(col)
		aggExprs = append(aggExprs, fmt.Sprintf("%s AS %s", expr, alias))
		aggAliases = append(aggAliases, col)
	}
	if len(aggExprs) == 0 {
		return nil, WrapError(&Error{Code: DataError, Cause: fmt.Errorf("select_aggregated requires at least one aggregate column")})
	}

	groupCols := append([]string{"stream_id", "bin"}, q.GroupColumns...)
	for i, g := range q.GroupColumns {
		groupCols[2+i] = quoteIdent(g)
	}
	selectGroupCols := strings.Join(groupCols, ", ")

	subCols := map[string]bool{}
	for _, col := range aggAliases {
		subCols[col] = true
	}
	for _, col := range q.GroupColumns {
		subCols[col] = true
	}
	subSelect := []string{"stream_id", `("timestamp" / $3) * $3 AS bin`}
	for col := range subCols {
		subSelect = append(subSelect, quoteIdent(col))
	}

	query := fmt.Sprintf(
		`SELECT %s, %s
FROM (SELECT %s FROM %s
      WHERE stream_id = ANY($1) AND "timestamp" >= $2 AND "timestamp" < $4) sub
GROUP BY %s
ORDER BY bin, stream_id`,
		selectGroupCols, strings.Join(aggExprs, ", "), strings.Join(subSelect, ", "),
		quoteIdent(schema.DataTable), selectGroupCols)

	return s.openCursor(ctx, query, pqIntArray(q.StreamIDs), q.StartTs, q.BinSize, q.EndTs)
}

// StreamRange returns a stream's recorded first/last timestamps (from_ts,
// to_ts). lastKnown is false if to_ts is still NULL (no data row has been
// committed for the stream yet).
func (s *Store) StreamRange(ctx context.Context, streamTable string, streamID int) (firstTS int64, lastTS int64, lastKnown bool, err error) {
	query := fmt.Sprintf(`SELECT from_ts, to_ts FROM %s WHERE stream_id = $1`, quoteIdent(streamTable))

	var to sql.NullInt64
	if scanErr := s.db.QueryRowContext(ctx, query, streamID).Scan(&firstTS, &to); scanErr != nil {
		return 0, 0, false, WrapError(scanErr)
	}
	if to.Valid {
		return firstTS, to.Int64, true, nil
	}
	return firstTS, 0, false, nil
}

func allColumnNames(schema *CollectionSchema) []string {
	names := make([]string, 0, len(schema.DataColumns))
	for _, c := range schema.DataColumns {
		names = append(names, c.Name)
	}
	return names
}

func buildSelectList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
	}
	return strings.Join(quoted, ", ")
}

// pqIntArray formats a Go []int as a Postgres integer array literal
// suitable for binding against stream_id = ANY($n).
func pqIntArray(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return "{" + strings.Join(parts, ",") + "}"
}
