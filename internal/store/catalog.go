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
	"sort"
)

// CollectionInfo is the catalog-facing view of a registered collection:
// just enough to answer REQ_COLLECTIONS and to resolve a col_id into the
// CollectionSchema needed for REQ_SCHEMAS/REQ_STREAMS/HISTORY.
type CollectionInfo struct {
	ColID       int
	Module      string
	ModSubtype  string
	StreamTable string
	DataTable   string
}

// ListCollections returns every registered collection, ordered by col_id
// so repeated calls produce a stable order for clients and tests alike.
func (s *Store) ListCollections() []CollectionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]CollectionInfo, 0, len(s.collections))
	for name, schema := range s.collections {
		mod := s.colModules[name]
		out = append(out, CollectionInfo{
			ColID:       s.colIDs[name],
			Module:      mod[0],
			ModSubtype:  mod[1],
			StreamTable: schema.StreamTable,
			DataTable:   schema.DataTable,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ColID < out[j].ColID })
	return out
}

// SchemaByColID resolves a wire col_id (as carried in a REQUEST body) to
// the CollectionSchema registered for it.
func (s *Store) SchemaByColID(colID int) (*CollectionSchema, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, ok := s.colNames[colID]
	if !ok {
		return nil, false
	}
	return s.collections[name], true
}

// StreamRow is one row of a collection's stream table, as returned by
// ListStreams for a STREAMS reply.
type StreamRow struct {
	StreamID int
	Name     string
	FirstTs  int64
	LastTs   int64
	HasLast  bool
	Attrs    map[string]string
}

// ListStreams returns every stream registered for schema with stream_id
// greater than or equal to minStreamID, ordered by stream_id, so callers
// can page through a large stream table across several STREAMS chunks by
// passing the last-seen stream_id + 1 as minStreamID on the next call.
func (s *Store) ListStreams(ctx context.Context, schema *CollectionSchema, minStreamID int) ([]StreamRow, error) {
	attrCols := make([]string, 0, len(schema.StreamColumns))
	for _, c := range schema.StreamColumns {
		attrCols = append(attrCols, c.Name)
	}
	selectList := "stream_id, name, from_ts, to_ts"
	if len(attrCols) > 0 {
		selectList += ", " + buildSelectList(attrCols)
	}

	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE stream_id >= $1 ORDER BY stream_id`,
		selectList, quoteIdent(schema.StreamTable))

	rows, err := s.db.QueryContext(ctx, query, minStreamID)
	if err != nil {
		return nil, WrapError(err)
	}
	defer rows.Close()

	var out []StreamRow
	for rows.Next() {
		scanTargets := make([]interface{}, 4+len(attrCols))
		var streamID int
		var name string
		var firstTS int64
		var lastTS sql.NullInt64
		scanTargets[0] = &streamID
		scanTargets[1] = &name
		scanTargets[2] = &firstTS
		scanTargets[3] = &lastTS
		attrVals := make([]sql.NullString, len(attrCols))
		for i := range attrCols {
			scanTargets[4+i] = &attrVals[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, WrapError(err)
		}

		attrs := make(map[string]string, len(attrCols))
		for i, col := range attrCols {
			if attrVals[i].Valid {
				attrs[col] = attrVals[i].String
			}
		}

		row := StreamRow{StreamID: streamID, Name: name, FirstTs: firstTS, Attrs: attrs}
		if lastTS.Valid {
			row.LastTs = lastTS.Int64
			row.HasLast = true
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapError(err)
	}
	return out, nil
}
