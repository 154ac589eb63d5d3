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
	"database/sql"
	"strings"

	"github.com/lib/pq"

	"github.com/wanduow/nntsc/internal/store"
)

// columnScanner pairs a sql.Rows destination with a conversion back to the
// interface{} shapes internal/protocol's wire value type accepts.
type columnScanner struct {
	dest interface{}
	conv func() interface{}
}

func newColumnScanner(col store.Column) columnScanner {
	base := strings.TrimSuffix(col.Type, "[]")
	if strings.HasSuffix(col.Type, "[]") {
		return newArrayColumnScanner(base)
	}

	switch base {
	case "integer", "smallint", "bigint":
		var v sql.NullInt64
		return columnScanner{dest: &v, conv: func() interface{} {
			if !v.Valid {
				return nil
			}
			return v.Int64
		}}
	case "float", "double precision", "real":
		var v sql.NullFloat64
		return columnScanner{dest: &v, conv: func() interface{} {
			if !v.Valid {
				return nil
			}
			return v.Float64
		}}
	case "boolean":
		var v sql.NullBool
		return columnScanner{dest: &v, conv: func() interface{} {
			if !v.Valid {
				return nil
			}
			return v.Bool
		}}
	default: // varchar, text, inet, and anything else: carried as a string
		var v sql.NullString
		return columnScanner{dest: &v, conv: func() interface{} {
			if !v.Valid {
				return nil
			}
			return v.String
		}}
	}
}

// newArrayColumnScanner picks the concrete pq array type matching base and
// flattens it to []interface{} on read. Per-element SQL NULLs within an
// array aren't distinguished from a missing element here: the only writer
// of array columns (the tcpping median/padding path, see
// internal/parser/amp_tcpping.go) already controls its own null padding
// before insert, so round-tripping that distinction through a read path
// nothing else exercises isn't worth the extra reflection.
func newArrayColumnScanner(base string) columnScanner {
	switch base {
	case "integer", "smallint", "bigint":
		var arr pq.Int64Array
		return columnScanner{dest: &arr, conv: func() interface{} {
			if arr == nil {
				return nil
			}
			out := make([]interface{}, len(arr))
			for i, v := range arr {
				out[i] = v
			}
			return out
		}}
	case "float", "double precision", "real":
		var arr pq.Float64Array
		return columnScanner{dest: &arr, conv: func() interface{} {
			if arr == nil {
				return nil
			}
			out := make([]interface{}, len(arr))
			for i, v := range arr {
				out[i] = v
			}
			return out
		}}
	case "boolean":
		var arr pq.BoolArray
		return columnScanner{dest: &arr, conv: func() interface{} {
			if arr == nil {
				return nil
			}
			out := make([]interface{}, len(arr))
			for i, v := range arr {
				out[i] = v
			}
			return out
		}}
	default:
		var arr pq.StringArray
		return columnScanner{dest: &arr, conv: func() interface{} {
			if arr == nil {
				return nil
			}
			out := make([]interface{}, len(arr))
			for i, v := range arr {
				out[i] = v
			}
			return out
		}}
	}
}

// columnTypes indexes every column a schema's data or stream table might
// expose, by name: SelectData's rows carry data columns, SelectAggregated's
// rows may additionally carry GroupColumns drawn from the stream table
// (e.g. grouping a HISTORY query by source/destination).
func columnTypes(schema *store.CollectionSchema) map[string]store.Column {
	out := make(map[string]store.Column, len(schema.DataColumns)+len(schema.StreamColumns))
	for _, c := range schema.DataColumns {
		out[c.Name] = c
	}
	for _, c := range schema.StreamColumns {
		out[c.Name] = c
	}
	return out
}

// scanRow scans one row of a SelectData/SelectAggregated cursor. The
// caller supplies the cursor's actual column names (via rows.Columns(),
// queried once per result set) since SelectAggregated's column list
// depends on the caller's requested aggregate/group columns rather than
// following a fixed schema order. "stream_id" and either "timestamp" (raw
// HISTORY) or "bin" (AGGREGATE/PERCENTILE) are scanned as the row's
// identity; every other column becomes a values map entry.
func scanRow(rows *sql.Rows, colNames []string, types map[string]store.Column) (streamID int, ts int64, values map[string]interface{}, err error) {
	targets := make([]interface{}, len(colNames))
	scanners := make(map[int]columnScanner, len(colNames))

	for i, name := range colNames {
		switch name {
		case "stream_id":
			targets[i] = &streamID
		case "timestamp", "bin":
			targets[i] = &ts
		default:
			col, ok := types[name]
			if !ok {
				col = store.Column{Name: name, Type: "varchar"}
			}
			sc := newColumnScanner(col)
			scanners[i] = sc
			targets[i] = sc.dest
		}
	}

	if err := rows.Scan(targets...); err != nil {
		return 0, 0, nil, err
	}

	values = make(map[string]interface{}, len(scanners))
	for i, name := range colNames {
		if sc, ok := scanners[i]; ok {
			values[name] = sc.conv()
		}
	}
	return streamID, ts, values, nil
}
