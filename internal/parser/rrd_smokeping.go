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

package parser

import (
	"context"

	"github.com/lib/pq"

	"github.com/wanduow/nntsc/internal/rrdpoll"
	"github.com/wanduow/nntsc/internal/store"
)

func pqFloatArray(vals []interface{}) pq.GenericArray {
	return pq.GenericArray{A: vals}
}

// RRDSmokepingParser stores Smokeping RRD rows: column 0 is loss (as a
// fraction of pings sent, encoded as an RRD COUNT DS), column 1 is the
// median ping time, and the remaining columns are individual ping
// results. RRD stores all of these in seconds; the stream table records
// them in milliseconds, matching the reference parser's *1000 scale.
type RRDSmokepingParser struct {
	store *store.Store
}

func NewRRDSmokepingParser(st *store.Store) *RRDSmokepingParser {
	return &RRDSmokepingParser{store: st}
}

func (p *RRDSmokepingParser) Collection() string  { return "rrd_smokeping" }
func (p *RRDSmokepingParser) DataTable() string   { return "data_rrd_smokeping" }
func (p *RRDSmokepingParser) StreamTable() string { return "streams_rrd_smokeping" }

func (p *RRDSmokepingParser) Schema() store.CollectionSchema {
	return store.CollectionSchema{
		Name:        "rrd_smokeping",
		StreamTable: p.StreamTable(),
		DataTable:   p.DataTable(),
		StreamColumns: []store.Column{
			{Name: "filename", Type: "varchar", Null: false},
			{Name: "source", Type: "varchar", Null: false},
			{Name: "host", Type: "varchar", Null: false},
			{Name: "family", Type: "varchar", Null: false},
			{Name: "minres", Type: "integer", Null: false, Default: "300"},
			{Name: "highrows", Type: "integer", Null: false, Default: "1008"},
		},
		DataColumns: []store.Column{
			{Name: "loss", Type: "smallint", Null: true},
			{Name: "pingsent", Type: "smallint", Null: true},
			{Name: "median", Type: "double precision", Null: true},
			{Name: "pings", Type: "double precision[]", Null: true},
			{Name: "lossrate", Type: "float", Null: false},
		},
		UniqueColumns: []string{"filename", "source", "host", "family"},
	}
}

// RegisterStream creates (or looks up) the stream for one Smokeping RRD
// file, returning the stream_id the poller should track.
func (p *RRDSmokepingParser) RegisterStream(ctx context.Context, filename, source, host, family string) (int, error) {
	schema := p.Schema()
	attrs := store.StreamAttrs{
		"filename": filename, "source": source, "host": host, "family": family,
		"minres": 300, "highrows": 1008,
	}
	streamID, _, err := p.store.InsertStream(ctx, &schema, "smokeping "+source+" to "+host, 0, attrs)
	return streamID, err
}

// ProcessSample converts one RRD row ([loss, median, pings...], all in
// seconds) into the stored units (milliseconds) and commits it.
func (p *RRDSmokepingParser) ProcessSample(ctx context.Context, streamID int, ts int64, sample rrdpoll.Sample) (map[string]interface{}, error) {
	var loss *int
	var median *float64
	var pings []interface{}
	sent := 0

	for i, v := range sample.Values {
		switch i {
		case 0:
			if v != nil {
				l := int(*v)
				loss = &l
			}
		case 1:
			if v != nil {
				m := roundTo(*v*1000.0, 6)
				median = &m
			}
		default:
			sent++
			if v == nil {
				pings = append(pings, nil)
			} else {
				pings = append(pings, roundTo(*v*1000.0, 6))
			}
		}
	}

	var lossrate *float64
	if sent > 0 && loss != nil {
		rate := float64(*loss) / float64(sent)
		lossrate = &rate
	}

	row := map[string]interface{}{
		"loss":     loss,
		"pingsent": sent,
		"median":   median,
		"pings":    pqFloatArray(pings),
		"lossrate": lossrate,
	}

	schema := p.Schema()
	if err := p.store.CommitBatch(ctx, &schema, []store.DataRow{{StreamID: streamID, Ts: ts, Values: row}}); err != nil {
		return nil, err
	}
	return row, nil
}

func roundTo(v float64, decimals int) float64 {
	scale := 1.0
	for i := 0; i < decimals; i++ {
		scale *= 10
	}
	return float64(int64(v*scale+0.5)) / scale
}
