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
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/wanduow/nntsc/internal/exportbus"
	"github.com/wanduow/nntsc/internal/logging"
	"github.com/wanduow/nntsc/internal/store"
)

// lpiPacketsPayload is one LPI packet-count report: per-protocol packet
// totals for one (monitor, user, direction, reporting interval) tuple.
type lpiPacketsPayload struct {
	Monitor string         `json:"id"`
	User    string         `json:"user"`
	Dir     string         `json:"dir"`
	Freq    int            `json:"freq"`
	Results map[string]int `json:"results"` // protocol name -> packet count
}

// LPIPacketsParser stores LPI per-protocol packet counts. It never creates
// a stream for a protocol whose first observed value is zero: a protocol
// that never carries traffic for a user would otherwise spam an empty
// stream into the catalogue for every monitor/user pair.
type LPIPacketsParser struct {
	store *store.Store

	mu      sync.Mutex
	streams map[string]int
}

func NewLPIPacketsParser(st *store.Store) *LPIPacketsParser {
	return &LPIPacketsParser{store: st, streams: make(map[string]int)}
}

func (p *LPIPacketsParser) TestType() string   { return "packets" }
func (p *LPIPacketsParser) Collection() string { return "lpi_packets" }

func (p *LPIPacketsParser) Schema() store.CollectionSchema {
	return store.CollectionSchema{
		Name:        "lpi_packets",
		StreamTable: "streams_lpi_packets",
		DataTable:   "data_lpi_packets",
		StreamColumns: []store.Column{
			{Name: "source", Type: "varchar", Null: false},
			{Name: "user", Type: "varchar", Null: false},
			{Name: "dir", Type: "varchar", Null: false},
			{Name: "freq", Type: "integer", Null: false},
			{Name: "protocol", Type: "varchar", Null: false},
		},
		DataColumns: []store.Column{
			{Name: "packets", Type: "bigint", Null: true},
		},
		UniqueColumns: []string{"source", "user", "dir", "freq", "protocol"},
	}
}

func (p *LPIPacketsParser) RegisterExisting(streamID int, attrs store.StreamAttrs) {
	key := lpiStreamKey(stringAttr(attrs, "source"), stringAttr(attrs, "user"),
		stringAttr(attrs, "dir"), fmt.Sprint(attrs["freq"]), stringAttr(attrs, "protocol"))
	p.mu.Lock()
	p.streams[key] = streamID
	p.mu.Unlock()
}

func lpiStreamKey(mon, user, dir, freq, proto string) string {
	return mon + "\x00" + user + "\x00" + dir + "\x00" + freq + "\x00" + proto
}

func (p *LPIPacketsParser) Process(ctx context.Context, bus *exportbus.Bus, body []byte, source string, ts time.Time) error {
	var payload lpiPacketsPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return store.WrapError(&store.Error{Code: store.DataError, Cause: err})
	}
	if payload.Monitor == "" {
		payload.Monitor = source
	}

	schema := p.Schema()
	var rows []store.DataRow
	var touched []int

	for proto, val := range payload.Results {
		key := lpiStreamKey(payload.Monitor, payload.User, payload.Dir, fmt.Sprint(payload.Freq), proto)

		p.mu.Lock()
		streamID, known := p.streams[key]
		p.mu.Unlock()

		if !known {
			if val == 0 {
				// Don't create a stream until we see a non-zero value.
				continue
			}

			dirstr := payload.Dir
			switch payload.Dir {
			case "out":
				dirstr = "outgoing"
			case "in":
				dirstr = "incoming"
			}
			name := fmt.Sprintf("%s %s packets for user %s -- measured from %s every %d seconds",
				proto, dirstr, payload.User, payload.Monitor, payload.Freq)

			attrs := store.StreamAttrs{
				"source": payload.Monitor, "user": payload.User, "dir": payload.Dir,
				"freq": payload.Freq, "protocol": proto,
			}
			id, created, err := p.store.InsertStream(ctx, &schema, name, ts.Unix(), attrs)
			if err != nil {
				logging.Error().Err(err).Str("protocol", proto).Msg("LPI packets: cannot create new stream")
				return err
			}
			streamID = id
			p.mu.Lock()
			p.streams[key] = streamID
			p.mu.Unlock()

			if created && bus != nil {
				if err := bus.Publish(ctx, exportbus.Event{
					Kind: exportbus.Stream, Collection: p.Collection(), StreamID: streamID, Attrs: attrs,
				}); err != nil {
					return err
				}
			}
		}

		row := map[string]interface{}{"packets": val}
		rows = append(rows, store.DataRow{StreamID: streamID, Ts: ts.Unix(), Values: row})
		touched = append(touched, streamID)

		if bus != nil {
			if err := bus.Publish(ctx, exportbus.Event{
				Kind: exportbus.Live, Collection: p.Collection(), StreamID: streamID, Ts: ts.Unix(), Row: row,
			}); err != nil {
				return err
			}
		}
	}

	if err := p.store.CommitBatch(ctx, &schema, rows); err != nil {
		return err
	}
	for _, streamID := range touched {
		if err := p.store.UpdateLastTimestamp(ctx, schema.StreamTable, streamID, ts.Unix()); err != nil {
			return err
		}
	}
	return nil
}
