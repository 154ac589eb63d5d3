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
	"sort"
	"strconv"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/lib/pq"

	"github.com/wanduow/nntsc/internal/exportbus"
	"github.com/wanduow/nntsc/internal/store"
)

// tcppingResult is one probe attempt within a TCP ping test message. A
// message usually carries several attempts against the same target
// sharing one report timestamp.
type tcppingResult struct {
	Target     string `json:"target"`
	Port       int    `json:"port"`
	Address    string `json:"address"`
	Random     bool   `json:"random"`
	PacketSize int    `json:"packet_size"`
	RTT        *int   `json:"rtt"`
	Loss       *int   `json:"loss"`
	ICMPType   *int   `json:"icmptype"`
}

type tcppingPayload struct {
	Source  string          `json:"source"`
	Results []tcppingResult `json:"results"`
}

// tcppingAccum mirrors the reference parser's per-stream observed{} entry,
// accumulated across every result in one message that targets the same
// stream before being reduced to a single data row.
type tcppingAccum struct {
	loss       *int
	icmpErrors *int
	results    *int
	rtts       []int
	packetSize string
}

// AmpTcppingParser stores AMP TCP ping results. Unlike plain ICMP, its
// stream key includes the destination port, and multiple probe attempts
// in one message are aggregated into a single row before the RTT array's
// lost/errored slots are padded with nulls.
type AmpTcppingParser struct {
	store *store.Store

	mu      sync.Mutex
	streams map[string]int
}

func NewAmpTcppingParser(st *store.Store) *AmpTcppingParser {
	return &AmpTcppingParser{store: st, streams: make(map[string]int)}
}

func (p *AmpTcppingParser) TestType() string   { return "tcpping" }
func (p *AmpTcppingParser) Collection() string { return "amp_tcpping" }

func (p *AmpTcppingParser) Schema() store.CollectionSchema {
	return store.CollectionSchema{
		Name:        "amp_tcpping",
		StreamTable: "streams_amp_tcpping",
		DataTable:   "data_amp_tcpping",
		StreamColumns: []store.Column{
			{Name: "source", Type: "varchar", Null: false},
			{Name: "destination", Type: "varchar", Null: false},
			{Name: "port", Type: "integer", Null: false},
			{Name: "family", Type: "varchar", Null: false},
			{Name: "packet_size", Type: "varchar", Null: false},
		},
		DataColumns: []store.Column{
			{Name: "median", Type: "integer", Null: true},
			{Name: "packet_size", Type: "smallint", Null: false},
			{Name: "loss", Type: "smallint", Null: true},
			{Name: "results", Type: "smallint", Null: true},
			{Name: "icmperrors", Type: "smallint", Null: true},
			{Name: "rtts", Type: "integer[]", Null: true},
			{Name: "lossrate", Type: "float", Null: true},
		},
		UniqueColumns: []string{"source", "destination", "port", "family", "packet_size"},
	}
}

func (p *AmpTcppingParser) RegisterExisting(streamID int, attrs store.StreamAttrs) {
	key := tcppingStreamKey(
		stringAttr(attrs, "source"), stringAttr(attrs, "destination"),
		fmt.Sprint(attrs["port"]), stringAttr(attrs, "family"), stringAttr(attrs, "packet_size"))
	p.mu.Lock()
	p.streams[key] = streamID
	p.mu.Unlock()
}

func tcppingStreamKey(source, dest, port, family, size string) string {
	return source + "\x00" + dest + "\x00" + port + "\x00" + family + "\x00" + size
}

func addMaybeNone(existing *int, delta int) *int {
	v := delta
	if existing != nil {
		v += *existing
	}
	return &v
}

func (p *AmpTcppingParser) Process(ctx context.Context, bus *exportbus.Bus, body []byte, source string, ts time.Time) error {
	var payload tcppingPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return store.WrapError(&store.Error{Code: store.DataError, Cause: err})
	}
	if payload.Source == "" {
		payload.Source = source
	}

	observed := make(map[int]*tcppingAccum)
	order := make([]int, 0, len(payload.Results))

	for _, res := range payload.Results {
		family := deriveFamily(res.Address)
		sizestr := strconv.Itoa(res.PacketSize)
		if res.Random {
			sizestr = "random"
		}
		key := tcppingStreamKey(payload.Source, res.Target, strconv.Itoa(res.Port), family, sizestr)

		p.mu.Lock()
		streamID, known := p.streams[key]
		p.mu.Unlock()

		if !known {
			schema := p.Schema()
			name := fmt.Sprintf("TCP ping from %s to %s:%d", payload.Source, res.Target, res.Port)
			attrs := store.StreamAttrs{
				"source": payload.Source, "destination": res.Target, "port": res.Port,
				"family": family, "packet_size": sizestr,
			}
			id, created, err := p.store.InsertStream(ctx, &schema, name, ts.Unix(), attrs)
			if err != nil {
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

		acc, ok := observed[streamID]
		if !ok {
			acc = &tcppingAccum{packetSize: sizestr}
			observed[streamID] = acc
			order = append(order, streamID)
		}

		if res.ICMPType != nil {
			errCount := 0
			if *res.ICMPType != 0 {
				errCount = 1
			}
			acc.icmpErrors = addMaybeNone(acc.icmpErrors, errCount)
		}
		if res.Loss != nil {
			acc.loss = addMaybeNone(acc.loss, *res.Loss)
		}
		if res.RTT != nil {
			acc.rtts = append(acc.rtts, *res.RTT)
		}
		if (res.RTT != nil && *res.RTT > 0) || (res.Loss != nil && *res.Loss > 0) {
			acc.results = addMaybeNone(acc.results, 1)
		}
	}

	schema := p.Schema()
	var rows []store.DataRow
	for _, streamID := range order {
		row := reduceTcppingAccum(observed[streamID])
		rows = append(rows, store.DataRow{StreamID: streamID, Ts: ts.Unix(), Values: row})

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
	for _, streamID := range order {
		if err := p.store.UpdateLastTimestamp(ctx, schema.StreamTable, streamID, ts.Unix()); err != nil {
			return err
		}
	}
	return nil
}

// reduceTcppingAccum reduces one stream's accumulated probe results to a
// single data row: sort and take the median first, then pad the RTT array
// with a null per lost or errored probe, matching the reference parser's
// _aggregate_streamdata (median before padding, never after).
func reduceTcppingAccum(acc *tcppingAccum) map[string]interface{} {
	sort.Ints(acc.rtts)
	med := median(acc.rtts)

	lossCount := 0
	if acc.loss != nil {
		lossCount = *acc.loss
	}
	errCount := 0
	if acc.icmpErrors != nil {
		errCount = *acc.icmpErrors
	}
	nullPadding := lossCount + errCount

	var lossrate *float64
	if acc.results != nil && *acc.results > 0 {
		rate := float64(lossCount) / float64(*acc.results)
		lossrate = &rate
	}

	packetSize, _ := strconv.Atoi(acc.packetSize)

	row := map[string]interface{}{
		"packet_size": packetSize,
		"loss":        acc.loss,
		"results":     acc.results,
		"icmperrors":  acc.icmpErrors,
		"rtts":        pq.GenericArray{A: withNullPadding(acc.rtts, nullPadding)},
		"lossrate":    lossrate,
	}
	if med != nil {
		row["median"] = *med
	} else {
		row["median"] = nil
	}
	return row
}

// withNullPadding appends n nil slots to rtts, matching the reference
// parser's "pad lost/errored probes with None after the median is taken".
func withNullPadding(rtts []int, n int) []interface{} {
	out := make([]interface{}, 0, len(rtts)+n)
	for _, v := range rtts {
		out = append(out, v)
	}
	for i := 0; i < n; i++ {
		out = append(out, nil)
	}
	return out
}
