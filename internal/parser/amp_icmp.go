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

// icmpPayload is the decoded wire shape of one AMP ICMP test result.
// Random picks a fresh packet size per probe, in which case PacketSize is
// ignored and the stream key uses the literal string "random" instead, so
// that varying-size probes share one stream.
type icmpPayload struct {
	Source     string `json:"source"`
	Target     string `json:"target"`
	Address    string `json:"address"`
	PacketSize int    `json:"packet_size"`
	Random     bool   `json:"random"`
	RTTs       []int  `json:"rtts"`
	Loss       int    `json:"loss"`
	ICMPErrors int    `json:"icmperrors"`
}

// AmpICMPParser stores AMP ICMP ping results: one row per (stream, probe
// round), with the round's RTT samples reduced to a median and loss rate.
type AmpICMPParser struct {
	store *store.Store

	mu      sync.Mutex
	streams map[string]int // stream key -> stream_id
}

// NewAmpICMPParser constructs a parser bound to st. Call RegisterExisting
// for every stream already known to the store before consuming live
// traffic, so duplicate streams aren't created on restart.
func NewAmpICMPParser(st *store.Store) *AmpICMPParser {
	return &AmpICMPParser{store: st, streams: make(map[string]int)}
}

func (p *AmpICMPParser) TestType() string   { return "icmp" }
func (p *AmpICMPParser) Collection() string { return "amp_icmp" }

func (p *AmpICMPParser) Schema() store.CollectionSchema {
	return store.CollectionSchema{
		Name:        "amp_icmp",
		StreamTable: "streams_amp_icmp",
		DataTable:   "data_amp_icmp",
		StreamColumns: []store.Column{
			{Name: "source", Type: "varchar", Null: false},
			{Name: "destination", Type: "varchar", Null: false},
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
		UniqueColumns: []string{"source", "destination", "family", "packet_size"},
	}
}

// RegisterExisting seeds the stream cache from a row already present in
// the stream table, so the parser never re-inserts it.
func (p *AmpICMPParser) RegisterExisting(streamID int, attrs store.StreamAttrs) {
	key := icmpStreamKey(
		stringAttr(attrs, "source"), stringAttr(attrs, "destination"),
		stringAttr(attrs, "family"), stringAttr(attrs, "packet_size"))
	p.mu.Lock()
	p.streams[key] = streamID
	p.mu.Unlock()
}

func stringAttr(attrs store.StreamAttrs, name string) string {
	v, _ := attrs[name].(string)
	return v
}

func icmpStreamKey(source, dest, family, size string) string {
	return source + "\x00" + dest + "\x00" + family + "\x00" + size
}

func (p *AmpICMPParser) Process(ctx context.Context, bus *exportbus.Bus, body []byte, source string, ts time.Time) error {
	var payload icmpPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return store.WrapError(&store.Error{Code: store.DataError, Cause: err})
	}
	if payload.Source == "" {
		payload.Source = source
	}

	family := deriveFamily(payload.Address)
	sizestr := strconv.Itoa(payload.PacketSize)
	if payload.Random {
		sizestr = "random"
	}

	key := icmpStreamKey(payload.Source, payload.Target, family, sizestr)

	tsSeconds := ts.Unix()

	p.mu.Lock()
	streamID, known := p.streams[key]
	p.mu.Unlock()

	created := false
	if !known {
		schema := p.Schema()
		name := fmt.Sprintf("ICMP from %s to %s", payload.Source, payload.Target)
		attrs := store.StreamAttrs{
			"source": payload.Source, "destination": payload.Target,
			"family": family, "packet_size": sizestr,
		}
		id, wasCreated, err := p.store.InsertStream(ctx, &schema, name, tsSeconds, attrs)
		if err != nil {
			return err
		}
		streamID, created = id, wasCreated

		p.mu.Lock()
		p.streams[key] = streamID
		p.mu.Unlock()
	}

	rtts := append([]int(nil), payload.RTTs...)
	sort.Ints(rtts)
	med := median(rtts)

	results := len(payload.RTTs) + payload.Loss + payload.ICMPErrors
	var lossrate *float64
	if results > 0 {
		rate := float64(payload.Loss) / float64(results)
		lossrate = &rate
	}

	row := map[string]interface{}{
		"packet_size": payload.PacketSize,
		"loss":        payload.Loss,
		"results":     results,
		"icmperrors":  payload.ICMPErrors,
		"rtts":        pq.IntArray(rtts),
		"lossrate":    lossrate,
	}
	if med != nil {
		row["median"] = *med
	} else {
		row["median"] = nil
	}

	schema := p.Schema()
	if err := p.store.CommitBatch(ctx, &schema, []store.DataRow{{StreamID: streamID, Ts: tsSeconds, Values: row}}); err != nil {
		return err
	}
	if err := p.store.UpdateLastTimestamp(ctx, schema.StreamTable, streamID, tsSeconds); err != nil {
		return err
	}

	if bus == nil {
		return nil
	}
	if created {
		if err := bus.Publish(ctx, exportbus.Event{
			Kind: exportbus.Stream, Collection: p.Collection(), StreamID: streamID,
			Attrs: map[string]interface{}{"source": payload.Source, "destination": payload.Target, "family": family, "packet_size": sizestr},
		}); err != nil {
			return err
		}
	}
	return bus.Publish(ctx, exportbus.Event{
		Kind: exportbus.Live, Collection: p.Collection(), StreamID: streamID, Ts: tsSeconds, Row: row,
	})
}
