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

package protocol

import (
	"fmt"
	"sort"
)

// --- shared field helpers ---------------------------------------------

// encodeRow encodes a measurement row (column name -> value) as a
// sequence of (key, value) entries, each entry itself a nested
// two-field TLV. Keys are sorted so the same row always encodes to the
// same bytes, satisfying the round-trip invariant in spec.md §8.
func encodeRow(values map[string]interface{}) ([]byte, error) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := newTLVWriter()
	for _, k := range keys {
		ev, err := encodeValue(values[k])
		if err != nil {
			return nil, fmt.Errorf("protocol: encoding column %q: %w", k, err)
		}
		entry := newTLVWriter()
		entry.str(1, k)
		entry.field(2, ev.encode())
		w.field(1, entry.bytes())
	}
	return w.bytes(), nil
}

func decodeRow(body []byte) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	r := newTLVReader(body)
	for {
		_, entryBody, ok, err := r.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		er := newTLVReader(entryBody)
		_, keyBytes, ok, err := er.next()
		if err != nil || !ok {
			return nil, fmt.Errorf("protocol: row entry missing key field")
		}
		_, valBytes, ok, err := er.next()
		if err != nil || !ok {
			return nil, fmt.Errorf("protocol: row entry missing value field")
		}
		v, err := decodeValueBytes(valBytes)
		if err != nil {
			return nil, err
		}
		out[string(keyBytes)] = v.toInterface()
	}
}

// encodeLabels encodes a label -> stream-id-list map, used by SUBSCRIBE,
// AGGREGATE, and PERCENTILE requests (spec.md §3's Label concept).
func encodeLabels(labels map[string][]int) []byte {
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	sort.Strings(names)

	w := newTLVWriter()
	for _, name := range names {
		entry := newTLVWriter()
		entry.str(1, name)
		ids := newTLVWriter()
		for _, id := range labels[name] {
			ids.int64(1, int64(id))
		}
		entry.field(2, ids.bytes())
		w.field(1, entry.bytes())
	}
	return w.bytes()
}

func decodeLabels(body []byte) (map[string][]int, error) {
	out := map[string][]int{}
	r := newTLVReader(body)
	for {
		_, entryBody, ok, err := r.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		er := newTLVReader(entryBody)
		_, nameBytes, ok, err := er.next()
		if err != nil || !ok {
			return nil, fmt.Errorf("protocol: label entry missing name field")
		}
		_, idsBody, ok, err := er.next()
		if err != nil || !ok {
			return nil, fmt.Errorf("protocol: label entry missing stream id list")
		}
		idsReader := newTLVReader(idsBody)
		var ids []int
		for {
			_, idBody, ok, err := idsReader.next()
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			id, err := decodeInt64(idBody)
			if err != nil {
				return nil, err
			}
			ids = append(ids, int(id))
		}
		out[string(nameBytes)] = ids
	}
}

func encodeStrings(strs []string) []byte {
	w := newTLVWriter()
	for _, s := range strs {
		w.str(1, s)
	}
	return w.bytes()
}

func decodeStrings(body []byte) ([]string, error) {
	var out []string
	r := newTLVReader(body)
	for {
		_, v, ok, err := r.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, string(v))
	}
}

// --- VERSION_CHECK -------------------------------------------------------

// EncodeVersionCheck encodes the server's protocol version for the
// handshake (spec.md §4.G.1).
func EncodeVersionCheck(version uint32) []byte {
	w := newTLVWriter()
	w.uint32(1, version)
	return w.bytes()
}

// DecodeVersionCheck extracts the advertised version from a VERSION_CHECK
// body.
func DecodeVersionCheck(body []byte) (uint32, error) {
	r := newTLVReader(body)
	_, v, ok, err := r.next()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("protocol: VERSION_CHECK body missing version field")
	}
	return decodeUint32(v)
}

// --- COLLECTIONS ---------------------------------------------------------

// CollectionInfo describes one registered collection for a COLLECTIONS
// reply (spec.md §3's Collection entity).
type CollectionInfo struct {
	ColID       int
	Module      string
	ModSubtype  string
	StreamTable string
	DataTable   string
}

func EncodeCollections(cols []CollectionInfo) []byte {
	w := newTLVWriter()
	for _, c := range cols {
		entry := newTLVWriter()
		entry.uint32(1, uint32(c.ColID))
		entry.str(2, c.Module)
		entry.str(3, c.ModSubtype)
		entry.str(4, c.StreamTable)
		entry.str(5, c.DataTable)
		w.field(1, entry.bytes())
	}
	return w.bytes()
}

func DecodeCollections(body []byte) ([]CollectionInfo, error) {
	var out []CollectionInfo
	r := newTLVReader(body)
	for {
		_, entryBody, ok, err := r.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		c, err := decodeCollectionInfo(entryBody)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
}

func decodeCollectionInfo(body []byte) (CollectionInfo, error) {
	var c CollectionInfo
	r := newTLVReader(body)
	for {
		tag, v, ok, err := r.next()
		if err != nil {
			return CollectionInfo{}, err
		}
		if !ok {
			return c, nil
		}
		switch tag {
		case 1:
			id, err := decodeUint32(v)
			if err != nil {
				return CollectionInfo{}, err
			}
			c.ColID = int(id)
		case 2:
			c.Module = string(v)
		case 3:
			c.ModSubtype = string(v)
		case 4:
			c.StreamTable = string(v)
		case 5:
			c.DataTable = string(v)
		}
	}
}

// --- SCHEMAS ---------------------------------------------------------

// ColumnInfo describes one stream or data table column for a SCHEMAS
// reply.
type ColumnInfo struct {
	Name string
	Type string
	Null bool
}

// SchemasMessage answers REQ_SCHEMAS(col_id) with the collection's stream
// and data table column lists.
type SchemasMessage struct {
	Collection   string
	StreamSchema []ColumnInfo
	DataSchema   []ColumnInfo
}

func encodeColumns(cols []ColumnInfo) []byte {
	w := newTLVWriter()
	for _, c := range cols {
		entry := newTLVWriter()
		entry.str(1, c.Name)
		entry.str(2, c.Type)
		entry.bool(3, c.Null)
		w.field(1, entry.bytes())
	}
	return w.bytes()
}

func decodeColumns(body []byte) ([]ColumnInfo, error) {
	var out []ColumnInfo
	r := newTLVReader(body)
	for {
		_, entryBody, ok, err := r.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		var c ColumnInfo
		er := newTLVReader(entryBody)
		for {
			tag, v, ok, err := er.next()
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			switch tag {
			case 1:
				c.Name = string(v)
			case 2:
				c.Type = string(v)
			case 3:
				b, err := decodeBool(v)
				if err != nil {
					return nil, err
				}
				c.Null = b
			}
		}
		out = append(out, c)
	}
}

func EncodeSchemas(m SchemasMessage) []byte {
	w := newTLVWriter()
	w.str(1, m.Collection)
	w.field(2, encodeColumns(m.StreamSchema))
	w.field(3, encodeColumns(m.DataSchema))
	return w.bytes()
}

func DecodeSchemas(body []byte) (SchemasMessage, error) {
	var m SchemasMessage
	r := newTLVReader(body)
	for {
		tag, v, ok, err := r.next()
		if err != nil {
			return SchemasMessage{}, err
		}
		if !ok {
			return m, nil
		}
		switch tag {
		case 1:
			m.Collection = string(v)
		case 2:
			cols, err := decodeColumns(v)
			if err != nil {
				return SchemasMessage{}, err
			}
			m.StreamSchema = cols
		case 3:
			cols, err := decodeColumns(v)
			if err != nil {
				return SchemasMessage{}, err
			}
			m.DataSchema = cols
		}
	}
}

// --- STREAMS ---------------------------------------------------------

// StreamInfo describes one stream for a STREAMS reply. Attrs holds the
// collection-specific stream key columns, stringified: the wire protocol
// favours a small closed TLV over carrying every possible column type, so
// attribute values cross the wire as strings and the reference client
// reparses them (matching how the original pickled tuples were also just
// opaque values to anything but Python).
type StreamInfo struct {
	StreamID int
	Name     string
	FirstTs  int64
	LastTs   int64
	HasLast  bool
	Attrs    map[string]string
}

// StreamsMessage answers REQ_STREAMS(col_id, min_stream_id); servers may
// send several in sequence with More=true on all but the last.
type StreamsMessage struct {
	Collection string
	More       bool
	Streams    []StreamInfo
}

func encodeStreamInfo(s StreamInfo) []byte {
	w := newTLVWriter()
	w.uint32(1, uint32(s.StreamID))
	w.str(2, s.Name)
	w.int64(3, s.FirstTs)
	if s.HasLast {
		w.int64(4, s.LastTs)
	}
	attrs := newTLVWriter()
	keys := make([]string, 0, len(s.Attrs))
	for k := range s.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		entry := newTLVWriter()
		entry.str(1, k)
		entry.str(2, s.Attrs[k])
		attrs.field(1, entry.bytes())
	}
	w.field(5, attrs.bytes())
	return w.bytes()
}

func decodeStreamInfo(body []byte) (StreamInfo, error) {
	var s StreamInfo
	s.Attrs = map[string]string{}
	r := newTLVReader(body)
	for {
		tag, v, ok, err := r.next()
		if err != nil {
			return StreamInfo{}, err
		}
		if !ok {
			return s, nil
		}
		switch tag {
		case 1:
			id, err := decodeUint32(v)
			if err != nil {
				return StreamInfo{}, err
			}
			s.StreamID = int(id)
		case 2:
			s.Name = string(v)
		case 3:
			ts, err := decodeInt64(v)
			if err != nil {
				return StreamInfo{}, err
			}
			s.FirstTs = ts
		case 4:
			ts, err := decodeInt64(v)
			if err != nil {
				return StreamInfo{}, err
			}
			s.LastTs = ts
			s.HasLast = true
		case 5:
			ar := newTLVReader(v)
			for {
				_, entryBody, ok, err := ar.next()
				if err != nil {
					return StreamInfo{}, err
				}
				if !ok {
					break
				}
				er := newTLVReader(entryBody)
				_, keyBytes, ok1, err1 := er.next()
				_, valBytes, ok2, err2 := er.next()
				if err1 != nil {
					return StreamInfo{}, err1
				}
				if err2 != nil {
					return StreamInfo{}, err2
				}
				if ok1 && ok2 {
					s.Attrs[string(keyBytes)] = string(valBytes)
				}
			}
		}
	}
}

func EncodeStreams(m StreamsMessage) []byte {
	w := newTLVWriter()
	w.str(1, m.Collection)
	w.bool(2, m.More)
	for _, s := range m.Streams {
		w.field(3, encodeStreamInfo(s))
	}
	return w.bytes()
}

func DecodeStreams(body []byte) (StreamsMessage, error) {
	var m StreamsMessage
	r := newTLVReader(body)
	for {
		tag, v, ok, err := r.next()
		if err != nil {
			return StreamsMessage{}, err
		}
		if !ok {
			return m, nil
		}
		switch tag {
		case 1:
			m.Collection = string(v)
		case 2:
			b, err := decodeBool(v)
			if err != nil {
				return StreamsMessage{}, err
			}
			m.More = b
		case 3:
			s, err := decodeStreamInfo(v)
			if err != nil {
				return StreamsMessage{}, err
			}
			m.Streams = append(m.Streams, s)
		}
	}
}

// --- HISTORY / LIVE / PUSH -------------------------------------------

// HistoryRow is one timestamped sample within a HISTORY chunk.
type HistoryRow struct {
	Ts     int64
	Values map[string]interface{}
}

// HistoryMessage carries one chunk of historical data for a SUBSCRIBE,
// AGGREGATE, or PERCENTILE request. BinSize is 0 for raw (unaggregated)
// rows. More is true on every chunk but the last for a given stream.
type HistoryMessage struct {
	Collection string
	StreamID   int
	More       bool
	BinSize    int64
	Rows       []HistoryRow
}

// EncodeHistoryBody encodes the uncompressed TLV body; callers needing the
// wire form (deflate-compressed per spec.md §6) should use
// EncodeHistoryFrame instead.
func EncodeHistoryBody(m HistoryMessage) ([]byte, error) {
	w := newTLVWriter()
	w.str(1, m.Collection)
	w.uint32(2, uint32(m.StreamID))
	w.bool(3, m.More)
	w.int64(4, m.BinSize)
	for _, row := range m.Rows {
		rw := newTLVWriter()
		rw.int64(1, row.Ts)
		rowBody, err := encodeRow(row.Values)
		if err != nil {
			return nil, err
		}
		rw.field(2, rowBody)
		w.field(5, rw.bytes())
	}
	return w.bytes(), nil
}

func DecodeHistoryBody(body []byte) (HistoryMessage, error) {
	var m HistoryMessage
	r := newTLVReader(body)
	for {
		tag, v, ok, err := r.next()
		if err != nil {
			return HistoryMessage{}, err
		}
		if !ok {
			return m, nil
		}
		switch tag {
		case 1:
			m.Collection = string(v)
		case 2:
			id, err := decodeUint32(v)
			if err != nil {
				return HistoryMessage{}, err
			}
			m.StreamID = int(id)
		case 3:
			b, err := decodeBool(v)
			if err != nil {
				return HistoryMessage{}, err
			}
			m.More = b
		case 4:
			bs, err := decodeInt64(v)
			if err != nil {
				return HistoryMessage{}, err
			}
			m.BinSize = bs
		case 5:
			rr := newTLVReader(v)
			var row HistoryRow
			for {
				rtag, rv, ok, err := rr.next()
				if err != nil {
					return HistoryMessage{}, err
				}
				if !ok {
					break
				}
				switch rtag {
				case 1:
					ts, err := decodeInt64(rv)
					if err != nil {
						return HistoryMessage{}, err
					}
					row.Ts = ts
				case 2:
					vals, err := decodeRow(rv)
					if err != nil {
						return HistoryMessage{}, err
					}
					row.Values = vals
				}
			}
			m.Rows = append(m.Rows, row)
		}
	}
}

// LiveMessage carries one freshly committed measurement to subscribed
// clients.
type LiveMessage struct {
	Collection string
	StreamID   int
	Ts         int64
	Values     map[string]interface{}
}

func EncodeLive(m LiveMessage) ([]byte, error) {
	w := newTLVWriter()
	w.str(1, m.Collection)
	w.uint32(2, uint32(m.StreamID))
	w.int64(3, m.Ts)
	rowBody, err := encodeRow(m.Values)
	if err != nil {
		return nil, err
	}
	w.field(4, rowBody)
	return w.bytes(), nil
}

func DecodeLive(body []byte) (LiveMessage, error) {
	var m LiveMessage
	r := newTLVReader(body)
	for {
		tag, v, ok, err := r.next()
		if err != nil {
			return LiveMessage{}, err
		}
		if !ok {
			return m, nil
		}
		switch tag {
		case 1:
			m.Collection = string(v)
		case 2:
			id, err := decodeUint32(v)
			if err != nil {
				return LiveMessage{}, err
			}
			m.StreamID = int(id)
		case 3:
			ts, err := decodeInt64(v)
			if err != nil {
				return LiveMessage{}, err
			}
			m.Ts = ts
		case 4:
			vals, err := decodeRow(v)
			if err != nil {
				return LiveMessage{}, err
			}
			m.Values = vals
		}
	}
}

// PushMessage is a commit checkpoint for a collection (spec.md §4.D's
// PUSH event reaching the wire).
type PushMessage struct {
	ColID     int
	Timestamp int64
}

func EncodePush(m PushMessage) []byte {
	w := newTLVWriter()
	w.uint32(1, uint32(m.ColID))
	w.int64(2, m.Timestamp)
	return w.bytes()
}

func DecodePush(body []byte) (PushMessage, error) {
	var m PushMessage
	r := newTLVReader(body)
	for {
		tag, v, ok, err := r.next()
		if err != nil {
			return PushMessage{}, err
		}
		if !ok {
			return m, nil
		}
		switch tag {
		case 1:
			id, err := decodeUint32(v)
			if err != nil {
				return PushMessage{}, err
			}
			m.ColID = int(id)
		case 2:
			ts, err := decodeInt64(v)
			if err != nil {
				return PushMessage{}, err
			}
			m.Timestamp = ts
		}
	}
}

// --- QUERY_CANCELLED ---------------------------------------------------

// QueryCancelledMessage tells the client how far an in-flight query got
// before the server had to abandon it (spec.md §4.G.4). Which fields are
// meaningful depends on Request: for History, Collection/Labels/Start/
// End/More describe the abandoned chunk stream; for Schemas, ColID; for
// Streams, Collection/Boundary.
type QueryCancelledMessage struct {
	Request    MessageType
	Collection string
	Labels     map[string][]int
	Start      int64
	End        int64
	More       bool
	ColID      int
	Boundary   int
}

func EncodeQueryCancelled(m QueryCancelledMessage) []byte {
	w := newTLVWriter()
	w.uint32(1, uint32(m.Request))
	w.str(2, m.Collection)
	w.field(3, encodeLabels(m.Labels))
	w.int64(4, m.Start)
	w.int64(5, m.End)
	w.bool(6, m.More)
	w.uint32(7, uint32(m.ColID))
	w.uint32(8, uint32(m.Boundary))
	return w.bytes()
}

func DecodeQueryCancelled(body []byte) (QueryCancelledMessage, error) {
	var m QueryCancelledMessage
	r := newTLVReader(body)
	for {
		tag, v, ok, err := r.next()
		if err != nil {
			return QueryCancelledMessage{}, err
		}
		if !ok {
			return m, nil
		}
		switch tag {
		case 1:
			t, err := decodeUint32(v)
			if err != nil {
				return QueryCancelledMessage{}, err
			}
			m.Request = MessageType(t)
		case 2:
			m.Collection = string(v)
		case 3:
			labels, err := decodeLabels(v)
			if err != nil {
				return QueryCancelledMessage{}, err
			}
			m.Labels = labels
		case 4:
			ts, err := decodeInt64(v)
			if err != nil {
				return QueryCancelledMessage{}, err
			}
			m.Start = ts
		case 5:
			ts, err := decodeInt64(v)
			if err != nil {
				return QueryCancelledMessage{}, err
			}
			m.End = ts
		case 6:
			b, err := decodeBool(v)
			if err != nil {
				return QueryCancelledMessage{}, err
			}
			m.More = b
		case 7:
			id, err := decodeUint32(v)
			if err != nil {
				return QueryCancelledMessage{}, err
			}
			m.ColID = int(id)
		case 8:
			b, err := decodeUint32(v)
			if err != nil {
				return QueryCancelledMessage{}, err
			}
			m.Boundary = int(b)
		}
	}
}

// --- client requests: SUBSCRIBE / AGGREGATE / PERCENTILE --------------

// SubscribeMessage requests a historical query followed by a live feed
// (spec.md §4.G.2's SUBSCRIBE request).
type SubscribeMessage struct {
	Name    string
	Columns []string
	Labels  map[string][]int
	Start   int64
	End     int64
	Aggs    []string
}

func EncodeSubscribe(m SubscribeMessage) []byte {
	w := newTLVWriter()
	w.str(1, m.Name)
	w.field(2, encodeStrings(m.Columns))
	w.field(3, encodeLabels(m.Labels))
	w.int64(4, m.Start)
	w.int64(5, m.End)
	w.field(6, encodeStrings(m.Aggs))
	return w.bytes()
}

func DecodeSubscribe(body []byte) (SubscribeMessage, error) {
	var m SubscribeMessage
	r := newTLVReader(body)
	for {
		tag, v, ok, err := r.next()
		if err != nil {
			return SubscribeMessage{}, err
		}
		if !ok {
			return m, nil
		}
		switch tag {
		case 1:
			m.Name = string(v)
		case 2:
			cols, err := decodeStrings(v)
			if err != nil {
				return SubscribeMessage{}, err
			}
			m.Columns = cols
		case 3:
			labels, err := decodeLabels(v)
			if err != nil {
				return SubscribeMessage{}, err
			}
			m.Labels = labels
		case 4:
			ts, err := decodeInt64(v)
			if err != nil {
				return SubscribeMessage{}, err
			}
			m.Start = ts
		case 5:
			ts, err := decodeInt64(v)
			if err != nil {
				return SubscribeMessage{}, err
			}
			m.End = ts
		case 6:
			aggs, err := decodeStrings(v)
			if err != nil {
				return SubscribeMessage{}, err
			}
			m.Aggs = aggs
		}
	}
}

// AggregateMessage requests a binned, aggregated historical query (spec.md
// §4.G.2's AGGREGATE request). AggColumns maps a data column name to the
// aggregate function applied to it (one of store.AggFunc's string forms).
type AggregateMessage struct {
	Collection   string
	Start        int64
	End          int64
	Labels       map[string][]int
	AggColumns   map[string]string
	GroupColumns []string
	BinSize      int64
}

func encodeStringMap(m map[string]string) []byte {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	w := newTLVWriter()
	for _, k := range keys {
		entry := newTLVWriter()
		entry.str(1, k)
		entry.str(2, m[k])
		w.field(1, entry.bytes())
	}
	return w.bytes()
}

func decodeStringMap(body []byte) (map[string]string, error) {
	out := map[string]string{}
	r := newTLVReader(body)
	for {
		_, entryBody, ok, err := r.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		er := newTLVReader(entryBody)
		_, keyBytes, ok1, err1 := er.next()
		_, valBytes, ok2, err2 := er.next()
		if err1 != nil {
			return nil, err1
		}
		if err2 != nil {
			return nil, err2
		}
		if ok1 && ok2 {
			out[string(keyBytes)] = string(valBytes)
		}
	}
}

func EncodeAggregate(m AggregateMessage) []byte {
	w := newTLVWriter()
	w.str(1, m.Collection)
	w.int64(2, m.Start)
	w.int64(3, m.End)
	w.field(4, encodeLabels(m.Labels))
	w.field(5, encodeStringMap(m.AggColumns))
	w.field(6, encodeStrings(m.GroupColumns))
	w.int64(7, m.BinSize)
	return w.bytes()
}

func DecodeAggregate(body []byte) (AggregateMessage, error) {
	var m AggregateMessage
	r := newTLVReader(body)
	for {
		tag, v, ok, err := r.next()
		if err != nil {
			return AggregateMessage{}, err
		}
		if !ok {
			return m, nil
		}
		switch tag {
		case 1:
			m.Collection = string(v)
		case 2:
			ts, err := decodeInt64(v)
			if err != nil {
				return AggregateMessage{}, err
			}
			m.Start = ts
		case 3:
			ts, err := decodeInt64(v)
			if err != nil {
				return AggregateMessage{}, err
			}
			m.End = ts
		case 4:
			labels, err := decodeLabels(v)
			if err != nil {
				return AggregateMessage{}, err
			}
			m.Labels = labels
		case 5:
			agg, err := decodeStringMap(v)
			if err != nil {
				return AggregateMessage{}, err
			}
			m.AggColumns = agg
		case 6:
			grp, err := decodeStrings(v)
			if err != nil {
				return AggregateMessage{}, err
			}
			m.GroupColumns = grp
		case 7:
			bs, err := decodeInt64(v)
			if err != nil {
				return AggregateMessage{}, err
			}
			m.BinSize = bs
		}
	}
}

// PercentileMessage requests a binned query with one aggregate function
// applied to a set of "ntile" columns and another to the rest (spec.md
// §4.G.2's PERCENTILE request).
type PercentileMessage struct {
	Collection    string
	Start         int64
	End           int64
	Labels        map[string][]int
	BinSize       int64
	NtileColumns  []string
	OtherColumns  []string
	NtileAggFunc  string
	OtherAggFunc  string
}

func EncodePercentile(m PercentileMessage) []byte {
	w := newTLVWriter()
	w.str(1, m.Collection)
	w.int64(2, m.Start)
	w.int64(3, m.End)
	w.field(4, encodeLabels(m.Labels))
	w.int64(5, m.BinSize)
	w.field(6, encodeStrings(m.NtileColumns))
	w.field(7, encodeStrings(m.OtherColumns))
	w.str(8, m.NtileAggFunc)
	w.str(9, m.OtherAggFunc)
	return w.bytes()
}

func DecodePercentile(body []byte) (PercentileMessage, error) {
	var m PercentileMessage
	r := newTLVReader(body)
	for {
		tag, v, ok, err := r.next()
		if err != nil {
			return PercentileMessage{}, err
		}
		if !ok {
			return m, nil
		}
		switch tag {
		case 1:
			m.Collection = string(v)
		case 2:
			ts, err := decodeInt64(v)
			if err != nil {
				return PercentileMessage{}, err
			}
			m.Start = ts
		case 3:
			ts, err := decodeInt64(v)
			if err != nil {
				return PercentileMessage{}, err
			}
			m.End = ts
		case 4:
			labels, err := decodeLabels(v)
			if err != nil {
				return PercentileMessage{}, err
			}
			m.Labels = labels
		case 5:
			bs, err := decodeInt64(v)
			if err != nil {
				return PercentileMessage{}, err
			}
			m.BinSize = bs
		case 6:
			cols, err := decodeStrings(v)
			if err != nil {
				return PercentileMessage{}, err
			}
			m.NtileColumns = cols
		case 7:
			cols, err := decodeStrings(v)
			if err != nil {
				return PercentileMessage{}, err
			}
			m.OtherColumns = cols
		case 8:
			m.NtileAggFunc = string(v)
		case 9:
			m.OtherAggFunc = string(v)
		}
	}
}
