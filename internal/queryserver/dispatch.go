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
	"context"
	"sort"

	"github.com/wanduow/nntsc/internal/logging"
	"github.com/wanduow/nntsc/internal/protocol"
	"github.com/wanduow/nntsc/internal/store"
)

const (
	defaultHistoryChunkRows = 500
	streamsChunkSize        = 500
)

func (c *conn) chunkRows() int {
	if c.srv.cfg.HistoryChunkRows > 0 {
		return c.srv.cfg.HistoryChunkRows
	}
	return defaultHistoryChunkRows
}

// handleRequest answers a fixed-body REQUEST message: REQ_COLLECTIONS,
// REQ_SCHEMAS, REQ_STREAMS, or the permanently-rejected REQ_ACTIVE_STREAMS
// (see internal/protocol's ReqActiveStreams doc comment).
func (c *conn) handleRequest(ctx context.Context, body []byte) {
	rb, err := protocol.DecodeRequestBody(body)
	if err != nil {
		logging.Warn().Err(err).Msg("malformed REQUEST body")
		return
	}

	switch rb.ReqType {
	case protocol.ReqCollections:
		c.handleReqCollections()
	case protocol.ReqSchemas:
		c.handleReqSchemas(int(rb.ColID))
	case protocol.ReqStreams:
		c.handleReqStreams(ctx, int(rb.ColID), int(rb.StartTs))
	case protocol.ReqActiveStreams:
		c.enqueue(protocol.QueryCancelled, protocol.EncodeQueryCancelled(protocol.QueryCancelledMessage{
			Request: protocol.Streams,
			ColID:   int(rb.ColID),
		}))
	default:
		logging.Warn().Int("reqtype", int(rb.ReqType)).Msg("unrecognised REQUEST reqtype")
	}
}

func (c *conn) handleReqCollections() {
	cols := c.srv.store.ListCollections()
	out := make([]protocol.CollectionInfo, len(cols))
	for i, ci := range cols {
		out[i] = protocol.CollectionInfo{
			ColID:       ci.ColID,
			Module:      ci.Module,
			ModSubtype:  ci.ModSubtype,
			StreamTable: ci.StreamTable,
			DataTable:   ci.DataTable,
		}
	}
	c.enqueue(protocol.Collections, protocol.EncodeCollections(out))
}

func (c *conn) handleReqSchemas(colID int) {
	schema, ok := c.srv.store.SchemaByColID(colID)
	if !ok {
		c.enqueue(protocol.QueryCancelled, protocol.EncodeQueryCancelled(protocol.QueryCancelledMessage{
			Request: protocol.Schemas,
			ColID:   colID,
		}))
		return
	}
	c.enqueue(protocol.Schemas, protocol.EncodeSchemas(buildSchemasMessage(schema)))
}

func buildSchemasMessage(schema *store.CollectionSchema) protocol.SchemasMessage {
	streamCols := []protocol.ColumnInfo{
		{Name: "stream_id", Type: "integer", Null: false},
		{Name: "name", Type: "varchar", Null: false},
		{Name: "from_ts", Type: "bigint", Null: false},
		{Name: "to_ts", Type: "bigint", Null: true},
		{Name: "active", Type: "boolean", Null: false},
	}
	for _, c := range schema.StreamColumns {
		streamCols = append(streamCols, protocol.ColumnInfo{Name: c.Name, Type: c.Type, Null: c.Null})
	}

	dataCols := []protocol.ColumnInfo{
		{Name: "stream_id", Type: "integer", Null: false},
		{Name: "timestamp", Type: "bigint", Null: false},
	}
	for _, c := range schema.DataColumns {
		dataCols = append(dataCols, protocol.ColumnInfo{Name: c.Name, Type: c.Type, Null: c.Null})
	}

	return protocol.SchemasMessage{
		Collection:   schema.Name,
		StreamSchema: streamCols,
		DataSchema:   dataCols,
	}
}

func (c *conn) handleReqStreams(ctx context.Context, colID, minStreamID int) {
	schema, ok := c.srv.store.SchemaByColID(colID)
	if !ok {
		c.enqueue(protocol.QueryCancelled, protocol.EncodeQueryCancelled(protocol.QueryCancelledMessage{
			Request: protocol.Streams,
			ColID:   colID,
		}))
		return
	}

	rows, err := c.srv.store.ListStreams(ctx, schema, minStreamID)
	if err != nil {
		logging.Warn().Err(err).Str("collection", schema.Name).Msg("ListStreams failed")
		c.enqueue(protocol.QueryCancelled, protocol.EncodeQueryCancelled(protocol.QueryCancelledMessage{
			Request:    protocol.Streams,
			Collection: schema.Name,
			Boundary:   minStreamID,
		}))
		return
	}

	if len(rows) == 0 {
		c.enqueue(protocol.Streams, protocol.EncodeStreams(protocol.StreamsMessage{Collection: schema.Name, More: false}))
		return
	}

	for start := 0; start < len(rows); start += streamsChunkSize {
		end := start + streamsChunkSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		streams := make([]protocol.StreamInfo, len(chunk))
		for i, r := range chunk {
			streams[i] = protocol.StreamInfo{
				StreamID: r.StreamID,
				Name:     r.Name,
				FirstTs:  r.FirstTs,
				LastTs:   r.LastTs,
				HasLast:  r.HasLast,
				Attrs:    r.Attrs,
			}
		}

		c.enqueue(protocol.Streams, protocol.EncodeStreams(protocol.StreamsMessage{
			Collection: schema.Name,
			More:       end < len(rows),
			Streams:    streams,
		}))
	}
}

// activeStreamIDs resolves a label->stream-id map to the flat, deduplicated
// set of stream ids the query should actually run against, filtering out
// streams whose recorded range never overlaps [start, end) when a stream
// cache is configured.
func (c *conn) activeStreamIDs(ctx context.Context, streamTable string, labels map[string][]int, start, end int64) ([]int, error) {
	if c.srv.cache != nil {
		filtered, err := c.srv.cache.FilterActiveStreams(ctx, streamTable, labels, start, end)
		if err != nil {
			return nil, err
		}
		labels = filtered
	}

	seen := map[int]bool{}
	var ids []int
	for _, group := range labels {
		for _, id := range group {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	sort.Ints(ids)
	return ids, nil
}

// handleSubscribe serves a SUBSCRIBE request: a HISTORY backfill over
// [Start, End) followed by an indefinite LIVE feed for the same streams,
// for as long as the connection stays open.
func (c *conn) handleSubscribe(ctx context.Context, body []byte) {
	msg, err := protocol.DecodeSubscribe(body)
	if err != nil {
		logging.Warn().Err(err).Msg("malformed SUBSCRIBE body")
		return
	}

	schema, ok := c.srv.store.Schema(msg.Name)
	if !ok {
		c.cancelHistory(msg.Name, msg.Labels, msg.Start, msg.End)
		return
	}

	streamIDs, err := c.activeStreamIDs(ctx, schema.StreamTable, msg.Labels, msg.Start, msg.End)
	if err != nil {
		logging.Warn().Err(err).Str("collection", schema.Name).Msg("active stream lookup failed")
		c.cancelHistory(schema.Name, msg.Labels, msg.Start, msg.End)
		return
	}
	if len(streamIDs) == 0 {
		c.followLive(ctx, schema, nil)
		return
	}

	cur, err := c.srv.store.SelectData(ctx, schema, store.HistoryQuery{
		StreamIDs: streamIDs, StartTs: msg.Start, EndTs: msg.End, Columns: msg.Columns,
	})
	if err != nil {
		logging.Warn().Err(err).Str("collection", schema.Name).Msg("SelectData failed")
		c.cancelHistory(schema.Name, msg.Labels, msg.Start, msg.End)
		return
	}
	c.streamHistoryCursor(ctx, schema, cur)

	c.followLive(ctx, schema, streamIDs)
}

func (c *conn) cancelHistory(collection string, labels map[string][]int, start, end int64) {
	c.enqueue(protocol.QueryCancelled, protocol.EncodeQueryCancelled(protocol.QueryCancelledMessage{
		Request:    protocol.History,
		Collection: collection,
		Labels:     labels,
		Start:      start,
		End:        end,
	}))
}

// streamHistoryCursor drains cur in HistoryChunkRows-sized pages, grouping
// consecutive rows sharing a stream_id into one or more HISTORY messages
// (SelectData orders by stream_id, then timestamp, so rows for a stream
// always arrive contiguously). More is true only when a chunk is
// flushed mid-stream because it hit the row cap; a stream_id change or
// cursor exhaustion both mean the prior stream is complete.
func (c *conn) streamHistoryCursor(ctx context.Context, schema *store.CollectionSchema, cur *store.Cursor) {
	defer func() { _ = cur.Close(ctx) }()

	chunkRows := c.chunkRows()
	types := columnTypes(schema)

	haveCur := false
	curStreamID := 0
	var curRows []protocol.HistoryRow

	flush := func(more bool) {
		if !haveCur {
			return
		}
		frame, err := protocol.EncodeHistoryFrame(protocol.HistoryMessage{
			Collection: schema.Name, StreamID: curStreamID, More: more, Rows: curRows,
		})
		if err != nil {
			logging.Warn().Err(err).Msg("failed to encode HISTORY frame")
			return
		}
		c.enqueue(protocol.History, frame)
		curRows = nil
	}

	for {
		rows, err := cur.Fetch(ctx, chunkRows)
		if err != nil {
			logging.Warn().Err(err).Str("collection", schema.Name).Msg("cursor fetch failed")
			return
		}

		colNames, err := rows.Columns()
		if err != nil {
			_ = rows.Close()
			logging.Warn().Err(err).Msg("failed to read cursor column names")
			return
		}

		n := 0
		for rows.Next() {
			n++
			sid, ts, vals, err := scanRow(rows, colNames, types)
			if err != nil {
				_ = rows.Close()
				logging.Warn().Err(err).Msg("failed to scan HISTORY row")
				return
			}
			if !haveCur {
				haveCur = true
				curStreamID = sid
			} else if sid != curStreamID {
				flush(false)
				curStreamID = sid
			}
			curRows = append(curRows, protocol.HistoryRow{Ts: ts, Values: vals})
			if len(curRows) >= chunkRows {
				flush(true)
			}
		}
		_ = rows.Close()
		if n == 0 {
			break
		}
	}
	flush(false)
}

// followLive subscribes to the export bus and relays LIVE events for the
// given streams (or every stream in the collection, if streamIDs is nil)
// until the connection closes.
func (c *conn) followLive(ctx context.Context, schema *store.CollectionSchema, streamIDs []int) {
	if c.srv.bus == nil {
		return
	}

	want := map[int]bool{}
	for _, id := range streamIDs {
		want[id] = true
	}
	filterAll := len(want) == 0 && streamIDs == nil && schema != nil

	id, events := c.srv.bus.Subscribe()
	defer c.srv.bus.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Kind.String() != "LIVE" || ev.Collection != schema.Name {
				continue
			}
			if !filterAll && !want[ev.StreamID] {
				continue
			}
			frame, err := protocol.EncodeLive(protocol.LiveMessage{
				Collection: ev.Collection, StreamID: ev.StreamID, Ts: ev.Ts, Values: ev.Row,
			})
			if err != nil {
				logging.Warn().Err(err).Msg("failed to encode LIVE frame")
				continue
			}
			if !c.enqueue(protocol.Live, frame) {
				return
			}
		}
	}
}

// handleAggregate serves an AGGREGATE request: a single binned,
// aggregated HISTORY reply per stream.
func (c *conn) handleAggregate(ctx context.Context, body []byte) {
	msg, err := protocol.DecodeAggregate(body)
	if err != nil {
		logging.Warn().Err(err).Msg("malformed AGGREGATE body")
		return
	}

	schema, ok := c.srv.store.Schema(msg.Collection)
	if !ok {
		c.cancelAggregateLike(protocol.Aggregate, msg.Collection, msg.Labels, msg.Start, msg.End)
		return
	}

	aggColumns := make(map[string]store.AggFunc, len(msg.AggColumns))
	for col, fn := range msg.AggColumns {
		aggColumns[col] = store.AggFunc(fn)
	}

	c.runAggregateQuery(ctx, protocol.Aggregate, schema, msg.Labels, msg.Start, msg.End, msg.BinSize, aggColumns, msg.GroupColumns)
}

// handlePercentile serves a PERCENTILE request: like AGGREGATE, but with
// one aggregate function applied to a distinguished set of "ntile" columns
// and another applied to every other requested column.
func (c *conn) handlePercentile(ctx context.Context, body []byte) {
	msg, err := protocol.DecodePercentile(body)
	if err != nil {
		logging.Warn().Err(err).Msg("malformed PERCENTILE body")
		return
	}

	schema, ok := c.srv.store.Schema(msg.Collection)
	if !ok {
		c.cancelAggregateLike(protocol.Percentile, msg.Collection, msg.Labels, msg.Start, msg.End)
		return
	}

	aggColumns := make(map[string]store.AggFunc, len(msg.NtileColumns)+len(msg.OtherColumns))
	for _, col := range msg.NtileColumns {
		aggColumns[col] = store.AggFunc(msg.NtileAggFunc)
	}
	for _, col := range msg.OtherColumns {
		aggColumns[col] = store.AggFunc(msg.OtherAggFunc)
	}

	c.runAggregateQuery(ctx, protocol.Percentile, schema, msg.Labels, msg.Start, msg.End, msg.BinSize, aggColumns, nil)
}

func (c *conn) cancelAggregateLike(request protocol.MessageType, collection string, labels map[string][]int, start, end int64) {
	c.enqueue(protocol.QueryCancelled, protocol.EncodeQueryCancelled(protocol.QueryCancelledMessage{
		Request:    request,
		Collection: collection,
		Labels:     labels,
		Start:      start,
		End:        end,
	}))
}

// runAggregateQuery buffers the full (bounded by bin count x stream count)
// result of a binned query in memory, since a HISTORY chunk can't be
// flushed mid-bin the way raw SelectData rows can, then emits one
// complete HISTORY message per stream in stream_id order.
func (c *conn) runAggregateQuery(ctx context.Context, request protocol.MessageType, schema *store.CollectionSchema, labels map[string][]int, start, end, binSize int64, aggColumns map[string]store.AggFunc, groupColumns []string) {
	streamIDs, err := c.activeStreamIDs(ctx, schema.StreamTable, labels, start, end)
	if err != nil {
		logging.Warn().Err(err).Str("collection", schema.Name).Msg("active stream lookup failed")
		c.cancelAggregateLike(request, schema.Name, labels, start, end)
		return
	}
	if len(streamIDs) == 0 {
		return
	}

	cur, err := c.srv.store.SelectAggregated(ctx, schema, store.AggregateQuery{
		StreamIDs: streamIDs, StartTs: start, EndTs: end, BinSize: binSize,
		AggColumns: aggColumns, GroupColumns: groupColumns,
	})
	if err != nil {
		logging.Warn().Err(err).Str("collection", schema.Name).Msg("SelectAggregated failed")
		c.cancelAggregateLike(request, schema.Name, labels, start, end)
		return
	}
	defer func() { _ = cur.Close(ctx) }()

	types := columnTypes(schema)
	byStream := map[int][]protocol.HistoryRow{}
	var order []int

	chunkRows := c.chunkRows()
	for {
		rows, err := cur.Fetch(ctx, chunkRows)
		if err != nil {
			logging.Warn().Err(err).Str("collection", schema.Name).Msg("cursor fetch failed")
			return
		}
		colNames, err := rows.Columns()
		if err != nil {
			_ = rows.Close()
			logging.Warn().Err(err).Msg("failed to read cursor column names")
			return
		}

		n := 0
		for rows.Next() {
			n++
			sid, ts, vals, err := scanRow(rows, colNames, types)
			if err != nil {
				_ = rows.Close()
				logging.Warn().Err(err).Msg("failed to scan aggregated row")
				return
			}
			if _, ok := byStream[sid]; !ok {
				order = append(order, sid)
			}
			byStream[sid] = append(byStream[sid], protocol.HistoryRow{Ts: ts, Values: vals})
		}
		_ = rows.Close()
		if n == 0 {
			break
		}
	}

	sort.Ints(order)
	for _, sid := range order {
		frame, err := protocol.EncodeHistoryFrame(protocol.HistoryMessage{
			Collection: schema.Name, StreamID: sid, More: false, BinSize: binSize, Rows: byStream[sid],
		})
		if err != nil {
			logging.Warn().Err(err).Msg("failed to encode aggregated HISTORY frame")
			continue
		}
		c.enqueue(protocol.History, frame)
	}
}
