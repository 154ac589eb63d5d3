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
	"bytes"
	"context"
	"net"
	"time"

	"github.com/wanduow/nntsc/internal/logging"
	"github.com/wanduow/nntsc/internal/metrics"
	"github.com/wanduow/nntsc/internal/protocol"
)

const writeTimeout = 10 * time.Second

// conn holds the per-connection state: the socket, its bounded outgoing
// frame queue, and a writer goroutine draining it. Grounded on the
// teacher's internal/websocket Hub/Client split: one goroutine reads and
// dispatches, a second drains a bounded send channel, and a full channel
// means the connection is too slow to keep up and gets dropped rather
// than risking a half-written frame.
type conn struct {
	srv  *Server
	nc   net.Conn
	out  chan []byte
	stop context.CancelFunc
}

func (s *Server) handleConn(ctx context.Context, nc net.Conn) {
	defer func() { _ = nc.Close() }()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c := &conn{
		srv:  s,
		nc:   nc,
		out:  make(chan []byte, outQueueSizeOr(s.cfg.OutgoingQueueSize)),
		stop: cancel,
	}

	go c.writePump(connCtx)

	if !c.enqueue(protocol.VersionCheck, protocol.EncodeVersionCheck(uint32(protocol.Version))) {
		return
	}

	for connCtx.Err() == nil {
		hdr, body, err := protocol.ReadFrame(nc)
		if err != nil {
			return
		}
		c.dispatch(connCtx, hdr.Type, body)
	}
}

func (c *conn) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-c.out:
			if !ok {
				return
			}
			if err := c.nc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if _, err := c.nc.Write(frame); err != nil {
				return
			}
		}
	}
}

// enqueue frames msgType/body and queues it for the writer goroutine. A
// full queue means the client is too far behind to keep the connection
// open: rather than drop one frame (which would desync every later
// header/body boundary behind it) the whole connection is torn down.
func (c *conn) enqueue(msgType protocol.MessageType, body []byte) bool {
	var buf bytes.Buffer
	if err := protocol.WriteFrame(&buf, msgType, body); err != nil {
		logging.Warn().Err(err).Str("type", msgTypeName(msgType)).Msg("failed to encode outgoing frame")
		return false
	}

	select {
	case c.out <- buf.Bytes():
		return true
	default:
		metrics.QueryServerSendQueueDropped.Inc()
		logging.Warn().Str("type", msgTypeName(msgType)).Msg("outgoing queue full, closing connection")
		c.stop()
		return false
	}
}

func (c *conn) dispatch(ctx context.Context, msgType protocol.MessageType, body []byte) {
	metrics.QueryServerRequestsTotal.WithLabelValues(msgTypeName(msgType)).Inc()

	switch msgType {
	case protocol.Request:
		c.handleRequest(ctx, body)
	case protocol.Subscribe:
		go c.handleSubscribe(ctx, body)
	case protocol.Aggregate:
		go c.handleAggregate(ctx, body)
	case protocol.Percentile:
		go c.handlePercentile(ctx, body)
	default:
		logging.Warn().Str("type", msgTypeName(msgType)).Msg("unrecognised message type from client")
	}
}

func msgTypeName(t protocol.MessageType) string {
	switch t {
	case protocol.Request:
		return "request"
	case protocol.Collections:
		return "collections"
	case protocol.Schemas:
		return "schemas"
	case protocol.Streams:
		return "streams"
	case protocol.History:
		return "history"
	case protocol.Live:
		return "live"
	case protocol.Subscribe:
		return "subscribe"
	case protocol.Aggregate:
		return "aggregate"
	case protocol.Percentile:
		return "percentile"
	case protocol.QueryCancelled:
		return "query_cancelled"
	case protocol.Push:
		return "push"
	case protocol.VersionCheck:
		return "version_check"
	default:
		return "unknown"
	}
}

func outQueueSizeOr(n int) int {
	if n <= 0 {
		return 256
	}
	return n
}
