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

	"github.com/wanduow/nntsc/internal/broker"
	"github.com/wanduow/nntsc/internal/exportbus"
	"github.com/wanduow/nntsc/internal/store"
)

// sourceHeader and testTypeHeader are the AMP broker message headers the
// reference consumer keys dispatch on ("x-amp-source-monitor" and
// "x-amp-test-type"); LPI deliveries carry testTypeHeader set to their
// module name ("packets", "bytes", ...) with no separate source header,
// since the monitor id travels inside the JSON body instead.
const (
	sourceHeader   = "x-amp-source-monitor"
	testTypeHeader = "x-amp-test-type"
)

// BrokerHandler implements broker.Handler, routing each delivery to the
// MessageParser registered for its test-type header. It has no batching
// logic of its own: CommitBatch is already transactional per delivery,
// so Commit is a no-op here and acknowledgement batching is left to the
// broker consumer's CommitFreq.
type BrokerHandler struct {
	bus     *exportbus.Bus
	parsers map[string]MessageParser
}

// NewBrokerHandler builds a handler dispatching to parsers, keyed by
// MessageParser.TestType().
func NewBrokerHandler(bus *exportbus.Bus, parsers ...MessageParser) *BrokerHandler {
	h := &BrokerHandler{bus: bus, parsers: make(map[string]MessageParser, len(parsers))}
	for _, p := range parsers {
		h.parsers[p.TestType()] = p
	}
	return h
}

var _ broker.Handler = (*BrokerHandler)(nil)

func (h *BrokerHandler) Process(ctx context.Context, d broker.Delivery) error {
	testType, _ := d.Headers[testTypeHeader].(string)
	if testType == "" {
		testType = d.RoutingKey
	}

	p, ok := h.parsers[testType]
	if !ok {
		return store.WrapError(&store.Error{Code: store.DataError, Cause: fmt.Errorf("unknown test type %q", testType)})
	}

	source, _ := d.Headers[sourceHeader].(string)
	return p.Process(ctx, h.bus, d.Body, source, d.Timestamp)
}

// Commit is a no-op: every Process call already commits its own
// transaction via store.Store.CommitBatch.
func (h *BrokerHandler) Commit(ctx context.Context) error { return nil }
