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
	"strings"
	"time"

	"github.com/wanduow/nntsc/internal/exportbus"
	"github.com/wanduow/nntsc/internal/store"
)

// MessageParser decodes and stores one broker delivery for a single
// measurement family (an AMP test type, or an LPI counter module). It is
// the Go analogue of the reference implementation's per-test dataparsers
// module: one instance per collection, registered by test-type string.
type MessageParser interface {
	// TestType is the broker header value ("x-amp-test-type" for AMP,
	// the LPI module name for LPI) this parser handles.
	TestType() string

	// Collection is the (module, modsubtype)-derived name used for
	// export-bus events and store registration, e.g. "amp_icmp".
	Collection() string

	// Schema describes the stream/data tables this parser owns.
	Schema() store.CollectionSchema

	// Process decodes body (the raw delivery payload for one probe
	// result/counter sample) and stores it, publishing STREAM/LIVE
	// export-bus events as appropriate. source is the originating
	// monitor/host (the "x-amp-source-monitor" header, or the LPI
	// collector id); ts is the delivery timestamp.
	Process(ctx context.Context, bus *exportbus.Bus, body []byte, source string, ts time.Time) error
}

// median returns the median of a sorted slice of RTT-like samples,
// matching the reference parsers' "sort then take middle (or average the
// two middle values)" definition. Returns nil if values is empty.
func median(sorted []int) *int {
	n := len(sorted)
	if n == 0 {
		return nil
	}
	var m int
	if n%2 == 1 {
		m = sorted[n/2]
	} else {
		m = (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return &m
}

func deriveFamily(address string) string {
	if strings.Contains(address, ".") {
		return "ipv4"
	}
	return "ipv6"
}
