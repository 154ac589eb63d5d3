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

// Package parser implements the per-collection capability interfaces the
// store, broker consumer, and RRD poller are built against: each measurement
// family (AMP active-probe tests, LPI passive counters, RRD-backed tools)
// owns its table schema, decodes its own wire payload, maintains its own
// stream-key lookup cache, and inserts through the shared store.Store.
//
// There is no module-level mutable state: every parser instance owns its
// stream cache, unlike the reference implementation's per-module global
// dictionaries (amp_trace_streams, lpi_*_streams).
package parser
