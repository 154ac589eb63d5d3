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

// Package queryserver implements the NNTSC client-facing TCP protocol
// server (spec.md §4.G): it accepts connections, answers REQUEST
// (collections/schemas/streams) queries out of internal/store's catalog,
// and serves SUBSCRIBE/AGGREGATE/PERCENTILE queries by combining a
// historical HISTORY backfill from internal/store's cursors with a LIVE
// feed fanned out from internal/exportbus.
//
// Each connection gets a bounded outgoing frame queue and its own writer
// goroutine, grounded on the teacher's internal/websocket Hub/Client
// pattern: a slow client drops (the connection is closed, never the
// protocol framing) rather than blocking the server or silently
// desynchronising message boundaries.
package queryserver
