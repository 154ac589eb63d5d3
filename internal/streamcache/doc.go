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

// Package streamcache holds the process-wide projection of each stream's
// first/last-seen timestamps, used by the query server to restrict a
// request's stream list to those with data in the requested window without
// hitting the store for every query.
//
// Unlike a typical cache, entries are never evicted: once a stream's
// first_ts is known it cannot change, and last_ts only moves forward, so a
// cached entry is always at least as fresh as (never staler in a way that
// matters for) filter_active_streams. Locking is coarse, one mutex per stream
// table, matching the store's own per-table granularity rather than a
// single cache-wide lock or a per-stream lock.
package streamcache
