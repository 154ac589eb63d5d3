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

package streamcache

import (
	"context"
	"sync"
)

// rangeLookup is the subset of *store.Store the cache needs, so tests can
// substitute a fake without spinning up Postgres.
type rangeLookup interface {
	StreamRange(ctx context.Context, streamTable string, streamID int) (firstTS, lastTS int64, lastKnown bool, err error)
}

// streamRange is one stream's known first/last timestamp, mirroring the
// from_ts/to_ts columns the store tracks per stream row.
type streamRange struct {
	first     int64
	last      int64
	lastKnown bool
}

// tableCache holds every stream's range for one stream table, guarded by its
// own lock so lookups against unrelated tables never contend.
type tableCache struct {
	mu      sync.Mutex
	streams map[int]*streamRange
}

// Cache is the process-wide stream-range cache described in spec.md's
// stream cache component: keyed by stream table name, lazily populated from
// the store on first touch.
type Cache struct {
	store rangeLookup

	mu     sync.Mutex // guards tables map itself, not its contents
	tables map[string]*tableCache
}

// New builds a cache backed by st. st may be any type satisfying
// rangeLookup (normally a *store.Store).
func New(st rangeLookup) *Cache {
	return &Cache{store: st, tables: make(map[string]*tableCache)}
}

func (c *Cache) tableFor(name string) *tableCache {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.tables[name]
	if !ok {
		t = &tableCache{streams: make(map[int]*streamRange)}
		c.tables[name] = t
	}
	return t
}

// Invalidate drops any cached range for streamID in table, forcing the next
// lookup to re-consult the store. Callers use this after inserting a brand
// new stream, since the stream cache has no way to know about a row it was
// never told to look up.
func (c *Cache) Invalidate(table string, streamID int) {
	t := c.tableFor(table)
	t.mu.Lock()
	delete(t.streams, streamID)
	t.mu.Unlock()
}

// Note records a freshly observed data point, either extending a cached
// range in place or seeding one (first_ts=last_ts=ts) if this stream hasn't
// been looked up yet. Called by ingestion after a successful commit so the
// cache never needs a round trip to learn about a timestamp it just wrote.
func (c *Cache) Note(table string, streamID int, ts int64) {
	t := c.tableFor(table)
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.streams[streamID]
	if !ok {
		t.streams[streamID] = &streamRange{first: ts, last: ts, lastKnown: true}
		return
	}
	if ts > r.last || !r.lastKnown {
		r.last = ts
		r.lastKnown = true
	}
}

func (c *Cache) rangeFor(ctx context.Context, streamTable string, streamID int) (streamRange, error) {
	t := c.tableFor(streamTable)

	t.mu.Lock()
	if r, ok := t.streams[streamID]; ok {
		cached := *r
		t.mu.Unlock()
		return cached, nil
	}
	t.mu.Unlock()

	first, last, lastKnown, err := c.store.StreamRange(ctx, streamTable, streamID)
	if err != nil {
		return streamRange{}, err
	}
	r := &streamRange{first: first, last: last, lastKnown: lastKnown}

	t.mu.Lock()
	if existing, ok := t.streams[streamID]; ok {
		// Lost a race with a concurrent populate or Note call; keep whichever
		// range is more advanced rather than clobbering fresher data.
		if !existing.lastKnown || (r.lastKnown && r.last > existing.last) {
			*existing = *r
		}
		cached := *existing
		t.mu.Unlock()
		return cached, nil
	}
	t.streams[streamID] = r
	t.mu.Unlock()
	return *r, nil
}

// FilterActiveStreams implements filter_active_streams: for each label's
// stream id list, returns the sublist of ids whose [first_ts, last_ts]
// intersects [start, end]. A stream with no committed data yet (last_ts
// unknown) is treated as active only if its first_ts already falls at or
// before end, matching a stream that has been created but not yet written.
func (c *Cache) FilterActiveStreams(ctx context.Context, streamTable string, labels map[string][]int, start, end int64) (map[string][]int, error) {
	out := make(map[string][]int, len(labels))
	for label, ids := range labels {
		var kept []int
		for _, id := range ids {
			r, err := c.rangeFor(ctx, streamTable, id)
			if err != nil {
				return nil, err
			}
			last := r.last
			if !r.lastKnown {
				last = r.first
			}
			if r.first <= end && last >= start {
				kept = append(kept, id)
			}
		}
		if kept != nil {
			out[label] = kept
		}
	}
	return out, nil
}
