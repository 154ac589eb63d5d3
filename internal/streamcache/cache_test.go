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
	"testing"
)

type fakeStore struct {
	mu      sync.Mutex
	calls   int
	ranges  map[int]streamRange
}

func (f *fakeStore) StreamRange(ctx context.Context, streamTable string, streamID int) (int64, int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	r, ok := f.ranges[streamID]
	if !ok {
		return 0, 0, false, nil
	}
	return r.first, r.last, r.lastKnown, nil
}

func TestFilterActiveStreamsIntersection(t *testing.T) {
	fs := &fakeStore{ranges: map[int]streamRange{
		1: {first: 1000, last: 2000, lastKnown: true},
		2: {first: 3000, last: 4000, lastKnown: true},
		3: {first: 1500, last: 1600, lastKnown: true},
	}}
	c := New(fs)

	got, err := c.FilterActiveStreams(context.Background(), "data_amp_icmp",
		map[string][]int{"A": {1, 2, 3}}, 1400, 1700)
	if err != nil {
		t.Fatalf("FilterActiveStreams: %v", err)
	}
	want := map[int]bool{1: true, 3: true}
	if len(got["A"]) != len(want) {
		t.Fatalf("got %v, want streams %v", got["A"], want)
	}
	for _, id := range got["A"] {
		if !want[id] {
			t.Fatalf("unexpected stream %d in result %v", id, got["A"])
		}
	}
}

func TestFilterActiveStreamsCachesAfterFirstLookup(t *testing.T) {
	fs := &fakeStore{ranges: map[int]streamRange{1: {first: 100, last: 200, lastKnown: true}}}
	c := New(fs)
	ctx := context.Background()

	if _, err := c.FilterActiveStreams(ctx, "data_amp_icmp", map[string][]int{"A": {1}}, 0, 1000); err != nil {
		t.Fatalf("first FilterActiveStreams: %v", err)
	}
	if _, err := c.FilterActiveStreams(ctx, "data_amp_icmp", map[string][]int{"A": {1}}, 0, 1000); err != nil {
		t.Fatalf("second FilterActiveStreams: %v", err)
	}

	fs.mu.Lock()
	calls := fs.calls
	fs.mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected exactly one store lookup after caching, got %d", calls)
	}
}

func TestNoteExtendsLastTimestampWithoutStoreLookup(t *testing.T) {
	fs := &fakeStore{ranges: map[int]streamRange{}}
	c := New(fs)

	c.Note("data_amp_icmp", 7, 500)
	c.Note("data_amp_icmp", 7, 600)
	c.Note("data_amp_icmp", 7, 550) // out of order, must not move last_ts backward

	got, err := c.FilterActiveStreams(context.Background(), "data_amp_icmp", map[string][]int{"A": {7}}, 500, 600)
	if err != nil {
		t.Fatalf("FilterActiveStreams: %v", err)
	}
	if len(got["A"]) != 1 {
		t.Fatalf("expected stream 7 active, got %v", got["A"])
	}

	fs.mu.Lock()
	calls := fs.calls
	fs.mu.Unlock()
	if calls != 0 {
		t.Fatalf("Note should have seeded the cache without a store lookup, got %d lookups", calls)
	}
}

func TestFilterActiveStreamsDropsInactiveLabel(t *testing.T) {
	fs := &fakeStore{ranges: map[int]streamRange{1: {first: 100, last: 200, lastKnown: true}}}
	c := New(fs)

	got, err := c.FilterActiveStreams(context.Background(), "data_amp_icmp", map[string][]int{"A": {1}}, 9000, 9999)
	if err != nil {
		t.Fatalf("FilterActiveStreams: %v", err)
	}
	if _, ok := got["A"]; ok {
		t.Fatalf("expected label A to be dropped entirely, got %v", got["A"])
	}
}
