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

package rrdpoll

import (
	"context"
	"testing"

	"github.com/wanduow/nntsc/internal/store"
)

func TestRejigTimestampsAlignsToMinres(t *testing.T) {
	st := &StreamState{MinRes: 300, HighRows: 10, LastTimestamp: 0}
	start, end := rejigTimestamps(1205, st)
	if end != 1200 {
		t.Fatalf("end = %d, want 1200", end)
	}
	if want := end - 10*300; start != want {
		t.Fatalf("start = %d, want %d", start, want)
	}
}

func TestRejigTimestampsClampsToLastTimestamp(t *testing.T) {
	st := &StreamState{MinRes: 300, HighRows: 10, LastTimestamp: 2000}
	start, _ := rejigTimestamps(2400, st)
	if start != 2000 {
		t.Fatalf("start = %d, want 2000 (clamped to LastTimestamp)", start)
	}
}

func TestRejigTimestampsNeverProducesInvertedWindow(t *testing.T) {
	st := &StreamState{MinRes: 300, HighRows: 10, LastTimestamp: 5000}
	start, end := rejigTimestamps(1200, st)
	if end < start {
		t.Fatalf("end (%d) < start (%d)", end, start)
	}
}

type fakeReader struct {
	last    int64
	samples []Sample
	err     error
}

func (f *fakeReader) Info(ctx context.Context, filename string) (Info, error) {
	return Info{StepSeconds: 300, HighRows: 10}, nil
}
func (f *fakeReader) Last(ctx context.Context, filename string) (int64, error) {
	return f.last, f.err
}
func (f *fakeReader) Fetch(ctx context.Context, filename string, startTs, endTs int64) ([]Sample, error) {
	return f.samples, f.err
}

type fakeParser struct {
	processed []int64
	failAt    int64
}

func (f *fakeParser) ProcessSample(ctx context.Context, streamID int, ts int64, sample Sample) (map[string]interface{}, error) {
	if f.failAt != 0 && ts == f.failAt {
		return nil, store.WrapError(&store.Error{Code: store.DataError})
	}
	f.processed = append(f.processed, ts)
	return map[string]interface{}{"ts": ts}, nil
}
func (f *fakeParser) Collection() string  { return "rrd_smokeping" }
func (f *fakeParser) DataTable() string   { return "data_rrd_smokeping" }
func (f *fakeParser) StreamTable() string { return "streams_rrd_smokeping" }

func TestPollOnceAdvancesLastTimestamp(t *testing.T) {
	reader := &fakeReader{
		last: 1800,
		samples: []Sample{
			{Ts: 300, Values: nil},
			{Ts: 600, Values: nil},
			{Ts: 900, Values: nil},
		},
	}
	parser := &fakeParser{}
	p := New(reader, nil, nil, map[string]Parser{"smokeping": parser}, 0)
	st := &StreamState{StreamID: 1, ModSubtype: "smokeping", MinRes: 300, HighRows: 10}
	p.Track("test.rrd", st)

	if retry := p.pollOnce(context.Background()); retry {
		t.Fatal("expected no retry")
	}
	if st.LastTimestamp != 900 {
		t.Fatalf("LastTimestamp = %d, want 900", st.LastTimestamp)
	}
	if len(parser.processed) != 3 {
		t.Fatalf("expected 3 samples processed, got %d", len(parser.processed))
	}
}

func TestPollOnceSkipsAlreadySeenSamples(t *testing.T) {
	reader := &fakeReader{
		last:    1800,
		samples: []Sample{{Ts: 300}, {Ts: 600}, {Ts: 900}},
	}
	parser := &fakeParser{}
	p := New(reader, nil, nil, map[string]Parser{"smokeping": parser}, 0)
	st := &StreamState{StreamID: 1, ModSubtype: "smokeping", MinRes: 300, HighRows: 10, LastTimestamp: 600}
	p.Track("test.rrd", st)

	p.pollOnce(context.Background())
	if len(parser.processed) != 1 || parser.processed[0] != 900 {
		t.Fatalf("expected only ts=900 processed, got %v", parser.processed)
	}
}

func TestPollOnceRevertsOnTransientError(t *testing.T) {
	reader := &fakeReader{err: store.WrapError(&store.Error{Code: store.Operational})}
	parser := &fakeParser{}
	p := New(reader, nil, nil, map[string]Parser{"smokeping": parser}, 0)
	st := &StreamState{StreamID: 1, ModSubtype: "smokeping", MinRes: 300, HighRows: 10, LastTimestamp: 600}
	p.Track("test.rrd", st)

	if retry := p.pollOnce(context.Background()); !retry {
		t.Fatal("expected retry=true on operational error")
	}
	st.LastTimestamp = 900 // simulate partial progress before the error
	p.revert()
	if st.LastTimestamp != 600 {
		t.Fatalf("revert() left LastTimestamp = %d, want 600", st.LastTimestamp)
	}
}
