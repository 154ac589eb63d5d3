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

// Package rrdpoll implements the periodic RRD poller (§4.F): for every
// stream backed by an RRD file it fetches newly-written rows since the
// last successful commit, hands them to the matching parser, and advances
// a checkpoint.
//
// Reading the actual .rrd file format is deliberately out of scope (the
// spec treats "the RRD library" as a replaceable external collaborator);
// RRDReader is the seam a concrete rrdtool/librrd binding plugs into.
package rrdpoll

import "context"

// Sample is one consolidated RRD row: a timestamp and the ordered values
// of every data source defined on the RRD, in file order. A nil entry
// means the RRD recorded no value (NaN) for that data source at ts.
type Sample struct {
	Ts     int64
	Values []*float64
}

// Info describes an RRD file's own notion of its sampling resolution and
// retention, as reported by the RRD library (e.g. `rrdtool info`).
type Info struct {
	// StepSeconds is the RRD's native update interval.
	StepSeconds int64
	// HighRows is the number of rows retained at StepSeconds resolution
	// in the RRA with the finest granularity (the "AVERAGE" RRA this
	// poller reads from).
	HighRows int64
}

// RRDReader is the external collaborator that knows how to talk to actual
// RRD files. Implementations typically shell out to rrdtool or bind to
// librrd.
type RRDReader interface {
	// Info returns filename's step and retention.
	Info(ctx context.Context, filename string) (Info, error)
	// Last returns the timestamp of the most recent row rrdtool has ever
	// written for filename, regardless of what has been consolidated out.
	Last(ctx context.Context, filename string) (int64, error)
	// Fetch returns consolidated AVERAGE samples for filename in
	// [startTs, endTs], one row per StepSeconds tick.
	Fetch(ctx context.Context, filename string, startTs, endTs int64) ([]Sample, error)
}
