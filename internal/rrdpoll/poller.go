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
	"time"

	"github.com/wanduow/nntsc/internal/exportbus"
	"github.com/wanduow/nntsc/internal/logging"
	"github.com/wanduow/nntsc/internal/metrics"
	"github.com/wanduow/nntsc/internal/store"
)

// Parser is the subset of an RRD-family parser (see internal/parser) the
// poller needs: turning one fetched Sample into a stored row. ProcessSample
// commits the row itself and returns the column values it wrote so the
// poller can publish the matching LIVE export-bus event without having to
// understand the collection's column layout.
type Parser interface {
	ProcessSample(ctx context.Context, streamID int, ts int64, sample Sample) (map[string]interface{}, error)
	Collection() string
	DataTable() string
	StreamTable() string
}

// StreamState tracks one RRD-backed stream's poll position. LastCommit is
// the checkpoint last_timestamp had before the current poll cycle began;
// on a transient error mid-cycle LastTimestamp is reverted to LastCommit
// so a retry does not skip rows.
type StreamState struct {
	StreamID      int
	Filename      string
	ModSubtype    string
	MinRes        int64
	HighRows      int64
	LastTimestamp int64
	lastCommit    int64
}

// Poller periodically fetches newly-written RRD rows for every registered
// stream and commits them through the matching parser.
type Poller struct {
	reader       RRDReader
	bus          *exportbus.Bus
	store        *store.Store
	parsers      map[string]Parser
	streamsByRRD map[string][]*StreamState
	pollInterval time.Duration
}

// New constructs a Poller. parsers maps a modsubtype ("smokeping",
// "muninbytes") to the Parser responsible for it. st may be nil in tests
// that don't need UpdateLastTimestamp side effects.
func New(reader RRDReader, bus *exportbus.Bus, st *store.Store, parsers map[string]Parser, pollInterval time.Duration) *Poller {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	return &Poller{
		reader:       reader,
		bus:          bus,
		store:        st,
		parsers:      parsers,
		streamsByRRD: make(map[string][]*StreamState),
		pollInterval: pollInterval,
	}
}

// Track registers an RRD-backed stream so future poll cycles fetch its
// new rows. lastTimestamp should be the stream's stored to_ts (0 if never
// polled before).
func (p *Poller) Track(filename string, state *StreamState) {
	state.Filename = filename
	state.lastCommit = state.LastTimestamp
	p.streamsByRRD[filename] = append(p.streamsByRRD[filename], state)
}

// Serve runs the poll loop until ctx is cancelled, matching the
// suture.Service contract.
func (p *Poller) Serve(ctx context.Context) error {
	logging.Info().Dur("interval", p.pollInterval).Msg("starting RRD poller")

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("RRD poller stopping")
			return ctx.Err()
		case <-ticker.C:
		}

		retry := p.pollOnce(ctx)
		if retry {
			p.revert()
			// A short, fixed backoff before retrying a transient failure,
			// distinct from the steady-state poll interval.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(10 * time.Second):
			}
		}
	}
}

// pollOnce fetches and commits new rows for every tracked RRD file. It
// returns true if a transient store/RRD error means the whole cycle's
// checkpoints should be reverted and retried, matching RRD_RETRY in the
// reference poller.
func (p *Poller) pollOnce(ctx context.Context) (retry bool) {
	for filename, states := range p.streamsByRRD {
		for _, st := range states {
			st.lastCommit = st.LastTimestamp

			timer := metrics.RRDPollDuration.WithLabelValues(st.ModSubtype)
			start := time.Now()
			err := p.readFromRRD(ctx, filename, st)
			timer.Observe(time.Since(start).Seconds())

			if err == nil {
				continue
			}

			code := store.CodeOf(err)
			switch code {
			case store.Operational, store.QueryTimeout:
				metrics.RRDPollErrors.WithLabelValues(st.ModSubtype).Inc()
				logging.Warn().Err(err).Str("filename", filename).Msg("transient error polling RRD, will retry cycle")
				return true
			case store.Interrupted:
				return false
			default:
				// Bad data or a parser bug: log and move on to the next
				// stream rather than stalling the whole poller.
				metrics.RRDPollErrors.WithLabelValues(st.ModSubtype).Inc()
				logging.Error().Err(err).Str("filename", filename).Msg("error processing RRD data, skipping stream this cycle")
			}
		}
	}
	return false
}

// readFromRRD fetches and processes any new rows for a single stream,
// mirroring the reference poller's rejig_ts + fetch + per-row dispatch.
func (p *Poller) readFromRRD(ctx context.Context, filename string, st *StreamState) error {
	parser, ok := p.parsers[st.ModSubtype]
	if !ok {
		return nil
	}

	endTs, err := p.reader.Last(ctx, filename)
	if err != nil {
		return store.WrapError(err)
	}

	startTs, endTs := rejigTimestamps(endTs, st)
	if startTs >= endTs {
		return nil
	}

	samples, err := p.reader.Fetch(ctx, filename, startTs, endTs)
	if err != nil {
		return store.WrapError(err)
	}

	for _, sample := range samples {
		if sample.Ts <= st.LastTimestamp {
			continue
		}
		row, err := parser.ProcessSample(ctx, st.StreamID, sample.Ts, sample)
		if err != nil {
			return err
		}
		st.LastTimestamp = sample.Ts

		if p.store != nil {
			if err := p.store.UpdateLastTimestamp(ctx, parser.StreamTable(), st.StreamID, sample.Ts); err != nil {
				return err
			}
		}
		if p.bus != nil {
			ev := exportbus.Event{Kind: exportbus.Live, Collection: parser.Collection(), StreamID: st.StreamID, Ts: sample.Ts, Row: row}
			if err := p.bus.Publish(ctx, ev); err != nil {
				logging.Warn().Err(err).Str("collection", parser.Collection()).Msg("failed to publish LIVE event")
			}
		}
	}

	return nil
}

// rejigTimestamps aligns endTs to a minres boundary and clamps the fetch
// window to [st.LastTimestamp, highrows*minres before endTs], matching the
// reference poller's defence against rrdtool returning a trailing row of
// NaNs when endts falls mid-period.
func rejigTimestamps(endTs int64, st *StreamState) (startTs, adjustedEnd int64) {
	adjustedEnd = endTs
	if st.MinRes > 0 && adjustedEnd%st.MinRes != 0 {
		adjustedEnd -= adjustedEnd % st.MinRes
	}

	startTs = adjustedEnd - st.HighRows*st.MinRes
	if st.LastTimestamp > startTs {
		startTs = st.LastTimestamp
	}
	if adjustedEnd < startTs {
		adjustedEnd = startTs
	}
	return startTs, adjustedEnd
}

// revert rolls every tracked stream's LastTimestamp back to the checkpoint
// it held at the start of the failed cycle, so a retried cycle re-fetches
// rows instead of silently skipping them.
func (p *Poller) revert() {
	for _, states := range p.streamsByRRD {
		for _, st := range states {
			st.LastTimestamp = st.lastCommit
		}
	}
}
