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

package tsstore

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/wanduow/nntsc/internal/exportbus"
	"github.com/wanduow/nntsc/internal/logging"
)

// subscriber matches *exportbus.Bus's Subscribe/Unsubscribe pair. Kept as
// an interface so Mirror can be tested against a fake bus, the same
// narrowing internal/queryserver uses for its own store dependency.
type subscriber interface {
	Subscribe() (uint64, <-chan exportbus.Event)
	Unsubscribe(id uint64)
}

// Mirror subscribes to the export bus and persists every STREAM/LIVE
// event into a Store. It implements suture.Service (Serve(ctx) error) so
// it can run in the supervision tree's export layer alongside the bus
// itself, and is a no-op that is simply never constructed when
// config.TimeSeriesStoreConfig.DSN is empty.
type Mirror struct {
	store *Store
	bus   subscriber
}

// NewMirror builds a Mirror over an already-opened Store.
func NewMirror(store *Store, bus subscriber) *Mirror {
	return &Mirror{store: store, bus: bus}
}

// Serve drains the mirror's bus subscription until ctx is cancelled.
// STREAM events upsert the stream's attributes; LIVE events append a
// measurement row. PUSH events carry no per-row data and are ignored.
func (m *Mirror) Serve(ctx context.Context) error {
	id, events := m.bus.Subscribe()
	defer m.bus.Unsubscribe(id)

	logging.Info().Msg("time-series mirror subscribed to export bus")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			m.handle(ctx, ev)
		}
	}
}

// String implements fmt.Stringer for suture's log output.
func (m *Mirror) String() string { return "tsstore-mirror" }

func (m *Mirror) handle(ctx context.Context, ev exportbus.Event) {
	switch ev.Kind {
	case exportbus.Stream:
		attrs, err := json.Marshal(ev.Attrs)
		if err != nil {
			logging.Warn().Err(err).Str("collection", ev.Collection).Msg("tsstore: marshal stream attrs")
			return
		}
		if err := m.store.upsertStream(ctx, ev.Collection, ev.ColID, ev.StreamID, string(attrs)); err != nil {
			logging.Warn().Err(err).Str("collection", ev.Collection).Msg("tsstore: upsert stream")
		}
	case exportbus.Live:
		row, err := json.Marshal(ev.Row)
		if err != nil {
			logging.Warn().Err(err).Str("collection", ev.Collection).Msg("tsstore: marshal live row")
			return
		}
		if err := m.store.insertLive(ctx, ev.Collection, ev.ColID, ev.StreamID, ev.Ts, string(row)); err != nil {
			logging.Warn().Err(err).Str("collection", ev.Collection).Msg("tsstore: insert live event")
		}
	case exportbus.Push:
		// No per-row payload to mirror.
	}
}
