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
	"errors"
	"testing"

	"github.com/wanduow/nntsc/internal/exportbus"
)

type fakeSubscriber struct {
	ch          chan exportbus.Event
	unsubscribe bool
}

func (f *fakeSubscriber) Subscribe() (uint64, <-chan exportbus.Event) {
	return 1, f.ch
}

func (f *fakeSubscriber) Unsubscribe(id uint64) {
	f.unsubscribe = true
}

func TestMirrorServeStopsOnContextCancel(t *testing.T) {
	sub := &fakeSubscriber{ch: make(chan exportbus.Event, 1)}
	m := NewMirror(nil, sub)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- m.Serve(ctx) }()

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("Serve() = %v, want context.Canceled", err)
	}
	if !sub.unsubscribe {
		t.Error("Serve did not unsubscribe on exit")
	}
}

func TestMirrorServeReturnsOnClosedChannel(t *testing.T) {
	sub := &fakeSubscriber{ch: make(chan exportbus.Event)}
	m := NewMirror(nil, sub)

	errCh := make(chan error, 1)
	go func() { errCh <- m.Serve(context.Background()) }()

	close(sub.ch)
	if err := <-errCh; err != nil {
		t.Fatalf("Serve() = %v, want nil on closed channel", err)
	}
}

func TestMirrorString(t *testing.T) {
	m := NewMirror(nil, &fakeSubscriber{ch: make(chan exportbus.Event)})
	if got := m.String(); got != "tsstore-mirror" {
		t.Errorf("String() = %q, want %q", got, "tsstore-mirror")
	}
}
