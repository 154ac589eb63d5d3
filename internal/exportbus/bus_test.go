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

package exportbus

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recordingPublisher struct {
	mu    sync.Mutex
	calls []Event
}

func (r *recordingPublisher) Publish(ctx context.Context, topic string, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, ev)
	return nil
}

func (r *recordingPublisher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestBusDeliversToSubscribersAndPublisher(t *testing.T) {
	bus := New(10, 10)
	pub := &recordingPublisher{}
	bus.SetPublisher(pub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx)

	_, ch := bus.Subscribe()

	if err := bus.Publish(ctx, Event{Kind: Stream, Collection: "amp_icmp", StreamID: 1}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case ev := <-ch:
		if ev.StreamID != 1 {
			t.Fatalf("got StreamID %d, want 1", ev.StreamID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscriber delivery")
	}

	deadline := time.Now().Add(time.Second)
	for pub.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if pub.count() != 1 {
		t.Fatalf("expected 1 publisher call, got %d", pub.count())
	}
}

func TestBusDropsLiveEventsWhenQueueFull(t *testing.T) {
	bus := New(1, 10)
	ctx := context.Background()

	// Fill the queue without a drain loop running so the next LIVE event
	// has nowhere to go.
	if err := bus.Publish(ctx, Event{Kind: Live, Collection: "amp_icmp"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := bus.Publish(ctx, Event{Kind: Live, Collection: "amp_icmp"}); err != nil {
		t.Fatalf("Publish (should drop, not error): %v", err)
	}
}

func TestBusStreamEventBlocksUntilQueueHasRoom(t *testing.T) {
	bus := New(1, 10)
	ctx := context.Background()

	if err := bus.Publish(ctx, Event{Kind: Stream}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- bus.Publish(ctx, Event{Kind: Stream}) }()

	select {
	case <-done:
		t.Fatal("second STREAM publish should have blocked on the full queue")
	case <-time.After(50 * time.Millisecond):
	}

	<-bus.queue // drain the first event, making room
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Publish: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("second STREAM publish never completed after room was made")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := New(10, 10)
	id, ch := bus.Subscribe()
	bus.Unsubscribe(id)
	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed after Unsubscribe")
	}
}
