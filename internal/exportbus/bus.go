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

// Package exportbus implements the single-producer/multi-consumer export
// bus (§4.D): parsers and the broker consumer publish STREAM/LIVE/PUSH
// events onto a bounded in-process queue; a dedicated drain goroutine
// forwards each event to the broker's export exchange and to any
// in-process subscribers (principally the query server's SUBSCRIBE
// handler).
package exportbus

import (
	"context"
	"sync"

	"github.com/wanduow/nntsc/internal/logging"
	"github.com/wanduow/nntsc/internal/metrics"
)

// Publisher forwards a drained Event to the broker exchange named after
// ev.Collection. Implemented by internal/broker.Publisher.
type Publisher interface {
	Publish(ctx context.Context, topic string, ev Event) error
}

// Bus is the export bus: one bounded queue, one drain goroutine, many
// subscribers.
type Bus struct {
	queue chan Event

	publisher Publisher

	mu             sync.RWMutex
	subscribers    map[uint64]chan Event
	nextID         uint64
	subscriberSize int
}

// New constructs a Bus with the given internal queue depth and default
// per-subscriber queue depth.
func New(queueSize, subscriberSize int) *Bus {
	if queueSize <= 0 {
		queueSize = 1000
	}
	if subscriberSize <= 0 {
		subscriberSize = 1000
	}
	return &Bus{
		queue:          make(chan Event, queueSize),
		subscribers:    make(map[uint64]chan Event),
		subscriberSize: subscriberSize,
	}
}

// SetPublisher wires the broker outbound leg. Must be called before Run if
// broker export is desired; a nil publisher means events only fan out to
// in-process subscribers (useful in tests).
func (b *Bus) SetPublisher(p Publisher) { b.publisher = p }

// Publish hands ev to the bus. STREAM and PUSH events block until the
// queue accepts them (or ctx is cancelled): losing a stream announcement
// or a push watermark would corrupt every subscriber's view of the
// collection. LIVE events are best-effort: if the queue is full the event
// is dropped and counted rather than blocking the producer (a parser
// mid-commit, or the broker consumer's delivery loop).
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	metrics.ExportBusEventsPublished.WithLabelValues(ev.Kind.String()).Inc()

	if ev.Kind == Live {
		select {
		case b.queue <- ev:
			return nil
		default:
			metrics.ExportBusEventsDropped.WithLabelValues(ev.Collection).Inc()
			return nil
		}
	}

	select {
	case b.queue <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers a new in-process subscriber (the query server, on
// behalf of a client's SUBSCRIBE request) and returns its id and receive
// channel. Call Unsubscribe when the subscription ends.
func (b *Bus) Subscribe() (uint64, <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	ch := make(chan Event, b.subscriberSize)
	b.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes and closes a subscriber's channel.
func (b *Bus) Unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(ch)
	}
}

// Run drains the queue until ctx is cancelled, forwarding each event to
// the broker publisher (if set) and to every current subscriber.
// Subscriber delivery is non-blocking: a subscriber that can't keep up
// loses events rather than stalling the whole bus. (The query server's
// per-connection queue differs: on overflow it closes the connection.)
func (b *Bus) Run(ctx context.Context) error {
	logging.Info().Msg("export bus drain loop starting")
	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("export bus drain loop stopping")
			return ctx.Err()
		case ev := <-b.queue:
			metrics.ExportBusQueueDepth.Set(float64(len(b.queue)))
			b.deliver(ctx, ev)
		}
	}
}

func (b *Bus) deliver(ctx context.Context, ev Event) {
	if b.publisher != nil {
		if err := b.publisher.Publish(ctx, ev.Collection, ev); err != nil {
			logging.Warn().Err(err).Str("collection", ev.Collection).Str("kind", ev.Kind.String()).
				Msg("failed to publish export event to broker")
		}
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			logging.Warn().Uint64("subscriber", id).Msg("subscriber queue full, dropping event")
		}
	}
}
