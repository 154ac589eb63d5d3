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

// Package broker implements the AMQP transport underlying both the
// measurement ingestion path (§4.E, consuming parser input) and the export
// bus's outbound leg (§4.D, publishing STREAM/LIVE/PUSH events to the
// collection's exchange).
package broker

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker/v2"

	"github.com/wanduow/nntsc/internal/config"
	"github.com/wanduow/nntsc/internal/exportbus"
	"github.com/wanduow/nntsc/internal/logging"
)

// Publisher publishes export-bus events to a topic exchange, one routing
// key per collection. It satisfies exportbus.Publisher.
type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string

	mu     sync.RWMutex
	closed bool

	breaker *gobreaker.CircuitBreaker[any]
}

// NewPublisher dials the broker and declares cfg.Exchange as a durable
// topic exchange ready to receive export events.
func NewPublisher(cfg config.BrokerConfig) (*Publisher, error) {
	conn, ch, err := dial(cfg)
	if err != nil {
		return nil, err
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}

	return &Publisher{conn: conn, ch: ch, exchange: cfg.Exchange}, nil
}

// SetCircuitBreaker wraps every Publish call in cb, so a string of broker
// failures trips the breaker and fails fast instead of piling up blocked
// publishes.
func (p *Publisher) SetCircuitBreaker(cb *gobreaker.CircuitBreaker[any]) {
	p.breaker = cb
}

// Publish serializes ev as JSON and publishes it with routing key topic
// (the collection name, e.g. "amp_icmp"), so consumers bind on the exact
// collection name; the name has no dots, so a pattern such as "amp.#"
// matches no collection.
func (p *Publisher) Publish(ctx context.Context, topic string, ev exportbus.Event) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return fmt.Errorf("publisher is closed")
	}

	body, err := marshalEvent(ev)
	if err != nil {
		return fmt.Errorf("marshal export event: %w", err)
	}

	publish := func() (any, error) {
		return nil, p.ch.PublishWithContext(ctx, p.exchange, topic, false, false, amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Type:         ev.Kind.String(),
		})
	}

	if p.breaker != nil {
		_, err := p.breaker.Execute(publish)
		return err
	}
	_, err = publish()
	return err
}

// Close shuts down the channel and connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	if err := p.ch.Close(); err != nil {
		logging.Warn().Err(err).Msg("error closing publisher channel")
	}
	return p.conn.Close()
}
