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

package broker

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/wanduow/nntsc/internal/config"
	"github.com/wanduow/nntsc/internal/logging"
	"github.com/wanduow/nntsc/internal/metrics"
	"github.com/wanduow/nntsc/internal/store"
)

// Delivery is one broker message handed to a Handler. Header and RoutingKey
// let a handler dispatch to the right parser (the reference consumer
// switches on an "x-amp-test-type" style header); Body is the raw,
// parser-specific payload and is never interpreted by the consumer itself.
type Delivery struct {
	Body       []byte
	Headers    map[string]interface{}
	RoutingKey string
	Timestamp  time.Time
}

// Handler decodes and stores one Delivery's measurements. Commit is called
// by the Consumer once per batch (see config.BrokerConfig.CommitFreq),
// before the batch is acknowledged. A Handler may instead commit inside
// Process, as parser.BrokerHandler does; its deliveries then share one
// acknowledgement but not one transaction.
type Handler interface {
	Process(ctx context.Context, d Delivery) error
	Commit(ctx context.Context) error
}

// Consumer pulls measurement deliveries from a durable queue, batches them
// through Handler up to CommitFreq messages, and acknowledges the whole
// batch at once after a successful commit.
type Consumer struct {
	cfg     config.BrokerConfig
	handler Handler
}

// NewConsumer builds a Consumer bound to queue cfg.Queue.
func NewConsumer(cfg config.BrokerConfig, handler Handler) *Consumer {
	return &Consumer{cfg: cfg, handler: handler}
}

// Serve connects to the broker and processes deliveries until ctx is
// cancelled, reconnecting with the reference poller's own backoff shape
// (attempt*ReconnectMinWait, capped at ReconnectMaxWait) whenever the
// connection drops.
func (c *Consumer) Serve(ctx context.Context) error {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := c.runOnce(ctx)
		if err == nil || ctx.Err() != nil {
			return ctx.Err()
		}

		attempt++
		metrics.BrokerReconnects.Inc()
		wait := reconnectBackoff(attempt, c.cfg.ReconnectMinWait, c.cfg.ReconnectMaxWait)
		logging.Warn().Err(err).Dur("wait", wait).Int("attempt", attempt).
			Msg("broker consumer disconnected, reconnecting")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// reconnectBackoff grows linearly with attempt, matching the reference
// consumer's attempt*10s-capped-at-120s shape, generalised to configurable
// min/max waits.
func reconnectBackoff(attempt int, minWait, maxWait time.Duration) time.Duration {
	wait := time.Duration(attempt) * minWait
	if wait > maxWait {
		wait = maxWait
	}
	return wait
}

func (c *Consumer) runOnce(ctx context.Context) error {
	conn, ch, err := dial(c.cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = ch.Close()
		_ = conn.Close()
	}()

	if _, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.Qos(c.cfg.CommitFreq, 0, false); err != nil {
		return err
	}

	deliveries, err := ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	return c.drain(ctx, ch, deliveries)
}

func (c *Consumer) drain(ctx context.Context, ch *amqp.Channel, deliveries <-chan amqp.Delivery) error {
	batchCount := 0
	var lastTag uint64
	haveUnacked := false

	flush := func() error {
		if batchCount == 0 {
			return nil
		}
		if err := c.handler.Commit(ctx); err != nil {
			return err
		}
		metrics.BrokerBatchSize.Observe(float64(batchCount))
		if haveUnacked {
			if err := ch.Ack(lastTag, true); err != nil {
				return err
			}
			haveUnacked = false
		}
		batchCount = 0
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			_ = flush()
			return ctx.Err()

		case d, ok := <-deliveries:
			if !ok {
				_ = flush()
				return nil
			}

			err := c.handler.Process(ctx, Delivery{
				Body:       d.Body,
				Headers:    d.Headers,
				RoutingKey: d.RoutingKey,
				Timestamp:  d.Timestamp,
			})

			switch store.CodeOf(err) {
			case store.NoError:
				batchCount++
				lastTag = d.DeliveryTag
				haveUnacked = true
				metrics.BrokerMessagesConsumed.WithLabelValues("ok").Inc()

			case store.DataError, store.CodingError:
				// Bad input or a parser bug: nothing a retry would fix.
				// Ack it alone so it doesn't block the batch, and move on.
				logging.Error().Err(err).Str("routing_key", d.RoutingKey).Msg("dropping undeliverable message")
				metrics.BrokerMessagesConsumed.WithLabelValues("data_error").Inc()
				if ackErr := ch.Ack(d.DeliveryTag, false); ackErr != nil {
					return ackErr
				}

			default:
				metrics.BrokerMessagesConsumed.WithLabelValues("error").Inc()
				return err
			}

			if batchCount >= c.cfg.CommitFreq {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}
}
