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

//go:build integration

package broker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/wanduow/nntsc/internal/config"
	"github.com/wanduow/nntsc/internal/exportbus"
	"github.com/wanduow/nntsc/internal/testinfra"
)

type countingHandler struct {
	mu        sync.Mutex
	processed int
	committed int
}

func (h *countingHandler) Process(ctx context.Context, d Delivery) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.processed++
	return nil
}

func (h *countingHandler) Commit(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.committed++
	return nil
}

func TestPublisherAndConsumerRoundTrip(t *testing.T) {
	testinfra.SkipIfNoDocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rmq, err := testinfra.NewRabbitMQContainer(ctx)
	if err != nil {
		t.Fatalf("start rabbitmq: %v", err)
	}
	t.Cleanup(func() { testinfra.CleanupContainer(t, ctx, rmq.Container) })

	cfg := config.BrokerConfig{
		Host: rmq.Host, Port: rmq.Port, VHost: "/", User: "guest", Password: "guest",
		Queue: "nntsc_test", Exchange: "nntsc.export.test", CommitFreq: 1,
		ReconnectMinWait: time.Second, ReconnectMaxWait: 5 * time.Second,
	}

	pub, err := NewPublisher(cfg)
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	t.Cleanup(func() { _ = pub.Close() })

	handler := &countingHandler{}
	consumer := NewConsumer(cfg, handler)
	runCtx, runCancel := context.WithCancel(ctx)
	go consumer.Serve(runCtx)
	defer runCancel()

	if err := pub.Publish(ctx, "amp_icmp", exportbus.Event{Kind: exportbus.Live, Collection: "amp_icmp", StreamID: 1}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for handler.committed == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if handler.committed == 0 {
		t.Fatal("timed out waiting for consumer to commit the published event")
	}
}
