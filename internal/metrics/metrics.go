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

// Package metrics exposes Prometheus instrumentation for the NNTSC store,
// broker consumer, export bus, RRD poller and query server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Store metrics.

	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nntsc_store_query_duration_seconds",
			Help:    "Duration of measurement store queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "collection"},
	)

	StoreErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nntsc_store_errors_total",
			Help: "Total number of store operations that returned a non-success error code",
		},
		[]string{"operation", "error_code"},
	)

	StoreStreamsInserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nntsc_store_streams_inserted_total",
			Help: "Total number of new streams registered",
		},
		[]string{"collection"},
	)

	StoreRowsInserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nntsc_store_rows_inserted_total",
			Help: "Total number of data rows committed",
		},
		[]string{"collection"},
	)

	// Broker consumer metrics.

	BrokerMessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nntsc_broker_messages_consumed_total",
			Help: "Total number of broker deliveries consumed",
		},
		[]string{"result"},
	)

	BrokerReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nntsc_broker_reconnects_total",
			Help: "Total number of broker connection re-establishments",
		},
	)

	BrokerBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nntsc_broker_batch_size",
			Help:    "Number of deliveries committed together before ack",
			Buckets: prometheus.LinearBuckets(1, 10, 10),
		},
	)

	// Export bus metrics.

	ExportBusEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nntsc_exportbus_events_published_total",
			Help: "Total number of events handed to the export bus",
		},
		[]string{"kind"},
	)

	ExportBusEventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nntsc_exportbus_events_dropped_total",
			Help: "Total number of LIVE events dropped due to a full queue",
		},
		[]string{"collection"},
	)

	ExportBusQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nntsc_exportbus_queue_depth",
			Help: "Current depth of the export bus's internal queue",
		},
	)

	// RRD poller metrics.

	RRDPollDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nntsc_rrd_poll_duration_seconds",
			Help:    "Duration of a single RRD poll cycle",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection"},
	)

	RRDPollErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nntsc_rrd_poll_errors_total",
			Help: "Total number of RRD poll cycles that failed transiently",
		},
		[]string{"collection"},
	)

	// Query server metrics.

	QueryServerConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nntsc_queryserver_connections",
			Help: "Current number of open query server connections",
		},
	)

	QueryServerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nntsc_queryserver_requests_total",
			Help: "Total number of requests handled by the query server",
		},
		[]string{"request_type"},
	)

	QueryServerSendQueueDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nntsc_queryserver_send_queue_dropped_total",
			Help: "Total number of connections closed because their outgoing queue overflowed",
		},
	)
)
