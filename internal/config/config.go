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

// Package config defines the NNTSC daemon configuration surface and its
// defaults. Values are layered from defaults, an optional YAML file, and
// environment variables by Load in koanf.go.
package config

import "time"

// DatabaseConfig describes how to reach the Postgres-backed measurement store.
type DatabaseConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"gt=0"`
	Name            string        `koanf:"name" validate:"required"`
	User            string        `koanf:"user"`
	Password        string        `koanf:"password"`
	SSLMode         string        `koanf:"ssl_mode"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	CursorBatchSize int           `koanf:"cursor_batch_size"`
}

// BrokerConfig describes the AMQP broker used for both inbound measurement
// delivery and the export bus's outbound leg.
type BrokerConfig struct {
	Host             string        `koanf:"host"`
	Port             int           `koanf:"port"`
	VHost            string        `koanf:"vhost"`
	User             string        `koanf:"user"`
	Password         string        `koanf:"password"`
	SSL              bool          `koanf:"ssl"`
	Queue            string        `koanf:"queue" validate:"required"`
	Exchange         string        `koanf:"exchange"`
	CommitFreq       int           `koanf:"commit_freq" validate:"gt=0"`
	ReconnectMinWait time.Duration `koanf:"reconnect_min_wait"`
	ReconnectMaxWait time.Duration `koanf:"reconnect_max_wait"`
}

// ExportBusConfig tunes the in-process fan-out queue feeding the broker
// publisher and any in-process subscribers (the query server).
type ExportBusConfig struct {
	QueueSize      int `koanf:"queue_size" validate:"gt=0"`
	SubscriberSize int `koanf:"subscriber_size"`
}

// RRDConfig tunes the periodic RRD poller.
type RRDConfig struct {
	PollInterval  time.Duration `koanf:"poll_interval"`
	CheckpointDir string        `koanf:"checkpoint_dir"`
}

// QueryServerConfig describes the TCP protocol server's listening socket and
// per-connection resource bounds.
type QueryServerConfig struct {
	ListenAddr        string        `koanf:"listen_addr" validate:"required"`
	MaxConnections    int           `koanf:"max_connections" validate:"gt=0"`
	OutgoingQueueSize int           `koanf:"outgoing_queue_size"`
	HistoryChunkRows  int           `koanf:"history_chunk_rows"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
}

// AdminConfig describes the ambient HTTP surface (health checks, metrics).
type AdminConfig struct {
	Enabled    bool   `koanf:"enabled"`
	ListenAddr string `koanf:"listen_addr"`
}

// TimeSeriesStoreConfig describes the optional local analytics mirror
// (spec.md §6's "optional time-series-store connection string"). DSN
// empty disables the mirror entirely; nntscd runs unchanged without it.
type TimeSeriesStoreConfig struct {
	DSN string `koanf:"dsn"`
}

// LoggingConfig controls the zerolog-based logger.
type LoggingConfig struct {
	Level     string `koanf:"level"`
	Format    string `koanf:"format" validate:"oneof=console json"`
	Caller    bool   `koanf:"caller"`
	Timestamp bool   `koanf:"timestamp"`
}

// Config is the top-level, fully-merged NNTSC daemon configuration.
type Config struct {
	Database        DatabaseConfig        `koanf:"database"`
	Broker          BrokerConfig          `koanf:"broker"`
	ExportBus       ExportBusConfig       `koanf:"exportbus"`
	RRD             RRDConfig             `koanf:"rrd"`
	QueryServer     QueryServerConfig     `koanf:"queryserver"`
	Admin           AdminConfig           `koanf:"admin"`
	Logging         LoggingConfig         `koanf:"logging"`
	Collections     []string              `koanf:"collections"`
	TimeSeriesStore TimeSeriesStoreConfig `koanf:"timeseriesstore"`
}
