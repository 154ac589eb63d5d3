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

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in priority
// order. The first file found is used.
var DefaultConfigPaths = []string{
	"nntsc.yaml",
	"nntsc.yml",
	"/etc/nntsc/nntsc.yaml",
	"/etc/nntsc/nntsc.yml",
}

// ConfigPathEnvVar overrides the searched config file path.
const ConfigPathEnvVar = "NNTSC_CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Name:            "nntsc",
			User:            "nntsc",
			SSLMode:         "disable",
			MaxOpenConns:    16,
			MaxIdleConns:    4,
			ConnMaxLifetime: time.Hour,
			CursorBatchSize: 1000,
		},
		Broker: BrokerConfig{
			Host:             "localhost",
			Port:             5672,
			VHost:            "/",
			User:             "amp",
			Password:         "guest",
			Queue:            "amp-nntsc",
			Exchange:         "nntsc.export",
			CommitFreq:       50,
			ReconnectMinWait: 10 * time.Second,
			ReconnectMaxWait: 120 * time.Second,
		},
		ExportBus: ExportBusConfig{
			QueueSize:      1000,
			SubscriberSize: 1000,
		},
		RRD: RRDConfig{
			PollInterval:  30 * time.Second,
			CheckpointDir: "/var/lib/nntsc/rrdcheckpoint",
		},
		QueryServer: QueryServerConfig{
			ListenAddr:        ":3677",
			MaxConnections:    256,
			OutgoingQueueSize: 100,
			HistoryChunkRows:  1000,
			IdleTimeout:       0,
		},
		Admin: AdminConfig{
			Enabled:    true,
			ListenAddr: ":9477",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "console",
			Caller:    false,
			Timestamp: true,
		},
	}
}

// Load layers defaults, an optional YAML config file, and environment
// variables (highest priority) into a validated Config.
func Load(explicitPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := explicitPath
	if configPath == "" {
		configPath = findConfigFile()
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("NNTSC_", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"collections",
}

// processSliceFields converts comma-separated env values into slices for
// fields koanf's struct tags can't infer a slice shape for on their own.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envKeyMappings maps the flattened, lowercased environment variable name
// (with the NNTSC_ prefix stripped) to its koanf dotted path. An explicit
// table is used rather than a blind underscore-to-dot rewrite because field
// names like max_open_conns are themselves underscore-separated.
var envKeyMappings = map[string]string{
	"database_host":              "database.host",
	"database_port":              "database.port",
	"database_name":              "database.name",
	"database_user":              "database.user",
	"database_password":          "database.password",
	"database_ssl_mode":          "database.ssl_mode",
	"database_max_open_conns":    "database.max_open_conns",
	"database_max_idle_conns":    "database.max_idle_conns",
	"database_conn_max_lifetime": "database.conn_max_lifetime",
	"database_cursor_batch_size": "database.cursor_batch_size",

	"broker_host":               "broker.host",
	"broker_port":               "broker.port",
	"broker_vhost":              "broker.vhost",
	"broker_user":               "broker.user",
	"broker_password":           "broker.password",
	"broker_ssl":                "broker.ssl",
	"broker_queue":              "broker.queue",
	"broker_exchange":           "broker.exchange",
	"broker_commit_freq":        "broker.commit_freq",
	"broker_reconnect_min_wait": "broker.reconnect_min_wait",
	"broker_reconnect_max_wait": "broker.reconnect_max_wait",

	"exportbus_queue_size":      "exportbus.queue_size",
	"exportbus_subscriber_size": "exportbus.subscriber_size",

	"rrd_poll_interval":   "rrd.poll_interval",
	"rrd_checkpoint_dir":  "rrd.checkpoint_dir",

	"queryserver_listen_addr":         "queryserver.listen_addr",
	"queryserver_max_connections":     "queryserver.max_connections",
	"queryserver_outgoing_queue_size": "queryserver.outgoing_queue_size",
	"queryserver_history_chunk_rows":  "queryserver.history_chunk_rows",
	"queryserver_idle_timeout":        "queryserver.idle_timeout",

	"admin_enabled":     "admin.enabled",
	"admin_listen_addr": "admin.listen_addr",

	"logging_level":     "logging.level",
	"logging_format":    "logging.format",
	"logging_caller":    "logging.caller",
	"logging_timestamp": "logging.timestamp",

	"collections": "collections",
}

// envTransformFunc maps NNTSC_DATABASE_HOST style env vars onto
// database.host koanf paths via envKeyMappings, falling back to a plain
// lowercase pass-through for unrecognised names.
func envTransformFunc(key string) string {
	key = strings.TrimPrefix(key, "NNTSC_")
	key = strings.ToLower(key)
	if mapped, ok := envKeyMappings[key]; ok {
		return mapped
	}
	return key
}
