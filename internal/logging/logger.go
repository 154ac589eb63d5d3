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

// Package logging wraps zerolog with NNTSC's preferred defaults: a global,
// swappable logger configured once at startup and used throughout the
// daemons and query server.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config controls how the global logger is constructed.
type Config struct {
	// Level is one of trace, debug, info, warn, error, fatal, panic, disabled.
	Level string
	// Format is either "console" (human-readable) or "json".
	Format string
	// Caller adds the calling file:line to every log entry.
	Caller bool
	// Timestamp adds a timestamp field to every log entry.
	Timestamp bool
	// Output overrides the writer entries are sent to. Defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns sane defaults for interactive use.
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Format:    "console",
		Caller:    false,
		Timestamp: true,
		Output:    os.Stderr,
	}
}

var (
	log zerolog.Logger
	mu  sync.RWMutex
)

func init() {
	initLogger(DefaultConfig())
}

// Init (re)configures the global logger. Safe to call concurrently.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	initLogger(cfg)
}

func initLogger(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "console"
	}

	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	zerolog.TimestampFieldName = "ts"
	zerolog.LevelFieldName = "level"
	zerolog.MessageFieldName = "msg"
	zerolog.ErrorFieldName = "error"
	zerolog.CallerFieldName = "caller"

	var writer io.Writer = cfg.Output
	if cfg.Format == "console" {
		writer = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(writer).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	if cfg.Caller {
		ctx = ctx.Caller()
	}

	log = ctx.Logger().Level(level)
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Logger returns the current global logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// SetLogger replaces the global logger directly, bypassing Config. Mainly
// useful for tests that want zerolog's test writer.
func SetLogger(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	log = l
}

// With starts a sub-logger context from the global logger.
func With() zerolog.Context {
	return Logger().With()
}

// Trace starts a new trace-level log event.
func Trace() *zerolog.Event { return Logger().Trace() }

// Debug starts a new debug-level log event.
func Debug() *zerolog.Event { return Logger().Debug() }

// Info starts a new info-level log event.
func Info() *zerolog.Event { return Logger().Info() }

// Warn starts a new warn-level log event.
func Warn() *zerolog.Event { return Logger().Warn() }

// Error starts a new error-level log event.
func Error() *zerolog.Event { return Logger().Error() }

// Err starts an error-level log event pre-populated with err.
func Err(err error) *zerolog.Event { return Logger().Err(err) }

// NewTestLogger returns a logger that writes JSON lines to w, for use in
// tests that want to assert on log output.
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}
