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

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSlogHandlerHandleLevels(t *testing.T) {
	tests := []struct {
		level   slog.Level
		message string
		want    string
	}{
		{slog.LevelDebug, "debug message", "debug"},
		{slog.LevelInfo, "info message", "info"},
		{slog.LevelWarn, "warn message", "warn"},
		{slog.LevelError, "error message", "error"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			var buf bytes.Buffer
			h := &slogHandler{logger: zerolog.New(&buf).Level(zerolog.TraceLevel)}

			record := slog.NewRecord(time.Now(), tt.level, tt.message, 0)
			if err := h.Handle(context.Background(), record); err != nil {
				t.Fatalf("Handle: %v", err)
			}

			output := buf.String()
			if !strings.Contains(output, tt.want) || !strings.Contains(output, tt.message) {
				t.Errorf("output missing level/message: %s", output)
			}
		})
	}
}

func TestSlogHandlerEnabled(t *testing.T) {
	h := &slogHandler{logger: zerolog.New(nil).Level(zerolog.WarnLevel)}
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should be enabled at warn level")
	}
}

func TestSlogHandlerWithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	h := &slogHandler{logger: zerolog.New(&buf).Level(zerolog.TraceLevel)}

	grouped := h.WithAttrs([]slog.Attr{slog.String("service", "queryserver")}).WithGroup("conn")
	record := slog.NewRecord(time.Now(), slog.LevelInfo, "accepted", 0)
	record.AddAttrs(slog.Int("remote_port", 4242))

	if err := grouped.Handle(context.Background(), record); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "service") || !strings.Contains(output, "queryserver") {
		t.Errorf("output missing pre-configured attribute: %s", output)
	}
	if !strings.Contains(output, "conn.remote_port") {
		t.Errorf("output missing grouped key prefix: %s", output)
	}
}

func TestSlogHandlerWithGroupEmptyIsNoop(t *testing.T) {
	h := &slogHandler{logger: Logger()}
	if h.WithGroup("") != h {
		t.Error("WithGroup(\"\") should return the same handler")
	}
}

func TestNewSlogLoggerWritesThroughGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf).Level(zerolog.TraceLevel))
	t.Cleanup(func() { Init(DefaultConfig()) })

	slogger := NewSlogLogger()
	slogger.Info("bridged via slog")

	if !strings.Contains(buf.String(), "bridged via slog") {
		t.Errorf("expected message to reach zerolog output: %s", buf.String())
	}
}
