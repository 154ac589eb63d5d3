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
	"strings"
	"testing"
)

func TestInitConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "console", Output: &buf})
	Info().Msg("hello")
	if !strings.Contains(buf.String(), "hello") {
		t.Fatalf("expected output to contain message, got %q", buf.String())
	}
}

func TestInitJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Format: "json", Output: &buf})
	Error().Msg("boom")
	if !strings.Contains(buf.String(), `"msg":"boom"`) {
		t.Fatalf("expected JSON msg field, got %q", buf.String())
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	if parseLevel("not-a-level").String() != "info" {
		t.Fatal("expected unknown level to default to info")
	}
}
