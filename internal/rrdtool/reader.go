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

package rrdtool

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/wanduow/nntsc/internal/rrdpoll"
)

// Reader implements rrdpoll.RRDReader by invoking the rrdtool binary.
type Reader struct {
	// Binary is the rrdtool executable name or path. Defaults to
	// "rrdtool" via NewReader.
	Binary string
}

// NewReader builds a Reader that invokes "rrdtool" from $PATH.
func NewReader() *Reader {
	return &Reader{Binary: "rrdtool"}
}

func (r *Reader) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, r.Binary, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("rrdtool %s: %w: %s", strings.Join(args, " "), err, stderr.String())
	}
	return out.String(), nil
}

// Info runs `rrdtool info` and extracts step and the AVERAGE RRA's row
// count (rra[0].rows, matching the reference implementation's
// assumption that RRA 0 is the finest-resolution AVERAGE archive).
func (r *Reader) Info(ctx context.Context, filename string) (rrdpoll.Info, error) {
	out, err := r.run(ctx, "info", filename)
	if err != nil {
		return rrdpoll.Info{}, err
	}

	var info rrdpoll.Info
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		switch key {
		case "step":
			v, perr := strconv.ParseInt(val, 10, 64)
			if perr == nil {
				info.StepSeconds = v
			}
		case "rra[0].rows":
			v, perr := strconv.ParseInt(val, 10, 64)
			if perr == nil {
				info.HighRows = v
			}
		}
	}
	return info, nil
}

// Last runs `rrdtool last` and returns the most recent timestamp
// rrdtool has ever written for filename.
func (r *Reader) Last(ctx context.Context, filename string) (int64, error) {
	out, err := r.run(ctx, "last", filename)
	if err != nil {
		return 0, err
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(out), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("rrdtool last: unexpected output %q: %w", out, err)
	}
	return ts, nil
}

// Fetch runs `rrdtool fetch ... AVERAGE -s startTs -e endTs` and parses
// its "timestamp: v1 v2 ..." rows, mapping rrdtool's "nan" marker to a
// nil Sample value the same way the reference implementation treats an
// RRD's unknown/NaN readings.
func (r *Reader) Fetch(ctx context.Context, filename string, startTs, endTs int64) ([]rrdpoll.Sample, error) {
	out, err := r.run(ctx, "fetch", filename, "AVERAGE",
		"-s", strconv.FormatInt(startTs, 10),
		"-e", strconv.FormatInt(endTs, 10))
	if err != nil {
		return nil, err
	}

	var samples []rrdpoll.Sample
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		tsField, rest, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		ts, perr := strconv.ParseInt(strings.TrimSpace(tsField), 10, 64)
		if perr != nil {
			continue
		}

		fields := strings.Fields(rest)
		values := make([]*float64, len(fields))
		for i, f := range fields {
			if strings.EqualFold(f, "nan") {
				values[i] = nil
				continue
			}
			v, verr := strconv.ParseFloat(f, 64)
			if verr != nil {
				continue
			}
			values[i] = &v
		}
		samples = append(samples, rrdpoll.Sample{Ts: ts, Values: values})
	}
	return samples, nil
}
