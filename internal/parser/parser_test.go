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

package parser

import (
	"testing"

	"github.com/lib/pq"
)

func TestMedianOddAndEven(t *testing.T) {
	if got := median([]int{120, 130, 140}); got == nil || *got != 130 {
		t.Fatalf("median(odd) = %v, want 130", got)
	}
	if got := median([]int{100, 200}); got == nil || *got != 150 {
		t.Fatalf("median(even) = %v, want 150", got)
	}
	if got := median(nil); got != nil {
		t.Fatalf("median(empty) = %v, want nil", got)
	}
}

func TestDeriveFamily(t *testing.T) {
	if got := deriveFamily("10.0.0.1"); got != "ipv4" {
		t.Fatalf("deriveFamily(ipv4) = %q", got)
	}
	if got := deriveFamily("2001:db8::1"); got != "ipv6" {
		t.Fatalf("deriveFamily(ipv6) = %q", got)
	}
}

func TestAddMaybeNoneAccumulates(t *testing.T) {
	var acc *int
	acc = addMaybeNone(acc, 1)
	acc = addMaybeNone(acc, 2)
	if acc == nil || *acc != 3 {
		t.Fatalf("addMaybeNone accumulated = %v, want 3", acc)
	}
}

func TestWithNullPadding(t *testing.T) {
	out := withNullPadding([]int{1, 2}, 2)
	if len(out) != 4 {
		t.Fatalf("len(out) = %d, want 4", len(out))
	}
	if out[0] != 1 || out[1] != 2 {
		t.Fatalf("unexpected leading values: %v", out)
	}
	if out[2] != nil || out[3] != nil {
		t.Fatalf("expected trailing nulls, got %v", out[2:])
	}
}

func TestReduceTcppingAccumMedianExcludesLossPadding(t *testing.T) {
	loss := 1
	results := 4
	acc := &tcppingAccum{
		rtts:       []int{140, 100, 120},
		loss:       &loss,
		icmpErrors: nil,
		results:    &results,
		packetSize: "64",
	}

	row := reduceTcppingAccum(acc)

	if got := row["median"]; got != 120 {
		t.Fatalf("median = %v, want 120 (of sorted [100,120,140], unaffected by loss padding)", got)
	}
	if got := row["lossrate"].(*float64); got == nil || *got != 0.25 {
		t.Fatalf("lossrate = %v, want 0.25", got)
	}

	arr := row["rtts"].(pq.GenericArray).A.([]interface{})
	if len(arr) != 4 {
		t.Fatalf("len(rtts) = %d, want 4 (3 samples + 1 null for the lost probe)", len(arr))
	}
	if arr[3] != nil {
		t.Fatalf("expected trailing null for the lost probe, got %v", arr[3])
	}
}

func TestRoundTo(t *testing.T) {
	if got := roundTo(0.1234561, 6); got != 0.123456 {
		t.Fatalf("roundTo = %v, want 0.123456", got)
	}
}
