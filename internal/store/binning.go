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

package store

import (
	"fmt"
	"sort"
)

// minCadence is the lowest cadence InferCadence will ever report: bursts of
// closely spaced samples (retries, startup catch-up) should never collapse
// the inferred reporting interval below five minutes.
const minCadence = 300

// AggFunc names one of the aggregation functions the query server's
// AGGREGATE and PERCENTILE requests can apply to a data column.
type AggFunc string

const (
	AggMin       AggFunc = "min"
	AggMax       AggFunc = "max"
	AggAvg       AggFunc = "avg"
	AggSum       AggFunc = "sum"
	AggCount     AggFunc = "count"
	AggStddev    AggFunc = "stddev"
	AggMost      AggFunc = "most"
	AggMostArray AggFunc = "most_array"
)

// InferCadence estimates a stream's natural reporting interval from a
// sample of its recent timestamps, for use as a default bin size when a
// caller doesn't supply one explicitly.
//
// It takes the mode of the gaps between consecutive, sorted, de-duplicated
// timestamps. If that mode accounts for at least 90% of all gaps the stream
// is considered strictly periodic and the mode is used directly. Between
// 50% and 90% the stream is considered periodic with occasional missed
// reports, and the mode is still used. Below 50% the series is too
// irregular to trust a single mode, so the median gap is used instead. The
// result is always clamped to at least minCadence seconds so a burst of
// closely spaced samples can never produce a sub-five-minute bin size.
func InferCadence(timestamps []int64) int64 {
	uniq := dedupSorted(timestamps)
	if len(uniq) < 2 {
		return minCadence
	}

	gaps := make([]int64, 0, len(uniq)-1)
	for i := 1; i < len(uniq); i++ {
		gaps = append(gaps, uniq[i]-uniq[i-1])
	}

	counts := make(map[int64]int, len(gaps))
	for _, g := range gaps {
		counts[g]++
	}

	var modeGap int64
	var modeCount int
	for g, c := range counts {
		if c > modeCount || (c == modeCount && g < modeGap) {
			modeGap, modeCount = g, c
		}
	}

	ratio := float64(modeCount) / float64(len(gaps))
	var cadence int64
	if ratio >= 0.5 {
		cadence = modeGap
	} else {
		cadence = medianOf(gaps)
	}

	if cadence < minCadence {
		cadence = minCadence
	}
	return cadence
}

func dedupSorted(ts []int64) []int64 {
	cp := append([]int64(nil), ts...)
	sort.Slice(cp, func(i, j int) bool { return cp[i] < cp[j] })
	out := cp[:0]
	for i, v := range cp {
		if i == 0 || v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

func medianOf(vals []int64) int64 {
	cp := append([]int64(nil), vals...)
	sort.Slice(cp, func(i, j int) bool { return cp[i] < cp[j] })
	n := len(cp)
	if n == 0 {
		return minCadence
	}
	if n%2 == 1 {
		return cp[n/2]
	}
	return (cp[n/2-1] + cp[n/2]) / 2
}

// AggregateExpr returns the SQL expression that computes aggfunc over
// column when building an AGGREGATE/PERCENTILE response. most and
// most_array have no single built-in Postgres equivalent, so they expand
// to MODE() WITHIN GROUP expressions; most_array additionally wraps its
// column in array_to_string/string_to_array so the mode is taken over
// whole arrays rather than individual elements. Both are plain scalar
// GROUP BY aggregates, usable directly alongside MIN/MAX/etc.
func AggregateExpr(aggfunc AggFunc, column string) (string, error) {
	col := quoteIdent(column)
	switch aggfunc {
	case AggMin:
		return fmt.Sprintf("MIN(%s)", col), nil
	case AggMax:
		return fmt.Sprintf("MAX(%s)", col), nil
	case AggAvg:
		return fmt.Sprintf("AVG(%s)", col), nil
	case AggSum:
		return fmt.Sprintf("SUM(%s)", col), nil
	case AggCount:
		return fmt.Sprintf("COUNT(%s)", col), nil
	case AggStddev:
		return fmt.Sprintf("STDDEV(%s)", col), nil
	case AggMost:
		return fmt.Sprintf("MODE() WITHIN GROUP (ORDER BY %s)", col), nil
	case AggMostArray:
		// most_array has no single built-in aggregate: string-join each
		// row's array with a comma, take the mode of those strings across
		// the bin, then split the winning string back into an array. This
		// returns the single most common whole array, matching a plain
		// MODE() applied to array_to_string(col, ',').
		return fmt.Sprintf("string_to_array(MODE() WITHIN GROUP (ORDER BY array_to_string(%s, ',')), ',')", col), nil
	default:
		return "", WrapError(&Error{Code: DataError, Cause: fmt.Errorf("unsupported aggregate function %q", aggfunc)})
	}
}
