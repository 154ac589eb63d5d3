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
	"testing"
	"time"
)

func TestCronScheduleExprPicksHourlyByDefault(t *testing.T) {
	if got := cronScheduleExpr(30 * time.Minute); got != "@hourly" {
		t.Errorf("cronScheduleExpr(30m) = %q, want @hourly", got)
	}
	if got := cronScheduleExpr(time.Hour); got != "@hourly" {
		t.Errorf("cronScheduleExpr(1h) = %q, want @hourly", got)
	}
}

func TestCronScheduleExprPicksDailyAtOrAboveADay(t *testing.T) {
	if got := cronScheduleExpr(24 * time.Hour); got != "@daily" {
		t.Errorf("cronScheduleExpr(24h) = %q, want @daily", got)
	}
	if got := cronScheduleExpr(48 * time.Hour); got != "@daily" {
		t.Errorf("cronScheduleExpr(48h) = %q, want @daily", got)
	}
}

func TestColumnNameListFormatsAvgPrefix(t *testing.T) {
	cols := []Column{{Name: "median", Type: "integer"}, {Name: "loss", Type: "double precision"}}
	got := columnNameList(cols)
	want := ", avg_median, avg_loss"
	if got != want {
		t.Errorf("columnNameList() = %q, want %q", got, want)
	}
}
