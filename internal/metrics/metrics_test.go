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

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(g prometheus.Gauge) float64 {
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

func TestBrokerReconnectsIncrements(t *testing.T) {
	before := counterValue(BrokerReconnects)
	BrokerReconnects.Inc()
	after := counterValue(BrokerReconnects)
	if after != before+1 {
		t.Errorf("BrokerReconnects = %v after Inc, want %v", after, before+1)
	}
}

func TestQueryServerConnectionsTracksIncDec(t *testing.T) {
	before := gaugeValue(QueryServerConnections)
	QueryServerConnections.Inc()
	QueryServerConnections.Inc()
	QueryServerConnections.Dec()
	after := gaugeValue(QueryServerConnections)
	if after != before+1 {
		t.Errorf("QueryServerConnections = %v, want %v", after, before+1)
	}
	QueryServerConnections.Dec()
}
