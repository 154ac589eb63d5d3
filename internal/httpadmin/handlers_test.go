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

package httpadmin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wanduow/nntsc/internal/config"
)

type fakeChecker struct {
	err error
}

func (f fakeChecker) Ping(ctx context.Context) error {
	return f.err
}

func TestHealthzHealthyWithNilChecker(t *testing.T) {
	s := NewServer(config.AdminConfig{ListenAddr: "127.0.0.1:0"}, nil)
	router := newRouter(s, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "healthy" || !body.Database {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestHealthzDegradedWhenCheckerFails(t *testing.T) {
	s := NewServer(config.AdminConfig{ListenAddr: "127.0.0.1:0"}, nil)
	router := newRouter(s, fakeChecker{err: errors.New("connection refused")})

	req := httptest.NewRequest(http.MethodGet, "/healthz/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	var body healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "degraded" || body.Database {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestHealthzHealthyWhenCheckerSucceeds(t *testing.T) {
	s := NewServer(config.AdminConfig{ListenAddr: "127.0.0.1:0"}, nil)
	router := newRouter(s, fakeChecker{})

	req := httptest.NewRequest(http.MethodGet, "/healthz/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	s := NewServer(config.AdminConfig{ListenAddr: "127.0.0.1:0"}, nil)
	router := newRouter(s, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct == "" {
		t.Error("expected a Content-Type header from promhttp")
	}
}

func TestUptimeIncreasesAfterStartTime(t *testing.T) {
	s := NewServer(config.AdminConfig{ListenAddr: "127.0.0.1:0"}, nil)
	time.Sleep(time.Millisecond)
	if time.Since(s.startTime) <= 0 {
		t.Error("expected positive uptime")
	}
}
