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
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wanduow/nntsc/internal/logging"
)

// healthResponse is /healthz's body, deliberately minimal: cmd/nntscd
// has no caller depending on a richer shape the way the teacher's
// models.APIResponse envelope serves its many analytics endpoints.
type healthResponse struct {
	Status    string    `json:"status"`
	Database  bool      `json:"database_connected"`
	UptimeSec float64   `json:"uptime_seconds"`
	Checked   time.Time `json:"checked_at"`
}

func newRouter(s *Server, checker Checker) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Route("/healthz", func(r chi.Router) {
		// Permissive rate limit: monitoring probes hit this far more
		// often than any other NNTSC endpoint.
		r.Use(httprate.LimitByIP(1000, time.Minute))
		r.Get("/", healthzHandler(s, checker))
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

func healthzHandler(s *Server, checker Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbOK := checker == nil
		if checker != nil {
			dbOK = checker.Ping(r.Context()) == nil
		}

		status := http.StatusOK
		statusText := "healthy"
		if !dbOK {
			status = http.StatusServiceUnavailable
			statusText = "degraded"
		}

		resp := healthResponse{
			Status:    statusText,
			Database:  dbOK,
			UptimeSec: time.Since(s.startTime).Seconds(),
			Checked:   time.Now(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logging.Error().Err(err).Msg("httpadmin: failed to encode /healthz response")
		}
	}
}
