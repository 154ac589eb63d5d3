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
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/wanduow/nntsc/internal/config"
)

// Checker reports whether a dependency the daemon relies on is
// reachable. *store.Store satisfies this via its existing Ping method.
type Checker interface {
	Ping(ctx context.Context) error
}

// Server is cmd/nntscd's admin HTTP endpoint: /healthz and /metrics.
// Its Serve/String methods satisfy suture.Service directly, the same
// way internal/queryserver.Server and internal/rrdpoll.Poller do.
type Server struct {
	httpServer *http.Server
	startTime  time.Time
}

// NewServer builds a Server listening on cfg.ListenAddr. checker is
// consulted by /healthz; a nil checker makes /healthz report ready
// unconditionally (used in tests and standalone query-only setups).
func NewServer(cfg config.AdminConfig, checker Checker) *Server {
	s := &Server{startTime: time.Now()}
	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           newRouter(s, checker),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Serve implements suture.Service. It starts the HTTP listener and
// blocks until ctx is cancelled, then shuts the server down gracefully.
// Grounded on the teacher's internal/supervisor/services.HTTPServerService:
// ListenAndServe in a goroutine, select on ctx.Done() or a server error,
// then Shutdown with its own timeout.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("httpadmin: listen failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("httpadmin: shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

// String implements fmt.Stringer for suture's log output.
func (s *Server) String() string {
	return "httpadmin"
}
