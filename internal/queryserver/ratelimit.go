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

package queryserver

import (
	"net"
	"sync"

	"golang.org/x/time/rate"
)

// connRateLimiter bounds how fast a single remote address may open new
// connections to the query server, the TCP-accept-loop analogue of the
// teacher's per-IP HTTP rate limiting (internal/api/chi_middleware.go's
// RateLimitByIP). A misbehaving or looping client hammering Accept()
// cannot starve the connection semaphore for every other client.
type connRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newConnRateLimiter(connsPerSecond float64, burst int) *connRateLimiter {
	if connsPerSecond <= 0 {
		connsPerSecond = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &connRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(connsPerSecond),
		burst:    burst,
	}
}

// allow reports whether a new connection from addr's host may proceed.
func (l *connRateLimiter) allow(addr net.Addr) bool {
	host := hostOf(addr)

	l.mu.Lock()
	lim, ok := l.limiters[host]
	if !ok {
		lim = rate.NewLimiter(l.rate, l.burst)
		l.limiters[host] = lim
	}
	l.mu.Unlock()

	return lim.Allow()
}

func hostOf(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
