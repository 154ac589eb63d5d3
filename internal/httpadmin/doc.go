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

// Package httpadmin serves cmd/nntscd's ambient HTTP surface: a
// liveness/readiness check at /healthz and Prometheus scrape target at
// /metrics. It carries no domain routes of its own; the wire protocol
// lives entirely in internal/queryserver's TCP server.
package httpadmin
