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

// Package supervisor builds the suture supervision tree cmd/nntscd runs
// under: the broker consumer and RRD poller (ingest), the export bus
// (export), and the query server plus admin HTTP endpoint (api), each
// isolated so that a crash in one layer doesn't take down the others.
//
//	RootSupervisor ("nntscd")
//	├── IngestSupervisor ("ingest-layer")
//	│   ├── broker.Consumer
//	│   └── rrdpoll.Poller
//	├── ExportSupervisor ("export-layer")
//	│   └── exportbus.Bus
//	└── APISupervisor ("api-layer")
//	    ├── queryserver.Server
//	    └── httpadmin.Server
//
// A service that returns nil from Serve is considered stopped on purpose
// and isn't restarted; a returned error is treated as a crash and the
// service is restarted, pausing for Config.FailureBackoff once the decayed
// failure count passes Config.FailureThreshold (spec.md's ingestion daemon is
// expected to run indefinitely, so in practice only context
// cancellation should produce a clean nil return).
package supervisor
