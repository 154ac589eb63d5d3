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

// Package testinfra provides Docker-backed test fixtures (a disposable
// Postgres and RabbitMQ instance) for integration tests. The fixture code
// (containers.go) carries the "integration" build tag so `go test ./...`
// skips it by default; run with `-tags integration` once Docker is available.
package testinfra
