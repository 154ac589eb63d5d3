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

package supervisor

import "context"

// busRunner matches *exportbus.Bus's Run method. The interface avoids a
// direct import of internal/exportbus, keeping this wrapper testable
// with a fake.
type busRunner interface {
	Run(ctx context.Context) error
}

// ExportBusService adapts an *exportbus.Bus (method Run) to
// suture.Service (method Serve), so the bus's drain loop can be added to
// the tree's export layer with AddExport.
type ExportBusService struct {
	bus busRunner
}

// NewExportBusService wraps bus for supervision.
func NewExportBusService(bus busRunner) *ExportBusService {
	return &ExportBusService{bus: bus}
}

// Serve implements suture.Service by delegating to the bus's Run loop.
func (s *ExportBusService) Serve(ctx context.Context) error {
	return s.bus.Run(ctx)
}

// String implements fmt.Stringer for suture's log output.
func (s *ExportBusService) String() string {
	return "export-bus"
}
