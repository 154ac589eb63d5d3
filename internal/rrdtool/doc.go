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

// Package rrdtool implements internal/rrdpoll.RRDReader by shelling out
// to the rrdtool command-line binary. The reference implementation
// binds directly to librrd via Python's rrdtool C extension
// (original_source/dataparsers/rrd.py calls rrdtool.info/last/fetch);
// no Go package in the example corpus wraps librrd, and cgo bindings
// are out of keeping with the rest of this module, so this package
// parses the same CLI rrdtool ships everywhere python-rrdtool does.
package rrdtool
