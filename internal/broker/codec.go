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

package broker

import (
	json "github.com/goccy/go-json"

	"github.com/wanduow/nntsc/internal/exportbus"
)

// wireEvent is the JSON shape export events travel over the broker in.
// It mirrors exportbus.Event field-for-field; kept as a separate type so
// the wire format can evolve independently of the in-process Event shape.
type wireEvent struct {
	Kind       string                 `json:"kind"`
	Collection string                 `json:"collection"`
	ColID      int                    `json:"col_id"`
	StreamID   int                    `json:"stream_id"`
	Ts         int64                  `json:"ts"`
	Attrs      map[string]interface{} `json:"attrs,omitempty"`
	Row        map[string]interface{} `json:"row,omitempty"`
}

func marshalEvent(ev exportbus.Event) ([]byte, error) {
	return json.Marshal(wireEvent{
		Kind:       ev.Kind.String(),
		Collection: ev.Collection,
		ColID:      ev.ColID,
		StreamID:   ev.StreamID,
		Ts:         ev.Ts,
		Attrs:      ev.Attrs,
		Row:        ev.Row,
	})
}
