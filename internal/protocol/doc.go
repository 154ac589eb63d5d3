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

// Package protocol implements the NNTSC wire protocol: a fixed 4-byte
// header (version, message type, body length) followed by a body whose
// shape depends on the message type.
//
// The reference implementation serializes bodies with a language-native
// object pickler; that is not portable, so every body here is instead a
// flat sequence of tag-length-value fields, with tags fixed per message
// type and documented alongside each message's Encode/Decode pair. This is
// a deliberate rewrite, not a wire-compatible reimplementation of the
// pickled format: see SPEC_FULL.md §6 for why a minimal TLV was chosen
// over a schema-evolving format like protobuf.
//
// HISTORY bodies are additionally deflate-compressed before framing, per
// the original protocol's "data carries a zlib-compressed payload"
// behaviour.
package protocol
