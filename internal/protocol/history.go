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

package protocol

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// historyCompressionLevel matches the reference implementation's choice
// of a fast, middling compression ratio: HISTORY chunks are numerous and
// latency-sensitive, so default-to-max compression isn't worth the CPU.
const historyCompressionLevel = flate.DefaultCompression

// EncodeHistoryFrame encodes a HistoryMessage and deflate-compresses the
// result, returning a body ready to pass to WriteFrame with type History.
// HISTORY is the only message type compressed on the wire: its chunks
// dominate total traffic, while every other message type is small and
// infrequent enough that compressing it would cost more CPU than it
// saves in bytes.
func EncodeHistoryFrame(m HistoryMessage) ([]byte, error) {
	raw, err := EncodeHistoryBody(m)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, historyCompressionLevel)
	if err != nil {
		return nil, fmt.Errorf("protocol: creating flate writer: %w", err)
	}
	if _, err := fw.Write(raw); err != nil {
		return nil, fmt.Errorf("protocol: compressing HISTORY body: %w", err)
	}
	if err := fw.Close(); err != nil {
		return nil, fmt.Errorf("protocol: flushing HISTORY body: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeHistoryFrame inflates a compressed HISTORY body and decodes it.
func DecodeHistoryFrame(body []byte) (HistoryMessage, error) {
	fr := flate.NewReader(bytes.NewReader(body))
	defer fr.Close()

	raw, err := io.ReadAll(fr)
	if err != nil {
		return HistoryMessage{}, fmt.Errorf("protocol: inflating HISTORY body: %w", err)
	}
	return DecodeHistoryBody(raw)
}
