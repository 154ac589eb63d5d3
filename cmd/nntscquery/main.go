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

// Command nntscquery is a reference client for the NNTSC query protocol,
// the Go analogue of original_source/clientapi/src/nntscclient.py: it
// connects, performs the VERSION_CHECK handshake, sends one REQUEST, and
// prints whatever reply the server sends back. It exists to exercise
// internal/protocol end-to-end and as a debugging aid, not as a full
// client library.
package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/wanduow/nntsc/internal/protocol"
)

func main() {
	os.Exit(run())
}

func run() int {
	var addr string
	var timeout time.Duration

	root := &cobra.Command{
		Use:           "nntscquery",
		Short:         "Reference client for the NNTSC query protocol",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&addr, "addr", "localhost:3677", "nntscd query server address")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "connection and handshake timeout")

	root.AddCommand(collectionsCmd(&addr, &timeout))
	root.AddCommand(schemasCmd(&addr, &timeout))
	root.AddCommand(streamsCmd(&addr, &timeout))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func collectionsCmd(addr *string, timeout *time.Duration) *cobra.Command {
	return &cobra.Command{
		Use:   "collections",
		Short: "List every registered collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := request(*addr, *timeout, protocol.RequestBody{ReqType: protocol.ReqCollections})
			if err != nil {
				return err
			}
			cols, err := protocol.DecodeCollections(body)
			if err != nil {
				return fmt.Errorf("decode COLLECTIONS: %w", err)
			}
			return printJSON(cols)
		},
	}
}

func schemasCmd(addr *string, timeout *time.Duration) *cobra.Command {
	var colID int
	cmd := &cobra.Command{
		Use:   "schemas",
		Short: "Print a collection's stream and data table schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := request(*addr, *timeout, protocol.RequestBody{ReqType: protocol.ReqSchemas, ColID: uint32(colID)})
			if err != nil {
				return err
			}
			schema, err := protocol.DecodeSchemas(body)
			if err != nil {
				return fmt.Errorf("decode SCHEMAS: %w", err)
			}
			return printJSON(schema)
		},
	}
	cmd.Flags().IntVar(&colID, "col-id", 0, "collection ID to describe")
	return cmd
}

func streamsCmd(addr *string, timeout *time.Duration) *cobra.Command {
	var colID, minStreamID int
	cmd := &cobra.Command{
		Use:   "streams",
		Short: "List streams for a collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := request(*addr, *timeout, protocol.RequestBody{
				ReqType: protocol.ReqStreams,
				ColID:   uint32(colID),
				StartTs: uint32(minStreamID),
			})
			if err != nil {
				return err
			}
			streams, err := protocol.DecodeStreams(body)
			if err != nil {
				return fmt.Errorf("decode STREAMS: %w", err)
			}
			return printJSON(streams)
		},
	}
	cmd.Flags().IntVar(&colID, "col-id", 0, "collection ID to list streams for")
	cmd.Flags().IntVar(&minStreamID, "min-stream-id", 0, "only return streams with stream_id >= this value")
	return cmd
}

// request dials addr, performs the VERSION_CHECK handshake, sends one
// REQUEST, and returns the body of whatever single reply frame the
// server sends next.
func request(addr string, timeout time.Duration, reqBody protocol.RequestBody) ([]byte, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	hdr, versionBody, err := protocol.ReadFrame(conn)
	if err != nil {
		return nil, fmt.Errorf("read VERSION_CHECK: %w", err)
	}
	if hdr.Type != protocol.VersionCheck {
		return nil, fmt.Errorf("expected VERSION_CHECK, got message type %d", hdr.Type)
	}
	version, err := protocol.DecodeVersionCheck(versionBody)
	if err != nil {
		return nil, fmt.Errorf("decode VERSION_CHECK: %w", err)
	}
	if version != uint32(protocol.Version) {
		return nil, fmt.Errorf("server protocol version %d does not match client version %d", version, protocol.Version)
	}

	if err := protocol.WriteFrame(conn, protocol.Request, reqBody.Encode()); err != nil {
		return nil, fmt.Errorf("write REQUEST: %w", err)
	}

	_, body, err := protocol.ReadFrame(conn)
	if err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}
	return body, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
