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

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Cursor wraps a Postgres server-side cursor declared inside a dedicated
// read-only transaction. The query server holds one Cursor per in-flight
// HISTORY/AGGREGATE/PERCENTILE request so large result sets can be
// streamed to the client in bounded chunks instead of being materialised
// in memory all at once.
type Cursor struct {
	tx     *sql.Tx
	name   string
	closed bool
}

// openCursor begins a new read-only transaction and declares a uniquely
// named, forward-only (NO SCROLL) cursor over query. The cursor is declared
// without HOLD: its whole lifetime stays within that one transaction, which
// keeps the transaction (and therefore any snapshot-held locks) explicit
// and short-lived under the caller's control.
func (s *Store) openCursor(ctx context.Context, query string, args ...interface{}) (*Cursor, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, WrapError(err)
	}

	name := "nntsc_cur_" + uuid.NewString()[:8]
	declare := fmt.Sprintf("DECLARE %s NO SCROLL CURSOR FOR %s", name, query)
	if _, err := tx.ExecContext(ctx, declare, args...); err != nil {
		_ = tx.Rollback()
		return nil, WrapError(err)
	}

	return &Cursor{tx: tx, name: name}, nil
}

// Fetch retrieves up to n more rows from the cursor. A returned *sql.Rows
// with zero rows (caller must check via rows.Next returning false) signals
// the cursor is exhausted.
func (c *Cursor) Fetch(ctx context.Context, n int) (*sql.Rows, error) {
	if c.closed {
		return nil, WrapError(&Error{Code: CodingError, Cause: fmt.Errorf("fetch on closed cursor %s", c.name)})
	}
	rows, err := c.tx.QueryContext(ctx, fmt.Sprintf("FETCH %d FROM %s", n, c.name))
	if err != nil {
		return nil, WrapError(err)
	}
	return rows, nil
}

// Close releases the cursor and ends its transaction. Safe to call more
// than once.
func (c *Cursor) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true
	_, _ = c.tx.ExecContext(ctx, fmt.Sprintf("CLOSE %s", c.name))
	if err := c.tx.Commit(); err != nil {
		return WrapError(err)
	}
	return nil
}
