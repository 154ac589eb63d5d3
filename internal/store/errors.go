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
	"errors"
	"strings"

	"github.com/lib/pq"
)

// Code is a discriminated result code returned by every store operation in
// place of ad-hoc error wrapping. Callers switch on Code to decide whether
// to retry, skip, or abort, matching the recovery policy a given class of
// failure warrants.
type Code int

const (
	// NoError indicates the operation completed successfully.
	NoError Code = iota
	// Operational indicates a transient, retryable failure: the connection
	// dropped, the server is unreachable, a deadlock was detected.
	Operational
	// DataError indicates the caller supplied data the store cannot accept
	// (wrong type, missing column, malformed payload). Retrying the same
	// input will not help.
	DataError
	// DuplicateKey indicates a unique constraint was violated. For
	// insert_stream this is not actually an error: the caller should look
	// up and reuse the existing row.
	DuplicateKey
	// QueryTimeout indicates a query exceeded its deadline and was
	// cancelled.
	QueryTimeout
	// Interrupted indicates the operation was aborted by a context
	// cancellation unrelated to a timeout (caller shutdown).
	Interrupted
	// CodingError indicates a bug in the caller: a malformed SQL fragment,
	// a schema invariant violated internally. Never expected in production.
	CodingError
	// Generic covers any error that doesn't fit the above classes.
	Generic
)

func (c Code) String() string {
	switch c {
	case NoError:
		return "NO_ERROR"
	case Operational:
		return "OPERATIONAL"
	case DataError:
		return "DATA_ERROR"
	case DuplicateKey:
		return "DUPLICATE_KEY"
	case QueryTimeout:
		return "QUERY_TIMEOUT"
	case Interrupted:
		return "INTERRUPTED"
	case CodingError:
		return "CODING_ERROR"
	default:
		return "GENERIC"
	}
}

// Error wraps a Code with the underlying cause. It implements the error
// interface so store functions can be used with normal Go error handling
// while still exposing the discriminated Code to callers that want it.
type Error struct {
	Code  Code
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Code.String()
	}
	return e.Code.String() + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, store.DuplicateKey) style comparisons against a
// bare Code by wrapping it first with AsCode.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// AsCode wraps a Code in a comparable *Error for use with errors.Is.
func AsCode(c Code) error { return &Error{Code: c} }

// WrapError classifies a raw driver/context error into a Code and returns
// the corresponding *Error. A nil input returns nil.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	var storeErr *Error
	if errors.As(err, &storeErr) {
		return storeErr
	}
	return &Error{Code: classify(err), Cause: err}
}

// CodeOf extracts the Code from err, returning Generic if err does not wrap
// a *Error.
func CodeOf(err error) Code {
	if err == nil {
		return NoError
	}
	var storeErr *Error
	if errors.As(err, &storeErr) {
		return storeErr.Code
	}
	return Generic
}

func classify(err error) Code {
	if errors.Is(err, context.Canceled) {
		return Interrupted
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return QueryTimeout
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "23": // integrity_constraint_violation
			if pqErr.Code == "23505" {
				return DuplicateKey
			}
			return DataError
		case "22": // data_exception
			return DataError
		case "08", "57": // connection_exception, operator_intervention
			return Operational
		case "40": // transaction_rollback (serialization failure, deadlock)
			return Operational
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "broken pipe"),
		strings.Contains(msg, "bad connection"),
		strings.Contains(msg, "database is closed"),
		strings.Contains(msg, "eof"):
		return Operational
	case strings.Contains(msg, "timeout"):
		return QueryTimeout
	}

	return Generic
}
