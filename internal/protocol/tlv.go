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
	"encoding/binary"
	"fmt"
	"math"
	"reflect"

	"github.com/lib/pq"
)

// tlvWriter builds a message body as a sequence of tag:u8 | len:u16 | value
// fields. Tag meanings are fixed per message type (see messages.go); this
// type only knows how to frame values, not what they mean.
type tlvWriter struct {
	buf []byte
}

func newTLVWriter() *tlvWriter { return &tlvWriter{} }

func (w *tlvWriter) field(tag byte, value []byte) {
	w.buf = append(w.buf, tag)
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(value)))
	w.buf = append(w.buf, lenBuf[:]...)
	w.buf = append(w.buf, value...)
}

func (w *tlvWriter) uint32(tag byte, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.field(tag, b[:])
}

func (w *tlvWriter) int64(tag byte, v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	w.field(tag, b[:])
}

func (w *tlvWriter) float64(tag byte, v float64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
	w.field(tag, b[:])
}

func (w *tlvWriter) bool(tag byte, v bool) {
	if v {
		w.field(tag, []byte{1})
	} else {
		w.field(tag, []byte{0})
	}
}

func (w *tlvWriter) str(tag byte, v string) {
	w.field(tag, []byte(v))
}

func (w *tlvWriter) bytes() []byte { return w.buf }

// tlvReader parses a sequence of fields written by tlvWriter.
type tlvReader struct {
	buf []byte
	pos int
}

func newTLVReader(body []byte) *tlvReader { return &tlvReader{buf: body} }

// next returns the next field's tag and value, or ok=false at end of buffer.
func (r *tlvReader) next() (tag byte, value []byte, ok bool, err error) {
	if r.pos >= len(r.buf) {
		return 0, nil, false, nil
	}
	if r.pos+3 > len(r.buf) {
		return 0, nil, false, fmt.Errorf("protocol: truncated field header at offset %d", r.pos)
	}
	tag = r.buf[r.pos]
	length := int(binary.BigEndian.Uint16(r.buf[r.pos+1 : r.pos+3]))
	start := r.pos + 3
	end := start + length
	if end > len(r.buf) {
		return 0, nil, false, fmt.Errorf("protocol: field tag %d declares length %d past end of body", tag, length)
	}
	r.pos = end
	return tag, r.buf[start:end], true, nil
}

func decodeUint32(v []byte) (uint32, error) {
	if len(v) != 4 {
		return 0, fmt.Errorf("protocol: expected 4-byte uint32 field, got %d bytes", len(v))
	}
	return binary.BigEndian.Uint32(v), nil
}

func decodeInt64(v []byte) (int64, error) {
	if len(v) != 8 {
		return 0, fmt.Errorf("protocol: expected 8-byte int64 field, got %d bytes", len(v))
	}
	return int64(binary.BigEndian.Uint64(v)), nil
}

func decodeFloat64(v []byte) (float64, error) {
	if len(v) != 8 {
		return 0, fmt.Errorf("protocol: expected 8-byte float64 field, got %d bytes", len(v))
	}
	return math.Float64frombits(binary.BigEndian.Uint64(v)), nil
}

func decodeBool(v []byte) (bool, error) {
	if len(v) != 1 {
		return false, fmt.Errorf("protocol: expected 1-byte bool field, got %d bytes", len(v))
	}
	return v[0] != 0, nil
}

// value is a dynamically typed row cell: a measurement column value that
// may be an integer, a float, a string, a bool, an array of one of those
// (nullable elements included), or absent entirely (SQL NULL).
type value struct {
	kind  valueKind
	i     int64
	f     float64
	s     string
	b     bool
	arr   []*value // nil elements represent SQL NULL within the array
}

type valueKind byte

const (
	valueNull valueKind = iota
	valueInt
	valueFloat
	valueString
	valueBool
	valueArray
)

// encodeValue converts a Go value (as stored in a store.DataRow.Values map)
// into the wire value representation. Supported shapes mirror what the
// parser package ever writes: ints, floats, strings, bools, pointers to
// any of those (nil meaning SQL NULL), slices of any of those (named slice
// types such as pq's array types included, possibly-nil elements allowed),
// and pq.GenericArray wrapping such a slice.
func encodeValue(v interface{}) (*value, error) {
	switch t := v.(type) {
	case nil:
		return &value{kind: valueNull}, nil
	case int:
		return &value{kind: valueInt, i: int64(t)}, nil
	case int64:
		return &value{kind: valueInt, i: t}, nil
	case *int:
		if t == nil {
			return &value{kind: valueNull}, nil
		}
		return &value{kind: valueInt, i: int64(*t)}, nil
	case *int64:
		if t == nil {
			return &value{kind: valueNull}, nil
		}
		return &value{kind: valueInt, i: *t}, nil
	case float64:
		return &value{kind: valueFloat, f: t}, nil
	case *float64:
		if t == nil {
			return &value{kind: valueNull}, nil
		}
		return &value{kind: valueFloat, f: *t}, nil
	case string:
		return &value{kind: valueString, s: t}, nil
	case bool:
		return &value{kind: valueBool, b: t}, nil
	case []interface{}:
		arr := make([]*value, len(t))
		for i, elem := range t {
			ev, err := encodeValue(elem)
			if err != nil {
				return nil, err
			}
			arr[i] = ev
		}
		return &value{kind: valueArray, arr: arr}, nil
	case []int:
		arr := make([]*value, len(t))
		for i, elem := range t {
			arr[i] = &value{kind: valueInt, i: int64(elem)}
		}
		return &value{kind: valueArray, arr: arr}, nil
	case pq.GenericArray:
		return encodeValue(t.A)
	default:
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Slice {
			arr := make([]*value, rv.Len())
			for i := range arr {
				ev, err := encodeValue(rv.Index(i).Interface())
				if err != nil {
					return nil, err
				}
				arr[i] = ev
			}
			return &value{kind: valueArray, arr: arr}, nil
		}
		return nil, fmt.Errorf("protocol: unsupported row value type %T", v)
	}
}

func (v *value) encode() []byte {
	w := newTLVWriter()
	switch v.kind {
	case valueNull:
	case valueInt:
		w.int64(1, v.i)
	case valueFloat:
		w.float64(1, v.f)
	case valueString:
		w.str(1, v.s)
	case valueBool:
		w.bool(1, v.b)
	case valueArray:
		for _, elem := range v.arr {
			w.field(1, elem.encodeTagged())
		}
	}
	return append([]byte{byte(v.kind)}, w.bytes()...)
}

// encodeTagged returns encode()'s output unchanged: its leading kind byte
// already lets array elements (which may each be of a different kind,
// including null) self-describe.
func (v *value) encodeTagged() []byte {
	return v.encode()
}

func decodeValueBytes(body []byte) (*value, error) {
	if len(body) == 0 {
		return &value{kind: valueNull}, nil
	}
	kind := valueKind(body[0])
	rest := body[1:]

	if kind == valueNull {
		return &value{kind: valueNull}, nil
	}
	if kind == valueArray {
		r := newTLVReader(rest)
		var arr []*value
		for {
			_, elemBody, ok, err := r.next()
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			elem, err := decodeValueBytes(elemBody)
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return &value{kind: valueArray, arr: arr}, nil
	}

	r := newTLVReader(rest)
	_, fieldBody, ok, err := r.next()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("protocol: value of kind %d missing its payload field", kind)
	}
	switch kind {
	case valueInt:
		i, err := decodeInt64(fieldBody)
		if err != nil {
			return nil, err
		}
		return &value{kind: valueInt, i: i}, nil
	case valueFloat:
		f, err := decodeFloat64(fieldBody)
		if err != nil {
			return nil, err
		}
		return &value{kind: valueFloat, f: f}, nil
	case valueString:
		return &value{kind: valueString, s: string(fieldBody)}, nil
	case valueBool:
		b, err := decodeBool(fieldBody)
		if err != nil {
			return nil, err
		}
		return &value{kind: valueBool, b: b}, nil
	default:
		return nil, fmt.Errorf("protocol: unknown value kind %d", kind)
	}
}

// toInterface converts a decoded value back to the same shapes
// encodeValue accepts, so callers round-trip through interface{} rather
// than through the unexported value type.
func (v *value) toInterface() interface{} {
	switch v.kind {
	case valueNull:
		return nil
	case valueInt:
		return v.i
	case valueFloat:
		return v.f
	case valueString:
		return v.s
	case valueBool:
		return v.b
	case valueArray:
		out := make([]interface{}, len(v.arr))
		for i, elem := range v.arr {
			out[i] = elem.toInterface()
		}
		return out
	default:
		return nil
	}
}
