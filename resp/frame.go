// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package resp implements the RESP (REdis Serialization Protocol) frame
// model together with an incremental decoder and a non-recursive encoder.
package resp

import (
	"strings"

	"github.com/pkg/errors"
)

// Type identifies the RESP variant a Frame carries. Its value is the wire
// type marker byte.
type Type byte

const (
	TypeSimpleString Type = '+'
	TypeError        Type = '-'
	TypeInteger      Type = ':'
	TypeBulkString   Type = '$'
	TypeArray        Type = '*'
)

func (t Type) String() string {
	switch t {
	case TypeSimpleString:
		return "SimpleString"
	case TypeError:
		return "Error"
	case TypeInteger:
		return "Integer"
	case TypeBulkString:
		return "BulkString"
	case TypeArray:
		return "Array"
	default:
		return "Unknown"
	}
}

// Frame is a tagged, immutable RESP value. Zero value is not a valid
// Frame; construct one with the New* functions below.
type Frame struct {
	typ Type

	str string // SimpleString / Error payload
	num int64  // Integer payload

	bulk     []byte // BulkString payload, nil iff bulkNull
	bulkNull bool

	array     []Frame // Array payload, nil iff arrayNull or empty
	arrayNull bool
}

// Type returns the frame's RESP variant.
func (f Frame) Type() Type { return f.typ }

// IsNull reports whether f is the distinguished null bulk string or null
// array. Only BulkString and Array frames can be null; a null bulk and an
// empty bulk are distinct, as are a null array and an empty array.
func (f Frame) IsNull() bool {
	switch f.typ {
	case TypeBulkString:
		return f.bulkNull
	case TypeArray:
		return f.arrayNull
	default:
		return false
	}
}

// Str returns the payload of a SimpleString or Error frame.
func (f Frame) Str() string { return f.str }

// Int returns the payload of an Integer frame.
func (f Frame) Int() int64 { return f.num }

// Bulk returns the payload of a BulkString frame. It is nil for the null
// bulk string and a non-nil, zero-length slice for an empty bulk string;
// IsNull tells them apart without inspecting the slice.
func (f Frame) Bulk() []byte { return f.bulk }

// Array returns the elements of an Array frame. It is nil for both the
// null array and the empty array; use IsNull to tell them apart.
func (f Frame) Array() []Frame { return f.array }

func containsCRLF(s string) bool {
	return strings.ContainsAny(s, "\r\n")
}

// NewSimpleString constructs a SimpleString frame. It returns an error if
// text contains an embedded CR or LF, which the RESP grammar forbids.
func NewSimpleString(text string) (Frame, error) {
	if containsCRLF(text) {
		return Frame{}, errors.Errorf("resp: simple string must not contain CR or LF")
	}
	return simpleStringUnchecked(text), nil
}

func simpleStringUnchecked(text string) Frame {
	return Frame{typ: TypeSimpleString, str: text}
}

// NewError constructs an Error frame. It returns an error if text contains
// an embedded CR or LF.
func NewError(text string) (Frame, error) {
	if containsCRLF(text) {
		return Frame{}, errors.Errorf("resp: error message must not contain CR or LF")
	}
	return errorUnchecked(text), nil
}

func errorUnchecked(text string) Frame {
	return Frame{typ: TypeError, str: text}
}

// NewInteger constructs an Integer frame.
func NewInteger(n int64) Frame {
	return Frame{typ: TypeInteger, num: n}
}

// NewBulkString constructs a (non-null) BulkString frame. A nil or
// zero-length b produces a distinct, non-null empty bulk string.
func NewBulkString(b []byte) Frame {
	if b == nil {
		b = []byte{}
	}
	return Frame{typ: TypeBulkString, bulk: b}
}

// NewNullBulkString constructs the distinguished null bulk string ("no
// value"), encoded on the wire as `$-1\r\n`.
func NewNullBulkString() Frame {
	return Frame{typ: TypeBulkString, bulkNull: true}
}

// NewArray constructs a (non-null) Array frame from items. A nil items
// produces a distinct, non-null empty array.
func NewArray(items []Frame) Frame {
	return Frame{typ: TypeArray, array: items}
}

// NewNullArray constructs the distinguished null array, encoded on the
// wire as `*-1\r\n`.
func NewNullArray() Frame {
	return Frame{typ: TypeArray, arrayNull: true}
}
