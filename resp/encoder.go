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

package resp

import "strconv"

// Encode serializes f to its wire representation. Encoding is total: every
// frame built through the New* constructors in frame.go produces valid
// RESP bytes.
func Encode(f Frame) []byte {
	return AppendEncode(make([]byte, 0, 64), f)
}

// AppendEncode appends the wire representation of f to dst and returns the
// grown slice, following the append(dst, ...) convention used throughout
// this codebase's encoders. Like the decoder, it walks nested Arrays with
// an explicit stack instead of recursing, so depth is bounded only by
// available memory.
func AppendEncode(dst []byte, f Frame) []byte {
	var stack []*encodeState
	cur := f
	haveCur := true

	for haveCur || len(stack) > 0 {
		if haveCur {
			if cur.typ == TypeArray && !cur.arrayNull && len(cur.array) > 0 {
				dst = appendArrayHeader(dst, len(cur.array))
				state := &encodeState{items: cur.array}
				stack = append(stack, state)
				cur = state.items[0]
				continue
			}
			dst = appendLeaf(dst, cur)
			haveCur = false
		}

		for len(stack) > 0 {
			top := stack[len(stack)-1]
			top.idx++
			if top.idx < len(top.items) {
				cur = top.items[top.idx]
				haveCur = true
				break
			}
			stack = stack[:len(stack)-1]
		}
	}
	return dst
}

// encodeState is the encoder's mirror of the decoder's arrayState: an
// array whose header has already been written and whose children are
// being emitted one at a time.
type encodeState struct {
	items []Frame
	idx   int
}

func appendArrayHeader(dst []byte, n int) []byte {
	dst = append(dst, byte(TypeArray))
	dst = strconv.AppendInt(dst, int64(n), 10)
	return append(dst, crlf...)
}

// appendLeaf encodes anything that isn't a non-empty, non-null array:
// SimpleString, Error, Integer, BulkString (incl. null), and the null or
// empty Array cases.
func appendLeaf(dst []byte, f Frame) []byte {
	switch f.typ {
	case TypeSimpleString:
		dst = append(dst, byte(TypeSimpleString))
		dst = append(dst, f.str...)
		return append(dst, crlf...)

	case TypeError:
		dst = append(dst, byte(TypeError))
		dst = append(dst, f.str...)
		return append(dst, crlf...)

	case TypeInteger:
		dst = append(dst, byte(TypeInteger))
		dst = strconv.AppendInt(dst, f.num, 10)
		return append(dst, crlf...)

	case TypeBulkString:
		if f.bulkNull {
			return append(dst, '$', '-', '1', '\r', '\n')
		}
		dst = append(dst, byte(TypeBulkString))
		dst = strconv.AppendInt(dst, int64(len(f.bulk)), 10)
		dst = append(dst, crlf...)
		dst = append(dst, f.bulk...)
		return append(dst, crlf...)

	case TypeArray:
		if f.arrayNull {
			return append(dst, '*', '-', '1', '\r', '\n')
		}
		return appendArrayHeader(dst, len(f.array))

	default:
		return dst
	}
}
