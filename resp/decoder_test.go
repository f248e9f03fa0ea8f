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

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeScalars(t *testing.T) {
	dec := NewDecoder(Limits{})

	tests := []struct {
		name     string
		input    string
		wantType Type
		check    func(t *testing.T, f Frame)
	}{
		{
			name:     "SimpleString",
			input:    "+OK\r\n",
			wantType: TypeSimpleString,
			check:    func(t *testing.T, f Frame) { assert.Equal(t, "OK", f.Str()) },
		},
		{
			name:     "Error",
			input:    "-ERR boom\r\n",
			wantType: TypeError,
			check:    func(t *testing.T, f Frame) { assert.Equal(t, "ERR boom", f.Str()) },
		},
		{
			name:     "Integer positive",
			input:    ":1000\r\n",
			wantType: TypeInteger,
			check:    func(t *testing.T, f Frame) { assert.Equal(t, int64(1000), f.Int()) },
		},
		{
			name:     "Integer negative",
			input:    ":-7\r\n",
			wantType: TypeInteger,
			check:    func(t *testing.T, f Frame) { assert.Equal(t, int64(-7), f.Int()) },
		},
		{
			name:     "BulkString",
			input:    "$6\r\nfoobar\r\n",
			wantType: TypeBulkString,
			check: func(t *testing.T, f Frame) {
				assert.False(t, f.IsNull())
				assert.Equal(t, []byte("foobar"), f.Bulk())
			},
		},
		{
			name:     "BulkString empty",
			input:    "$0\r\n\r\n",
			wantType: TypeBulkString,
			check: func(t *testing.T, f Frame) {
				assert.False(t, f.IsNull())
				assert.Equal(t, []byte{}, f.Bulk())
			},
		},
		{
			name:     "BulkString null",
			input:    "$-1\r\n",
			wantType: TypeBulkString,
			check:    func(t *testing.T, f Frame) { assert.True(t, f.IsNull()) },
		},
		{
			name:     "Array null",
			input:    "*-1\r\n",
			wantType: TypeArray,
			check:    func(t *testing.T, f Frame) { assert.True(t, f.IsNull()) },
		},
		{
			name:     "Array empty",
			input:    "*0\r\n",
			wantType: TypeArray,
			check: func(t *testing.T, f Frame) {
				assert.False(t, f.IsNull())
				assert.Empty(t, f.Array())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, n, err := dec.Decode([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, len(tt.input), n)
			assert.Equal(t, tt.wantType, f.Type())
			tt.check(t, f)
		})
	}
}

func TestDecodeNestedArray(t *testing.T) {
	dec := NewDecoder(Limits{})
	input := "*2\r\n*2\r\n:1\r\n:2\r\n$3\r\nfoo\r\n"

	f, n, err := dec.Decode([]byte(input))
	require.NoError(t, err)
	assert.Equal(t, len(input), n)
	require.Equal(t, TypeArray, f.Type())
	require.Len(t, f.Array(), 2)

	inner := f.Array()[0]
	require.Equal(t, TypeArray, inner.Type())
	require.Len(t, inner.Array(), 2)
	assert.Equal(t, int64(1), inner.Array()[0].Int())
	assert.Equal(t, int64(2), inner.Array()[1].Int())

	assert.Equal(t, []byte("foo"), f.Array()[1].Bulk())
}

func TestDecodeDeeplyNestedArrayNoRecursion(t *testing.T) {
	const depth = 10000

	var buf []byte
	for i := 0; i < depth; i++ {
		buf = append(buf, "*1\r\n"...)
	}
	buf = append(buf, ":42\r\n"...)

	dec := NewDecoder(Limits{MaxArrayLen: 0})
	f, n, err := dec.Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)

	cur := f
	for i := 0; i < depth; i++ {
		require.Equal(t, TypeArray, cur.Type())
		require.Len(t, cur.Array(), 1)
		cur = cur.Array()[0]
	}
	assert.Equal(t, int64(42), cur.Int())
}

func TestDecodeNeedMore(t *testing.T) {
	dec := NewDecoder(Limits{})
	full := "*2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n"

	for i := 1; i < len(full); i++ {
		_, _, err := dec.Decode([]byte(full[:i]))
		assert.ErrorIs(t, err, ErrNeedMore, "prefix length %d should need more", i)
	}

	f, n, err := dec.Decode([]byte(full))
	require.NoError(t, err)
	assert.Equal(t, len(full), n)
	assert.Equal(t, TypeArray, f.Type())
}

func TestDecodeStreamingArbitraryChunking(t *testing.T) {
	frames := []string{
		"*1\r\n$4\r\nPING\r\n",
		"+PONG\r\n",
		"*3\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$3\r\nbar\r\n",
		"$-1\r\n",
		":42\r\n",
	}
	var full string
	for _, f := range frames {
		full += f
	}

	for chunkSize := 1; chunkSize <= 7; chunkSize++ {
		dec := NewDecoder(Limits{})
		var buf []byte
		pos := 0
		var got []Frame

		for len(got) < len(frames) {
			if pos < len(full) {
				end := pos + chunkSize
				if end > len(full) {
					end = len(full)
				}
				buf = append(buf, full[pos:end]...)
				pos = end
			}

			f, n, err := dec.Decode(buf)
			if errors.Is(err, ErrNeedMore) {
				if pos >= len(full) {
					t.Fatalf("chunkSize=%d: ran out of input still needing more", chunkSize)
				}
				continue
			}
			require.NoError(t, err, "chunkSize=%d", chunkSize)
			got = append(got, f)
			buf = buf[n:]
		}

		require.Len(t, got, len(frames), "chunkSize=%d", chunkSize)
		assert.Empty(t, buf, "chunkSize=%d: leftover bytes", chunkSize)
	}
}

func TestDecodeProtocolErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unknown marker", "!oops\r\n"},
		{"non-numeric length", "$abc\r\nfoo\r\n"},
		{"length below -1", "$-2\r\n"},
		{"array length below -1", "*-5\r\n"},
		{"missing bulk terminator", "$3\r\nfooXX"},
		{"embedded CR in simple string", "+foo\rbar\r\n"},
	}

	dec := NewDecoder(Limits{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := dec.Decode([]byte(tt.input))
			var protoErr *ProtocolError
			assert.ErrorAs(t, err, &protoErr)
		})
	}
}

func TestDecodeLengthLimits(t *testing.T) {
	dec := NewDecoder(Limits{MaxBulkLen: 4, MaxArrayLen: 2})

	_, _, err := dec.Decode([]byte("$5\r\nabcde\r\n"))
	var protoErr *ProtocolError
	assert.ErrorAs(t, err, &protoErr)

	_, _, err = dec.Decode([]byte("*3\r\n:1\r\n:2\r\n:3\r\n"))
	assert.ErrorAs(t, err, &protoErr)
}

func TestDecodeRoundTripWithEncoder(t *testing.T) {
	frames := []Frame{
		simpleStringUnchecked("PONG"),
		errorUnchecked("ERR bad"),
		NewInteger(-123),
		NewBulkString([]byte("hello")),
		NewBulkString(nil),
		NewNullBulkString(),
		NewArray(nil),
		NewNullArray(),
		NewArray([]Frame{NewInteger(1), NewBulkString([]byte("x")), NewArray([]Frame{NewInteger(2)})}),
	}

	dec := NewDecoder(Limits{})
	for _, f := range frames {
		wire := Encode(f)
		got, n, err := dec.Decode(wire)
		require.NoError(t, err)
		assert.Equal(t, len(wire), n)
		assert.Equal(t, f, got)
	}
}
