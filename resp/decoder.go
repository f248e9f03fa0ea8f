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
	"bytes"
	"strconv"

	"github.com/pkg/errors"
)

// ErrNeedMore signals that buf does not yet hold a complete frame. The
// caller must preserve buf, append more bytes read from the connection,
// and call Decode again; no bytes from buf are considered consumed.
var ErrNeedMore = errors.New("resp: need more data")

// ProtocolError reports a malformed RESP byte stream. A connection that
// produces one must be closed; the decode position is not meaningful
// afterwards.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "resp: protocol error: " + e.Reason
}

func protoErrorf(format string, args ...any) error {
	return &ProtocolError{Reason: errors.Errorf(format, args...).Error()}
}

var crlf = []byte("\r\n")

// Limits bounds the lengths the decoder accepts, guarding against a
// malicious or buggy peer claiming an absurd bulk string or array length.
// A non-positive field is replaced by the DefaultLimits value when a
// Decoder is built.
type Limits struct {
	MaxBulkLen  int64
	MaxArrayLen int64
}

// DefaultLimits mirrors Redis's own bulk string ceiling (512MB) and caps
// array fan-out at a million elements, comfortably above the depth-10000
// nesting this decoder is required to survive.
var DefaultLimits = Limits{
	MaxBulkLen:  512 << 20,
	MaxArrayLen: 1 << 20,
}

func (l Limits) withDefaults() Limits {
	if l.MaxBulkLen <= 0 {
		l.MaxBulkLen = DefaultLimits.MaxBulkLen
	}
	if l.MaxArrayLen <= 0 {
		l.MaxArrayLen = DefaultLimits.MaxArrayLen
	}
	return l
}

// Decoder parses RESP frames out of a byte stream that may deliver them in
// arbitrary partial chunks. A Decoder holds no state between Decode calls:
// every call re-scans buf from its start, which the RESP grammar's
// re-parse-on-NeedMore contract explicitly allows, and keeps the frame
// (Array, in particular) nesting bound to an explicit heap-allocated stack
// rather than native call-stack recursion, so depth is limited only by
// available memory.
type Decoder struct {
	limits Limits
}

// NewDecoder returns a Decoder enforcing the given Limits. Non-positive
// fields fall back to DefaultLimits.
func NewDecoder(limits Limits) *Decoder {
	return &Decoder{limits: limits.withDefaults()}
}

// Decode parses exactly one frame from the front of buf.
//
// On success it returns the frame and the number of leading bytes of buf
// it consumed. On ErrNeedMore, no bytes are considered consumed: the
// caller must retain buf (extended with more bytes) and call Decode again.
// On a *ProtocolError, the connection must be dropped.
func (d *Decoder) Decode(buf []byte) (Frame, int, error) {
	s := &scanner{buf: buf, limits: d.limits}
	f, err := s.run()
	if err != nil {
		return Frame{}, 0, err
	}
	return f, s.pos, nil
}

// arrayState is one explicit work-stack entry: an array under
// construction together with the number of children it still expects.
type arrayState struct {
	remaining int
	items     []Frame
}

type scanner struct {
	buf    []byte
	pos    int
	limits Limits
}

// run drives the iterative parse. It never recurses: nested arrays are
// represented as entries pushed onto stack, and the loop below pops/pushes
// that stack until the root frame is fully assembled.
func (s *scanner) run() (Frame, error) {
	var stack []*arrayState
	var pending Frame
	havePending := false

	for {
		if havePending {
			if len(stack) == 0 {
				return pending, nil
			}
			top := stack[len(stack)-1]
			top.items = append(top.items, pending)
			havePending = false
			if len(top.items) == top.remaining {
				stack = stack[:len(stack)-1]
				pending = NewArray(top.items)
				havePending = true
			}
			continue
		}

		if s.pos >= len(s.buf) {
			return Frame{}, ErrNeedMore
		}
		marker := s.buf[s.pos]

		if marker == byte(TypeArray) {
			n, err := s.readLength(byte(TypeArray), s.limits.MaxArrayLen)
			if err != nil {
				return Frame{}, err
			}
			switch {
			case n == -1:
				pending, havePending = NewNullArray(), true
			case n == 0:
				pending, havePending = NewArray(nil), true
			default:
				stack = append(stack, &arrayState{remaining: int(n), items: make([]Frame, 0, n)})
			}
			continue
		}

		f, err := s.readScalar(marker)
		if err != nil {
			return Frame{}, err
		}
		pending, havePending = f, true
	}
}

// readLine consumes bytes up to and including the next CRLF and returns
// the bytes before it. It does not consume the marker byte; callers must
// advance past it first.
func (s *scanner) readLine() ([]byte, error) {
	idx := bytes.Index(s.buf[s.pos:], crlf)
	if idx < 0 {
		return nil, ErrNeedMore
	}
	line := s.buf[s.pos : s.pos+idx]
	s.pos += idx + len(crlf)
	return line, nil
}

// readLength consumes a marker byte plus its ASCII length line (used by
// both BulkString and Array headers) and validates it against limit.
func (s *scanner) readLength(marker byte, limit int64) (int64, error) {
	s.pos++ // the marker byte itself
	line, err := s.readLine()
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(string(line), 10, 64)
	if err != nil {
		return 0, protoErrorf("%c: invalid length %q", marker, line)
	}
	if n < -1 {
		return 0, protoErrorf("%c: length %d out of range", marker, n)
	}
	if limit > 0 && n > limit {
		return 0, protoErrorf("%c: length %d exceeds configured maximum %d", marker, n, limit)
	}
	return n, nil
}

// readScalar parses one non-Array frame: SimpleString, Error, Integer, or
// BulkString. marker has already been peeked but not consumed.
func (s *scanner) readScalar(marker byte) (Frame, error) {
	switch Type(marker) {
	case TypeSimpleString:
		line, err := s.readLineAfterMarker()
		if err != nil {
			return Frame{}, err
		}
		if bytes.ContainsAny(line, "\r\n") {
			return Frame{}, protoErrorf("simple string contains embedded CR/LF")
		}
		return simpleStringUnchecked(string(line)), nil

	case TypeError:
		line, err := s.readLineAfterMarker()
		if err != nil {
			return Frame{}, err
		}
		if bytes.ContainsAny(line, "\r\n") {
			return Frame{}, protoErrorf("error message contains embedded CR/LF")
		}
		return errorUnchecked(string(line)), nil

	case TypeInteger:
		line, err := s.readLineAfterMarker()
		if err != nil {
			return Frame{}, err
		}
		n, err := strconv.ParseInt(string(line), 10, 64)
		if err != nil {
			return Frame{}, protoErrorf("invalid integer %q", line)
		}
		return NewInteger(n), nil

	case TypeBulkString:
		n, err := s.readLength(marker, s.limits.MaxBulkLen)
		if err != nil {
			return Frame{}, err
		}
		if n == -1 {
			return NewNullBulkString(), nil
		}
		end := s.pos + int(n)
		if end+2 > len(s.buf) {
			return Frame{}, ErrNeedMore
		}
		payload := s.buf[s.pos:end]
		if s.buf[end] != '\r' || s.buf[end+1] != '\n' {
			return Frame{}, protoErrorf("bulk string missing CRLF terminator")
		}
		s.pos = end + 2
		return NewBulkString(payload), nil

	default:
		return Frame{}, protoErrorf("unknown type marker %q", marker)
	}
}

func (s *scanner) readLineAfterMarker() ([]byte, error) {
	s.pos++
	return s.readLine()
}
