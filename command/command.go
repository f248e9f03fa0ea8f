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

// Package command is the only translator between decoded RESP frames and
// store operations: it receives a command frame (an Array of BulkStrings),
// validates its name, arity, and argument types, invokes exactly one store
// operation, and produces exactly one reply frame. Neither the codec nor
// the store ever imports this package, keeping both ignorant of the
// command surface.
package command

import (
	"bytes"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cast"

	"github.com/packetd/respcache/resp"
	"github.com/packetd/respcache/store"
)

const maxCommandLen = 64

// Dispatcher executes decoded command frames against a Store. It is
// stateless beyond the Store reference and safe for concurrent use by
// multiple connection goroutines, since every mutation it causes is
// serialized by the Store's own per-shard guards.
type Dispatcher struct {
	st *store.Store
}

// New returns a Dispatcher backed by st.
func New(st *store.Store) *Dispatcher {
	return &Dispatcher{st: st}
}

// Handle interprets one decoded command frame and returns the reply frame
// to send back. req must be a non-null Array of BulkString frames, the
// only shape the connection driver ever hands it after framing; anything
// else is a command-layer error, not a codec error, and is reported the
// same way an unknown command would be.
func (d *Dispatcher) Handle(req resp.Frame) resp.Frame {
	args, err := bulkArgs(req)
	if err != nil {
		return errorFrame(err)
	}
	if len(args) == 0 {
		return errorFrame(errors.New("ERR empty command"))
	}

	name := normalizeCommand(args[0])
	if name == "" {
		return errorFrame(errors.Errorf("ERR unknown command '%s'", truncate(args[0])))
	}

	switch name {
	case "PING":
		return d.ping(args[1:])
	case "GET":
		return d.get(args[1:])
	case "SET":
		return d.set(args[1:])
	case "DEL":
		return d.del(args[1:])
	default:
		// normalizeCommand only recognizes the four names above; this
		// branch exists so adding a name to the command list can never
		// silently fall through to a panic.
		return errorFrame(errors.Errorf("ERR unknown command '%s'", name))
	}
}

func (d *Dispatcher) ping(args [][]byte) resp.Frame {
	switch len(args) {
	case 0:
		return simpleString("PONG")
	case 1:
		return resp.NewBulkString(args[0])
	default:
		return errorFrame(errors.New("ERR wrong number of arguments for 'ping' command"))
	}
}

func (d *Dispatcher) get(args [][]byte) resp.Frame {
	if len(args) != 1 {
		return errorFrame(errors.New("ERR wrong number of arguments for 'get' command"))
	}

	v, ok := d.st.Get(string(args[0]))
	if !ok {
		return resp.NewNullBulkString()
	}
	return resp.NewBulkString(v)
}

func (d *Dispatcher) set(args [][]byte) resp.Frame {
	if len(args) < 2 {
		return errorFrame(errors.New("ERR wrong number of arguments for 'set' command"))
	}

	key, value := args[0], args[1]
	ttl, err := parseExpireOption(args[2:])
	if err != nil {
		return errorFrame(err)
	}

	// value is handed to the store by copy: the decoder's slice aliases
	// the connection's read buffer, which the driver reuses on the next
	// read, so ownership cannot transfer.
	cp := make([]byte, len(value))
	copy(cp, value)

	d.st.Set(string(key), cp, ttl)
	return simpleString("OK")
}

func (d *Dispatcher) del(args [][]byte) resp.Frame {
	if len(args) < 1 {
		return errorFrame(errors.New("ERR wrong number of arguments for 'del' command"))
	}

	keys := make([]string, len(args))
	for i, a := range args {
		keys[i] = string(a)
	}
	return resp.NewInteger(int64(d.st.Del(keys...)))
}

// parseExpireOption parses SET's optional trailing `EX <seconds>` or
// `PX <millis>` pair. A ttl of 0 means no expiry.
func parseExpireOption(rest [][]byte) (time.Duration, error) {
	if len(rest) == 0 {
		return 0, nil
	}
	if len(rest) != 2 {
		return 0, errors.New("ERR syntax error")
	}

	opt := normalizeOption(rest[0])
	n, err := cast.ToInt64E(string(rest[1]))
	if err != nil || n <= 0 {
		return 0, errors.New("ERR value is not an integer or out of range")
	}

	switch opt {
	case "EX":
		return time.Duration(n) * time.Second, nil
	case "PX":
		return time.Duration(n) * time.Millisecond, nil
	default:
		return 0, errors.New("ERR syntax error")
	}
}

func normalizeOption(b []byte) string {
	return string(bytes.ToUpper(b))
}

// bulkArgs validates that req is a non-null Array of non-null BulkString
// frames and returns their raw bytes.
func bulkArgs(req resp.Frame) ([][]byte, error) {
	if req.Type() != resp.TypeArray || req.IsNull() {
		return nil, errors.New("ERR expected command as array of bulk strings")
	}

	elems := req.Array()
	args := make([][]byte, len(elems))
	for i, e := range elems {
		if e.Type() != resp.TypeBulkString || e.IsNull() {
			return nil, errors.New("ERR protocol error: expected bulk string")
		}
		args[i] = e.Bulk()
	}
	return args, nil
}

func normalizeCommand(b []byte) string {
	l := maxCommandLen
	if l > len(b) {
		l = len(b)
	}
	switch string(bytes.ToUpper(b[:l])) {
	case "PING":
		return "PING"
	case "GET":
		return "GET"
	case "SET":
		return "SET"
	case "DEL":
		return "DEL"
	default:
		return ""
	}
}

// truncate renders up to 32 bytes of a client-supplied argument for
// inclusion in an error message. CR and LF are replaced by spaces so that an
// adversarial or malformed command name can never break the Error frame's
// single-line invariant.
func truncate(b []byte) string {
	const max = 32
	if len(b) > max {
		b = b[:max]
	}
	clean := bytes.Map(func(r rune) rune {
		if r == '\r' || r == '\n' {
			return ' '
		}
		return r
	}, b)
	return string(clean)
}

// simpleString builds a SimpleString reply for one of the package's own
// fixed, known-safe literals ("PONG", "OK"); the error NewSimpleString can
// return is therefore unreachable and deliberately ignored.
func simpleString(text string) resp.Frame {
	f, _ := resp.NewSimpleString(text)
	return f
}

// errorFrame builds an Error reply from err. Error text composed in this
// package either comes from fixed literals or has already been run
// through truncate, so it cannot contain CR/LF; NewError's error return is
// unreachable here.
func errorFrame(err error) resp.Frame {
	f, _ := resp.NewError(err.Error())
	return f
}
