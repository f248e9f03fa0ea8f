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

// Package conn is the connection driver: it owns the TCP accept loop, the
// per-connection admission limiter, and the per-connection goroutine that
// feeds raw bytes through the resp codec and the command dispatcher. It is
// a consumer of the resp and store packages, never the other way around.
package conn

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/valyala/bytebufferpool"

	"github.com/packetd/respcache/command"
	"github.com/packetd/respcache/common"
	"github.com/packetd/respcache/internal/rescue"
	"github.com/packetd/respcache/logger"
	"github.com/packetd/respcache/metrics"
	"github.com/packetd/respcache/resp"
	"github.com/packetd/respcache/store"
)

// Config controls the connection driver's resource limits.
type Config struct {
	// BufferSize is the size of each connection's read chunk and the most
	// bytes a connection may buffer for a frame that has not completed;
	// 0 falls back to common.ReadWriteBlockSize.
	BufferSize int

	// ConnLimit caps concurrently open connections; 0 means unlimited.
	ConnLimit int

	// IdleTimeout closes a connection that has sent nothing for this
	// long; 0 disables the timeout.
	IdleTimeout time.Duration

	// Limits bounds the RESP decoder's tolerance for oversized bulk
	// strings and arrays.
	Limits resp.Limits
}

// Server accepts RESP client connections and serves them against a
// Dispatcher backed by a single, shared Store.
type Server struct {
	cfg    Config
	disp   *command.Dispatcher
	admit  chan struct{}
	wg     sync.WaitGroup
	ln     net.Listener
	closed chan struct{}
}

// New returns a Server that dispatches commands to st.
func New(cfg Config, st *store.Store) *Server {
	var admit chan struct{}
	if cfg.ConnLimit > 0 {
		admit = make(chan struct{}, cfg.ConnLimit)
	}
	return &Server{
		cfg:    cfg,
		disp:   command.New(st),
		admit:  admit,
		closed: make(chan struct{}),
	}
}

// ListenAndServe binds addr and serves connections until Close is called.
// It blocks until the listener stops, returning nil on a clean shutdown.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.ln = ln
	logger.Infof("conn: listening on %s", addr)

	for {
		c, err := ln.Accept()
		if err != nil {
			select {
			case <-s.closed:
				return nil
			default:
				return err
			}
		}
		s.serveAsync(c)
	}
}

// Close stops accepting new connections, closes every open connection,
// and waits for their goroutines to return; a command already being
// handled completes first, though its reply may not reach the client.
// Only the listener's close error is returned.
func (s *Server) Close() error {
	close(s.closed)

	var errs error
	if s.ln != nil {
		if err := s.ln.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	s.wg.Wait()
	return errs
}

func (s *Server) serveAsync(c net.Conn) {
	if s.admit != nil {
		select {
		case s.admit <- struct{}{}:
		default:
			metrics.ConnectionsRejected.Inc()
			_ = c.Close()
			return
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if s.admit != nil {
			defer func() { <-s.admit }()
		}
		s.serve(c)
	}()
}

func (s *Server) serve(c net.Conn) {
	defer rescue.HandleCrash()

	id := uuid.New().String()
	defer c.Close()

	// Server shutdown closes the connection, so Close's wait does not
	// depend on the client hanging up.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-s.closed:
			_ = c.Close()
		case <-done:
		}
	}()

	metrics.ConnectionsActive.Inc()
	metrics.ConnectionsTotal.Inc()
	defer metrics.ConnectionsActive.Dec()

	bufSize := bufferBound(s.cfg)

	rb := bytebufferpool.Get()
	defer bytebufferpool.Put(rb)
	wb := bytebufferpool.Get()
	defer bytebufferpool.Put(wb)

	dec := resp.NewDecoder(s.cfg.Limits)
	readBuf := make([]byte, bufSize)

	for {
		if s.cfg.IdleTimeout > 0 {
			_ = c.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		}

		n, err := c.Read(readBuf)
		if n > 0 {
			rb.Write(readBuf[:n])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debugf("conn %s: read error: %v", id, err)
			}
			return
		}

		if !s.drain(c, id, dec, rb, wb, bufSize) {
			return
		}
	}
}

// bufferBound returns the cap on bytes a connection may accumulate since
// its last successfully decoded frame, falling back to
// common.ReadWriteBlockSize when the driver wasn't given an explicit
// BufferSize.
func bufferBound(cfg Config) int {
	if cfg.BufferSize > 0 {
		return cfg.BufferSize
	}
	return common.ReadWriteBlockSize
}

// drain decodes and dispatches every complete command currently buffered
// in rb, writing replies to wb and flushing once per read. It returns
// false when the connection must be closed, either because of a protocol
// error or because rb has accumulated more than bound bytes without ever
// completing a frame (a frame whose declared length can never be
// satisfied must not be allowed to make the connection buffer without
// limit).
func (s *Server) drain(c net.Conn, id string, dec *resp.Decoder, rb, wb *bytebufferpool.ByteBuffer, bound int) bool {
	wb.Reset()

	for {
		req, consumed, err := dec.Decode(rb.B)
		if errors.Is(err, resp.ErrNeedMore) {
			if rb.Len() > bound {
				metrics.ProtocolErrorsTotal.Inc()
				logger.Debugf("conn %s: incomplete frame exceeded %d-byte buffer, closing", id, bound)
				// Replies already produced for earlier, fully decoded
				// commands in this batch are still delivered; only the
				// never-completing frame itself gets no reply.
				if wb.Len() > 0 {
					_, _ = c.Write(wb.B)
				}
				return false
			}
			break
		}
		if err != nil {
			metrics.ProtocolErrorsTotal.Inc()
			logger.Debugf("conn %s: protocol error: %v", id, err)
			return false
		}

		reply := s.disp.Handle(req)
		wb.B = resp.AppendEncode(wb.B, reply)
		recordCommand(req)

		rb.B = rb.B[:copy(rb.B, rb.B[consumed:])]
	}

	if wb.Len() == 0 {
		return true
	}
	if _, err := c.Write(wb.B); err != nil {
		logger.Debugf("conn %s: write error: %v", id, err)
		return false
	}
	return true
}

func recordCommand(req resp.Frame) {
	if req.Type() != resp.TypeArray || req.IsNull() || len(req.Array()) == 0 {
		return
	}
	name := req.Array()[0]
	if name.Type() != resp.TypeBulkString || name.IsNull() {
		return
	}
	metrics.CommandsTotal.WithLabelValues(string(name.Bulk())).Inc()
}
