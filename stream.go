// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ntls

import (
	"code.hybscloud.com/iox"
)

// Stream is an established secure session over a poll-based transport.
//
// Each poll operation runs exactly one synchronous engine call with the
// caller's Context installed, and reports one of three outcomes: completion,
// suspension (iox.ErrWouldBlock; retry after the Context is woken) or a
// terminal *Error. io.EOF reports end of stream.
//
// A Stream is driven by one task at a time. It does no locking.
// Dropping a Stream without completing PollClose leaves the peer without a
// graceful shutdown.
type Stream[S Transport] struct {
	engine  Engine
	adapter *Adapter[S]
	serial  Serial
	metrics *Metrics
	closed  bool
	fill    []byte
	pending []byte
}

var _ BufferedTransport = (*Stream[Transport])(nil)

// PollRead reads decrypted bytes into p. Bytes returned by PollFill and
// not yet consumed are read first.
func (s *Stream[S]) PollRead(cx *Context, p []byte) (int, error) {
	if len(s.pending) > 0 {
		n := copy(p, s.pending)
		s.Consume(n)
		return n, nil
	}
	n, err := withContext(s.adapter, cx, func() (int, error) {
		return s.engine.Read(p)
	})
	err = s.outcome("read", err)
	if err == nil {
		s.metrics.transferred("in", n)
	}
	return n, err
}

// PollFill returns decrypted bytes without consuming them, reading one
// engine chunk first when none are buffered. It reports io.EOF at end of
// stream and suspends like PollRead.
func (s *Stream[S]) PollFill(cx *Context) ([]byte, error) {
	if len(s.pending) > 0 {
		return s.pending, nil
	}
	if s.fill == nil {
		s.fill = make([]byte, defaultReadSize)
	}
	n, err := s.PollRead(cx, s.fill)
	if err != nil {
		return nil, err
	}
	s.pending = s.fill[:n]
	return s.pending, nil
}

// Consume discards n bytes of those returned by PollFill.
func (s *Stream[S]) Consume(n int) {
	s.pending = s.pending[min(n, len(s.pending)):]
}

// PollWrite writes p through the engine. It may accept fewer bytes.
func (s *Stream[S]) PollWrite(cx *Context, p []byte) (int, error) {
	n, err := withContext(s.adapter, cx, func() (int, error) {
		return s.engine.Write(p)
	})
	err = s.outcome("write", err)
	if err == nil {
		s.metrics.transferred("out", n)
	}
	return n, err
}

// PollFlush flushes data buffered by the engine to the transport.
func (s *Stream[S]) PollFlush(cx *Context) error {
	_, err := withContext(s.adapter, cx, func() (struct{}, error) {
		return struct{}{}, s.engine.Flush()
	})
	return s.outcome("flush", err)
}

// PollClose shuts the session down. A transport already at end of stream
// counts as completion. Once completed, PollClose keeps reporting completion.
func (s *Stream[S]) PollClose(cx *Context) error {
	if s.closed {
		return nil
	}
	_, err := withContext(s.adapter, cx, func() (struct{}, error) {
		return struct{}{}, s.engine.Shutdown()
	})
	if err == nil || closedEarly(err) {
		s.closed = true
		return nil
	}
	return s.outcome("close", err)
}

// Inner returns the underlying transport.
func (s *Stream[S]) Inner() S {
	return s.adapter.Inner()
}

// Engine returns the synchronous engine driven by s.
func (s *Stream[S]) Engine() Engine {
	return s.engine
}

// Serial returns the serial number assigned to this stream.
func (s *Stream[S]) Serial() Serial {
	return s.serial
}

func (s *Stream[S]) outcome(op string, err error) error {
	err = classify(op, err, s.adapter.fault)
	if iox.IsWouldBlock(err) {
		s.metrics.suspended(op)
	}
	return err
}
