// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ntls

import (
	"errors"
	"io"

	"code.hybscloud.com/iox"
)

// Adapter presents a poll-based transport to a synchronous engine.
//
// Read, Write, Flush and Close are synchronous in shape. Each forwards to the
// transport's poll operation with the Context installed by the bridge, and
// returns iox.ErrWouldBlock when the transport is not ready. Short counts are
// returned as they are; the engine re-drives them.
//
// The adapter may only be used while a bridged call is in progress.
type Adapter[S Transport] struct {
	inner S
	cx    *Context
	fault error
}

func newAdapter[S Transport](inner S) *Adapter[S] {
	return &Adapter[S]{inner: inner}
}

// context returns the installed handle or panics.
func (a *Adapter[S]) context() *Context {
	if a.cx == nil {
		panic("ntls: adapter used outside a bridged call")
	}
	return a.cx
}

// Read reads from the transport.
func (a *Adapter[S]) Read(p []byte) (int, error) {
	n, err := a.inner.PollRead(a.context(), p)
	return n, a.record(err)
}

// Write writes to the transport. It does not loop on short writes.
func (a *Adapter[S]) Write(p []byte) (int, error) {
	n, err := a.inner.PollWrite(a.context(), p)
	return n, a.record(err)
}

// Flush flushes the transport.
func (a *Adapter[S]) Flush() error {
	return a.record(a.inner.PollFlush(a.context()))
}

// Close closes the write side of the transport.
func (a *Adapter[S]) Close() error {
	return a.record(a.inner.PollClose(a.context()))
}

// Peek returns buffered transport bytes without consuming them.
// It returns ErrNotBuffered when the transport has no read buffer.
func (a *Adapter[S]) Peek() ([]byte, error) {
	bt, ok := any(a.inner).(BufferedTransport)
	if !ok {
		return nil, ErrNotBuffered
	}
	b, err := bt.PollFill(a.context())
	return b, a.record(err)
}

// Consume discards n bytes previously returned by Peek.
func (a *Adapter[S]) Consume(n int) {
	if bt, ok := any(a.inner).(BufferedTransport); ok {
		bt.Consume(n)
	}
}

// Inner returns the wrapped transport.
func (a *Adapter[S]) Inner() S {
	return a.inner
}

// Bridged reports whether a scheduling handle is currently installed.
func (a *Adapter[S]) Bridged() bool {
	return a.cx != nil
}

// record remembers genuine transport failures of the current bridged call.
// Would-block and end of stream are not failures.
func (a *Adapter[S]) record(err error) error {
	if err != nil && !iox.IsWouldBlock(err) && !errors.Is(err, io.EOF) {
		a.fault = err
	}
	return err
}
