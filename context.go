// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ntls

import "code.hybscloud.com/atomix"

// Waker is notified when a suspended operation may make progress.
// Wake may be called from any goroutine and more than once.
type Waker interface {
	Wake()
}

// WakerFunc adapts an ordinary function to the Waker interface.
type WakerFunc func()

// Wake calls f.
func (f WakerFunc) Wake() { f() }

// Context is the scheduling handle of a single poll invocation.
//
// A transport that reports iox.ErrWouldBlock must first arrange for the
// context's Waker to be woken once the operation can make progress.
// Transports keep the Waker, never the Context.
type Context struct {
	waker Waker
}

// NewContext returns a scheduling handle that wakes w.
func NewContext(w Waker) *Context {
	return &Context{waker: w}
}

// Waker returns the waker of cx. It is nil-safe.
func (cx *Context) Waker() Waker {
	if cx == nil || cx.waker == nil {
		return noopWaker{}
	}
	return cx.waker
}

// Wake wakes the task owning cx.
func (cx *Context) Wake() {
	cx.Waker().Wake()
}

type noopWaker struct{}

func (noopWaker) Wake() {}

// parker blocks a goroutine until it is woken.
// A wake that arrives before park is remembered, so no wake is lost.
type parker struct {
	ch chan struct{}
}

func newParker() *parker {
	return &parker{ch: make(chan struct{}, 1)}
}

// Wake implements Waker.
func (p *parker) Wake() {
	select {
	case p.ch <- struct{}{}:
	default:
	}
}

func (p *parker) park() {
	<-p.ch
}

// wakeCounter counts wakes for tasks driven by a polling loop.
type wakeCounter struct {
	n    atomix.Uint32
	seen uint32
}

// Wake implements Waker.
func (w *wakeCounter) Wake() {
	w.n.Add(1)
}

// woken reports whether a wake arrived since the previous call.
func (w *wakeCounter) woken() bool {
	n := w.n.Load()
	if n == w.seen {
		return false
	}
	w.seen = n
	return true
}
