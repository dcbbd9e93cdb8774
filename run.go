// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ntls

import (
	"code.hybscloud.com/iox"
	"code.hybscloud.com/kont"
)

// maxIdleRounds is the number of consecutive rounds without progress
// after which Run gives up with ErrStalled.
const maxIdleRounds = 8

// Run drives a client and a server handshake and then their Cont-world
// protocols on the calling goroutine, and returns both results.
// See RunExpr.
func Run[SA, SB Transport, A, B any](
	ha *Handshake[SA], a kont.Eff[A],
	hb *Handshake[SB], b kont.Eff[B],
) (kont.Either[error, A], kont.Either[error, B]) {
	return RunExpr(ha, Reify(a), hb, Reify(b))
}

// RunExpr drives two handshakes and then their Expr-world protocols on the
// calling goroutine, and returns both results.
//
// A side is polled again only after it made progress or its Context was
// woken. When neither side can proceed, RunExpr backs off with iox.Backoff
// and, after a few idle rounds, fails the unfinished sides with ErrStalled.
// A side that fails closes its transport so the other side observes end
// of stream. Does not spawn goroutines or create channels.
func RunExpr[SA, SB Transport, A, B any](
	ha *Handshake[SA], a kont.Expr[A],
	hb *Handshake[SB], b kont.Expr[B],
) (kont.Either[error, A], kont.Either[error, B]) {
	ra := newRunner(ha, a)
	rb := newRunner(hb, b)
	var bo iox.Backoff
	idle := 0
	for !ra.done || !rb.done {
		pa := ra.poll()
		pb := rb.poll()
		if pa || pb {
			idle = 0
			bo.Reset()
			continue
		}
		idle++
		if idle > maxIdleRounds {
			ra.fail(ErrStalled)
			rb.fail(ErrStalled)
			break
		}
		bo.Wait()
	}
	return ra.result, rb.result
}

// runner is one side of RunExpr.
type runner[S Transport, R any] struct {
	hs     *Handshake[S]
	stream *Stream[S]
	expr   kont.Expr[R]
	susp   *kont.Suspension[R]
	result kont.Either[error, R]
	done   bool
	ready  bool
	wake   wakeCounter
	cx     *Context
}

func newRunner[S Transport, R any](hs *Handshake[S], expr kont.Expr[R]) *runner[S, R] {
	r := &runner[S, R]{hs: hs, expr: expr, ready: true}
	r.cx = NewContext(&r.wake)
	return r
}

// poll advances the side by one step if it may make progress,
// and reports whether it did.
func (r *runner[S, R]) poll() bool {
	if r.done || (!r.ready && !r.wake.woken()) {
		return false
	}
	r.ready = r.step()
	return r.ready
}

func (r *runner[S, R]) step() bool {
	if r.stream == nil {
		s, err := r.hs.Poll(r.cx)
		if iox.IsWouldBlock(err) {
			return false
		}
		if err != nil {
			r.fail(err)
			return true
		}
		r.stream = s
		var v R
		v, r.susp = Step(r.expr)
		if r.susp == nil {
			r.finish(v)
		}
		return true
	}
	v, next, err := Advance(r.stream, r.cx, r.susp)
	if iox.IsWouldBlock(err) {
		return false
	}
	if err != nil {
		r.susp = nil
		r.fail(err)
		return true
	}
	r.susp = next
	if next == nil {
		r.finish(v)
	}
	return true
}

func (r *runner[S, R]) finish(v R) {
	r.done = true
	r.result = kont.Right[error, R](v)
}

// fail records err and closes the transport. No-op once done.
func (r *runner[S, R]) fail(err error) {
	if r.done {
		return
	}
	r.done = true
	r.result = kont.Left[error, R](err)
	if r.susp != nil {
		r.susp.Discard()
		r.susp = nil
	}
	_ = r.hs.Inner().PollClose(r.cx)
}
