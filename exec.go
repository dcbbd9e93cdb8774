// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ntls

import (
	"code.hybscloud.com/iox"
	"code.hybscloud.com/kont"
)

// streamHandler implements kont.Handler for stream and error effects.
// Stream ops park on iox.ErrWouldBlock until the transport wakes the
// handler. A terminal error or an error Throw short-circuits with Left.
type streamHandler[R any] struct {
	ctx *streamContext
	p   *parker
}

// Dispatch implements kont.Handler. Dispatch order: Stream → Error.
func (h streamHandler[R]) Dispatch(op kont.Operation) (kont.Resumed, bool) {
	if sop, ok := op.(streamDispatcher); ok {
		v, err := dispatchPark(h.ctx, h.p, sop)
		if err != nil {
			return kont.Left[error, R](err), false
		}
		return v, true
	}
	if eop, ok := op.(interface {
		DispatchError(ctx *kont.ErrorContext[error]) (kont.Resumed, bool)
	}); ok {
		var errCtx kont.ErrorContext[error]
		v, _ := eop.DispatchError(&errCtx)
		if errCtx.HasErr {
			return kont.Left[error, R](errCtx.Err), false
		}
		return v, true
	}
	panic("ntls: unhandled effect in streamHandler")
}

// dispatchPark retries a stream op until it completes or fails,
// parking the goroutine while the transport is not ready.
func dispatchPark(ctx *streamContext, p *parker, sop streamDispatcher) (kont.Resumed, error) {
	for {
		v, err := sop.DispatchStream(ctx)
		if err == nil || !iox.IsWouldBlock(err) {
			return v, err
		}
		p.park()
	}
}

func newStreamHandler[R any](t Transport) streamHandler[R] {
	p := newParker()
	return streamHandler[R]{ctx: &streamContext{t: t, cx: NewContext(p)}, p: p}
}

// Exec runs a Cont-world stream protocol on t, usually a *Stream.
// Returns Right on completion, Left with the terminal error otherwise.
// Blocks the calling goroutine while the transport is not ready.
func Exec[R any](t Transport, protocol kont.Eff[R]) kont.Either[error, R] {
	wrapped := kont.Map[kont.Resumed, R, kont.Either[error, R]](protocol, func(r R) kont.Either[error, R] {
		return kont.Right[error, R](r)
	})
	return kont.Handle(wrapped, newStreamHandler[R](t))
}

// ExecExpr runs an Expr-world stream protocol on t.
// Returns Right on completion, Left with the terminal error otherwise.
// Blocks the calling goroutine while the transport is not ready.
func ExecExpr[R any](t Transport, protocol kont.Expr[R]) kont.Either[error, R] {
	wrapped := kont.ExprMap(protocol, func(r R) kont.Either[error, R] {
		return kont.Right[error, R](r)
	})
	return kont.HandleExpr(wrapped, newStreamHandler[R](t))
}

// Block calls poll until it stops reporting iox.ErrWouldBlock, parking the
// goroutine between attempts. poll must arrange for its Context to be
// woken before it reports iox.ErrWouldBlock.
//
//	stream, err := ntls.Block(hs.Poll)
func Block[T any](poll func(cx *Context) (T, error)) (T, error) {
	p := newParker()
	cx := NewContext(p)
	for {
		v, err := poll(cx)
		if !iox.IsWouldBlock(err) {
			return v, err
		}
		p.park()
	}
}
