// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ntls

import (
	"code.hybscloud.com/kont"
)

// Reify turns a Cont-form stream protocol into an Expr, which Step and
// Advance can drive one suspension at a time.
func Reify[A any](m kont.Eff[A]) kont.Expr[A] {
	return kont.Reify(m)
}

// Reflect turns an Expr stream protocol back into Cont form so it can be
// sequenced with ReadBind, WriteThen and friends.
func Reflect[A any](m kont.Expr[A]) kont.Eff[A] {
	return kont.Reflect(m)
}

// Loop repeats step on a stream until it yields Right. Left carries the
// state into the next round.
func Loop[S, A any](initial S, step func(S) kont.Eff[kont.Either[S, A]]) kont.Eff[A] {
	return kont.Bind(step(initial), func(e kont.Either[S, A]) kont.Eff[A] {
		if left, ok := e.GetLeft(); ok {
			return Loop(left, step)
		}
		right, _ := e.GetRight()
		return kont.Pure(right)
	})
}

// ExprLoop is Loop over Expr. Rounds that finish without touching the
// transport are unrolled in place; the first round that suspends resumes
// through a pooled bind frame.
func ExprLoop[S, A any](initial S, step func(S) kont.Expr[kont.Either[S, A]]) kont.Expr[A] {
	m := step(initial)
	for {
		if _, ok := m.Frame.(kont.ReturnFrame); !ok {
			break
		}
		left, ok := m.Value.GetLeft()
		if !ok {
			right, _ := m.Value.GetRight()
			return kont.ExprReturn(right)
		}
		m = step(left)
	}
	bf := kont.AcquireBindFrame()
	bf.F = func(a kont.Erased) kont.Expr[kont.Erased] {
		next := loopRound(a.(kont.Either[S, A]), step)
		return kont.Expr[kont.Erased]{Value: kont.Erased(next.Value), Frame: next.Frame}
	}
	bf.Next = exprReturnFrame
	var zero A
	return kont.Expr[A]{Value: zero, Frame: kont.ChainFrames(m.Frame, bf)}
}

func loopRound[S, A any](e kont.Either[S, A], step func(S) kont.Expr[kont.Either[S, A]]) kont.Expr[A] {
	if left, ok := e.GetLeft(); ok {
		return ExprLoop(left, step)
	}
	right, _ := e.GetRight()
	return kont.Expr[A]{Value: right, Frame: exprReturnFrame}
}

// Echo reads chunks and writes them back until end of stream, then shuts
// the stream down. It returns the number of bytes echoed.
func Echo(size int) kont.Expr[int] {
	return ExprLoop(0, func(total int) kont.Expr[kont.Either[int, int]] {
		return ExprReadBind(size, func(b []byte) kont.Expr[kont.Either[int, int]] {
			if len(b) == 0 {
				return ExprShutdownDone(kont.Right[int](total))
			}
			return ExprWriteThen(b, kont.ExprReturn(kont.Left[int, int](total+len(b))))
		})
	})
}
