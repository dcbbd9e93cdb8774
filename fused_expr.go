// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ntls

import (
	"code.hybscloud.com/kont"
)

// Pre-allocated erased operations and frames to eliminate heap escapes
// when boxing empty structs into any/kont.Frame during Expr-world execution.
var (
	exprReturnFrame kont.Frame  = kont.ReturnFrame{}
	exprFlush       kont.Erased = Flush{}
	exprShutdown    kont.Erased = Shutdown{}
)

// identityResume is the identity resume function for EffectFrame construction.
func identityResume(v kont.Erased) kont.Erased { return v }

func readBindUnwind[B any](data, _, _ kont.Erased, current kont.Erased) (kont.Erased, kont.Frame) {
	f := data.(func([]byte) kont.Expr[B])
	result := f(current.([]byte))
	return kont.Erased(result.Value), result.Frame
}

// ExprReadBind reads up to size bytes and passes them to f.
// Fuses ExprPerform(Read{Max: size}) + ExprBind.
func ExprReadBind[B any](size int, f func([]byte) kont.Expr[B]) kont.Expr[B] {
	bf := kont.AcquireUnwindFrame()
	bf.Data1 = f
	bf.Unwind = readBindUnwind[B]
	ef := kont.AcquireEffectFrame()
	ef.Operation = Read{Max: size}
	ef.Resume = identityResume
	ef.Next = bf
	return kont.ExprSuspend[B](ef)
}

func writeThenUnwind[B any](data, data2, _ kont.Erased, current kont.Erased) (kont.Erased, kont.Frame) {
	p := data.([]byte)
	next := data2.(kont.Expr[B])
	result := ExprWriteThen(p[current.(int):], next)
	return kont.Erased(result.Value), result.Frame
}

// ExprWriteThen writes all of p and then continues with next.
// Short writes are re-driven until p is exhausted.
func ExprWriteThen[B any](p []byte, next kont.Expr[B]) kont.Expr[B] {
	if len(p) == 0 {
		return next
	}
	bf := kont.AcquireUnwindFrame()
	bf.Data1 = p
	bf.Data2 = next
	bf.Unwind = writeThenUnwind[B]
	ef := kont.AcquireEffectFrame()
	ef.Operation = Write{Data: p}
	ef.Resume = identityResume
	ef.Next = bf
	return kont.ExprSuspend[B](ef)
}

// ExprFlushThen flushes and then continues with next.
// Fuses ExprPerform(Flush{}) + ExprThen.
func ExprFlushThen[B any](next kont.Expr[B]) kont.Expr[B] {
	tf := kont.AcquireThenFrame()
	tf.Second = kont.Expr[kont.Erased]{Value: kont.Erased(next.Value), Frame: next.Frame}
	tf.Next = exprReturnFrame
	ef := kont.AcquireEffectFrame()
	ef.Operation = exprFlush
	ef.Resume = identityResume
	ef.Next = tf
	return kont.ExprSuspend[B](ef)
}

// ExprShutdownDone shuts the stream down and returns a.
// Fuses ExprPerform(Shutdown{}) + ExprThen + ExprReturn.
func ExprShutdownDone[A any](a A) kont.Expr[A] {
	tf := kont.AcquireThenFrame()
	tf.Second = kont.Expr[kont.Erased]{Value: kont.Erased(a), Frame: exprReturnFrame}
	tf.Next = exprReturnFrame
	ef := kont.AcquireEffectFrame()
	ef.Operation = exprShutdown
	ef.Resume = identityResume
	ef.Next = tf
	return kont.ExprSuspend[A](ef)
}
