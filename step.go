// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ntls

import (
	"code.hybscloud.com/iox"
	"code.hybscloud.com/kont"
)

// Step runs protocol up to its first stream operation. A nil suspension
// means the protocol finished without needing the transport.
func Step[R any](protocol kont.Expr[R]) (R, *kont.Suspension[R]) {
	return kont.StepExpr(protocol)
}

// Advance performs the stream operation held by susp on t, arming cx if
// the transport is not ready.
//
// With a nil error the protocol has moved on: the result is final when the
// returned suspension is nil. iox.ErrWouldBlock hands susp back untouched,
// to be retried after cx is woken. Any other error discards susp.
func Advance[R any](t Transport, cx *Context, susp *kont.Suspension[R]) (R, *kont.Suspension[R], error) {
	sop, ok := susp.Op().(streamDispatcher)
	if !ok {
		panic("ntls: unhandled effect in Advance")
	}
	ctx := streamContext{t: t, cx: cx}
	v, err := sop.DispatchStream(&ctx)
	if err != nil {
		var zero R
		if iox.IsWouldBlock(err) {
			return zero, susp, iox.ErrWouldBlock
		}
		susp.Discard()
		return zero, nil, err
	}
	result, next := susp.Resume(v)
	return result, next, nil
}
