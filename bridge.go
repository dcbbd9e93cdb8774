// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ntls

// withContext runs f with cx installed in a.
//
// The handle is cleared before withContext returns on every exit path of f:
// normal return, error return and panic. Engine-internal calls reach the
// handle through the adapter without it being passed down their signatures.
func withContext[S Transport, R any](a *Adapter[S], cx *Context, f func() (R, error)) (R, error) {
	if cx == nil {
		panic("ntls: nil context")
	}
	if a.cx != nil {
		panic("ntls: nested bridged call")
	}
	a.cx = cx
	a.fault = nil
	defer a.release()
	return f()
}

func (a *Adapter[S]) release() {
	a.cx = nil
}
