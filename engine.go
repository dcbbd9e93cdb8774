// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ntls

// Engine is a synchronous secure-session engine.
//
// The engine does its I/O through an Adapter. When the adapter reports
// iox.ErrWouldBlock the engine must keep its internal state and return an
// error satisfying iox.IsWouldBlock, so that the same call can be repeated
// once the transport is ready. Any other error is terminal.
type Engine interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Flush() error
	Shutdown() error
}

// Handshaker starts or continues a synchronous handshake.
// Handshake returns iox.ErrWouldBlock while the handshake is interrupted,
// the established Engine on success, and any other error on failure.
type Handshaker interface {
	Handshake() (Engine, error)
}

// HandshakeFunc creates fresh engine-side handshake state bound to a.
// It runs inside a bridged call and may already perform I/O.
type HandshakeFunc[S Transport] func(a *Adapter[S]) (Handshaker, error)
