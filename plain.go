// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ntls

// Plain returns a handshake that establishes immediately with an engine
// passing bytes through unchanged. It carries no security.
func Plain[S Transport](inner S, opts ...HandshakeOption) *Handshake[S] {
	return NewHandshake(inner, PlainHandshake[S], opts...)
}

// PlainHandshake is the HandshakeFunc of Plain.
func PlainHandshake[S Transport](a *Adapter[S]) (Handshaker, error) {
	return plainEngine[S]{a}, nil
}

type plainEngine[S Transport] struct {
	a *Adapter[S]
}

func (e plainEngine[S]) Handshake() (Engine, error) { return e, nil }

func (e plainEngine[S]) Read(p []byte) (int, error)  { return e.a.Read(p) }
func (e plainEngine[S]) Write(p []byte) (int, error) { return e.a.Write(p) }
func (e plainEngine[S]) Flush() error                { return e.a.Flush() }
func (e plainEngine[S]) Shutdown() error             { return e.a.Close() }
