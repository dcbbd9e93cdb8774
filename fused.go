// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ntls

import (
	"code.hybscloud.com/kont"
)

// ReadBind reads up to size bytes and passes them to f.
// Fuses Perform(Read{Max: size}) + Bind.
func ReadBind[B any](size int, f func([]byte) kont.Eff[B]) kont.Eff[B] {
	return kont.Bind(kont.Perform(Read{Max: size}), f)
}

// WriteThen writes all of p and then continues with next.
// Short writes are re-driven until p is exhausted.
func WriteThen[B any](p []byte, next kont.Eff[B]) kont.Eff[B] {
	if len(p) == 0 {
		return next
	}
	return kont.Bind(kont.Perform(Write{Data: p}), func(n int) kont.Eff[B] {
		return WriteThen(p[n:], next)
	})
}

// FlushThen flushes and then continues with next.
// Fuses Perform(Flush{}) + Then.
func FlushThen[B any](next kont.Eff[B]) kont.Eff[B] {
	return kont.Then(kont.Perform(Flush{}), next)
}

// ShutdownDone shuts the stream down and returns a.
// Fuses Perform(Shutdown{}) + Then + Pure.
func ShutdownDone[A any](a A) kont.Eff[A] {
	return kont.Then(kont.Perform(Shutdown{}), kont.Pure(a))
}

// ReadAll reads until end of stream and returns everything read.
func ReadAll() kont.Eff[[]byte] {
	return Loop([]byte{}, func(acc []byte) kont.Eff[kont.Either[[]byte, []byte]] {
		return ReadBind(0, func(b []byte) kont.Eff[kont.Either[[]byte, []byte]] {
			if len(b) == 0 {
				return kont.Pure(kont.Right[[]byte](acc))
			}
			return kont.Pure(kont.Left[[]byte, []byte](append(acc, b...)))
		})
	})
}
