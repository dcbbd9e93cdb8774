// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ntls_test

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"io"
	"math/big"
	"testing"
	"time"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/kont"
	"code.hybscloud.com/ntls"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// scripted is one outcome replayed by scriptTransport.
type scripted struct {
	data []byte
	err  error
}

var notReady = scripted{err: iox.ErrWouldBlock}

func ready(s string) scripted { return scripted{data: []byte(s)} }

// scriptTransport replays scripted read outcomes and records writes.
// A read past the end of the script reports io.EOF.
type scriptTransport struct {
	reads    []scripted
	written  bytes.Buffer
	writeErr error
	closeErr error
	closes   int
	wakers   []ntls.Waker
}

func (s *scriptTransport) PollRead(cx *ntls.Context, p []byte) (int, error) {
	if len(s.reads) == 0 {
		return 0, io.EOF
	}
	next := s.reads[0]
	if next.err != nil {
		s.reads = s.reads[1:]
		if iox.IsWouldBlock(next.err) {
			s.wakers = append(s.wakers, cx.Waker())
		}
		return 0, next.err
	}
	n := copy(p, next.data)
	if n < len(next.data) {
		s.reads[0].data = next.data[n:]
	} else {
		s.reads = s.reads[1:]
	}
	return n, nil
}

func (s *scriptTransport) PollWrite(_ *ntls.Context, p []byte) (int, error) {
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	return s.written.Write(p)
}

func (s *scriptTransport) PollFlush(*ntls.Context) error { return nil }

func (s *scriptTransport) PollClose(*ntls.Context) error {
	s.closes++
	return s.closeErr
}

// wakeCount counts wakes.
type wakeCount int

func (w *wakeCount) Wake() { *w++ }

// plainStream establishes a plaintext stream over inner.
func plainStream[S ntls.Transport](t *testing.T, inner S, opts ...ntls.HandshakeOption) *ntls.Stream[S] {
	t.Helper()
	var w wakeCount
	s, err := ntls.Plain(inner, opts...).Poll(ntls.NewContext(&w))
	if err != nil {
		t.Fatalf("plain handshake: %v", err)
	}
	return s
}

// selfSigned returns an ECDSA P-256 identity whose certificate is its own
// issuer, valid for names.
func selfSigned(tb testing.TB, names ...string) *ntls.Identity {
	tb.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		tb.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: "ntls test"},
		DNSNames:              names,
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		tb.Fatal(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		tb.Fatal(err)
	}
	id, err := ntls.NewIdentity(key, cert)
	if err != nil {
		tb.Fatal(err)
	}
	return id
}

// sendAll writes p and shuts the stream down.
func sendAll(p []byte) kont.Eff[struct{}] {
	return ntls.WriteThen(p, ntls.ShutdownDone(struct{}{}))
}

func counterValue(tb testing.TB, c prometheus.Counter) float64 {
	tb.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		tb.Fatal(err)
	}
	return m.GetCounter().GetValue()
}

// handshakerFunc adapts a function to ntls.Handshaker.
type handshakerFunc func() (ntls.Engine, error)

func (f handshakerFunc) Handshake() (ntls.Engine, error) { return f() }

// fakeEngine is an ntls.Engine built from optional functions.
type fakeEngine struct {
	read     func([]byte) (int, error)
	write    func([]byte) (int, error)
	flush    func() error
	shutdown func() error
}

func (e *fakeEngine) Read(p []byte) (int, error) {
	if e.read == nil {
		return 0, io.EOF
	}
	return e.read(p)
}

func (e *fakeEngine) Write(p []byte) (int, error) {
	if e.write == nil {
		return len(p), nil
	}
	return e.write(p)
}

func (e *fakeEngine) Flush() error {
	if e.flush == nil {
		return nil
	}
	return e.flush()
}

func (e *fakeEngine) Shutdown() error {
	if e.shutdown == nil {
		return nil
	}
	return e.shutdown()
}

// establish returns a stream over inner driven by eng, and the adapter
// eng is bound to.
func establish[S ntls.Transport](t *testing.T, inner S, eng func(*ntls.Adapter[S]) ntls.Engine, opts ...ntls.HandshakeOption) (*ntls.Stream[S], *ntls.Adapter[S]) {
	t.Helper()
	var adapter *ntls.Adapter[S]
	hs := ntls.NewHandshake(inner, func(a *ntls.Adapter[S]) (ntls.Handshaker, error) {
		adapter = a
		e := eng(a)
		return handshakerFunc(func() (ntls.Engine, error) { return e, nil }), nil
	}, opts...)
	s, err := hs.Poll(ntls.NewContext(new(wakeCount)))
	if err != nil {
		t.Fatalf("handshake: %v", err)
	}
	return s, adapter
}
