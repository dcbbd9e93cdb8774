// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ntls_test

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/ntls"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// readN is a handshake that must read n bytes from the transport,
// keeping its progress across suspensions.
func readN(n int, starts *int) ntls.HandshakeFunc[*scriptTransport] {
	return func(a *ntls.Adapter[*scriptTransport]) (ntls.Handshaker, error) {
		*starts++
		got := 0
		return handshakerFunc(func() (ntls.Engine, error) {
			buf := make([]byte, 1)
			for got < n {
				if _, err := a.Read(buf); err != nil {
					return nil, err
				}
				got++
			}
			h, _ := ntls.PlainHandshake(a)
			return h.Handshake()
		}), nil
	}
}

func TestHandshakeStates(t *testing.T) {
	st := &scriptTransport{reads: []scripted{ready("x"), notReady, ready("y"), notReady, ready("z")}}
	var starts int
	hs := ntls.NewHandshake(st, readN(3, &starts))
	cx := ntls.NewContext(new(wakeCount))

	if hs.State() != ntls.HandshakeStarted {
		t.Fatalf("initial state %v", hs.State())
	}
	for i := range 2 {
		if _, err := hs.Poll(cx); !iox.IsWouldBlock(err) {
			t.Fatalf("poll %d: got %v, want suspension", i, err)
		}
		if hs.State() != ntls.HandshakeSuspended {
			t.Fatalf("poll %d: state %v", i, hs.State())
		}
	}
	s, err := hs.Poll(cx)
	if err != nil || s == nil {
		t.Fatalf("got (%v, %v), want stream", s, err)
	}
	if hs.State() != ntls.HandshakeEstablished {
		t.Fatalf("state %v", hs.State())
	}
	// One poll per readiness transition plus the first.
	if hs.Polls() != 3 {
		t.Fatalf("polls = %d, want 3", hs.Polls())
	}
	if starts != 1 {
		t.Fatalf("handshake started %d times, want 1", starts)
	}
	if _, err := hs.Poll(cx); !errors.Is(err, ntls.ErrHandshakeDone) {
		t.Fatalf("got %v, want ErrHandshakeDone", err)
	}
}

func TestHandshakeTransportFailureSticky(t *testing.T) {
	boom := errors.New("broken pipe")
	var starts int
	hs := ntls.NewHandshake(&scriptTransport{reads: []scripted{{err: boom}}}, readN(1, &starts))
	cx := ntls.NewContext(new(wakeCount))
	_, err := hs.Poll(cx)
	if !ntls.IsTransport(err) || !errors.Is(err, boom) {
		t.Fatalf("got %v, want transport error", err)
	}
	if hs.State() != ntls.HandshakeFailed {
		t.Fatalf("state %v", hs.State())
	}
	if _, again := hs.Poll(cx); again != err {
		t.Fatalf("second poll got %v, want %v", again, err)
	}
	if hs.Polls() != 1 {
		t.Fatalf("failed handshake re-invoked the engine")
	}
}

func TestHandshakeEndOfStreamIsTransportFailure(t *testing.T) {
	var starts int
	hs := ntls.NewHandshake(&scriptTransport{reads: []scripted{ready("a")}}, readN(2, &starts))
	_, err := hs.Poll(ntls.NewContext(new(wakeCount)))
	if !ntls.IsTransport(err) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("got %v, want transport error wrapping %v", err, io.ErrUnexpectedEOF)
	}
	if errors.Is(err, io.EOF) {
		t.Fatalf("%v still reads as a clean end of stream", err)
	}
}

func TestHandshakePeerHangsUpAfterClientHello(t *testing.T) {
	skipRace(t)
	connector, err := ntls.NewConnector(ntls.WithAcceptInvalidCerts(true))
	if err != nil {
		t.Fatal(err)
	}
	a, b := ntls.Pipe()
	hs := ntls.Connect(connector, "localhost", a)
	cx := ntls.NewContext(new(wakeCount))
	if _, err := hs.Poll(cx); !iox.IsWouldBlock(err) {
		t.Fatalf("first poll got %v, want suspension", err)
	}

	buf := make([]byte, 4096)
	hello := 0
	for {
		n, err := b.PollRead(cx, buf)
		if iox.IsWouldBlock(err) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		hello += n
	}
	if hello == 0 {
		t.Fatal("client sent nothing")
	}
	if err := b.PollClose(cx); err != nil {
		t.Fatal(err)
	}

	_, err = hs.Poll(cx)
	if !ntls.IsTransport(err) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("got %v, want transport error wrapping %v", err, io.ErrUnexpectedEOF)
	}
	if hs.State() != ntls.HandshakeFailed {
		t.Fatalf("state %v", hs.State())
	}
	if _, again := hs.Poll(cx); again != err {
		t.Fatalf("second poll got %v, want %v", again, err)
	}
}

func TestHandshakeProtocolFailure(t *testing.T) {
	alert := errors.New("handshake failure")
	hs := ntls.NewHandshake(&scriptTransport{}, func(*ntls.Adapter[*scriptTransport]) (ntls.Handshaker, error) {
		return handshakerFunc(func() (ntls.Engine, error) { return nil, alert }), nil
	})
	_, err := hs.Poll(ntls.NewContext(new(wakeCount)))
	if !ntls.IsProtocol(err) || !errors.Is(err, alert) {
		t.Fatalf("got %v, want protocol error", err)
	}
	if !errors.Is(hs.Err(), alert) {
		t.Fatalf("Err() = %v", hs.Err())
	}
}

func TestHandshakeAbandonFail(t *testing.T) {
	var starts int
	hs := ntls.NewHandshake(&scriptTransport{reads: []scripted{notReady}}, readN(1, &starts))
	cx := ntls.NewContext(new(wakeCount))
	if _, err := hs.Poll(cx); !iox.IsWouldBlock(err) {
		t.Fatal(err)
	}
	hs.Abandon()
	if _, err := hs.Poll(cx); !errors.Is(err, ntls.ErrAbandoned) {
		t.Fatalf("got %v, want ErrAbandoned", err)
	}
	if hs.State() != ntls.HandshakeFailed {
		t.Fatalf("state %v", hs.State())
	}
}

func TestHandshakeAbandonRestart(t *testing.T) {
	var starts int
	st := &scriptTransport{reads: []scripted{notReady, ready("a")}}
	hs := ntls.NewHandshake(st, readN(1, &starts), ntls.WithAbandonPolicy(ntls.AbandonRestart))
	cx := ntls.NewContext(new(wakeCount))
	if _, err := hs.Poll(cx); !iox.IsWouldBlock(err) {
		t.Fatal(err)
	}
	hs.Abandon()
	if hs.State() != ntls.HandshakeStarted {
		t.Fatalf("state %v, want started", hs.State())
	}
	if _, err := hs.Poll(cx); err != nil {
		t.Fatal(err)
	}
	if starts != 2 {
		t.Fatalf("handshake started %d times, want 2", starts)
	}
	hs.Abandon()
	if hs.State() != ntls.HandshakeEstablished {
		t.Fatalf("abandon changed an established handshake")
	}
}

func TestHandshakeInnerReturned(t *testing.T) {
	st := &scriptTransport{}
	hs := ntls.Plain(st)
	if hs.Inner() != st {
		t.Fatal("Inner returned a different transport")
	}
}

func TestHandshakeLogsAndMetrics(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)
	m := ntls.NewMetrics(prometheus.NewRegistry())
	var starts int
	hs := ntls.NewHandshake(&scriptTransport{reads: []scripted{notReady, ready("a")}}, readN(1, &starts),
		ntls.WithRole("client"), ntls.WithHandshakeLogger(log), ntls.WithHandshakeMetrics(m))
	cx := ntls.NewContext(new(wakeCount))
	_, _ = hs.Poll(cx)
	if _, err := hs.Poll(cx); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{`"to":"suspended"`, `"to":"established"`, `"role":"client"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log %q lacks %s", out, want)
		}
	}
	if v := counterValue(t, m.Handshakes("client", "established")); v != 1 {
		t.Fatalf("established = %v, want 1", v)
	}
	if v := counterValue(t, m.Suspensions("handshake")); v != 1 {
		t.Fatalf("handshake suspensions = %v, want 1", v)
	}
}

func TestHandshakeStateString(t *testing.T) {
	for s, want := range map[ntls.HandshakeState]string{
		ntls.HandshakeStarted:     "started",
		ntls.HandshakeSuspended:   "suspended",
		ntls.HandshakeEstablished: "established",
		ntls.HandshakeFailed:      "failed",
	} {
		if s.String() != want {
			t.Errorf("%d: got %q, want %q", s, s.String(), want)
		}
	}
}

func TestParseAbandonPolicy(t *testing.T) {
	if p, err := ntls.ParseAbandonPolicy("restart"); err != nil || p != ntls.AbandonRestart {
		t.Fatalf("got (%v, %v)", p, err)
	}
	if p, err := ntls.ParseAbandonPolicy(""); err != nil || p != ntls.AbandonFail {
		t.Fatalf("got (%v, %v)", p, err)
	}
	if _, err := ntls.ParseAbandonPolicy("retry"); err == nil {
		t.Fatal("expected error")
	}
}
