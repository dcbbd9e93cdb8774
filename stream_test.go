// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ntls_test

import (
	"errors"
	"io"
	"net"
	"testing"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/ntls"
	"github.com/prometheus/client_golang/prometheus"
)

// Two not-ready reads suspend exactly twice, then the data is delivered
// without loss or duplication.
func TestStreamReadSuspendsUntilReady(t *testing.T) {
	st := &scriptTransport{reads: []scripted{notReady, notReady, ready("abc")}}
	m := ntls.NewMetrics(prometheus.NewRegistry())
	s := plainStream(t, st, ntls.WithHandshakeMetrics(m))
	cx := ntls.NewContext(new(wakeCount))
	p := make([]byte, 8)

	for i := range 2 {
		n, err := s.PollRead(cx, p)
		if !iox.IsWouldBlock(err) || n != 0 {
			t.Fatalf("read %d: got (%d, %v), want suspension", i, n, err)
		}
	}
	n, err := s.PollRead(cx, p)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(p[:n]); got != "abc" {
		t.Fatalf("got %q, want %q", got, "abc")
	}
	if len(st.wakers) != 2 {
		t.Fatalf("registered %d wakers, want 2", len(st.wakers))
	}
	if v := counterValue(t, m.Suspensions("read")); v != 2 {
		t.Fatalf("suspensions = %v, want 2", v)
	}
	if _, err := s.PollRead(cx, p); !errors.Is(err, io.EOF) {
		t.Fatalf("got %v, want io.EOF", err)
	}
}

func TestStreamSuspensionIsNotAnError(t *testing.T) {
	st := &scriptTransport{reads: []scripted{notReady}}
	s := plainStream(t, st)
	_, err := s.PollRead(ntls.NewContext(new(wakeCount)), make([]byte, 1))
	var e *ntls.Error
	if errors.As(err, &e) {
		t.Fatalf("suspension reported as %v", e)
	}
}

func TestStreamWrite(t *testing.T) {
	st := &scriptTransport{}
	s := plainStream(t, st)
	cx := ntls.NewContext(new(wakeCount))
	n, err := s.PollWrite(cx, []byte("hello"))
	if err != nil || n != 5 {
		t.Fatalf("got (%d, %v), want (5, nil)", n, err)
	}
	if err := s.PollFlush(cx); err != nil {
		t.Fatal(err)
	}
	if st.written.String() != "hello" {
		t.Fatalf("transport got %q", st.written.String())
	}
}

func TestStreamTransportErrorKind(t *testing.T) {
	boom := errors.New("connection reset")
	st := &scriptTransport{reads: []scripted{{err: boom}}}
	s := plainStream(t, st)
	_, err := s.PollRead(ntls.NewContext(new(wakeCount)), make([]byte, 1))
	if !ntls.IsTransport(err) {
		t.Fatalf("got %v, want transport error", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("%v does not wrap the transport cause", err)
	}
}

func TestStreamProtocolErrorKind(t *testing.T) {
	bad := errors.New("bad record mac")
	s, _ := establish(t, &scriptTransport{}, func(*ntls.Adapter[*scriptTransport]) ntls.Engine {
		return &fakeEngine{read: func([]byte) (int, error) { return 0, bad }}
	})
	_, err := s.PollRead(ntls.NewContext(new(wakeCount)), make([]byte, 1))
	if !ntls.IsProtocol(err) || !errors.Is(err, bad) {
		t.Fatalf("got %v, want protocol error wrapping %v", err, bad)
	}
	var e *ntls.Error
	if errors.As(err, &e) && e.Op != "read" {
		t.Fatalf("op = %q, want read", e.Op)
	}
}

func TestStreamCloseIdempotent(t *testing.T) {
	st := &scriptTransport{}
	s := plainStream(t, st)
	cx := ntls.NewContext(new(wakeCount))
	for range 3 {
		if err := s.PollClose(cx); err != nil {
			t.Fatal(err)
		}
	}
	if st.closes != 1 {
		t.Fatalf("transport closed %d times, want 1", st.closes)
	}
}

func TestStreamCloseTolerantOfFinishedTransport(t *testing.T) {
	for _, cause := range []error{io.EOF, io.ErrClosedPipe, net.ErrClosed} {
		st := &scriptTransport{closeErr: cause}
		s := plainStream(t, st)
		if err := s.PollClose(ntls.NewContext(new(wakeCount))); err != nil {
			t.Fatalf("%v: got %v, want completion", cause, err)
		}
	}
}

func TestStreamCloseSuspends(t *testing.T) {
	pending := true
	s, _ := establish(t, &scriptTransport{}, func(*ntls.Adapter[*scriptTransport]) ntls.Engine {
		return &fakeEngine{shutdown: func() error {
			if pending {
				pending = false
				return iox.ErrWouldBlock
			}
			return nil
		}}
	})
	cx := ntls.NewContext(new(wakeCount))
	if err := s.PollClose(cx); !iox.IsWouldBlock(err) {
		t.Fatalf("got %v, want suspension", err)
	}
	if err := s.PollClose(cx); err != nil {
		t.Fatal(err)
	}
}

func TestStreamSerialsIncrease(t *testing.T) {
	a := plainStream(t, &scriptTransport{})
	b := plainStream(t, &scriptTransport{})
	if b.Serial() <= a.Serial() {
		t.Fatalf("serials %d then %d", a.Serial(), b.Serial())
	}
}

func TestStreamBufferedRead(t *testing.T) {
	st := &scriptTransport{reads: []scripted{notReady, ready("abc"), ready("de")}}
	s := plainStream(t, st)
	var bt ntls.BufferedTransport = s
	cx := ntls.NewContext(new(wakeCount))

	if _, err := bt.PollFill(cx); !iox.IsWouldBlock(err) {
		t.Fatalf("got %v, want suspension", err)
	}
	b, err := bt.PollFill(cx)
	if err != nil || string(b) != "abc" {
		t.Fatalf("got (%q, %v)", b, err)
	}
	// Filling again without consuming returns the same bytes.
	if b, _ := bt.PollFill(cx); string(b) != "abc" {
		t.Fatalf("refill got %q", b)
	}
	bt.Consume(1)

	p := make([]byte, 8)
	n, err := s.PollRead(cx, p)
	if err != nil || string(p[:n]) != "bc" {
		t.Fatalf("read after consume got (%q, %v)", p[:n], err)
	}
	b, err = bt.PollFill(cx)
	if err != nil || string(b) != "de" {
		t.Fatalf("got (%q, %v)", b, err)
	}
	bt.Consume(len(b))
	if _, err := bt.PollFill(cx); !errors.Is(err, io.EOF) {
		t.Fatalf("got %v, want io.EOF", err)
	}
}

// A stream can itself be the transport of an inner adapter, whose Peek
// then sees the stream's buffered bytes.
func TestStreamAsBufferedInner(t *testing.T) {
	outer := plainStream(t, &scriptTransport{reads: []scripted{ready("nested")}})
	inner, _ := establish(t, outer, func(a *ntls.Adapter[*ntls.Stream[*scriptTransport]]) ntls.Engine {
		return &fakeEngine{read: func(p []byte) (int, error) {
			b, err := a.Peek()
			if err != nil {
				return 0, err
			}
			n := copy(p, b)
			a.Consume(n)
			return n, nil
		}}
	})
	p := make([]byte, 3)
	cx := ntls.NewContext(new(wakeCount))
	if n, err := inner.PollRead(cx, p); err != nil || string(p[:n]) != "nes" {
		t.Fatalf("got (%q, %v)", p[:n], err)
	}
	if b, err := outer.PollFill(cx); err != nil || string(b) != "ted" {
		t.Fatalf("outer buffer got (%q, %v)", b, err)
	}
}
