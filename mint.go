// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ntls

import (
	"errors"
	"io"
	"net"
	"time"

	"code.hybscloud.com/iox"
	"github.com/bifurcation/mint"
	"github.com/eapache/queue"
)

// highWater is the number of queued outbound bytes above which
// Write suspends until the transport drains.
const highWater = 64 << 10

// maxRecordPlaintext is the largest plaintext mint accepts in one Write:
// the 2^14 fragment limit less the TLS 1.3 inner content-type byte.
// The engine does not fragment, so larger writes are cut short here.
const maxRecordPlaintext = 1<<14 - 1

// maxHandshakeSteps bounds state-machine steps taken in one call.
const maxHandshakeSteps = 64

var errHandshakeStuck = errors.New("handshake made no progress")

// outChunk is a pending outbound write. b shrinks as it drains.
type outChunk struct {
	b []byte
}

// mintConn presents an Adapter as the net.Conn the TLS engine expects.
//
// Reads that would block report mint.AlertWouldBlock, which the engine
// treats as resumable in non-blocking mode. Writes never fail on
// backpressure: records are queued and drained when the transport is ready.
type mintConn[S Transport] struct {
	a       *Adapter[S]
	out     *queue.Queue
	queued  int
	closing bool
}

func newMintConn[S Transport](a *Adapter[S]) *mintConn[S] {
	return &mintConn[S]{a: a, out: queue.New()}
}

func (c *mintConn[S]) Read(p []byte) (int, error) {
	n, err := c.a.Read(p)
	if iox.IsWouldBlock(err) {
		return 0, mint.AlertWouldBlock
	}
	return n, err
}

func (c *mintConn[S]) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	c.out.Add(&outChunk{b: append([]byte(nil), p...)})
	c.queued += len(p)
	// p is owned by the queue from here on, whatever drain reports.
	if err := c.drain(); err != nil && !iox.IsWouldBlock(err) {
		return len(p), err
	}
	return len(p), nil
}

// Close marks the connection as closing. The transport is closed by
// mintEngine.Shutdown once the queue has drained.
func (c *mintConn[S]) Close() error {
	c.closing = true
	return nil
}

// drain writes queued chunks in order until the queue is empty or the
// transport reports an error.
func (c *mintConn[S]) drain() error {
	for c.out.Length() > 0 {
		ch := c.out.Peek().(*outChunk)
		n, err := c.a.Write(ch.b)
		ch.b = ch.b[n:]
		c.queued -= n
		if len(ch.b) == 0 {
			c.out.Remove()
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
	}
	return nil
}

func (c *mintConn[S]) LocalAddr() net.Addr              { return pipeAddr{} }
func (c *mintConn[S]) RemoteAddr() net.Addr             { return pipeAddr{} }
func (c *mintConn[S]) SetDeadline(time.Time) error      { return nil }
func (c *mintConn[S]) SetReadDeadline(time.Time) error  { return nil }
func (c *mintConn[S]) SetWriteDeadline(time.Time) error { return nil }

type pipeAddr struct{}

func (pipeAddr) Network() string { return "ntls" }
func (pipeAddr) String() string  { return "ntls" }

// mintError maps engine alerts onto the package outcomes.
func mintError(err error) error {
	var alert mint.Alert
	if !errors.As(err, &alert) {
		return err
	}
	switch alert {
	case mint.AlertNoAlert:
		return nil
	case mint.AlertWouldBlock:
		return iox.ErrWouldBlock
	case mint.AlertCloseNotify:
		return io.EOF
	}
	return err
}

// mintHandshaker continues a non-blocking engine handshake.
type mintHandshaker[S Transport] struct {
	tls    *mint.Conn
	conn   *mintConn[S]
	verify *verifier
}

func (h *mintHandshaker[S]) Handshake() (Engine, error) {
	for range maxHandshakeSteps {
		alert := h.tls.Handshake()
		if err := h.conn.drain(); err != nil && !iox.IsWouldBlock(err) {
			return nil, err
		}
		switch alert {
		case mint.AlertNoAlert:
			if !h.connected() {
				continue
			}
			if h.conn.out.Length() > 0 {
				return nil, iox.ErrWouldBlock
			}
			return &mintEngine[S]{tls: h.tls, conn: h.conn}, nil
		case mint.AlertWouldBlock:
			return nil, iox.ErrWouldBlock
		}
		if h.verify != nil && h.verify.err != nil {
			return nil, &Error{Kind: KindProtocol, Op: "handshake", Err: h.verify.err}
		}
		return nil, mintError(alert)
	}
	return nil, errHandshakeStuck
}

func (h *mintHandshaker[S]) connected() bool {
	switch h.tls.ConnectionState().HandshakeState {
	case mint.StateClientConnected, mint.StateServerConnected:
		return true
	}
	return false
}

// mintEngine is an established engine session.
type mintEngine[S Transport] struct {
	tls  *mint.Conn
	conn *mintConn[S]
}

func (e *mintEngine[S]) Read(p []byte) (int, error) {
	if err := e.conn.drain(); err != nil && !iox.IsWouldBlock(err) {
		return 0, err
	}
	n, err := e.tls.Read(p)
	if n > 0 {
		return n, nil
	}
	return 0, mintError(err)
}

func (e *mintEngine[S]) Write(p []byte) (int, error) {
	if e.conn.closing {
		return 0, io.ErrClosedPipe
	}
	if e.conn.queued >= highWater {
		if err := e.conn.drain(); err != nil {
			return 0, err
		}
	}
	n, err := e.tls.Write(p[:min(len(p), maxRecordPlaintext)])
	return n, mintError(err)
}

func (e *mintEngine[S]) Flush() error {
	if err := e.conn.drain(); err != nil {
		return err
	}
	return e.conn.a.Flush()
}

func (e *mintEngine[S]) Shutdown() error {
	if !e.conn.closing {
		if err := mintError(e.tls.Close()); err != nil && !iox.IsWouldBlock(err) {
			return err
		}
		e.conn.closing = true
	}
	if err := e.conn.drain(); err != nil {
		return err
	}
	return e.conn.a.Close()
}
