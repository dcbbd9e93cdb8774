// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ntls

import (
	"io"
	"sync/atomic"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"
)

// defaultPipeCapacity is the bounded number of in-flight chunks per
// direction. Small enough that handshake flights exercise backpressure.
const defaultPipeCapacity = 4

// maxPipeChunk bounds the bytes carried by a single queued chunk.
const maxPipeChunk = 16 << 10

// pipeHalf is one direction of a Pipe: a bounded single-producer
// single-consumer queue of chunks plus the wakers of a blocked reader
// and a blocked writer.
type pipeHalf struct {
	q      lfq.SPSC[[]byte]
	closed atomix.Uint32
	reader atomic.Pointer[Waker]
	writer atomic.Pointer[Waker]
}

func (h *pipeHalf) waitReader(w Waker) { h.reader.Store(&w) }
func (h *pipeHalf) waitWriter(w Waker) { h.writer.Store(&w) }

func (h *pipeHalf) wakeReader() {
	if w := h.reader.Swap(nil); w != nil {
		(*w).Wake()
	}
}

func (h *pipeHalf) wakeWriter() {
	if w := h.writer.Swap(nil); w != nil {
		(*w).Wake()
	}
}

// PipeEnd is one side of an in-memory duplex transport.
// It implements BufferedTransport.
//
// A PipeEnd is driven by one task at a time; its peer may run on
// another goroutine.
type PipeEnd struct {
	in      *pipeHalf
	out     *pipeHalf
	pending []byte
	serial  Serial
}

// pipePair holds both ends and both directions in a single allocation.
type pipePair struct {
	a  PipeEnd
	b  PipeEnd
	ab pipeHalf
	ba pipeHalf
}

// PipeOption configures Pipe.
type PipeOption func(*pipeConfig)

type pipeConfig struct {
	capacity int
}

// WithPipeCapacity sets the number of chunks each direction can hold.
func WithPipeCapacity(n int) PipeOption {
	return func(c *pipeConfig) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// Pipe creates a connected pair of in-memory transports.
//
// Each direction is a bounded lock-free SPSC queue. PollWrite returns
// iox.ErrWouldBlock when the queue is full and PollRead when it is empty,
// after registering the caller's waker with the opposite side.
func Pipe(opts ...PipeOption) (*PipeEnd, *PipeEnd) {
	cfg := pipeConfig{capacity: defaultPipeCapacity}
	for _, o := range opts {
		o(&cfg)
	}
	s := nextSerial()

	pair := &pipePair{}
	pair.ab.q.Init(cfg.capacity)
	pair.ba.q.Init(cfg.capacity)
	pair.a = PipeEnd{in: &pair.ba, out: &pair.ab, serial: s}
	pair.b = PipeEnd{in: &pair.ab, out: &pair.ba, serial: s}
	return &pair.a, &pair.b
}

// Serial returns the serial shared by both ends of the pipe.
func (e *PipeEnd) Serial() Serial {
	return e.serial
}

// PollRead implements Transport.
func (e *PipeEnd) PollRead(cx *Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(e.pending) == 0 {
		if _, err := e.PollFill(cx); err != nil {
			return 0, err
		}
	}
	n := copy(p, e.pending)
	e.Consume(n)
	return n, nil
}

// PollFill implements BufferedTransport.
func (e *PipeEnd) PollFill(cx *Context) ([]byte, error) {
	if len(e.pending) > 0 {
		return e.pending, nil
	}
	// Register before looking, so a chunk enqueued after the check wakes us.
	e.in.waitReader(cx.Waker())
	if e.dequeue() {
		return e.pending, nil
	}
	if e.in.closed.Load() != 0 {
		// The writer enqueues before it closes.
		if e.dequeue() {
			return e.pending, nil
		}
		return nil, io.EOF
	}
	return nil, iox.ErrWouldBlock
}

// Consume implements BufferedTransport.
func (e *PipeEnd) Consume(n int) {
	e.pending = e.pending[min(n, len(e.pending)):]
}

func (e *PipeEnd) dequeue() bool {
	for {
		b, err := e.in.q.Dequeue()
		if err != nil {
			return false
		}
		e.in.wakeWriter()
		if len(b) > 0 {
			e.pending = b
			return true
		}
	}
}

// PollWrite implements Transport. At most one chunk is accepted per call.
func (e *PipeEnd) PollWrite(cx *Context, p []byte) (int, error) {
	if e.out.closed.Load() != 0 {
		return 0, io.ErrClosedPipe
	}
	if len(p) == 0 {
		return 0, nil
	}
	chunk := append([]byte(nil), p[:min(len(p), maxPipeChunk)]...)
	e.out.waitWriter(cx.Waker())
	if err := e.out.q.Enqueue(&chunk); err != nil {
		return 0, iox.ErrWouldBlock
	}
	e.out.wakeReader()
	return len(chunk), nil
}

// PollFlush implements Transport. Written chunks are immediately visible.
func (e *PipeEnd) PollFlush(*Context) error {
	return nil
}

// PollClose closes the write direction. The peer reads the remaining
// chunks and then io.EOF. Closing twice is a no-op.
func (e *PipeEnd) PollClose(*Context) error {
	if e.out.closed.Add(1) == 1 {
		e.out.wakeReader()
	}
	return nil
}
