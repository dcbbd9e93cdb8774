// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ntls

import (
	"errors"
	"io"

	"code.hybscloud.com/kont"
)

// defaultReadSize is the buffer size of a Read with no Max.
const defaultReadSize = 4 << 10

// streamContext is the dispatch target of stream effects: a transport
// (usually a *Stream) and the scheduling handle of the driving task.
type streamContext struct {
	t  Transport
	cx *Context
}

// streamDispatcher is the structural interface for stream operations.
// DispatchStream is non-blocking: it returns iox.ErrWouldBlock when the
// transport cannot make progress, after the transport arranged a wake.
type streamDispatcher interface {
	DispatchStream(ctx *streamContext) (kont.Resumed, error)
}

// Read is the effect operation for reading up to Max bytes.
// Perform(Read{}) resumes with the bytes read. An empty slice means
// end of stream.
type Read struct {
	kont.Phantom[[]byte]
	Max int
}

// eof is the pre-boxed end-of-stream result.
var eof kont.Resumed = []byte{}

// DispatchStream handles Read on the transport.
func (r Read) DispatchStream(ctx *streamContext) (kont.Resumed, error) {
	size := r.Max
	if size <= 0 {
		size = defaultReadSize
	}
	buf := make([]byte, size)
	n, err := ctx.t.PollRead(ctx.cx, buf)
	if errors.Is(err, io.EOF) {
		return eof, nil
	}
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// Write is the effect operation for writing Data.
// Perform(Write{Data: p}) resumes with the number of bytes accepted,
// which may be less than len(p).
type Write struct {
	kont.Phantom[int]
	Data []byte
}

// DispatchStream handles Write on the transport.
func (w Write) DispatchStream(ctx *streamContext) (kont.Resumed, error) {
	n, err := ctx.t.PollWrite(ctx.cx, w.Data)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Flush is the effect operation for flushing buffered output.
type Flush struct {
	kont.Phantom[struct{}]
}

// DispatchStream handles Flush on the transport.
func (Flush) DispatchStream(ctx *streamContext) (kont.Resumed, error) {
	if err := ctx.t.PollFlush(ctx.cx); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}

// Shutdown is the effect operation for closing the stream gracefully.
type Shutdown struct {
	kont.Phantom[struct{}]
}

// DispatchStream handles Shutdown on the transport.
func (Shutdown) DispatchStream(ctx *streamContext) (kont.Resumed, error) {
	if err := ctx.t.PollClose(ctx.cx); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}
