// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ntls

// Transport is a non-blocking, poll-based byte stream.
//
// Every operation either completes, fails, or returns iox.ErrWouldBlock
// after arranging for cx to be woken when it may be retried.
// PollRead returns (0, io.EOF) at end of stream.
type Transport interface {
	PollRead(cx *Context, p []byte) (int, error)
	PollWrite(cx *Context, p []byte) (int, error)
	PollFlush(cx *Context) error
	PollClose(cx *Context) error
}

// BufferedTransport is a Transport with an internal read buffer.
// PollFill returns the buffered bytes without consuming them, filling the
// buffer first if it is empty. Consume discards n bytes of it.
type BufferedTransport interface {
	Transport
	PollFill(cx *Context) ([]byte, error)
	Consume(n int)
}
