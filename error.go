// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ntls

import (
	"errors"
	"io"
	"net"

	"code.hybscloud.com/iox"
)

// ErrorKind tells where a terminal failure originated.
type ErrorKind uint8

const (
	// KindTransport is a failure reported by the underlying transport.
	KindTransport ErrorKind = iota + 1
	// KindProtocol is a failure of the secure-session engine: handshake
	// rejection, certificate verification or record-layer error.
	KindProtocol
	// KindConfig is a credential or configuration error. It only occurs
	// while a connector or acceptor is being built.
	KindConfig
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindConfig:
		return "config"
	}
	return "unknown"
}

// Error is a terminal failure of an operation.
// Suspension is never reported as an Error.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return "ntls: " + e.Op + ": " + e.Kind.String() + ": " + e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

var (
	// ErrAbandoned is returned by a handshake abandoned under AbandonFail.
	ErrAbandoned = errors.New("ntls: handshake abandoned")
	// ErrHandshakeDone is returned when polling a handshake whose stream
	// has already been handed out.
	ErrHandshakeDone = errors.New("ntls: handshake already established")
	// ErrNotBuffered is returned by Adapter.Peek on unbuffered transports.
	ErrNotBuffered = errors.New("ntls: transport is not buffered")
	// ErrStalled is returned by Run when neither side can make progress.
	ErrStalled = errors.New("ntls: session pair stalled")
	// ErrUnsupportedProtocol is returned when the configured protocol
	// version range excludes every version the engine speaks.
	ErrUnsupportedProtocol = errors.New("ntls: unsupported protocol version range")
)

// IsTransport reports whether err is a transport-origin failure.
func IsTransport(err error) bool { return isKind(err, KindTransport) }

// IsProtocol reports whether err is an engine-origin failure.
func IsProtocol(err error) bool { return isKind(err, KindProtocol) }

// IsConfig reports whether err is a construction-time failure.
func IsConfig(err error) bool { return isKind(err, KindConfig) }

func isKind(err error, k ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

func configError(op string, err error) error {
	return &Error{Kind: KindConfig, Op: op, Err: err}
}

// classify maps the result of one engine call to the three-way outcome.
// fault is the transport failure the adapter saw during the call, if any.
func classify(op string, err, fault error) error {
	switch {
	case err == nil:
		return nil
	case iox.IsWouldBlock(err):
		return iox.ErrWouldBlock
	case errors.Is(err, io.EOF):
		return io.EOF
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if fault != nil {
		return &Error{Kind: KindTransport, Op: op, Err: fault}
	}
	return &Error{Kind: KindProtocol, Op: op, Err: err}
}

// closedEarly reports whether err means the stream was already finished.
func closedEarly(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed)
}
