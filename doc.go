// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ntls drives a synchronous secure-session engine from a
// non-blocking, poll-based execution model.
//
// A poll operation either completes, fails, or returns
// [code.hybscloud.com/iox.ErrWouldBlock] after arranging for the caller's
// [Context] to be woken. The engine itself is written against ordinary
// blocking-style Read and Write calls; the package installs the caller's
// Context in an [Adapter] for the duration of one engine call, so the
// transport can register the wake deep inside the engine's call stack.
// The Context never outlives that call.
//
// # Architecture
//
//   - Transport: [Transport] is the poll-based byte stream. [Pipe] is an in-memory pair on bounded lock-free SPSC queues via [code.hybscloud.com/lfq]; on Linux, [TCPConn] and [TCPListener] are driven by an epoll [Poller].
//   - Handshake: [Handshake] re-invokes the engine's start/continue handshake on every [Handshake.Poll] and yields a [Stream] exactly once.
//   - Stream: [Stream.PollRead], [Stream.PollWrite], [Stream.PollFlush] and [Stream.PollClose] run one engine call each.
//   - Errors: terminal failures are [*Error] values of kind [KindTransport], [KindProtocol] or [KindConfig]. Suspension is never an error value.
//
// # TLS
//
// [NewConnector] and [NewAcceptor] build TLS endpoints from [Option]s;
// [Connect] and [Accept] start handshakes over any Transport. [Plain] is a
// pass-through engine for plaintext transports.
//
// # Protocols
//
//   - Operations: [Read], [Write], [Flush], [Shutdown] as algebraic effects on [code.hybscloud.com/kont].
//   - Cont-world: [ReadBind], [WriteThen], [FlushThen], [ShutdownDone], [ReadAll], [Loop].
//   - Expr-world: [ExprReadBind], [ExprWriteThen], [ExprFlushThen], [ExprShutdownDone], [ExprLoop], [Echo]. Bridge via [Reify] and [Reflect].
//   - Stepping: [Step] and [Advance] evaluate a protocol one effect at a time for use in an event loop.
//   - Blocking: [Exec], [ExecExpr] and [Block] park the goroutine until the transport wakes it.
//   - Pairs: [Run] and [RunExpr] drive a client and a server on one goroutine.
//
// # Example
//
//	a, b := ntls.Pipe()
//	client, server := ntls.Plain(a), ntls.Plain(b)
//	ra, rb := ntls.RunExpr(
//		client, ntls.ExprWriteThen([]byte("hello"), ntls.ExprShutdownDone(struct{}{})),
//		server, ntls.Reify(ntls.ReadAll()),
//	)
package ntls
