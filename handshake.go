// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ntls

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"code.hybscloud.com/iox"
	"github.com/rs/zerolog"
)

// HandshakeState is the state of a Handshake driver.
type HandshakeState uint8

const (
	// HandshakeStarted: no attempt has been suspended yet.
	HandshakeStarted HandshakeState = iota
	// HandshakeSuspended: the engine is waiting for transport readiness.
	HandshakeSuspended
	// HandshakeEstablished: the engine produced a session. Terminal.
	HandshakeEstablished
	// HandshakeFailed: the engine or the transport failed. Terminal.
	HandshakeFailed
)

func (s HandshakeState) String() string {
	switch s {
	case HandshakeStarted:
		return "started"
	case HandshakeSuspended:
		return "suspended"
	case HandshakeEstablished:
		return "established"
	case HandshakeFailed:
		return "failed"
	}
	return "unknown"
}

// AbandonPolicy decides what Abandon does to a handshake in progress.
type AbandonPolicy uint8

const (
	// AbandonFail makes an abandoned handshake terminal with ErrAbandoned.
	AbandonFail AbandonPolicy = iota
	// AbandonRestart discards engine state; the next Poll starts over on the
	// same transport. Bytes already exchanged with the peer are not undone.
	AbandonRestart
)

func (p AbandonPolicy) String() string {
	if p == AbandonRestart {
		return "restart"
	}
	return "fail"
}

// ParseAbandonPolicy parses "fail" or "restart".
func ParseAbandonPolicy(s string) (AbandonPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail":
		return AbandonFail, nil
	case "restart":
		return AbandonRestart, nil
	}
	return 0, fmt.Errorf("ntls: unknown abandon policy %q", s)
}

// Handshake drives a synchronous handshake from a poll-based caller.
//
// Poll re-invokes the same start/continue handshaker on every call. It never
// retries on its own: after a suspension the caller polls again only once
// its Context has been woken by the transport.
type Handshake[S Transport] struct {
	adapter *Adapter[S]
	start   HandshakeFunc[S]
	hs      Handshaker
	state   HandshakeState
	err     error
	polls   int
	policy  AbandonPolicy
	role    string
	log     zerolog.Logger
	metrics *Metrics
}

// HandshakeOption configures a Handshake.
type HandshakeOption func(*handshakeConfig)

type handshakeConfig struct {
	policy  AbandonPolicy
	role    string
	log     zerolog.Logger
	metrics *Metrics
}

// WithAbandonPolicy sets the policy applied by Abandon.
func WithAbandonPolicy(p AbandonPolicy) HandshakeOption {
	return func(c *handshakeConfig) { c.policy = p }
}

// WithRole labels the handshake in logs and metrics, e.g. "client".
func WithRole(role string) HandshakeOption {
	return func(c *handshakeConfig) { c.role = role }
}

// WithHandshakeLogger logs state transitions at debug level.
func WithHandshakeLogger(l zerolog.Logger) HandshakeOption {
	return func(c *handshakeConfig) { c.log = l }
}

// WithHandshakeMetrics records handshake outcomes and suspensions.
func WithHandshakeMetrics(m *Metrics) HandshakeOption {
	return func(c *handshakeConfig) { c.metrics = m }
}

// NewHandshake returns a driver that owns inner until the handshake ends.
func NewHandshake[S Transport](inner S, start HandshakeFunc[S], opts ...HandshakeOption) *Handshake[S] {
	cfg := handshakeConfig{role: "peer", log: zerolog.Nop()}
	for _, o := range opts {
		o(&cfg)
	}
	return &Handshake[S]{
		adapter: newAdapter(inner),
		start:   start,
		policy:  cfg.policy,
		role:    cfg.role,
		log:     cfg.log,
		metrics: cfg.metrics,
	}
}

// Poll starts or continues the handshake.
//
// It returns the established Stream exactly once, iox.ErrWouldBlock while the
// handshake is suspended, or the terminal error. Polling after the Stream was
// returned yields ErrHandshakeDone.
func (h *Handshake[S]) Poll(cx *Context) (*Stream[S], error) {
	switch h.state {
	case HandshakeEstablished:
		return nil, ErrHandshakeDone
	case HandshakeFailed:
		return nil, h.err
	}
	h.polls++
	eng, err := withContext(h.adapter, cx, func() (Engine, error) {
		if h.hs == nil {
			hs, err := h.start(h.adapter)
			if err != nil {
				return nil, err
			}
			h.hs = hs
		}
		return h.hs.Handshake()
	})
	switch {
	case err == nil:
		h.transition(HandshakeEstablished)
		h.hs = nil
		h.metrics.handshake(h.role, "established")
		return &Stream[S]{
			engine:  eng,
			adapter: h.adapter,
			serial:  nextSerial(),
			metrics: h.metrics,
		}, nil
	case iox.IsWouldBlock(err):
		h.transition(HandshakeSuspended)
		h.metrics.suspended("handshake")
		return nil, iox.ErrWouldBlock
	}
	if errors.Is(err, io.EOF) {
		// The peer hung up before the session was established.
		err = &Error{Kind: KindTransport, Op: "handshake", Err: io.ErrUnexpectedEOF}
	}
	h.err = classify("handshake", err, h.adapter.fault)
	h.hs = nil
	h.transition(HandshakeFailed)
	h.metrics.handshake(h.role, "failed")
	return nil, h.err
}

// Abandon gives up the handshake in progress according to the policy.
// It has no effect on a handshake that already ended.
func (h *Handshake[S]) Abandon() {
	if h.state == HandshakeEstablished || h.state == HandshakeFailed {
		return
	}
	h.hs = nil
	if h.policy == AbandonRestart {
		h.transition(HandshakeStarted)
		return
	}
	h.err = ErrAbandoned
	h.transition(HandshakeFailed)
	h.metrics.handshake(h.role, "abandoned")
}

// State returns the current state.
func (h *Handshake[S]) State() HandshakeState {
	return h.state
}

// Err returns the terminal error of a failed handshake.
func (h *Handshake[S]) Err() error {
	return h.err
}

// Polls returns how many times the handshaker has been invoked.
func (h *Handshake[S]) Polls() int {
	return h.polls
}

// Inner returns the transport. After a failure its secure-session state is
// undefined; reusing it is at the caller's risk.
func (h *Handshake[S]) Inner() S {
	return h.adapter.Inner()
}

func (h *Handshake[S]) transition(to HandshakeState) {
	from := h.state
	h.state = to
	h.log.Debug().
		Str("role", h.role).
		Stringer("from", from).
		Stringer("to", to).
		Int("polls", h.polls).
		Err(h.err).
		Msg("handshake")
}
