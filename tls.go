// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ntls

import (
	"crypto/x509"
	"errors"
	"io"

	"github.com/bifurcation/mint"
	"github.com/rs/zerolog"
)

// Option configures a Connector or an Acceptor.
type Option func(*settings)

type settings struct {
	identity               *Identity
	minVersion             Protocol
	maxVersion             Protocol
	roots                  []*x509.Certificate
	acceptInvalidCerts     bool
	sni                    bool
	acceptInvalidHostnames bool
	log                    zerolog.Logger
	metrics                *Metrics
	abandon                AbandonPolicy
}

func newSettings(opts []Option) settings {
	s := settings{sni: true, log: zerolog.Nop()}
	for _, o := range opts {
		o(&s)
	}
	return s
}

// WithIdentity sets the certificate presented to the peer.
func WithIdentity(id *Identity) Option {
	return func(s *settings) { s.identity = id }
}

// WithMinProtocolVersion sets the lowest acceptable version.
// Zero, the default, accepts the oldest supported version.
func WithMinProtocolVersion(p Protocol) Option {
	return func(s *settings) { s.minVersion = p }
}

// WithMaxProtocolVersion sets the highest acceptable version.
// Zero, the default, sets no upper bound.
func WithMaxProtocolVersion(p Protocol) Option {
	return func(s *settings) { s.maxVersion = p }
}

// WithRootCertificate trusts c in addition to the system roots.
func WithRootCertificate(c *x509.Certificate) Option {
	return func(s *settings) { s.roots = append(s.roots, c) }
}

// WithAcceptInvalidCerts disables all peer certificate verification.
// Any certificate is then trusted; use only for testing.
func WithAcceptInvalidCerts(on bool) Option {
	return func(s *settings) { s.acceptInvalidCerts = on }
}

// WithSNI controls whether the server name is sent. Enabled by default.
func WithSNI(on bool) Option {
	return func(s *settings) { s.sni = on }
}

// WithAcceptInvalidHostnames skips matching the certificate against the
// domain while still verifying the chain.
func WithAcceptInvalidHostnames(on bool) Option {
	return func(s *settings) { s.acceptInvalidHostnames = on }
}

// WithLogger logs handshake transitions at debug level.
func WithLogger(l zerolog.Logger) Option {
	return func(s *settings) { s.log = l }
}

// WithMetrics records handshakes, suspensions and byte counts.
func WithMetrics(m *Metrics) Option {
	return func(s *settings) { s.metrics = m }
}

// WithAbandon sets the AbandonPolicy of every handshake created.
func WithAbandon(p AbandonPolicy) Option {
	return func(s *settings) { s.abandon = p }
}

func (s *settings) handshakeOptions(role string) []HandshakeOption {
	return []HandshakeOption{
		WithRole(role),
		WithHandshakeLogger(s.log),
		WithHandshakeMetrics(s.metrics),
		WithAbandonPolicy(s.abandon),
	}
}

func (s *settings) certificates() []*mint.Certificate {
	if s.identity == nil {
		return nil
	}
	return []*mint.Certificate{{Chain: s.identity.Chain, PrivateKey: s.identity.Key}}
}

// Connector creates client-side TLS handshakes.
// It is immutable after construction and safe for concurrent use.
type Connector struct {
	settings
	pool *x509.CertPool
}

// NewConnector validates opts and returns a Connector.
func NewConnector(opts ...Option) (*Connector, error) {
	s := newSettings(opts)
	if err := checkVersions(s.minVersion, s.maxVersion); err != nil {
		return nil, configError("connector", err)
	}
	pool, err := x509.SystemCertPool()
	if err != nil {
		s.log.Debug().Err(err).Msg("system roots unavailable")
		pool = x509.NewCertPool()
	}
	for _, c := range s.roots {
		pool.AddCert(c)
	}
	return &Connector{settings: s, pool: pool}, nil
}

// Connect starts a client handshake for domain over inner.
// The handshake does no I/O until it is first polled.
func Connect[S Transport](c *Connector, domain string, inner S) *Handshake[S] {
	start := func(a *Adapter[S]) (Handshaker, error) {
		v := &verifier{settings: &c.settings, pool: c.pool, domain: domain}
		cfg := &mint.Config{
			InsecureSkipVerify:    true,
			VerifyPeerCertificate: v.verify,
			Certificates:          c.certificates(),
			NonBlocking:           true,
		}
		if c.sni {
			cfg.ServerName = domain
		}
		if err := cfg.Init(true); err != nil {
			return nil, err
		}
		conn := newMintConn(a)
		return &mintHandshaker[S]{tls: mint.Client(conn, cfg), conn: conn, verify: v}, nil
	}
	return NewHandshake(inner, start, c.handshakeOptions("client")...)
}

// Acceptor creates server-side TLS handshakes.
// It is immutable after construction and safe for concurrent use.
type Acceptor struct {
	settings
}

// NewAcceptor reads a PKCS#12 identity from r and returns an Acceptor.
func NewAcceptor(r io.Reader, password string, opts ...Option) (*Acceptor, error) {
	pfx, err := io.ReadAll(r)
	if err != nil {
		return nil, configError("acceptor", err)
	}
	id, err := ParseIdentity(pfx, password)
	if err != nil {
		return nil, err
	}
	return NewAcceptorFromIdentity(id, opts...)
}

// NewAcceptorFromIdentity returns an Acceptor presenting id.
func NewAcceptorFromIdentity(id *Identity, opts ...Option) (*Acceptor, error) {
	s := newSettings(append(opts, WithIdentity(id)))
	if id == nil || len(id.Chain) == 0 {
		return nil, configError("acceptor", errNoCertificate)
	}
	if err := checkVersions(s.minVersion, s.maxVersion); err != nil {
		return nil, configError("acceptor", err)
	}
	return &Acceptor{settings: s}, nil
}

// Accept starts a server handshake over inner.
func Accept[S Transport](a *Acceptor, inner S) *Handshake[S] {
	start := func(ad *Adapter[S]) (Handshaker, error) {
		cfg := &mint.Config{
			Certificates: a.certificates(),
			NonBlocking:  true,
		}
		if err := cfg.Init(false); err != nil {
			return nil, err
		}
		conn := newMintConn(ad)
		return &mintHandshaker[S]{tls: mint.Server(conn, cfg), conn: conn}, nil
	}
	return NewHandshake(inner, start, a.handshakeOptions("server")...)
}

// verifier applies the certificate policy to the chain sent by a server.
type verifier struct {
	settings *settings
	pool     *x509.CertPool
	domain   string
	err      error
}

func (v *verifier) verify(raw [][]byte, _ [][]*x509.Certificate) error {
	v.err = v.check(raw)
	return v.err
}

func (v *verifier) check(raw [][]byte) error {
	if v.settings.acceptInvalidCerts {
		return nil
	}
	if len(raw) == 0 {
		return errors.New("peer sent no certificate")
	}
	certs := make([]*x509.Certificate, len(raw))
	for i, der := range raw {
		c, err := x509.ParseCertificate(der)
		if err != nil {
			return err
		}
		certs[i] = c
	}
	opts := x509.VerifyOptions{
		Roots:         v.pool,
		Intermediates: x509.NewCertPool(),
	}
	for _, c := range certs[1:] {
		opts.Intermediates.AddCert(c)
	}
	if !v.settings.acceptInvalidHostnames {
		opts.DNSName = v.domain
	}
	_, err := certs[0].Verify(opts)
	return err
}
