// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ntls

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the file form of a connector and an acceptor.
type Config struct {
	Connector ConnectorConfig
	Acceptor  AcceptorConfig
}

// ConnectorConfig mirrors the connector Options.
type ConnectorConfig struct {
	MinProtocolVersion     Protocol
	MaxProtocolVersion     Protocol
	RootCertificates       []string
	AcceptInvalidCerts     bool
	SNI                    bool
	AcceptInvalidHostnames bool
	Abandon                AbandonPolicy
}

// AcceptorConfig mirrors the acceptor Options. The identity is either a
// PKCS#12 archive or a PEM certificate and key pair.
type AcceptorConfig struct {
	Identity           string
	Password           string
	CertFile           string
	KeyFile            string
	MinProtocolVersion Protocol
	MaxProtocolVersion Protocol
	Abandon            AbandonPolicy
}

// DefaultConfig returns the settings used for keys a file leaves unset.
func DefaultConfig() Config {
	return Config{Connector: ConnectorConfig{SNI: true}}
}

// config.toml key mapping.
type fileConfig struct {
	Connector struct {
		MinProtocolVersion     string   `toml:"min_protocol_version"`
		MaxProtocolVersion     string   `toml:"max_protocol_version"`
		RootCertificates       []string `toml:"root_certificates"`
		AcceptInvalidCerts     bool     `toml:"accept_invalid_certs"`
		SNI                    bool     `toml:"sni"`
		AcceptInvalidHostnames bool     `toml:"accept_invalid_hostnames"`
		Abandon                string   `toml:"abandon"`
	} `toml:"connector"`
	Acceptor struct {
		Identity           string `toml:"identity"`
		Password           string `toml:"password"`
		CertFile           string `toml:"cert_file"`
		KeyFile            string `toml:"key_file"`
		MinProtocolVersion string `toml:"min_protocol_version"`
		MaxProtocolVersion string `toml:"max_protocol_version"`
		Abandon            string `toml:"abandon"`
	} `toml:"acceptor"`
}

// LoadConfig reads a TOML file over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, configError("config", fmt.Errorf("load %s: %w", path, err))
	}
	return overlay(raw, meta)
}

// DecodeConfig parses TOML text over DefaultConfig.
func DecodeConfig(text string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(text, &raw)
	if err != nil {
		return Config{}, configError("config", err)
	}
	return overlay(raw, meta)
}

func overlay(raw fileConfig, meta toml.MetaData) (Config, error) {
	cfg := DefaultConfig()
	if keys := meta.Undecoded(); len(keys) > 0 {
		return Config{}, configError("config", fmt.Errorf("unknown key %q", keys[0].String()))
	}

	var errs []error
	version := func(dst *Protocol, section, key, v string) {
		if !meta.IsDefined(section, key) {
			return
		}
		p, err := ParseProtocol(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s.%s: %w", section, key, err))
			return
		}
		*dst = p
	}
	abandon := func(dst *AbandonPolicy, section, v string) {
		if !meta.IsDefined(section, "abandon") {
			return
		}
		p, err := ParseAbandonPolicy(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s.abandon: %w", section, err))
			return
		}
		*dst = p
	}

	c := &cfg.Connector
	rc := raw.Connector
	version(&c.MinProtocolVersion, "connector", "min_protocol_version", rc.MinProtocolVersion)
	version(&c.MaxProtocolVersion, "connector", "max_protocol_version", rc.MaxProtocolVersion)
	abandon(&c.Abandon, "connector", rc.Abandon)
	if meta.IsDefined("connector", "root_certificates") {
		c.RootCertificates = rc.RootCertificates
	}
	if meta.IsDefined("connector", "accept_invalid_certs") {
		c.AcceptInvalidCerts = rc.AcceptInvalidCerts
	}
	if meta.IsDefined("connector", "sni") {
		c.SNI = rc.SNI
	}
	if meta.IsDefined("connector", "accept_invalid_hostnames") {
		c.AcceptInvalidHostnames = rc.AcceptInvalidHostnames
	}

	a := &cfg.Acceptor
	ra := raw.Acceptor
	version(&a.MinProtocolVersion, "acceptor", "min_protocol_version", ra.MinProtocolVersion)
	version(&a.MaxProtocolVersion, "acceptor", "max_protocol_version", ra.MaxProtocolVersion)
	abandon(&a.Abandon, "acceptor", ra.Abandon)
	a.Identity = strings.TrimSpace(ra.Identity)
	a.Password = ra.Password
	a.CertFile = strings.TrimSpace(ra.CertFile)
	a.KeyFile = strings.TrimSpace(ra.KeyFile)

	if err := errors.Join(errs...); err != nil {
		return Config{}, configError("config", err)
	}
	return cfg, nil
}

// Options converts c into connector Options, reading root certificates.
func (c ConnectorConfig) Options() ([]Option, error) {
	opts := []Option{
		WithMinProtocolVersion(c.MinProtocolVersion),
		WithMaxProtocolVersion(c.MaxProtocolVersion),
		WithAcceptInvalidCerts(c.AcceptInvalidCerts),
		WithSNI(c.SNI),
		WithAcceptInvalidHostnames(c.AcceptInvalidHostnames),
		WithAbandon(c.Abandon),
	}
	for _, path := range c.RootCertificates {
		certs, err := readCertificates(path)
		if err != nil {
			return nil, configError("config", err)
		}
		for _, cert := range certs {
			opts = append(opts, WithRootCertificate(cert))
		}
	}
	return opts, nil
}

// Build returns a Connector for c. extra options are applied last.
func (c ConnectorConfig) Build(extra ...Option) (*Connector, error) {
	opts, err := c.Options()
	if err != nil {
		return nil, err
	}
	return NewConnector(append(opts, extra...)...)
}

// Build returns an Acceptor for c. extra options are applied last.
func (c AcceptorConfig) Build(extra ...Option) (*Acceptor, error) {
	opts := append([]Option{
		WithMinProtocolVersion(c.MinProtocolVersion),
		WithMaxProtocolVersion(c.MaxProtocolVersion),
		WithAbandon(c.Abandon),
	}, extra...)
	switch {
	case c.Identity != "":
		f, err := os.Open(c.Identity)
		if err != nil {
			return nil, configError("config", err)
		}
		defer f.Close()
		return NewAcceptor(f, c.Password, opts...)
	case c.CertFile != "" && c.KeyFile != "":
		certPEM, err := os.ReadFile(c.CertFile)
		if err != nil {
			return nil, configError("config", err)
		}
		keyPEM, err := os.ReadFile(c.KeyFile)
		if err != nil {
			return nil, configError("config", err)
		}
		id, err := ParseIdentityPEM(certPEM, keyPEM)
		if err != nil {
			return nil, err
		}
		return NewAcceptorFromIdentity(id, opts...)
	}
	return nil, configError("config", errors.New("acceptor needs identity or cert_file and key_file"))
}

func readCertificates(path string) ([]*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var certs []*x509.Certificate
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		c, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		certs = append(certs, c)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("%s: %w", path, errNoCertificate)
	}
	return certs, nil
}
