// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ntls

import (
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"

	"software.sslmate.com/src/go-pkcs12"
)

// Identity is a certificate chain and its private key.
// Chain[0] is the leaf.
type Identity struct {
	Chain []*x509.Certificate
	Key   crypto.Signer
}

var errNoCertificate = errors.New("no certificate")

// NewIdentity builds an identity from a key and a leaf-first chain.
func NewIdentity(key crypto.Signer, chain ...*x509.Certificate) (*Identity, error) {
	if len(chain) == 0 {
		return nil, configError("identity", errNoCertificate)
	}
	if key == nil {
		return nil, configError("identity", errors.New("no private key"))
	}
	return &Identity{Chain: chain, Key: key}, nil
}

// ParseIdentity decodes a PKCS#12 archive protected by password.
func ParseIdentity(pfx []byte, password string) (*Identity, error) {
	key, leaf, cas, err := pkcs12.DecodeChain(pfx, password)
	if err != nil {
		return nil, configError("identity", fmt.Errorf("pkcs12: %w", err))
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, configError("identity", fmt.Errorf("unsupported key type %T", key))
	}
	return NewIdentity(signer, append([]*x509.Certificate{leaf}, cas...)...)
}

// ParseIdentityPEM decodes a PEM certificate chain and a PEM private key.
func ParseIdentityPEM(certPEM, keyPEM []byte) (*Identity, error) {
	pair, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, configError("identity", err)
	}
	signer, ok := pair.PrivateKey.(crypto.Signer)
	if !ok {
		return nil, configError("identity", fmt.Errorf("unsupported key type %T", pair.PrivateKey))
	}
	chain := make([]*x509.Certificate, 0, len(pair.Certificate))
	for _, der := range pair.Certificate {
		c, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, configError("identity", err)
		}
		chain = append(chain, c)
	}
	return NewIdentity(signer, chain...)
}
