// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ntls

import (
	"fmt"
	"strings"
)

// Protocol is a TLS protocol version in its wire encoding.
type Protocol uint16

const (
	ProtocolTLS10 Protocol = 0x0301
	ProtocolTLS11 Protocol = 0x0302
	ProtocolTLS12 Protocol = 0x0303
	ProtocolTLS13 Protocol = 0x0304
)

// engineVersion is the only version spoken by the TLS engine.
const engineVersion = ProtocolTLS13

func (p Protocol) String() string {
	switch p {
	case ProtocolTLS10:
		return "TLS1.0"
	case ProtocolTLS11:
		return "TLS1.1"
	case ProtocolTLS12:
		return "TLS1.2"
	case ProtocolTLS13:
		return "TLS1.3"
	}
	return fmt.Sprintf("Protocol(%#04x)", uint16(p))
}

func (p Protocol) valid() bool {
	return p >= ProtocolTLS10 && p <= ProtocolTLS13
}

// ParseProtocol parses names such as "1.2", "tls1.3" or "TLS12".
func ParseProtocol(s string) (Protocol, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimPrefix(v, "tls")
	v = strings.TrimPrefix(v, "v")
	switch v {
	case "1.0", "10":
		return ProtocolTLS10, nil
	case "1.1", "11":
		return ProtocolTLS11, nil
	case "1.2", "12":
		return ProtocolTLS12, nil
	case "1.3", "13":
		return ProtocolTLS13, nil
	}
	return 0, fmt.Errorf("ntls: unknown protocol version %q", s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Protocol) UnmarshalText(text []byte) error {
	v, err := ParseProtocol(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (p Protocol) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// checkVersions validates a version range. Zero means unbounded.
func checkVersions(lo, hi Protocol) error {
	if lo != 0 && !lo.valid() {
		return fmt.Errorf("ntls: minimum %v: %w", lo, ErrUnsupportedProtocol)
	}
	if hi != 0 && !hi.valid() {
		return fmt.Errorf("ntls: maximum %v: %w", hi, ErrUnsupportedProtocol)
	}
	if lo != 0 && hi != 0 && lo > hi {
		return fmt.Errorf("ntls: minimum %v above maximum %v", lo, hi)
	}
	if (lo != 0 && lo > engineVersion) || (hi != 0 && hi < engineVersion) {
		return fmt.Errorf("ntls: range excludes %v: %w", engineVersion, ErrUnsupportedProtocol)
	}
	return nil
}
