package wire

import (
	"errors"
	"strings"
)

var (
	ErrTLSRequired         = errors.New("wire: tls required")
	ErrTLSCertFileRequired = errors.New("wire: tls cert file required")
	ErrTLSKeyFileRequired  = errors.New("wire: tls key file required")
	ErrTLSCAFileRequired   = errors.New("wire: tls ca file required")
)

// ValidateClientTransport checks the dialing side. A client verifies the host
// against CAFile unless InsecureSkipVerify is set, and presents a key pair only
// under mutual TLS.
func (c Config) ValidateClientTransport() error {
	t := c.TLS
	switch {
	case t.Mutual && !t.Enabled:
		return ErrTLSRequired
	case !t.Enabled:
		return nil
	case blank(t.CAFile) && !t.InsecureSkipVerify:
		return ErrTLSCAFileRequired
	case t.Mutual:
		return t.requireKeyPair()
	}
	return nil
}

// ValidateServerTransport checks the listening side, which always needs a key
// pair under TLS and a client CA under mutual TLS.
func (c Config) ValidateServerTransport() error {
	t := c.TLS
	switch {
	case t.Mutual && !t.Enabled:
		return ErrTLSRequired
	case !t.Enabled:
		return nil
	}
	if err := t.requireKeyPair(); err != nil {
		return err
	}
	if t.Mutual && blank(t.CAFile) {
		return ErrTLSCAFileRequired
	}
	return nil
}

func (t TLSConfig) requireKeyPair() error {
	if blank(t.CertFile) {
		return ErrTLSCertFileRequired
	}
	if blank(t.KeyFile) {
		return ErrTLSKeyFileRequired
	}
	return nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
