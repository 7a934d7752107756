// Package mdcrypto implements the crypto collaborator described in §6 of
// the microdescriptor cache design: decoding a relay's parsed onion public
// key, and releasing it exactly once per record at destruction.
//
// It is deliberately minimal — cryptographic primitives are treated as an
// external collaborator by the cache engine — but a real decoder is
// supplied so the module builds and runs end-to-end.
package mdcrypto

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// ErrInvalidKey indicates a PEM block could not be decoded into an RSA
// public key.
var ErrInvalidKey = errors.New("mdcrypto: invalid onion key")

// PublicKey wraps a relay's decoded onion key plus the raw PEM bytes it was
// parsed from.
type PublicKey struct {
	Raw []byte
	Key *rsa.PublicKey
}

// DecodeOnionKey parses the "-----BEGIN RSA PUBLIC KEY-----" PEM block
// that follows a microdescriptor's "onion-key" line.
func DecodeOnionKey(raw []byte) (*PublicKey, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block", ErrInvalidKey)
	}

	key, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}

	return &PublicKey{Raw: raw, Key: key}, nil
}

// Release is invoked exactly once per record at destruction (§6's
// "key-release function ... invoked exactly once per record at
// destruction"). Go's garbage collector reclaims the underlying memory on
// its own; Release exists so callers retain the explicit one-release-per-
// record shape the original design relies on, and so a future
// non-GC-backed key type (e.g. one backed by a hardware token) has a place
// to plug in real teardown.
func Release(k *PublicKey) {
	_ = k
}
