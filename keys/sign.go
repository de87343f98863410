package keys

import (
	"crypto/ed25519"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/cloudflare/circl/sign/dilithium/mode3"

	"xdao.co/didauth/didkey"
)

// Sign returns a detached signature over message.
//
// Ed25519 signs with the 64-byte private key built as seed followed by the
// public key, in that order. Messages are signed as-is (no pre-hash).
func (k *Keypair) Sign(message []byte) ([]byte, error) {
	if k == nil || k.Scheme == nil {
		return nil, errors.New("missing keypair")
	}
	if len(k.Seed) != k.Scheme.SeedSize || len(k.Public) != k.Scheme.PublicKeySize {
		return nil, fmt.Errorf("malformed %s keypair", k.Scheme.Name)
	}
	switch k.Scheme {
	case didkey.Ed25519:
		return ed25519.Sign(ed25519.PrivateKey(k.PrivateKey()), message), nil
	case didkey.Dilithium3:
		_, sk := dilithiumFromSeed(k.Seed)
		sig := make([]byte, mode3.SignatureSize)
		mode3.SignTo(sk, message, sig)
		return sig, nil
	default:
		return nil, fmt.Errorf("unsupported key scheme %q", k.Scheme.Name)
	}
}

// Verify reports whether sig is a valid signature of message under pub.
//
// A false result with a nil error means the inputs were well formed but the
// signature does not verify. An error means the inputs could not be checked
// at all, including a panic raised by the underlying primitive.
func Verify(s *didkey.Scheme, pub, message, sig []byte) (ok bool, err error) {
	if s == nil {
		return false, errors.New("missing key scheme")
	}
	if len(pub) != s.PublicKeySize {
		return false, fmt.Errorf("%s public key must be %d bytes, got %d", s.Name, s.PublicKeySize, len(pub))
	}
	if len(sig) != s.SignatureSize {
		return false, nil
	}
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = fmt.Errorf("%s verify: %v", s.Name, r)
		}
	}()

	switch s {
	case didkey.Ed25519:
		return ed25519.Verify(ed25519.PublicKey(pub), message, sig), nil
	case didkey.Dilithium3:
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(pub); err != nil {
			return false, fmt.Errorf("invalid dilithium3 public key: %w", err)
		}
		return mode3.Verify(&pk, message, sig), nil
	default:
		return false, fmt.Errorf("unsupported key scheme %q", s.Name)
	}
}

// Equal compares two byte strings in constant time. Unlike
// subtle.ConstantTimeCompare it does not return early when the lengths
// differ: the loop always runs over the longer input.
func Equal(a, b []byte) bool {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	var diff byte
	for i := 0; i < n; i++ {
		var x, y byte
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		diff |= x ^ y
	}
	sameLen := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	return subtle.ConstantTimeByteEq(diff, 0)&sameLen == 1
}
