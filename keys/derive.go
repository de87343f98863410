package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/cloudflare/circl/sign/dilithium/mode3"

	"xdao.co/didauth/didkey"
)

// Keypair is the raw key material of one identity.
//
// Seed is the scheme's private seed; Public is derived from it. The seed is
// the only secret: Password strings and key files are encodings of it.
type Keypair struct {
	Scheme *didkey.Scheme
	Public []byte
	Seed   []byte
}

// Generate returns a fresh keypair whose seed is read from r.
// A nil r uses crypto/rand.
func Generate(s *didkey.Scheme, r io.Reader) (*Keypair, error) {
	if s == nil {
		return nil, errors.New("missing key scheme")
	}
	if r == nil {
		r = rand.Reader
	}
	seed := make([]byte, s.SeedSize)
	if _, err := io.ReadFull(r, seed); err != nil {
		return nil, fmt.Errorf("read %s seed: %w", s.Name, err)
	}
	return FromSeed(s, seed)
}

// FromSeed deterministically derives the keypair for a seed.
func FromSeed(s *didkey.Scheme, seed []byte) (*Keypair, error) {
	if s == nil {
		return nil, errors.New("missing key scheme")
	}
	if len(seed) != s.SeedSize {
		return nil, fmt.Errorf("%s seed must be %d bytes, got %d", s.Name, s.SeedSize, len(seed))
	}
	seed = append([]byte(nil), seed...)

	switch s {
	case didkey.Ed25519:
		priv := ed25519.NewKeyFromSeed(seed)
		pub := priv.Public().(ed25519.PublicKey)
		return &Keypair{Scheme: s, Public: []byte(pub), Seed: seed}, nil
	case didkey.Dilithium3:
		pk, _ := dilithiumFromSeed(seed)
		pub, err := pk.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("marshal dilithium3 public key: %w", err)
		}
		return &Keypair{Scheme: s, Public: pub, Seed: seed}, nil
	default:
		return nil, fmt.Errorf("unsupported key scheme %q", s.Name)
	}
}

// PrivateKey returns the scheme's full private-key representation as stored
// in key files. For Ed25519 this is seed followed by the public key; for
// Dilithium3 it is the seed.
func (k *Keypair) PrivateKey() []byte {
	if k == nil {
		return nil
	}
	if k.Scheme == didkey.Ed25519 {
		out := make([]byte, 0, len(k.Seed)+len(k.Public))
		out = append(out, k.Seed...)
		return append(out, k.Public...)
	}
	return append([]byte(nil), k.Seed...)
}

// ParsePrivateKey is the inverse of Keypair.PrivateKey. It re-derives the
// public key from the seed and rejects Ed25519 keys whose embedded public
// half does not match.
func ParsePrivateKey(s *didkey.Scheme, priv []byte) (*Keypair, error) {
	if s == nil {
		return nil, errors.New("missing key scheme")
	}
	switch s {
	case didkey.Ed25519:
		if len(priv) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("ed25519 private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(priv))
		}
		k, err := FromSeed(s, priv[:ed25519.SeedSize])
		if err != nil {
			return nil, err
		}
		if !Equal(k.Public, priv[ed25519.SeedSize:]) {
			return nil, errors.New("ed25519 private key does not embed its public key")
		}
		return k, nil
	default:
		return FromSeed(s, priv)
	}
}

func dilithiumFromSeed(seed []byte) (*mode3.PublicKey, *mode3.PrivateKey) {
	var buf [32]byte
	copy(buf[:], seed)
	return mode3.NewKeyFromSeed(&buf)
}
