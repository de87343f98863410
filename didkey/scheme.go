package didkey

import (
	"crypto/ed25519"
	"fmt"
	"strings"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
)

// Scheme describes one signature scheme that can appear in a did:key string.
//
// Schemes are identified on the wire by their multicodec tag, never by string
// prefixes: the varint codec in front of the key bytes selects the Scheme and
// tells Decode whether the payload is a public key or a private seed.
type Scheme struct {
	Name string

	PublicCodec  uint64
	PrivateCodec uint64

	PublicKeySize int
	SeedSize      int
	SignatureSize int
}

func (s *Scheme) String() string {
	if s == nil {
		return "<nil>"
	}
	return s.Name
}

var (
	// Ed25519 uses the registered multicodecs ed25519-pub (0xed) and
	// ed25519-priv (0x1300), so DIDs start with "did:key:z6Mk".
	Ed25519 = &Scheme{
		Name:          "ed25519",
		PublicCodec:   0xed,
		PrivateCodec:  0x1300,
		PublicKeySize: ed25519.PublicKeySize,
		SeedSize:      ed25519.SeedSize,
		SignatureSize: ed25519.SignatureSize,
	}

	// Dilithium3 (CRYSTALS-Dilithium round 3) has no registered multicodec;
	// its tags live in the multicodec private-use range.
	Dilithium3 = &Scheme{
		Name:          "dilithium3",
		PublicCodec:   0x300d03,
		PrivateCodec:  0x300d83,
		PublicKeySize: mode3.PublicKeySize,
		SeedSize:      32,
		SignatureSize: mode3.SignatureSize,
	}
)

var schemes = []*Scheme{Ed25519, Dilithium3}

// Schemes returns every supported scheme in a fixed order.
func Schemes() []*Scheme {
	return append([]*Scheme(nil), schemes...)
}

// SchemeByName looks up a scheme by its case-insensitive name.
func SchemeByName(name string) (*Scheme, error) {
	want := strings.ToLower(strings.TrimSpace(name))
	for _, s := range schemes {
		if s.Name == want {
			return s, nil
		}
	}
	return nil, fmt.Errorf("unsupported key scheme %q", name)
}

func schemeByCodec(codec uint64) (*Scheme, bool, bool) {
	for _, s := range schemes {
		switch codec {
		case s.PublicCodec:
			return s, false, true
		case s.PrivateCodec:
			return s, true, true
		}
	}
	return nil, false, false
}
