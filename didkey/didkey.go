// Package didkey implements the canonical string encodings of key material:
// did:key identifiers for public keys, password strings for private seeds and
// the two segments of a detached signature token.
//
// Every encoding is multibase base58btc. Key encodings carry a varint
// multicodec tag selecting the Scheme; decoding reproduces the exact bytes
// that were encoded and rejects anything else with a MalformedIdentifier
// error instead of panicking.
package didkey

import (
	"fmt"
	"strings"

	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-varint"

	"xdao.co/didauth/autherr"
)

// Prefix is the DID method prefix shared by DIDs and password strings.
const Prefix = "did:key:"

// TokenSeparator joins the public-key segment and the signature segment of a
// signature token. It is outside the base58 alphabet.
const TokenSeparator = "-"

// Key is the decoded form of a DID, a password or a token key segment.
type Key struct {
	Scheme  *Scheme
	Private bool
	Data    []byte
}

// EncodePublicKey returns the DID for a public key.
func EncodePublicKey(s *Scheme, pub []byte) (string, error) {
	seg, err := EncodeSignature(s, pub)
	if err != nil {
		return "", err
	}
	return Prefix + seg, nil
}

// EncodePrivateKey returns the password string for a private seed. The public
// key is never part of the password.
func EncodePrivateKey(s *Scheme, seed []byte) (string, error) {
	if s == nil {
		return "", autherr.New(autherr.KindInvalidArgument, "DIDAUTH-KEY-001", "missing key scheme")
	}
	if len(seed) != s.SeedSize {
		return "", autherr.New(autherr.KindInvalidArgument, "DIDAUTH-KEY-003",
			fmt.Sprintf("%s private seed must be %d bytes, got %d", s.Name, s.SeedSize, len(seed)))
	}
	seg, err := encodeTagged(s.PrivateCodec, seed)
	if err != nil {
		return "", err
	}
	return Prefix + seg, nil
}

// EncodeSignature returns the public-key segment of a signature token, which
// is the DID without its method prefix.
func EncodeSignature(s *Scheme, pub []byte) (string, error) {
	if s == nil {
		return "", autherr.New(autherr.KindInvalidArgument, "DIDAUTH-KEY-001", "missing key scheme")
	}
	if len(pub) != s.PublicKeySize {
		return "", autherr.New(autherr.KindInvalidArgument, "DIDAUTH-KEY-002",
			fmt.Sprintf("%s public key must be %d bytes, got %d", s.Name, s.PublicKeySize, len(pub)))
	}
	return encodeTagged(s.PublicCodec, pub)
}

// EncodeSignatureBytes returns the signature segment of a signature token.
func EncodeSignatureBytes(sig []byte) string {
	// Encode only fails for unknown encodings.
	out, _ := multibase.Encode(multibase.Base58BTC, sig)
	return out
}

// EncodeToken builds the composite signature token for pub and sig.
func EncodeToken(s *Scheme, pub, sig []byte) (string, error) {
	seg, err := EncodeSignature(s, pub)
	if err != nil {
		return "", err
	}
	return seg + TokenSeparator + EncodeSignatureBytes(sig), nil
}

// Decode decodes a DID or a password string.
func Decode(id string) (Key, error) {
	rest, ok := strings.CutPrefix(id, Prefix)
	if !ok {
		return Key{}, autherr.New(autherr.KindMalformedIdentifier, "DIDAUTH-KEY-101", "identifier is not a did:key")
	}
	return DecodeSegment(rest)
}

// DecodeSegment decodes a multicodec-tagged key segment (a DID without its
// prefix, as found in signature tokens).
func DecodeSegment(seg string) (Key, error) {
	raw, err := decodeBase58(seg)
	if err != nil {
		return Key{}, err
	}
	codec, n, err := varint.FromUvarint(raw)
	if err != nil {
		return Key{}, autherr.Wrap(autherr.KindMalformedIdentifier, "DIDAUTH-KEY-104", "invalid multicodec prefix", err)
	}
	s, private, ok := schemeByCodec(codec)
	if !ok {
		return Key{}, autherr.New(autherr.KindMalformedIdentifier, "DIDAUTH-KEY-105",
			fmt.Sprintf("unsupported multicodec 0x%x", codec))
	}
	data := raw[n:]
	want := s.PublicKeySize
	if private {
		want = s.SeedSize
	}
	if len(data) != want {
		return Key{}, autherr.New(autherr.KindMalformedIdentifier, "DIDAUTH-KEY-106",
			fmt.Sprintf("invalid %s key length %d", s.Name, len(data)))
	}
	return Key{Scheme: s, Private: private, Data: append([]byte(nil), data...)}, nil
}

// DecodeSignatureBytes decodes the signature segment of a signature token.
func DecodeSignatureBytes(seg string) ([]byte, error) {
	raw, err := decodeBase58(seg)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, autherr.New(autherr.KindMalformedIdentifier, "DIDAUTH-KEY-107", "empty signature")
	}
	return raw, nil
}

func encodeTagged(codec uint64, data []byte) (string, error) {
	buf := make([]byte, 0, varint.UvarintSize(codec)+len(data))
	buf = append(buf, varint.ToUvarint(codec)...)
	buf = append(buf, data...)
	out, err := multibase.Encode(multibase.Base58BTC, buf)
	if err != nil {
		return "", autherr.Wrap(autherr.KindInternal, "DIDAUTH-KEY-004", "multibase encode failed", err)
	}
	return out, nil
}

func decodeBase58(s string) ([]byte, error) {
	if s == "" {
		return nil, autherr.New(autherr.KindMalformedIdentifier, "DIDAUTH-KEY-102", "empty multibase string")
	}
	enc, raw, err := multibase.Decode(s)
	if err != nil {
		return nil, autherr.Wrap(autherr.KindMalformedIdentifier, "DIDAUTH-KEY-102", "invalid multibase encoding", err)
	}
	if enc != multibase.Base58BTC {
		return nil, autherr.New(autherr.KindMalformedIdentifier, "DIDAUTH-KEY-103", "multibase encoding must be base58btc")
	}
	return raw, nil
}
