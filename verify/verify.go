// Package verify decides whether a signed message was produced by the holder
// of a DID.
//
// Verification is a fixed sequence of gates:
//
//  1. decode the claimed DID (when present);
//  2. split and decode the signature token;
//  3. require the token's embedded key to equal the DID's key;
//  4. run the scheme's signature check over the message bytes.
//
// Gates 1-3 reject malformed or inconsistent input with a structured
// *autherr.Error. Gate 4 yields a boolean. Everything here is pure and safe
// for concurrent use.
package verify

import (
	"fmt"
	"strings"

	"xdao.co/didauth/autherr"
	"xdao.co/didauth/didkey"
	"xdao.co/didauth/keys"
)

// Token is a decoded signature token.
type Token struct {
	Scheme    *didkey.Scheme
	PublicKey []byte
	Signature []byte
}

// ParseToken splits and decodes a "<public key segment>-<signature segment>"
// token.
func ParseToken(token string) (Token, error) {
	parts := strings.Split(token, didkey.TokenSeparator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Token{}, autherr.New(autherr.KindInvalidSignatureToken, "DIDAUTH-VERIFY-201",
			"signature token must be <key>-<signature>")
	}
	key, err := didkey.DecodeSegment(parts[0])
	if err != nil {
		return Token{}, autherr.Wrap(autherr.KindInvalidSignatureToken, "DIDAUTH-VERIFY-202",
			"invalid public key in signature token", err)
	}
	if key.Private {
		return Token{}, autherr.New(autherr.KindInvalidSignatureToken, "DIDAUTH-VERIFY-203",
			"signature token embeds a private key")
	}
	sig, err := didkey.DecodeSignatureBytes(parts[1])
	if err != nil {
		return Token{}, autherr.Wrap(autherr.KindInvalidSignatureToken, "DIDAUTH-VERIFY-204",
			"invalid signature bytes in signature token", err)
	}
	if len(sig) != key.Scheme.SignatureSize {
		return Token{}, autherr.New(autherr.KindInvalidSignatureToken, "DIDAUTH-VERIFY-205",
			fmt.Sprintf("%s signature must be %d bytes, got %d", key.Scheme.Name, key.Scheme.SignatureSize, len(sig)))
	}
	return Token{Scheme: key.Scheme, PublicKey: key.Data, Signature: sig}, nil
}

// Verify reports whether token is a valid signature of message by the key of
// did. An empty did skips the identity binding and checks the token alone.
//
// A false result with a nil error means the inputs were well formed and
// consistent but the signature does not verify.
func Verify(did, token, message string) (bool, error) {
	var claimed *didkey.Key
	if did != "" {
		k, err := didkey.Decode(did)
		if err != nil {
			return false, autherr.Wrap(autherr.KindMalformedIdentifier, "DIDAUTH-VERIFY-101", "invalid DID", err)
		}
		if k.Private {
			return false, autherr.New(autherr.KindMalformedIdentifier, "DIDAUTH-VERIFY-102",
				"DID encodes a private key")
		}
		claimed = &k
	}

	tok, err := ParseToken(token)
	if err != nil {
		return false, err
	}

	if claimed != nil {
		// Evaluate both comparisons so the scheme check cannot short-circuit
		// the byte comparison.
		sameScheme := claimed.Scheme == tok.Scheme
		sameKey := keys.Equal(claimed.Data, tok.PublicKey)
		if !sameScheme || !sameKey {
			return false, autherr.New(autherr.KindKeyMismatch, "DIDAUTH-VERIFY-301",
				"signature key does not match DID")
		}
	}

	ok, err := keys.Verify(tok.Scheme, tok.PublicKey, []byte(message), tok.Signature)
	if err != nil {
		return false, autherr.Wrap(autherr.KindVerificationFailed, "DIDAUTH-VERIFY-401",
			"signature verification error", err)
	}
	return ok, nil
}

// Check is Verify on the error channel: a signature that does not verify is
// reported as VerificationFailed.
func Check(did, token, message string) error {
	ok, err := Verify(did, token, message)
	if err != nil {
		return err
	}
	if !ok {
		return autherr.New(autherr.KindVerificationFailed, "DIDAUTH-VERIFY-402", "invalid signature")
	}
	return nil
}
