package credential

import (
	"io"

	"xdao.co/didauth/autherr"
	"xdao.co/didauth/didkey"
	"xdao.co/didauth/keys"
)

// Enrollment is everything handed to a client when a new identity is issued.
// Password is the only copy of the private key.
type Enrollment struct {
	Name      string `json:"name"`
	DID       string `json:"did"`
	Password  string `json:"password"`
	Message   string `json:"message"`
	Signature string `json:"sign"`
}

// Issuer creates new identities.
//
// The zero value issues Ed25519 identities from crypto/rand. Rand exists for
// tests; production callers leave it nil.
type Issuer struct {
	Scheme *didkey.Scheme
	Rand   io.Reader
}

// Issue generates a fresh keypair and a signed enrollment message for name.
func (is Issuer) Issue(name string, metadata map[string]string) (Enrollment, error) {
	if name == "" {
		return Enrollment{}, autherr.New(autherr.KindInvalidArgument, "DIDAUTH-ISSUE-001", "name is required")
	}
	s := is.Scheme
	if s == nil {
		s = didkey.Ed25519
	}

	kp, err := keys.Generate(s, is.Rand)
	if err != nil {
		return Enrollment{}, autherr.Wrap(autherr.KindInternal, "DIDAUTH-ISSUE-002", "key generation failed", err)
	}
	did, err := didkey.EncodePublicKey(s, kp.Public)
	if err != nil {
		return Enrollment{}, err
	}
	password, err := didkey.EncodePrivateKey(s, kp.Seed)
	if err != nil {
		return Enrollment{}, err
	}
	message, err := EnrollmentMessage(name, metadata)
	if err != nil {
		return Enrollment{}, err
	}
	sig, err := Sign(kp, message)
	if err != nil {
		return Enrollment{}, err
	}
	return Enrollment{
		Name:      name,
		DID:       did,
		Password:  password,
		Message:   message,
		Signature: sig,
	}, nil
}

// Issue issues an Ed25519 identity with the default Issuer.
func Issue(name string, metadata map[string]string) (Enrollment, error) {
	return Issuer{}.Issue(name, metadata)
}
