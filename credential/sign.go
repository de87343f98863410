// Package credential issues did:key identities and signs messages with them.
//
// A credential is the pair (DID, password). The DID is public and is the only
// part a server ever sees; the password encodes the private seed.
package credential

import (
	"xdao.co/didauth/autherr"
	"xdao.co/didauth/didkey"
	"xdao.co/didauth/keys"
)

// SignedMessage is a message together with its detached signature token.
type SignedMessage struct {
	Message   string `json:"message"`
	Signature string `json:"sign"`
}

// Sign signs the UTF-8 bytes of message and returns the composite signature
// token "<public key segment>-<signature segment>".
func Sign(kp *keys.Keypair, message string) (string, error) {
	if kp == nil {
		return "", autherr.New(autherr.KindInvalidArgument, "DIDAUTH-SIGN-001", "missing keypair")
	}
	sig, err := kp.Sign([]byte(message))
	if err != nil {
		return "", autherr.Wrap(autherr.KindInvalidCredential, "DIDAUTH-SIGN-002", "signing failed", err)
	}
	return didkey.EncodeToken(kp.Scheme, kp.Public, sig)
}

// DeriveKeys reconstructs the signing keypair from a credential.
//
// The password must decode to a private seed of the same scheme as the DID,
// and the public key derived from that seed must be the DID's key.
func DeriveKeys(did, password string) (*keys.Keypair, error) {
	pub, err := didkey.Decode(did)
	if err != nil {
		return nil, autherr.Wrap(autherr.KindInvalidCredential, "DIDAUTH-CRED-001", "invalid DID", err)
	}
	if pub.Private {
		return nil, autherr.New(autherr.KindInvalidCredential, "DIDAUTH-CRED-002", "DID encodes a private key")
	}
	priv, err := didkey.Decode(password)
	if err != nil {
		return nil, autherr.Wrap(autherr.KindInvalidCredential, "DIDAUTH-CRED-003", "invalid password", err)
	}
	if !priv.Private {
		return nil, autherr.New(autherr.KindInvalidCredential, "DIDAUTH-CRED-004", "password does not encode a private key")
	}
	if priv.Scheme != pub.Scheme {
		return nil, autherr.New(autherr.KindInvalidCredential, "DIDAUTH-CRED-005", "password and DID use different key schemes")
	}
	kp, err := keys.FromSeed(priv.Scheme, priv.Data)
	if err != nil {
		return nil, autherr.Wrap(autherr.KindInvalidCredential, "DIDAUTH-CRED-006", "invalid private key", err)
	}
	if !keys.Equal(kp.Public, pub.Data) {
		return nil, autherr.New(autherr.KindInvalidCredential, "DIDAUTH-CRED-007", "password does not belong to DID")
	}
	return kp, nil
}

// SignRequest signs the canonical description of an API call with the
// credential's key.
func SignRequest(did, password, path, method string, params map[string]any) (SignedMessage, error) {
	kp, err := DeriveKeys(did, password)
	if err != nil {
		return SignedMessage{}, err
	}
	message, err := RequestMessage(path, method, params)
	if err != nil {
		return SignedMessage{}, err
	}
	sig, err := Sign(kp, message)
	if err != nil {
		return SignedMessage{}, err
	}
	return SignedMessage{Message: message, Signature: sig}, nil
}
