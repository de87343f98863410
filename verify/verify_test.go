package verify_test

import (
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdao.co/didauth/autherr"
	"xdao.co/didauth/credential"
	"xdao.co/didauth/didkey"
	"xdao.co/didauth/keys"
	"xdao.co/didauth/verify"
)

type identity struct {
	kp  *keys.Keypair
	did string
}

func newIdentity(t *testing.T, s *didkey.Scheme) identity {
	t.Helper()
	kp, err := keys.Generate(s, nil)
	require.NoError(t, err)
	did, err := didkey.EncodePublicKey(s, kp.Public)
	require.NoError(t, err)
	return identity{kp: kp, did: did}
}

func randomMessage(t *testing.T) string {
	t.Helper()
	b := make([]byte, 48)
	_, err := rand.Read(b)
	require.NoError(t, err)
	msg, err := credential.Canonicalize(map[string]any{"nonce": b})
	require.NoError(t, err)
	return msg
}

func TestVerify_Soundness(t *testing.T) {
	for _, s := range didkey.Schemes() {
		t.Run(s.Name, func(t *testing.T) {
			n := 32
			if s == didkey.Dilithium3 {
				n = 4
			}
			for i := 0; i < n; i++ {
				id := newIdentity(t, s)
				msg := randomMessage(t)
				token, err := credential.Sign(id.kp, msg)
				require.NoError(t, err)

				ok, err := verify.Verify(id.did, token, msg)
				require.NoError(t, err)
				require.True(t, ok)
				require.NoError(t, verify.Check(id.did, token, msg))

				// Without a DID only the token is checked.
				ok, err = verify.Verify("", token, msg)
				require.NoError(t, err)
				require.True(t, ok)
			}
		})
	}
}

func TestVerify_MutatedMessage(t *testing.T) {
	id := newIdentity(t, didkey.Ed25519)
	msg := `{"method":"login","path":"/users/login"}`
	token, err := credential.Sign(id.kp, msg)
	require.NoError(t, err)

	for i := 0; i < len(msg); i++ {
		b := []byte(msg)
		b[i] ^= 0x01
		ok, err := verify.Verify(id.did, token, string(b))
		require.NoError(t, err)
		require.False(t, ok, "mutation at byte %d verified", i)
	}

	err = verify.Check(id.did, token, msg+" ")
	assert.True(t, autherr.IsKind(err, autherr.KindVerificationFailed))
	assert.Equal(t, "DIDAUTH-VERIFY-402", autherr.RuleID(err))
}

func TestVerify_MutatedSignature(t *testing.T) {
	id := newIdentity(t, didkey.Ed25519)
	msg := randomMessage(t)
	sig, err := id.kp.Sign([]byte(msg))
	require.NoError(t, err)

	for i := 0; i < len(sig); i++ {
		bad := append([]byte(nil), sig...)
		bad[i] ^= 0x80
		token, err := didkey.EncodeToken(didkey.Ed25519, id.kp.Public, bad)
		require.NoError(t, err)

		ok, err := verify.Verify(id.did, token, msg)
		require.NoError(t, err)
		require.False(t, ok, "mutation at signature byte %d verified", i)
	}
}

func TestVerify_KeyMismatch(t *testing.T) {
	a := newIdentity(t, didkey.Ed25519)
	b := newIdentity(t, didkey.Ed25519)
	msg := randomMessage(t)

	tokenB, err := credential.Sign(b.kp, msg)
	require.NoError(t, err)

	// The token alone is valid.
	ok, err := verify.Verify(b.did, tokenB, msg)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = verify.Verify(a.did, tokenB, msg)
	assert.False(t, ok)
	assert.True(t, autherr.IsKind(err, autherr.KindKeyMismatch), "got %v", err)
	assert.Equal(t, "DIDAUTH-VERIFY-301", autherr.RuleID(err))
}

func TestVerify_KeyMismatchAcrossSchemes(t *testing.T) {
	a := newIdentity(t, didkey.Ed25519)
	b := newIdentity(t, didkey.Dilithium3)
	msg := randomMessage(t)
	tokenB, err := credential.Sign(b.kp, msg)
	require.NoError(t, err)

	_, err = verify.Verify(a.did, tokenB, msg)
	assert.True(t, autherr.IsKind(err, autherr.KindKeyMismatch), "got %v", err)
}

func TestVerify_MalformedInput(t *testing.T) {
	id := newIdentity(t, didkey.Ed25519)
	msg := randomMessage(t)
	token, err := credential.Sign(id.kp, msg)
	require.NoError(t, err)
	pubSeg, sigSeg, _ := strings.Cut(token, "-")

	password, err := didkey.EncodePrivateKey(didkey.Ed25519, id.kp.Seed)
	require.NoError(t, err)
	privSeg := strings.TrimPrefix(password, didkey.Prefix)

	shortSig := didkey.EncodeSignatureBytes([]byte{1, 2, 3})

	cases := []struct {
		name  string
		did   string
		token string
		kind  autherr.Kind
		rule  string
	}{
		{"not a did", "not-a-did", token, autherr.KindMalformedIdentifier, "DIDAUTH-VERIFY-101"},
		{"password as did", password, token, autherr.KindMalformedIdentifier, "DIDAUTH-VERIFY-102"},
		{"no separator", id.did, "garbagetokennoseparator", autherr.KindInvalidSignatureToken, "DIDAUTH-VERIFY-201"},
		{"too many parts", id.did, "garbage-token-no-separator", autherr.KindInvalidSignatureToken, "DIDAUTH-VERIFY-201"},
		{"empty token", id.did, "", autherr.KindInvalidSignatureToken, "DIDAUTH-VERIFY-201"},
		{"empty key part", id.did, "-" + sigSeg, autherr.KindInvalidSignatureToken, "DIDAUTH-VERIFY-201"},
		{"empty signature part", id.did, pubSeg + "-", autherr.KindInvalidSignatureToken, "DIDAUTH-VERIFY-201"},
		{"bad key part", id.did, "zzzz-" + sigSeg, autherr.KindInvalidSignatureToken, "DIDAUTH-VERIFY-202"},
		{"private key part", id.did, privSeg + "-" + sigSeg, autherr.KindInvalidSignatureToken, "DIDAUTH-VERIFY-203"},
		{"bad signature part", id.did, pubSeg + "-0OIl", autherr.KindInvalidSignatureToken, "DIDAUTH-VERIFY-204"},
		{"short signature", id.did, pubSeg + "-" + shortSig, autherr.KindInvalidSignatureToken, "DIDAUTH-VERIFY-205"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := verify.Verify(tc.did, tc.token, msg)
			assert.False(t, ok)
			require.Error(t, err)
			assert.True(t, autherr.IsKind(err, tc.kind), "got %v", err)
			assert.Equal(t, tc.rule, autherr.RuleID(err))

			assert.Equal(t, tc.rule, autherr.RuleID(verify.Check(tc.did, tc.token, msg)))
		})
	}
}

func TestVerify_Idempotent(t *testing.T) {
	id := newIdentity(t, didkey.Ed25519)
	other := newIdentity(t, didkey.Ed25519)
	msg := randomMessage(t)
	token, err := credential.Sign(id.kp, msg)
	require.NoError(t, err)

	inputs := []struct{ did, token, msg string }{
		{id.did, token, msg},
		{id.did, token, msg + "x"},
		{other.did, token, msg},
		{"not-a-did", token, msg},
	}
	for _, in := range inputs {
		ok1, err1 := verify.Verify(in.did, in.token, in.msg)
		for i := 0; i < 5; i++ {
			ok2, err2 := verify.Verify(in.did, in.token, in.msg)
			require.Equal(t, ok1, ok2)
			require.Equal(t, autherr.RuleID(err1), autherr.RuleID(err2))
		}
	}
}

func TestParseToken(t *testing.T) {
	id := newIdentity(t, didkey.Ed25519)
	sig, err := id.kp.Sign([]byte("m"))
	require.NoError(t, err)
	token, err := didkey.EncodeToken(didkey.Ed25519, id.kp.Public, sig)
	require.NoError(t, err)

	got, err := verify.ParseToken(token)
	require.NoError(t, err)
	assert.Same(t, didkey.Ed25519, got.Scheme)
	assert.Equal(t, id.kp.Public, got.PublicKey)
	assert.Equal(t, sig, got.Signature)
}
