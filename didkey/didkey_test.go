package didkey

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-varint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdao.co/didauth/autherr"
)

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func TestRoundTrip_RandomEd25519Keypairs(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 128; i++ {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)

		did, err := EncodePublicKey(Ed25519, pub)
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(did, "did:key:z6Mk"), "unexpected DID %q", did)

		got, err := Decode(did)
		require.NoError(t, err)
		assert.Same(t, Ed25519, got.Scheme)
		assert.False(t, got.Private)
		assert.True(t, bytes.Equal(pub, got.Data))

		password, err := EncodePrivateKey(Ed25519, priv.Seed())
		require.NoError(t, err)
		gotPriv, err := Decode(password)
		require.NoError(t, err)
		assert.True(t, gotPriv.Private)
		assert.True(t, bytes.Equal(priv.Seed(), gotPriv.Data))

		_, dup := seen[did]
		require.False(t, dup, "DID collision")
		seen[did] = struct{}{}
	}
}

func TestRoundTrip_Dilithium3(t *testing.T) {
	pub := randomBytes(t, Dilithium3.PublicKeySize)
	did, err := EncodePublicKey(Dilithium3, pub)
	require.NoError(t, err)
	got, err := Decode(did)
	require.NoError(t, err)
	assert.Same(t, Dilithium3, got.Scheme)
	assert.Equal(t, pub, got.Data)

	seed := randomBytes(t, Dilithium3.SeedSize)
	password, err := EncodePrivateKey(Dilithium3, seed)
	require.NoError(t, err)
	gotPriv, err := Decode(password)
	require.NoError(t, err)
	assert.True(t, gotPriv.Private)
	assert.Equal(t, seed, gotPriv.Data)
}

func TestPasswordAndDIDDiffer(t *testing.T) {
	// A seed that happens to equal a public key must still encode differently.
	b := randomBytes(t, 32)
	did, err := EncodePublicKey(Ed25519, b)
	require.NoError(t, err)
	password, err := EncodePrivateKey(Ed25519, b)
	require.NoError(t, err)
	assert.NotEqual(t, did, password)
}

func TestToken_RoundTrip(t *testing.T) {
	pub := randomBytes(t, ed25519.PublicKeySize)
	sig := randomBytes(t, ed25519.SignatureSize)

	token, err := EncodeToken(Ed25519, pub, sig)
	require.NoError(t, err)

	pubSeg, sigSeg, ok := strings.Cut(token, TokenSeparator)
	require.True(t, ok)
	assert.NotContains(t, sigSeg, TokenSeparator)

	key, err := DecodeSegment(pubSeg)
	require.NoError(t, err)
	assert.Equal(t, pub, key.Data)

	gotSig, err := DecodeSignatureBytes(sigSeg)
	require.NoError(t, err)
	assert.Equal(t, sig, gotSig)

	did, err := EncodePublicKey(Ed25519, pub)
	require.NoError(t, err)
	assert.Equal(t, did, Prefix+pubSeg)
}

func TestEncode_RejectsWrongLengths(t *testing.T) {
	_, err := EncodePublicKey(Ed25519, make([]byte, 31))
	assert.True(t, autherr.IsKind(err, autherr.KindInvalidArgument))

	_, err = EncodePrivateKey(Ed25519, make([]byte, 64))
	assert.True(t, autherr.IsKind(err, autherr.KindInvalidArgument))

	_, err = EncodePublicKey(nil, make([]byte, 32))
	assert.True(t, autherr.IsKind(err, autherr.KindInvalidArgument))
}

func TestDecode_Malformed(t *testing.T) {
	pub := randomBytes(t, ed25519.PublicKeySize)

	tagged := append(varint.ToUvarint(0x1234), pub...)
	unknownCodec, err := multibase.Encode(multibase.Base58BTC, tagged)
	require.NoError(t, err)

	base64Form, err := multibase.Encode(multibase.Base64, append(varint.ToUvarint(Ed25519.PublicCodec), pub...))
	require.NoError(t, err)

	short, err := multibase.Encode(multibase.Base58BTC, append(varint.ToUvarint(Ed25519.PublicCodec), pub[:31]...))
	require.NoError(t, err)
	long, err := multibase.Encode(multibase.Base58BTC, append(append(varint.ToUvarint(Ed25519.PublicCodec), pub...), 0x00))
	require.NoError(t, err)

	cases := []struct {
		name string
		in   string
		rule string
	}{
		{"empty", "", "DIDAUTH-KEY-101"},
		{"not a did", "not-a-did", "DIDAUTH-KEY-101"},
		{"other method", "did:web:example.com", "DIDAUTH-KEY-101"},
		{"prefix only", Prefix, "DIDAUTH-KEY-102"},
		{"bad alphabet", Prefix + "z0OIl", "DIDAUTH-KEY-102"},
		{"wrong base", Prefix + base64Form, "DIDAUTH-KEY-103"},
		{"unknown codec", Prefix + unknownCodec, "DIDAUTH-KEY-105"},
		{"short key", Prefix + short, "DIDAUTH-KEY-106"},
		{"long key", Prefix + long, "DIDAUTH-KEY-106"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.in)
			require.Error(t, err)
			assert.True(t, autherr.IsKind(err, autherr.KindMalformedIdentifier), "kind: %v", err)
			assert.Equal(t, tc.rule, autherr.RuleID(err))
		})
	}
}

func TestDecodeSignatureBytes_Malformed(t *testing.T) {
	_, err := DecodeSignatureBytes("")
	assert.True(t, autherr.IsKind(err, autherr.KindMalformedIdentifier))

	_, err = DecodeSignatureBytes("garbage")
	assert.True(t, autherr.IsKind(err, autherr.KindMalformedIdentifier))
}

func TestSchemeByName(t *testing.T) {
	s, err := SchemeByName(" Ed25519 ")
	require.NoError(t, err)
	assert.Same(t, Ed25519, s)

	s, err = SchemeByName("dilithium3")
	require.NoError(t, err)
	assert.Same(t, Dilithium3, s)

	_, err = SchemeByName("rsa")
	assert.Error(t, err)
	assert.Len(t, Schemes(), 2)
}
