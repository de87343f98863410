package keys

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"xdao.co/didauth/autherr"
	"xdao.co/didauth/didkey"
)

const (
	pemTypeKey          = "DIDAUTH KEY"
	pemTypeEncryptedKey = "ENCRYPTED DIDAUTH KEY"

	kdfName     = "argon2id"
	kdfTime     = 2
	kdfMemoryKB = 64 * 1024
	kdfThreads  = 1
	saltSize    = 16
)

// EncodeKeyFile renders k as a PEM key file holding the public key followed
// by the private key (see Keypair.PrivateKey).
//
// A non-empty passphrase encrypts the key bytes with XChaCha20-Poly1305 under
// an argon2id-derived key; the KDF parameters travel in PEM headers.
func EncodeKeyFile(k *Keypair, passphrase string) ([]byte, error) {
	if k == nil || k.Scheme == nil {
		return nil, autherr.New(autherr.KindInvalidArgument, "DIDAUTH-KEYFILE-001", "missing keypair")
	}
	raw := make([]byte, 0, len(k.Public)+len(k.Seed)+len(k.Public))
	raw = append(raw, k.Public...)
	raw = append(raw, k.PrivateKey()...)
	defer zeroBytes(raw)

	block := &pem.Block{
		Type:    pemTypeKey,
		Headers: map[string]string{"Scheme": k.Scheme.Name},
	}
	if passphrase == "" {
		block.Bytes = append([]byte(nil), raw...)
		return pem.EncodeToMemory(block), nil
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	key := deriveFileKey(passphrase, salt, kdfTime, kdfMemoryKB, kdfThreads)
	defer zeroBytes(key)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	block.Type = pemTypeEncryptedKey
	block.Headers["KDF"] = kdfName
	block.Headers["KDF-Params"] = fmt.Sprintf("t=%d,m=%d,p=%d", kdfTime, kdfMemoryKB, kdfThreads)
	block.Headers["Salt"] = hex.EncodeToString(salt)
	block.Headers["Nonce"] = hex.EncodeToString(nonce)
	block.Bytes = aead.Seal(nil, nonce, raw, []byte(k.Scheme.Name))
	return pem.EncodeToMemory(block), nil
}

// DecodeKeyFile parses a key file produced by EncodeKeyFile.
//
// The public key is re-derived from the private key and must equal the
// public key stored in the file; any structural problem is reported as
// KeyFileCorrupt. A wrong (or missing) passphrase for an encrypted file is
// reported as InvalidCredential.
func DecodeKeyFile(data []byte, passphrase string) (*Keypair, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, autherr.New(autherr.KindKeyFileCorrupt, "DIDAUTH-KEYFILE-101", "no PEM block found")
	}
	s, err := didkey.SchemeByName(block.Headers["Scheme"])
	if err != nil {
		return nil, autherr.Wrap(autherr.KindKeyFileCorrupt, "DIDAUTH-KEYFILE-102", "unknown key scheme", err)
	}

	var raw []byte
	switch block.Type {
	case pemTypeKey:
		raw = block.Bytes
	case pemTypeEncryptedKey:
		raw, err = decryptBlock(block, s, passphrase)
		if err != nil {
			return nil, err
		}
		defer zeroBytes(raw)
	default:
		return nil, autherr.New(autherr.KindKeyFileCorrupt, "DIDAUTH-KEYFILE-103",
			fmt.Sprintf("unexpected PEM block type %q", block.Type))
	}

	if len(raw) <= s.PublicKeySize {
		return nil, autherr.New(autherr.KindKeyFileCorrupt, "DIDAUTH-KEYFILE-104", "key file too short")
	}
	pub, priv := raw[:s.PublicKeySize], raw[s.PublicKeySize:]
	k, err := ParsePrivateKey(s, priv)
	if err != nil {
		return nil, autherr.Wrap(autherr.KindKeyFileCorrupt, "DIDAUTH-KEYFILE-105", "invalid private key", err)
	}
	if !Equal(k.Public, pub) {
		return nil, autherr.New(autherr.KindKeyFileCorrupt, "DIDAUTH-KEYFILE-106",
			"public key does not match private key")
	}
	return k, nil
}

func decryptBlock(block *pem.Block, s *didkey.Scheme, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, autherr.New(autherr.KindInvalidCredential, "DIDAUTH-KEYFILE-201", "key file is encrypted; passphrase required")
	}
	if block.Headers["KDF"] != kdfName {
		return nil, autherr.New(autherr.KindKeyFileCorrupt, "DIDAUTH-KEYFILE-202", "unsupported key file KDF")
	}
	t, m, p, err := parseKDFParams(block.Headers["KDF-Params"])
	if err != nil {
		return nil, autherr.Wrap(autherr.KindKeyFileCorrupt, "DIDAUTH-KEYFILE-203", "invalid KDF parameters", err)
	}
	salt, err := hex.DecodeString(block.Headers["Salt"])
	if err != nil || len(salt) == 0 {
		return nil, autherr.New(autherr.KindKeyFileCorrupt, "DIDAUTH-KEYFILE-204", "invalid salt")
	}
	nonce, err := hex.DecodeString(block.Headers["Nonce"])
	if err != nil || len(nonce) != chacha20poly1305.NonceSizeX {
		return nil, autherr.New(autherr.KindKeyFileCorrupt, "DIDAUTH-KEYFILE-205", "invalid nonce")
	}

	key := deriveFileKey(passphrase, salt, t, m, p)
	defer zeroBytes(key)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, autherr.Wrap(autherr.KindInternal, "DIDAUTH-KEYFILE-206", "cipher init failed", err)
	}
	raw, err := aead.Open(nil, nonce, block.Bytes, []byte(s.Name))
	if err != nil {
		return nil, autherr.New(autherr.KindInvalidCredential, "DIDAUTH-KEYFILE-207", "wrong passphrase or corrupted key file")
	}
	return raw, nil
}

func parseKDFParams(v string) (t uint32, m uint32, p uint8, err error) {
	var seen int
	for _, kv := range strings.Split(v, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(kv), "=")
		if !ok {
			return 0, 0, 0, fmt.Errorf("malformed parameter %q", kv)
		}
		n, perr := strconv.ParseUint(val, 10, 32)
		if perr != nil || n == 0 {
			return 0, 0, 0, fmt.Errorf("invalid value for %q", k)
		}
		switch k {
		case "t":
			t = uint32(n)
		case "m":
			m = uint32(n)
		case "p":
			if n > 255 {
				return 0, 0, 0, fmt.Errorf("invalid value for %q", k)
			}
			p = uint8(n)
		default:
			return 0, 0, 0, fmt.Errorf("unknown parameter %q", k)
		}
		seen++
	}
	if seen != 3 || t == 0 || m == 0 || p == 0 {
		return 0, 0, 0, fmt.Errorf("expected t, m and p")
	}
	// Refuse parameters a hostile file could use to exhaust memory.
	if m > 1<<20 || t > 16 {
		return 0, 0, 0, fmt.Errorf("KDF parameters out of range")
	}
	return t, m, p, nil
}

func deriveFileKey(passphrase string, salt []byte, t, m uint32, p uint8) []byte {
	return argon2.IDKey([]byte(passphrase), salt, t, m, p, chacha20poly1305.KeySize)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
