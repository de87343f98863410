package logging

import (
	"crypto/sha256"
	"io"
	"regexp"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"

	"xdao.co/didauth/didkey"
)

// RedactedValue is the replacement string for credential material.
const RedactedValue = "[REDACTED]"

var didKeyPattern = regexp.MustCompile(`did:key:z[1-9A-HJ-NP-Za-km-z]+`)

// FingerprintDID returns a short stable identifier for did suitable for log
// fields: base58 of the first 12 bytes of its SHA-256.
func FingerprintDID(did string) string {
	if did == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(did))
	return "fp:" + base58.Encode(sum[:12])
}

// Redact replaces every did:key string that decodes to a private key (a
// password) with RedactedValue. Public DIDs are left untouched.
func Redact(s string) string {
	return didKeyPattern.ReplaceAllStringFunc(s, func(m string) string {
		k, err := didkey.Decode(m)
		if err == nil && k.Private {
			return RedactedValue
		}
		return m
	})
}

// ContainsPassword reports whether s contains a did:key password.
func ContainsPassword(s string) bool {
	for _, m := range didKeyPattern.FindAllString(s, -1) {
		if k, err := didkey.Decode(m); err == nil && k.Private {
			return true
		}
	}
	return false
}

// SensitiveDataHook flags log events whose message carried a password.
// zerolog hooks cannot rewrite the message; FilteringWriter does the actual
// redaction on the way out.
type SensitiveDataHook struct{}

func (SensitiveDataHook) Run(e *zerolog.Event, _ zerolog.Level, msg string) {
	if ContainsPassword(msg) {
		e.Bool("contains_filtered_data", true)
	}
}

// FilteringWriter wraps an io.Writer and redacts passwords from output.
type FilteringWriter struct {
	w io.Writer
}

func NewFilteringWriter(w io.Writer) *FilteringWriter {
	return &FilteringWriter{w: w}
}

// Write implements io.Writer. It reports len(p) on success so callers do not
// see a short write when redaction changed the length.
func (fw *FilteringWriter) Write(p []byte) (int, error) {
	if _, err := fw.w.Write([]byte(Redact(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}
