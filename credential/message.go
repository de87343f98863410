package credential

import (
	"bytes"
	"encoding/json"
	"unicode/utf8"

	"xdao.co/didauth/autherr"
)

// MethodCreateNewUser is the method name bound into enrollment messages.
const MethodCreateNewUser = "createNewUser"

// Canonicalize renders v as canonical JSON: object keys sorted, no HTML
// escaping, no insignificant whitespace and no trailing newline.
//
// Every signed multi-field message goes through this function so that a field
// value can never be confused with a separator. Strings that are not valid
// UTF-8 are rejected rather than replaced, since encoding/json would map
// distinct byte sequences onto the same U+FFFD text.
func Canonicalize(v any) (string, error) {
	if err := checkUTF8(v); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", autherr.Wrap(autherr.KindInvalidArgument, "DIDAUTH-MSG-001", "message is not JSON-serializable", err)
	}
	return string(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

func checkUTF8(v any) error {
	switch x := v.(type) {
	case string:
		if !utf8.ValidString(x) {
			return invalidUTF8()
		}
	case []string:
		for _, e := range x {
			if !utf8.ValidString(e) {
				return invalidUTF8()
			}
		}
	case []any:
		for _, e := range x {
			if err := checkUTF8(e); err != nil {
				return err
			}
		}
	case map[string]string:
		for k, e := range x {
			if !utf8.ValidString(k) || !utf8.ValidString(e) {
				return invalidUTF8()
			}
		}
	case map[string]any:
		for k, e := range x {
			if !utf8.ValidString(k) {
				return invalidUTF8()
			}
			if err := checkUTF8(e); err != nil {
				return err
			}
		}
	}
	return nil
}

func invalidUTF8() error {
	return autherr.New(autherr.KindInvalidArgument, "DIDAUTH-MSG-002", "message contains invalid UTF-8")
}

// EnrollmentMessage is the canonical message signed at enrollment.
func EnrollmentMessage(name string, metadata map[string]string) (string, error) {
	if metadata == nil {
		metadata = map[string]string{}
	}
	return Canonicalize(map[string]any{
		"method":   MethodCreateNewUser,
		"name":     name,
		"metadata": metadata,
	})
}

// RequestMessage is the canonical description of an authenticated API call.
func RequestMessage(path, method string, params map[string]any) (string, error) {
	if params == nil {
		params = map[string]any{}
	}
	return Canonicalize(map[string]any{
		"path":   path,
		"method": method,
		"params": params,
	})
}
