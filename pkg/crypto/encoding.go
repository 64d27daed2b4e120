package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// HexEncode returns the lowercase hex encoding of b.
func HexEncode(b []byte) string {
	return hex.EncodeToString(b)
}

// HexDecode decodes a hex string. It returns an error for odd length or
// non-hex characters rather than panicking, so callers on the verify
// path can treat it as a soft failure.
func HexDecode(s string) ([]byte, error) {
	return hex.DecodeString(s)
}

// Base64Decode decodes standard-alphabet base64, tolerating missing
// padding and surrounding whitespace — QR scanners and copy-paste both
// routinely drop the trailing `=`.
func Base64Decode(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		default:
			return r
		}
	}, s)

	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}

// Base64Encode encodes b using the standard alphabet with padding.
func Base64Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// ConstantTimeEqual compares two byte slices without leaking timing
// information about where they first differ. A length mismatch may
// short-circuit — only equal-length byte comparison must run in
// constant time.
func ConstantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// RandomBytes returns n cryptographically secure random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
