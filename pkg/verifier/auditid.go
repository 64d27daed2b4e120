package verifier

import "github.com/aura-id/verifier-go/pkg/crypto"

// newAuditID returns 128 random bits from the secure RNG, hex-encoded —
// a 32-character lowercase hex string, matching scenario S1's assertion.
func newAuditID() string {
	b, err := crypto.RandomBytes(16)
	if err != nil {
		// crypto/rand failing means the host has no usable entropy
		// source; there is no sane fallback for an audit identity that
		// must be unguessable, so this is the one place the package
		// panics rather than returning a degraded id.
		panic("verifier: unable to generate audit id: " + err.Error())
	}
	return crypto.HexEncode(b)
}
