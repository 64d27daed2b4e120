package crypto

import (
	"crypto/ed25519"
)

// VerifyEd25519 checks signature over message with publicKey. message is
// expected to already be whatever the caller wants signed — typically
// sha256(canonicalJSON(presentation)) — this primitive never canonicalizes
// on its own. It is total on its inputs: malformed lengths return false,
// never an error or a panic.
func VerifyEd25519(signature, message, publicKey []byte) bool {
	if len(signature) != ed25519.SignatureSize {
		return false
	}
	if len(publicKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), message, signature)
}

// SignEd25519 signs message with privateKey, for use by test fixtures
// that need a holder or issuer keypair — the core never generates or
// stores signing keys itself.
func SignEd25519(privateKey ed25519.PrivateKey, message []byte) []byte {
	return ed25519.Sign(privateKey, message)
}
