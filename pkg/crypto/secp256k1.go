package crypto

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// VerifySecp256k1 checks an ECDSA signature over secp256k1. publicKey
// must be 33 bytes compressed (prefix 0x02/0x03) or 65 bytes uncompressed
// (prefix 0x04); signature may be 64-byte compact r||s or DER. When
// hashMessage is true, message is SHA-256'd before verification —
// callers that already pass a digest (e.g. hashObject's output) should
// leave it false. Malformed input of any kind yields false, never a panic.
func VerifySecp256k1(signature, message, publicKey []byte, hashMessage bool) bool {
	pub, err := secp256k1.ParsePubKey(publicKey)
	if err != nil {
		return false
	}

	sig, err := parseSecp256k1Signature(signature)
	if err != nil {
		return false
	}

	digest := message
	if hashMessage {
		digest = Sha256(message)
	}

	return sig.Verify(digest, pub)
}

func parseSecp256k1Signature(sig []byte) (*ecdsa.Signature, error) {
	if len(sig) == 64 {
		var r, s secp256k1.ModNScalar
		r.SetByteSlice(sig[:32])
		s.SetByteSlice(sig[32:])
		return ecdsa.NewSignature(&r, &s), nil
	}
	return ecdsa.ParseDERSignature(sig)
}

// CompressSecp256k1PublicKey returns the 33-byte compressed encoding of a
// secp256k1 public key. Applying it to an already-compressed key is a
// no-op.
func CompressSecp256k1PublicKey(key []byte) ([]byte, error) {
	pub, err := secp256k1.ParsePubKey(key)
	if err != nil {
		return nil, err
	}
	return pub.SerializeCompressed(), nil
}

// DecompressSecp256k1PublicKey returns the 65-byte uncompressed encoding
// of a secp256k1 public key.
func DecompressSecp256k1PublicKey(key []byte) ([]byte, error) {
	pub, err := secp256k1.ParsePubKey(key)
	if err != nil {
		return nil, err
	}
	return pub.SerializeUncompressed(), nil
}
