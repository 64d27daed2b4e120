package verifier

import (
	xcrypto "github.com/aura-id/verifier-go/pkg/crypto"
	"github.com/aura-id/verifier-go/pkg/models"
)

// nativeSigningBytes returns the canonical JSON of a credential's core
// claim fields, excluding Proof — the same "canonicalize everything but
// the signature" shape presentation.CanonicalSigningBytes uses for the
// holder's own signature, reused here for the issuer's.
func nativeSigningBytes(vc *models.VerifiableCredential) ([]byte, error) {
	obj := map[string]interface{}{
		"vcId":              vc.VCID,
		"issuerDID":         vc.IssuerDID,
		"holderDID":         vc.HolderDID,
		"vcType":            vc.VCType,
		"issuedAt":          vc.IssuedAt,
		"expiresAt":         vc.ExpiresAt,
		"credentialSubject": vc.CredentialSubject,
	}
	return xcrypto.CanonicalJSON(obj)
}

func (v *Verifier) verifyNativeProof(vc *models.VerifiableCredential) bool {
	keys, err := v.didResolver.Resolve(vc.IssuerDID)
	if err != nil {
		return false
	}

	canon, err := nativeSigningBytes(vc)
	if err != nil {
		return false
	}
	digest := xcrypto.Sha256(canon)

	sigBytes, err := xcrypto.HexDecode(vc.Proof.Signature)
	if err != nil {
		return false
	}

	for _, k := range keys {
		switch k.Algorithm {
		case "ed25519":
			if xcrypto.VerifyEd25519(sigBytes, digest, k.PublicKey) {
				return true
			}
		case "secp256k1":
			if xcrypto.VerifySecp256k1(sigBytes, digest, k.PublicKey, false) {
				return true
			}
		}
	}
	return false
}

func (v *Verifier) verifyJWTProof(vc *models.VerifiableCredential) bool {
	_, err := xcrypto.ValidateVCProof(vc.Proof.Signature, v.didResolver)
	return err == nil
}
