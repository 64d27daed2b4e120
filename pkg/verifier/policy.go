package verifier

import (
	"time"

	aerrors "github.com/aura-id/verifier-go/pkg/errors"
	"github.com/aura-id/verifier-go/pkg/models"
)

// checkPolicy implements the final CredentialsChecked -> Valid gate:
// requiredVCTypes ⊆ presented, maxCredentialAge, and every presented VC
// must be Active with a valid signature.
func checkPolicy(details []models.VCDetail, requiredTypes []models.VCType, maxAge time.Duration, now time.Time) *aerrors.AuraError {
	presented := make(map[models.VCType]bool, len(details))
	for _, d := range details {
		presented[d.VCType] = true
	}
	for _, want := range requiredTypes {
		if !presented[want] {
			return aerrors.Newf(aerrors.CodePolicyError, "missing required credential type %q", want)
		}
	}

	if maxAge > 0 {
		cutoff := now.Add(-maxAge).Unix()
		for _, d := range details {
			if d.IssuedAt > 0 && d.IssuedAt < cutoff {
				return aerrors.Newf(aerrors.CodePolicyError, "credential %s exceeds max age", d.VCID)
			}
		}
	}

	for _, d := range details {
		if !d.SignatureValid {
			return aerrors.Newf(aerrors.CodeSignatureFailed, "credential %s has an invalid signature", d.VCID)
		}
		switch d.Status {
		case models.VCStatusRevoked:
			return aerrors.Newf(aerrors.CodeRevoked, "credential %s has been revoked", d.VCID)
		case models.VCStatusExpired:
			return aerrors.Newf(aerrors.CodeCredentialExpired, "credential %s has expired", d.VCID)
		case models.VCStatusSuspended:
			return aerrors.Newf(aerrors.CodeSuspended, "credential %s is suspended", d.VCID)
		case models.VCStatusPending:
			return aerrors.Newf(aerrors.CodePending, "credential %s is pending", d.VCID)
		case models.VCStatusActive:
			// ok
		default:
			return aerrors.Newf(aerrors.CodeNotFound, "credential %s has unknown status", d.VCID)
		}
	}

	return nil
}
