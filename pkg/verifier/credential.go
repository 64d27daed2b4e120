package verifier

import (
	"time"

	aerrors "github.com/aura-id/verifier-go/pkg/errors"
	"github.com/aura-id/verifier-go/pkg/models"
)

// credentialCheck is one VC's outcome, folded into the orchestrator's
// per-VC loop in order (spec's "collects results rather than
// short-circuiting" diagnostic style, grounded on the teacher's
// validateVPs/validateVC staged-collection pattern in pkg/vp/service.go).
type credentialCheck struct {
	detail  models.VCDetail
	subject map[string]interface{}
	method  models.VerificationMethodKind
	latency time.Duration
	err     error
}

func (v *Verifier) checkCredential(vcID string, now time.Time) credentialCheck {
	if cached, hit, _ := v.cache.Get(vcID); hit {
		return v.buildCheck(&cached.Credential, models.MethodCached, 0, nil)
	}

	if v.opts.OfflineMode {
		return credentialCheck{
			detail: models.VCDetail{VCID: vcID, Status: models.VCStatusUnspecified},
			method: models.MethodOffline,
			err:    aerrors.Newf(aerrors.CodeOfflineModeUnavailable, "credential %s unavailable offline", vcID),
		}
	}

	callStart := time.Now()
	status, err := v.registry.CheckVCStatus(vcID)
	latency := time.Since(callStart)
	if err != nil || !status.Exists || status.VC == nil {
		code := aerrors.CodeNotFound
		if err != nil {
			code = aerrors.CodeOf(err)
			if code == "" {
				code = aerrors.CodeAPIError
			}
		}
		return credentialCheck{
			detail:  models.VCDetail{VCID: vcID, Status: models.VCStatusUnspecified},
			method:  models.MethodOnline,
			latency: latency,
			err:     aerrors.Newf(code, "credential %s not found in registry", vcID),
		}
	}

	vc := status.VC
	vc.Status = status.Status
	check := v.buildCheck(vc, models.MethodOnline, latency, nil)

	// Best-effort warm the cache for future offline/cached lookups. A
	// cache write failure here must not fail the live verification.
	entry := &models.CachedCredential{
		VCID:       vcID,
		Credential: *vc,
		HolderDID:  vc.HolderDID,
		IssuerDID:  vc.IssuerDID,
		RevocationStatus: models.RevocationStatus{
			IsRevoked: status.Revoked,
			CheckedAt: now.Unix(),
		},
	}
	_ = v.cache.Set(vcID, entry)

	return check
}

func (v *Verifier) buildCheck(vc *models.VerifiableCredential, method models.VerificationMethodKind, latency time.Duration, checkErr error) credentialCheck {
	sigValid := v.verifyCredentialProof(vc)

	detail := models.VCDetail{
		VCID:           vc.VCID,
		VCType:         vc.VCType,
		IssuerDID:      vc.IssuerDID,
		IssuedAt:       vc.IssuedAt,
		Status:         vc.Status,
		SignatureValid: sigValid,
		OnChain:        true,
	}

	return credentialCheck{
		detail:  detail,
		subject: vc.CredentialSubject,
		method:  method,
		latency: latency,
		err:     checkErr,
	}
}

// verifyCredentialProof dispatches on the credential's proof format.
// Both native and W3C-JWT credentials are checked against the issuer's
// resolved did:aura keys.
func (v *Verifier) verifyCredentialProof(vc *models.VerifiableCredential) bool {
	if vc.Proof == nil {
		return false
	}
	switch vc.Format {
	case models.FormatNative:
		return v.verifyNativeProof(vc)
	case models.FormatW3CJWT:
		return v.verifyJWTProof(vc)
	default:
		return false
	}
}
