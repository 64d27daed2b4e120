package verifier

import "github.com/aura-id/verifier-go/pkg/models"

// IsAge21Plus runs Verify and reports whether it succeeded with the
// show_age_over_21 attribute asserted true. Any parse/verification failure
// reports false, matching the teacher's oidvp thin-wrapper-over-core
// shape (oidvp/service.go wrapped the staged pipeline behind single-
// purpose convenience calls the same way).
func (v *Verifier) IsAge21Plus(qr string) bool {
	return v.attributeTrue(qr, "show_age_over_21")
}

// IsAge18Plus is IsAge21Plus's 18+ counterpart.
func (v *Verifier) IsAge18Plus(qr string) bool {
	return v.attributeTrue(qr, "show_age_over_18")
}

// IsVerifiedHuman runs Verify and reports whether it succeeded with the
// show_verified_human attribute asserted true; the VC types presented
// are not checked.
func (v *Verifier) IsVerifiedHuman(qr string) bool {
	return v.attributeTrue(qr, "show_verified_human")
}

func (v *Verifier) attributeTrue(qr, attrKey string) bool {
	result, err := v.Verify(VerifyRequest{QRCodeData: qr})
	if err != nil || !result.IsValid {
		return false
	}
	val, ok := result.Attributes[attrKey]
	if !ok {
		return false
	}
	b, ok := val.(bool)
	return ok && b
}

// GetAuraScore returns a weighted sum of per-VC-type weights (from
// Options.AuraScoreWeights) over the VCs a presentation successfully
// verified, or nil if verification failed. Weights and ranges are
// policy, not crypto — callers configure them per deployment.
func (v *Verifier) GetAuraScore(qr string) *float64 {
	result, err := v.Verify(VerifyRequest{QRCodeData: qr})
	if err != nil || !result.IsValid {
		return nil
	}

	var score float64
	for _, d := range result.VCDetails {
		score += v.weightFor(d.VCType)
	}
	return &score
}

func (v *Verifier) weightFor(t models.VCType) float64 {
	if v.opts.AuraScoreWeights == nil {
		return 1
	}
	if w, ok := v.opts.AuraScoreWeights[t]; ok {
		return w
	}
	return 0
}
