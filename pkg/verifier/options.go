package verifier

import (
	"time"

	"github.com/aura-id/verifier-go/pkg/models"
)

// Options configures a Verifier instance-wide. Per-call overrides live
// on VerifyRequest.
type Options struct {
	// SupportedVersions restricts the presentation wire version accepted;
	// nil defers to presentation.DefaultSupportedVersions.
	SupportedVersions []string
	// ExpirationTolerance allows a presentation to be accepted up to this
	// long past its exp, matching spec's "tolerance option".
	ExpirationTolerance time.Duration
	// OfflineMode, when set, allows CredentialsChecked to be satisfied
	// entirely from cache without attempting a registry call.
	OfflineMode bool
	// DefaultRequiredVCTypes is used when a VerifyRequest doesn't specify
	// its own RequiredVCTypes.
	DefaultRequiredVCTypes []models.VCType
	// DefaultMaxCredentialAge is used when a VerifyRequest doesn't specify
	// its own MaxCredentialAge. Zero means unbounded.
	DefaultMaxCredentialAge time.Duration
	// AuraScoreWeights maps a VCType to its contribution to GetAuraScore.
	AuraScoreWeights map[models.VCType]float64
	// Now overrides the clock, for tests.
	Now func() time.Time
}

func (o Options) normalized() Options {
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// VerifyRequest is a single verification call's input, per spec §4.5.
type VerifyRequest struct {
	QRCodeData       string
	VerifierAddress  string
	RequiredVCTypes  []models.VCType
	MaxCredentialAge time.Duration
}
