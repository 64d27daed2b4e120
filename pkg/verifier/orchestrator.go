package verifier

import (
	"strconv"
	"time"

	"github.com/aura-id/verifier-go/pkg/cache"
	xcrypto "github.com/aura-id/verifier-go/pkg/crypto"
	aerrors "github.com/aura-id/verifier-go/pkg/errors"
	"github.com/aura-id/verifier-go/pkg/events"
	"github.com/aura-id/verifier-go/pkg/models"
	"github.com/aura-id/verifier-go/pkg/nonce"
	"github.com/aura-id/verifier-go/pkg/presentation"
	"github.com/aura-id/verifier-go/pkg/registry"
)

// Verifier runs the state machine of spec §4.5 over one presentation at
// a time: parse, freshness, nonce, signature, per-credential checks, and
// policy. Grounded directly on the teacher's Service.Validate ->
// validateVPs -> validateVP -> validateVC staged pipeline, generalized
// from "validate N independent JWT VPs" to "run the single ordered state
// machine over one presentation's VCs".
type Verifier struct {
	registry    registry.Client
	nonces      nonce.Tracker
	cache       *cache.Cache
	didResolver *DIDKeyResolver
	sink        events.Sink
	opts        Options
}

// New constructs a Verifier. sink may be nil (defaults to events.NopSink).
func New(client registry.Client, nonces nonce.Tracker, credCache *cache.Cache, sink events.Sink, opts Options) *Verifier {
	if sink == nil {
		sink = events.NopSink{}
	}
	opts = opts.normalized()

	return &Verifier{
		registry:    client,
		nonces:      nonces,
		cache:       credCache,
		didResolver: NewDIDKeyResolver(client, DefaultDIDCacheTTL),
		sink:        sink,
		opts:        opts,
	}
}

// Close releases the resolver's background goroutine.
func (v *Verifier) Close() {
	v.didResolver.Close()
}

func (v *Verifier) now() time.Time { return v.opts.Now() }

func (v *Verifier) parseOptions() presentation.ParseOptions {
	opts := presentation.DefaultParseOptions()
	if v.opts.SupportedVersions != nil {
		opts.SupportedVersions = v.opts.SupportedVersions
	}
	opts.Now = v.opts.Now
	return opts
}

// fail finalizes result as a Failed-state outcome.
func (v *Verifier) fail(result *models.VerificationResult, err error) *models.VerificationResult {
	result.IsValid = false
	result.VerificationError = err.Error()
	code := aerrors.CodeOf(err)
	if code == "" {
		code = aerrors.CodeValidationError
	}
	result.VerificationErrCode = string(code)
	v.sink.Emit(events.Verification, map[string]interface{}{"auditId": result.AuditID, "isValid": false, "code": string(code)})
	return result
}

// Verify runs the full pipeline for one presentation. The returned
// result is always populated (isValid=false plus verificationError/Code
// on any failure) — per spec, Failed is a reported outcome, not a Go
// error. A non-nil error return is reserved for conditions the pipeline
// itself cannot recover from structurally (none currently exist; the
// signature is kept so a future suspension point — e.g. a context
// cancellation — has somewhere to surface).
func (v *Verifier) Verify(req VerifyRequest) (*models.VerificationResult, error) {
	now := v.now()
	result := &models.VerificationResult{
		AuditID:    newAuditID(),
		VerifiedAt: now.Unix(),
		Attributes: map[string]interface{}{},
	}

	// Parsed + Validated (presentation.Parse enforces schema and, when
	// strict, the structural checks together).
	pres, err := presentation.Parse(req.QRCodeData, v.parseOptions())
	if err != nil {
		return v.fail(result, err), nil
	}
	result.PresentationID = pres.PresentationID
	result.HolderDID = pres.HolderDID
	result.ExpiresAt = pres.Expiration

	// Fresh
	if pres.Expiration <= now.Unix() {
		tolerance := int64(v.opts.ExpirationTolerance.Seconds())
		if tolerance <= 0 || now.Unix()-pres.Expiration > tolerance {
			return v.fail(result, aerrors.NewExpired(pres.Expiration, now.Unix(), tolerance)), nil
		}
	}

	// NonceOk
	nonceKey := pres.HolderDID + ":" + strconv.FormatUint(pres.Nonce, 10)
	if err := v.nonces.ValidateNonce(nonceKey, now.UnixMilli()); err != nil {
		return v.fail(result, err), nil
	}

	var networkLatency time.Duration

	// SignatureOk
	resolveStart := time.Now()
	keys, err := v.didResolver.Resolve(pres.HolderDID)
	networkLatency += time.Since(resolveStart)
	if err != nil {
		return v.fail(result, err), nil
	}
	digest, err := presentation.SigningDigest(pres)
	if err != nil {
		return v.fail(result, err), nil
	}
	sigBytes, err := xcrypto.HexDecode(pres.Signature)
	if err != nil {
		result.SignatureValid = false
		return v.fail(result, aerrors.New(aerrors.CodeEncodingError, "signature is not valid hex")), nil
	}

	sigValid := false
	for _, k := range keys {
		switch k.Algorithm {
		case "ed25519":
			sigValid = xcrypto.VerifyEd25519(sigBytes, digest, k.PublicKey)
		case "secp256k1":
			sigValid = xcrypto.VerifySecp256k1(sigBytes, digest, k.PublicKey, false)
		}
		if sigValid {
			break
		}
	}
	result.SignatureValid = sigValid
	if !sigValid {
		return v.fail(result, aerrors.New(aerrors.CodeSignatureFailed, "presentation signature verification failed")), nil
	}

	// CredentialsChecked: run every referenced VC in the order given,
	// collecting results instead of stopping at the first failure.
	var details []models.VCDetail
	union := map[string]interface{}{}
	onlineCalls, cachedCalls := 0, 0
	var firstErr *aerrors.AuraError

	for _, vcID := range pres.VCIDs {
		check := v.checkCredential(vcID, now)
		networkLatency += check.latency
		details = append(details, check.detail)
		for k, val := range check.subject {
			union[k] = val
		}
		switch check.method {
		case models.MethodOnline:
			onlineCalls++
		case models.MethodCached:
			cachedCalls++
		}
		if check.err != nil && firstErr == nil {
			if ae, ok := check.err.(*aerrors.AuraError); ok {
				firstErr = ae
			} else {
				firstErr = aerrors.New(aerrors.CodeAPIError, check.err.Error())
			}
		}
	}
	result.VCDetails = details

	switch {
	case onlineCalls > 0:
		result.VerificationMethod = models.MethodOnline
	case v.opts.OfflineMode && cachedCalls == len(details) && len(details) > 0:
		result.VerificationMethod = models.MethodOffline
	case cachedCalls == len(details) && len(details) > 0:
		result.VerificationMethod = models.MethodCached
	default:
		result.VerificationMethod = models.MethodOnline
	}

	// attributes: for each (key, true) in ctx, resolve against the union
	// of presented VCs' credentialSubject. Unknown keys surface as a nil
	// value — isValid never depends on them.
	for key, enabled := range pres.Context {
		if !enabled {
			continue
		}
		result.Attributes[key] = union[key] // nil if absent
	}

	result.NetworkLatencyMs = networkLatency.Milliseconds()

	requiredTypes := req.RequiredVCTypes
	if requiredTypes == nil {
		requiredTypes = v.opts.DefaultRequiredVCTypes
	}
	maxAge := req.MaxCredentialAge
	if maxAge == 0 {
		maxAge = v.opts.DefaultMaxCredentialAge
	}

	if firstErr != nil {
		return v.fail(result, firstErr), nil
	}
	if policyErr := checkPolicy(details, requiredTypes, maxAge, now); policyErr != nil {
		return v.fail(result, policyErr), nil
	}

	result.IsValid = true
	v.sink.Emit(events.Verification, map[string]interface{}{"auditId": result.AuditID, "isValid": true})
	return result, nil
}
