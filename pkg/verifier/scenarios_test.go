package verifier

import (
	"crypto/ed25519"
	"encoding/json"
	"testing"
	"time"

	"github.com/multiformats/go-multibase"

	"github.com/aura-id/verifier-go/pkg/cache"
	xcrypto "github.com/aura-id/verifier-go/pkg/crypto"
	aerrors "github.com/aura-id/verifier-go/pkg/errors"
	"github.com/aura-id/verifier-go/pkg/models"
	"github.com/aura-id/verifier-go/pkg/nonce"
	"github.com/aura-id/verifier-go/pkg/presentation"
	"github.com/aura-id/verifier-go/pkg/registry"
)

type fixture struct {
	holderDID  string
	holderPriv ed25519.PrivateKey
	issuerDID  string
	issuerPriv ed25519.PrivateKey
	client     *registry.StaticClient
	verifier   *Verifier
}

func multibaseKey(t *testing.T, pub ed25519.PublicKey) string {
	t.Helper()
	s, err := multibase.Encode(multibase.Base58BTC, pub)
	if err != nil {
		t.Fatalf("multibase encode: %v", err)
	}
	return s
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	holderPub, holderPriv, _ := ed25519.GenerateKey(nil)
	issuerPub, issuerPriv, _ := ed25519.GenerateKey(nil)

	holderDID := "did:aura:testnet:holder1"
	issuerDID := "did:aura:testnet:issuer1"

	client := registry.NewStaticClient()
	client.RegisterDID(&models.DIDDocument{
		ID: holderDID,
		VerificationMethod: []models.VerificationMethod{{
			ID: holderDID + "#key-1", Type: "Ed25519VerificationKey2020", Controller: holderDID,
			PublicKeyMultibase: multibaseKey(t, holderPub),
		}},
	})
	client.RegisterDID(&models.DIDDocument{
		ID: issuerDID,
		VerificationMethod: []models.VerificationMethod{{
			ID: issuerDID + "#key-1", Type: "Ed25519VerificationKey2020", Controller: issuerDID,
			PublicKeyMultibase: multibaseKey(t, issuerPub),
		}},
	})

	credCache, err := cache.New(cache.NewMemoryAdapter(), cache.Config{}, nil)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	tracker := nonce.NewExactTracker(5*time.Minute, 30*time.Second)
	v := New(client, tracker, credCache, nil, Options{})

	return &fixture{
		holderDID: holderDID, holderPriv: holderPriv,
		issuerDID: issuerDID, issuerPriv: issuerPriv,
		client: client, verifier: v,
	}
}

// registerVC signs and registers a native-format age-assertion credential
// with the given status, returning its id.
func (f *fixture) registerVC(t *testing.T, vcID string, status models.VCStatus) {
	t.Helper()
	vc := &models.VerifiableCredential{
		VCID:      vcID,
		IssuerDID: f.issuerDID,
		HolderDID: f.holderDID,
		VCType:    models.VCTypeAgeAssertion,
		IssuedAt:  time.Now().Unix() - 1000,
		ExpiresAt: time.Now().Unix() + 1_000_000,
		CredentialSubject: map[string]interface{}{
			"show_age_over_21": true,
		},
		Format: models.FormatNative,
		Status: status,
	}
	canon, err := nativeSigningBytes(vc)
	if err != nil {
		t.Fatalf("nativeSigningBytes: %v", err)
	}
	digest := xcrypto.Sha256(canon)
	sig := xcrypto.SignEd25519(f.issuerPriv, digest)
	vc.Proof = &models.Proof{
		Type:               "Ed25519Signature2020",
		VerificationMethod: f.issuerDID + "#key-1",
		Signature:          xcrypto.HexEncode(sig),
	}

	f.client.RegisterCredential(vc, registry.VCStatusResult{
		Status:  status,
		Revoked: status == models.VCStatusRevoked,
	})
}

// buildQR builds and signs a presentation, returning the aura:// wire string.
func (f *fixture) buildQR(t *testing.T, presID string, vcIDs []string, ctx map[string]bool, exp int64, n uint64) string {
	t.Helper()
	pres := &models.Presentation{
		Version:        "1.0",
		PresentationID: presID,
		HolderDID:      f.holderDID,
		VCIDs:          vcIDs,
		Context:        ctx,
		Expiration:     exp,
		Nonce:          n,
	}
	digest := mustSigningDigest(t, pres)
	sig := xcrypto.SignEd25519(f.holderPriv, digest)
	pres.Signature = xcrypto.HexEncode(sig)

	raw, err := json.Marshal(pres)
	if err != nil {
		t.Fatalf("marshal presentation: %v", err)
	}
	return "aura://verify?data=" + xcrypto.Base64Encode(raw)
}

func mustSigningDigest(t *testing.T, pres *models.Presentation) []byte {
	t.Helper()
	digest, err := presentation.SigningDigest(pres)
	if err != nil {
		t.Fatalf("signing digest: %v", err)
	}
	return digest
}

type failingClient struct{ registry.Client }

func (failingClient) ResolveDID(string) (*models.DIDDocument, error) {
	return nil, aerrors.New(aerrors.CodeTimeout, "network disabled")
}
func (failingClient) CheckVCStatus(string) (registry.VCStatusResult, error) {
	return registry.VCStatusResult{}, aerrors.New(aerrors.CodeTimeout, "network disabled")
}

func TestScenario_S1_HappyPathAge21Plus(t *testing.T) {
	f := newFixture(t)
	f.registerVC(t, "vc_age_21_001", models.VCStatusActive)
	now := time.Now().Unix()
	qr := f.buildQR(t, "pres_1", []string{"vc_age_21_001"}, map[string]bool{"show_age_over_21": true}, now+300, 7)

	result, err := f.verifier.Verify(VerifyRequest{QRCodeData: qr})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !result.IsValid {
		t.Fatalf("expected valid, got error %s: %s", result.VerificationErrCode, result.VerificationError)
	}
	if len(result.VCDetails) != 1 || result.VCDetails[0].Status != models.VCStatusActive {
		t.Errorf("got VCDetails %+v", result.VCDetails)
	}
	if result.Attributes["show_age_over_21"] != true {
		t.Errorf("got attributes %+v", result.Attributes)
	}
	if result.VerificationMethod != models.MethodOnline {
		t.Errorf("got method %s, want Online", result.VerificationMethod)
	}
	if len(result.AuditID) != 32 {
		t.Errorf("got audit id %q, want 32 hex chars", result.AuditID)
	}
}

func TestScenario_S2_Expired(t *testing.T) {
	f := newFixture(t)
	f.registerVC(t, "vc_age_21_001", models.VCStatusActive)
	now := time.Now().Unix()
	qr := f.buildQR(t, "pres_2", []string{"vc_age_21_001"}, map[string]bool{"show_age_over_21": true}, now-3600, 7)

	result, err := f.verifier.Verify(VerifyRequest{QRCodeData: qr})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.IsValid {
		t.Fatal("expected expired presentation to be invalid")
	}
	if result.VerificationErrCode != string(aerrors.CodeExpired) {
		t.Errorf("got code %s, want %s", result.VerificationErrCode, aerrors.CodeExpired)
	}
	if len(result.VCDetails) != 0 {
		t.Errorf("expected no per-VC evidence gathered, got %+v", result.VCDetails)
	}
}

func TestScenario_S3_Replay(t *testing.T) {
	f := newFixture(t)
	f.registerVC(t, "vc_age_21_001", models.VCStatusActive)
	now := time.Now().Unix()
	qr := f.buildQR(t, "pres_3", []string{"vc_age_21_001"}, map[string]bool{"show_age_over_21": true}, now+300, 9)

	first, err := f.verifier.Verify(VerifyRequest{QRCodeData: qr})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !first.IsValid {
		t.Fatalf("expected first submission valid, got %s", first.VerificationError)
	}

	second, err := f.verifier.Verify(VerifyRequest{QRCodeData: qr})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if second.IsValid {
		t.Fatal("expected replay to be invalid")
	}
	if second.VerificationErrCode != string(aerrors.CodeNonceError) {
		t.Errorf("got code %s, want %s", second.VerificationErrCode, aerrors.CodeNonceError)
	}
	if len(second.VCDetails) != 0 {
		t.Errorf("expected replay to short-circuit before per-VC checks, got %+v", second.VCDetails)
	}
}

func TestScenario_S4_Revoked(t *testing.T) {
	f := newFixture(t)
	f.registerVC(t, "vc_age_21_001", models.VCStatusRevoked)
	now := time.Now().Unix()
	qr := f.buildQR(t, "pres_4", []string{"vc_age_21_001"}, map[string]bool{"show_age_over_21": true}, now+300, 11)

	result, err := f.verifier.Verify(VerifyRequest{QRCodeData: qr})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.IsValid {
		t.Fatal("expected revoked credential to invalidate the presentation")
	}
	if len(result.VCDetails) != 1 || result.VCDetails[0].Status != models.VCStatusRevoked {
		t.Errorf("got VCDetails %+v", result.VCDetails)
	}
	if !containsFold(result.VerificationError, "revoked") {
		t.Errorf("expected verificationError to mention revocation, got %q", result.VerificationError)
	}
}

func TestScenario_S5_OfflineCacheHitAfterWarmup(t *testing.T) {
	f := newFixture(t)
	f.registerVC(t, "vc_age_21_001", models.VCStatusActive)
	now := time.Now().Unix()

	qr1 := f.buildQR(t, "pres_5a", []string{"vc_age_21_001"}, map[string]bool{"show_age_over_21": true}, now+300, 21)
	warm, err := f.verifier.Verify(VerifyRequest{QRCodeData: qr1})
	if err != nil || !warm.IsValid {
		t.Fatalf("expected warm-up verification to succeed: %v %s", err, warm.VerificationError)
	}

	// Disable the network for credential status: any further call through
	// v.registry fails. The DID resolver keeps its own client and serves
	// both DIDs from its cache.
	f.verifier.registry = failingClient{}

	qr2 := f.buildQR(t, "pres_5b", []string{"vc_age_21_001"}, map[string]bool{"show_age_over_21": true}, now+600, 22)
	result, err := f.verifier.Verify(VerifyRequest{QRCodeData: qr2})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !result.IsValid {
		t.Fatalf("expected cached verification to succeed, got %s", result.VerificationError)
	}
	if result.VerificationMethod != models.MethodCached {
		t.Errorf("got method %s, want Cached", result.VerificationMethod)
	}
	if result.NetworkLatencyMs > 5 {
		t.Errorf("expected near-zero network latency, got %dms", result.NetworkLatencyMs)
	}
}

func TestScenario_S6_TamperedSignature(t *testing.T) {
	f := newFixture(t)
	f.registerVC(t, "vc_age_21_001", models.VCStatusActive)
	now := time.Now().Unix()
	qr := f.buildQR(t, "pres_6", []string{"vc_age_21_001"}, map[string]bool{"show_age_over_21": true}, now+300, 31)

	tampered := flipHexNibbleInSig(qr)
	result, err := f.verifier.Verify(VerifyRequest{QRCodeData: tampered})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.IsValid {
		t.Fatal("expected tampered signature to be invalid")
	}
	if result.SignatureValid {
		t.Error("expected signatureValid=false")
	}
	if result.VerificationErrCode != string(aerrors.CodeSignatureFailed) {
		t.Errorf("got code %s, want %s", result.VerificationErrCode, aerrors.CodeSignatureFailed)
	}
}

func containsFold(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := 0; j < len(needle); j++ {
			a, b := haystack[i+j], needle[j]
			if a >= 'A' && a <= 'Z' {
				a += 'a' - 'A'
			}
			if b >= 'A' && b <= 'Z' {
				b += 'a' - 'A'
			}
			if a != b {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// flipHexNibbleInSig decodes the aura:// QR, flips one nibble of the
// presentation's sig field, and re-encodes it — used to construct S6's
// tampered-signature fixture without hand-building JSON.
func flipHexNibbleInSig(qr string) string {
	const prefix = "aura://verify?data="
	token := qr[len(prefix):]
	raw, err := xcrypto.Base64Decode(token)
	if err != nil {
		panic(err)
	}
	var pres models.Presentation
	if err := json.Unmarshal(raw, &pres); err != nil {
		panic(err)
	}
	sigBytes := []rune(pres.Signature)
	if sigBytes[0] == 'f' {
		sigBytes[0] = 'e'
	} else {
		sigBytes[0] = 'f'
	}
	pres.Signature = string(sigBytes)

	out, err := json.Marshal(pres)
	if err != nil {
		panic(err)
	}
	return prefix + xcrypto.Base64Encode(out)
}
