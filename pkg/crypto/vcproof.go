package crypto

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// VCProofClaims are the claims carried by a W3C JWT-VC issuer proof —
// credentials whose models.VerifiableCredential.Format is FormatW3CJWT
// rather than a raw Ed25519/secp256k1 signature over canonical JSON.
type VCProofClaims struct {
	jwt.RegisteredClaims
	VC VCProofSubject `json:"vc"`
}

// VCProofSubject mirrors the "vc" claim of a JWT-VC.
type VCProofSubject struct {
	Context           []string               `json:"@context"`
	Type              []string               `json:"type"`
	CredentialSubject map[string]interface{} `json:"credentialSubject"`
	Issuer            string                 `json:"issuer,omitempty"`
	ExpirationDate    string                 `json:"expirationDate,omitempty"`
}

// KeyResolver resolves a DID to whatever public key type its
// verification method carries. Implemented by pkg/verifier's
// DIDKeyResolver; kept as a narrow interface here so pkg/crypto never
// depends on the registry capability directly.
type KeyResolver interface {
	ResolveKey(did string) (interface{}, error)
}

// ValidateVCProof validates a W3C JWT-VC issuer proof and returns its
// claims. It resolves the issuer's key via resolver, checks the
// signature, and checks exp/nbf against both the JWT's own registered
// claims and the VC's expirationDate field.
func ValidateVCProof(vcJWT string, resolver KeyResolver) (*VCProofClaims, error) {
	unverified, _, err := new(jwt.Parser).ParseUnverified(vcJWT, &VCProofClaims{})
	if err != nil {
		return nil, fmt.Errorf("parse VC JWT: %w", err)
	}
	claims, ok := unverified.Claims.(*VCProofClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected VC JWT claims type")
	}

	issuerDID := claims.Issuer
	if issuerDID == "" {
		issuerDID = claims.VC.Issuer
	}
	if issuerDID == "" {
		return nil, fmt.Errorf("VC JWT carries no issuer")
	}

	publicKey, err := resolver.ResolveKey(issuerDID)
	if err != nil {
		return nil, fmt.Errorf("resolve issuer key: %w", err)
	}

	validated, err := jwt.ParseWithClaims(vcJWT, &VCProofClaims{}, func(token *jwt.Token) (interface{}, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodECDSA, *jwt.SigningMethodRSA, *jwt.SigningMethodEd25519:
			return publicKey, nil
		default:
			return nil, fmt.Errorf("unsupported signing method: %s", token.Method.Alg())
		}
	})
	if err != nil {
		return nil, fmt.Errorf("VC JWT signature invalid: %w", err)
	}

	validatedClaims := validated.Claims.(*VCProofClaims)

	now := time.Now()
	if validatedClaims.ExpiresAt != nil && validatedClaims.ExpiresAt.Before(now) {
		return nil, fmt.Errorf("VC JWT expired")
	}
	if validatedClaims.NotBefore != nil && validatedClaims.NotBefore.After(now) {
		return nil, fmt.Errorf("VC JWT not yet valid")
	}
	if validatedClaims.VC.ExpirationDate != "" {
		if expTime, err := time.Parse(time.RFC3339, validatedClaims.VC.ExpirationDate); err == nil && expTime.Before(now) {
			return nil, fmt.Errorf("VC expirationDate has passed")
		}
	}

	return validatedClaims, nil
}

// SignVCProof signs claims for use by test fixtures that need an issuer
// keypair; the core itself never signs or holds signing keys.
func SignVCProof(claims *VCProofClaims, privateKey interface{}, kid string) (string, error) {
	var method jwt.SigningMethod
	switch privateKey.(type) {
	case *ecdsa.PrivateKey:
		method = jwt.SigningMethodES256
	case *rsa.PrivateKey:
		method = jwt.SigningMethodRS256
	case ed25519.PrivateKey:
		method = jwt.SigningMethodEdDSA
	default:
		return "", fmt.Errorf("unsupported private key type %T", privateKey)
	}

	token := jwt.NewWithClaims(method, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	return token.SignedString(privateKey)
}

// ParsePublicKeyPEM parses a PEM-encoded public key, for test fixtures
// that provision issuer keys out of band.
func ParsePublicKeyPEM(pemData string) (interface{}, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}
	return x509.ParsePKIXPublicKey(block.Bytes)
}

// ParsePrivateKeyPEM parses a PEM-encoded private key, for test fixtures.
func ParsePrivateKeyPEM(pemData string) (interface{}, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	return x509.ParsePKCS1PrivateKey(block.Bytes)
}

// ExtractDIDFromJWT pulls a DID out of an unverified JWT's claim without
// checking the signature — used only to decide which key to resolve
// before full validation runs.
func ExtractDIDFromJWT(jwtString, claimName string) (string, error) {
	parts := strings.Split(jwtString, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("invalid JWT format")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("decode JWT payload: %w", err)
	}
	var claims map[string]interface{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", fmt.Errorf("parse JWT claims: %w", err)
	}
	if did, ok := claims[claimName].(string); ok && did != "" {
		return did, nil
	}
	return "", fmt.Errorf("DID not found in claim %q", claimName)
}
