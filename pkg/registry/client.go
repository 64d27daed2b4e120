// Package registry defines the narrow capability the verifier core
// consumes to resolve identities and credential status from the aura
// chain. The core never ships a transport for it — a host wires in
// whatever HTTP/gRPC/contract-call client it has; only a static
// in-memory implementation for tests lives here.
package registry

import "github.com/aura-id/verifier-go/pkg/models"

// VCStatusResult is checkVCStatus's answer for a single credential.
type VCStatusResult struct {
	Exists  bool
	Status  models.VCStatus
	Revoked bool
	Expired bool
	VC      *models.VerifiableCredential
}

// Client is the capability pkg/verifier and pkg/cache's synchronizer
// consume. Implementation, transport, retries, and batching are all
// outside the core — see spec §6.
type Client interface {
	// ResolveDID returns the holder or issuer's DID document, or a
	// DID_NOT_FOUND-coded error if the network has no record of it.
	ResolveDID(did string) (*models.DIDDocument, error)
	// CheckVCStatus returns the live status of a single credential.
	CheckVCStatus(vcID string) (VCStatusResult, error)
	// BatchCheckVCStatus is an optional fast path; callers must not
	// assume it is cheaper than N calls to CheckVCStatus.
	BatchCheckVCStatus(vcIDs []string) (map[string]VCStatusResult, error)
	// GetCredential fetches the full credential record by id.
	GetCredential(vcID string) (*models.VerifiableCredential, error)
	// IsCredentialRevoked is a narrower, cheaper check than CheckVCStatus
	// for callers that only care about revocation.
	IsCredentialRevoked(vcID string) (bool, error)
	// FetchRevocationList returns the bitmap published under merkleRoot.
	FetchRevocationList(merkleRoot string) (*models.RevocationList, error)
}
