package registry

import (
	"sync"

	"github.com/aura-id/verifier-go/pkg/errors"
	"github.com/aura-id/verifier-go/pkg/models"
)

// StaticClient is an in-memory Client for tests, following the same
// "register fixtures, then resolve" shape as the teacher's
// DIDResolver.RegisterLocalKey: nothing here talks to a network, callers
// seed it directly with the records a scenario needs.
type StaticClient struct {
	mu sync.RWMutex

	dids             map[string]*models.DIDDocument
	credentials      map[string]*models.VerifiableCredential
	statuses         map[string]VCStatusResult
	revocationLists  map[string]*models.RevocationList
}

// NewStaticClient returns an empty fixture registry.
func NewStaticClient() *StaticClient {
	return &StaticClient{
		dids:            make(map[string]*models.DIDDocument),
		credentials:     make(map[string]*models.VerifiableCredential),
		statuses:        make(map[string]VCStatusResult),
		revocationLists: make(map[string]*models.RevocationList),
	}
}

func (c *StaticClient) RegisterDID(doc *models.DIDDocument) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dids[doc.ID] = doc
}

func (c *StaticClient) RegisterCredential(vc *models.VerifiableCredential, status VCStatusResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.credentials[vc.VCID] = vc
	status.VC = vc
	status.Exists = true
	c.statuses[vc.VCID] = status
}

func (c *StaticClient) RegisterRevocationList(list *models.RevocationList) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revocationLists[list.MerkleRoot] = list
}

func (c *StaticClient) ResolveDID(did string) (*models.DIDDocument, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	doc, ok := c.dids[did]
	if !ok {
		return nil, errors.Newf(errors.CodeDIDNotFound, "did not found in registry: %s", did)
	}
	return doc, nil
}

func (c *StaticClient) CheckVCStatus(vcID string) (VCStatusResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	status, ok := c.statuses[vcID]
	if !ok {
		return VCStatusResult{}, errors.Newf(errors.CodeNotFound, "credential not found: %s", vcID)
	}
	return status, nil
}

func (c *StaticClient) BatchCheckVCStatus(vcIDs []string) (map[string]VCStatusResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]VCStatusResult, len(vcIDs))
	for _, id := range vcIDs {
		if status, ok := c.statuses[id]; ok {
			out[id] = status
		} else {
			out[id] = VCStatusResult{Exists: false}
		}
	}
	return out, nil
}

func (c *StaticClient) GetCredential(vcID string) (*models.VerifiableCredential, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	vc, ok := c.credentials[vcID]
	if !ok {
		return nil, errors.Newf(errors.CodeNotFound, "credential not found: %s", vcID)
	}
	return vc, nil
}

func (c *StaticClient) IsCredentialRevoked(vcID string) (bool, error) {
	status, err := c.CheckVCStatus(vcID)
	if err != nil {
		return false, err
	}
	return status.Revoked, nil
}

func (c *StaticClient) FetchRevocationList(merkleRoot string) (*models.RevocationList, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	list, ok := c.revocationLists[merkleRoot]
	if !ok {
		return nil, errors.Newf(errors.CodeNotFound, "revocation list not found: %s", merkleRoot)
	}
	return list, nil
}
