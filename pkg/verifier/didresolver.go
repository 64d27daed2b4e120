// Package verifier implements the orchestrator: the single ordered state
// machine that takes raw QR/URL presentation data through parsing,
// freshness, nonce, signature, and per-credential checks to a structured
// VerificationResult.
package verifier

import (
	"crypto/ed25519"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/multiformats/go-multibase"

	aerrors "github.com/aura-id/verifier-go/pkg/errors"
	"github.com/aura-id/verifier-go/pkg/models"
	"github.com/aura-id/verifier-go/pkg/registry"
)

// DefaultDIDCacheTTL bounds how long a resolved DID document is trusted
// before the resolver hits the registry again.
const DefaultDIDCacheTTL = 10 * time.Minute

const (
	keyTypeEd25519     = "Ed25519VerificationKey2020"
	keyTypeSecp256k1   = "EcdsaSecp256k1VerificationKey2019"
)

// ResolvedKey is a verification method's decoded public key, tagged with
// its algorithm so the signature check can dispatch to the right
// primitive.
type ResolvedKey struct {
	Algorithm string // "ed25519" or "secp256k1"
	PublicKey []byte
}

// DIDKeyResolver resolves did:aura identities to verification keys via a
// registry.Client, caching successful resolutions. Generalizes the
// teacher's did_resolver.go map+mutex TTL cache (the file itself didn't
// survive the did:aura rework — did:web/did:key HTTP resolution doesn't
// apply here) to jellydator/ttlcache, already a dependency of the
// example pack's dc4eu-vc for exactly this "ttl-cache a resolved key
// material" job.
type DIDKeyResolver struct {
	client registry.Client
	cache  *ttlcache.Cache[string, []ResolvedKey]
}

func NewDIDKeyResolver(client registry.Client, ttl time.Duration) *DIDKeyResolver {
	if ttl <= 0 {
		ttl = DefaultDIDCacheTTL
	}
	c := ttlcache.New[string, []ResolvedKey](ttlcache.WithTTL[string, []ResolvedKey](ttl))
	go c.Start()
	return &DIDKeyResolver{client: client, cache: c}
}

// Resolve returns every usable verification key for did, trying the
// cache before the registry.
func (r *DIDKeyResolver) Resolve(did string) ([]ResolvedKey, error) {
	if item := r.cache.Get(did); item != nil {
		return item.Value(), nil
	}

	doc, err := r.client.ResolveDID(did)
	if err != nil {
		return nil, err
	}

	keys, err := keysFromDocument(doc)
	if err != nil {
		return nil, err
	}
	r.cache.Set(did, keys, ttlcache.DefaultTTL)
	return keys, nil
}

// Close stops the cache's background cleanup goroutine.
func (r *DIDKeyResolver) Close() {
	r.cache.Stop()
}

// ResolveKey implements pkg/crypto.KeyResolver for the W3C JWT-VC proof
// path. golang-jwt verifies Ed25519 natively but has no ES256K
// (secp256k1) signing method, so a did:aura identity whose only
// verification method is secp256k1 cannot back a JWT-VC proof today —
// callers relying on that combination should issue native-format
// credentials instead.
func (r *DIDKeyResolver) ResolveKey(did string) (interface{}, error) {
	keys, err := r.Resolve(did)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		if k.Algorithm == "ed25519" {
			return ed25519.PublicKey(k.PublicKey), nil
		}
	}
	return nil, aerrors.Newf(aerrors.CodeDIDResolutionError, "no Ed25519 verification method for %s usable by JWT-VC proofs", did)
}

func keysFromDocument(doc *models.DIDDocument) ([]ResolvedKey, error) {
	var keys []ResolvedKey
	for _, vm := range doc.VerificationMethod {
		if vm.PublicKeyMultibase == "" {
			continue
		}
		_, raw, err := multibase.Decode(vm.PublicKeyMultibase)
		if err != nil {
			continue // unusable entry, try the next verification method
		}

		switch vm.Type {
		case keyTypeEd25519:
			keys = append(keys, ResolvedKey{Algorithm: "ed25519", PublicKey: raw})
		case keyTypeSecp256k1:
			keys = append(keys, ResolvedKey{Algorithm: "secp256k1", PublicKey: raw})
		}
	}
	if len(keys) == 0 {
		return nil, aerrors.Newf(aerrors.CodeDIDResolutionError, "no usable verification keys in DID document %s", doc.ID)
	}
	return keys, nil
}
