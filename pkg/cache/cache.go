package cache

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	xcrypto "github.com/aura-id/verifier-go/pkg/crypto"
	"github.com/aura-id/verifier-go/pkg/errors"
	"github.com/aura-id/verifier-go/pkg/events"
	"github.com/aura-id/verifier-go/pkg/models"
)

const (
	credentialPrefix = "credential:"
	revocationPrefix = "revocation:"
	metaLastSync     = "meta:lastSyncTime"

	// DefaultMaxAge and DefaultMaxEntries match spec §4.4's defaults.
	DefaultMaxAge     = 3600 * time.Second
	DefaultMaxEntries = 1000
)

// Config controls a Cache's TTL, capacity, and optional encryption.
// StorageBackend is purely a label surfaced through Stats; the adapter
// itself is supplied separately to New so callers choose in-memory,
// file, or host-local storage explicitly rather than through a flag.
type Config struct {
	MaxAge         time.Duration
	MaxEntries     int
	EncryptionKey  []byte // nil disables AEAD; must be 32 bytes otherwise
	StorageBackend string // "memory", "file", "host" — label only
}

func (c Config) normalized() (Config, error) {
	if c.MaxAge <= 0 {
		c.MaxAge = DefaultMaxAge
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = DefaultMaxEntries
	}
	if c.StorageBackend == "" {
		c.StorageBackend = "memory"
	}
	if c.EncryptionKey != nil && len(c.EncryptionKey) != 32 {
		return c, errors.Newf(errors.CodeConfigurationError, "encryption key must be 32 bytes, got %d", len(c.EncryptionKey))
	}
	return c, nil
}

// Stats is getStats()'s return shape.
type Stats struct {
	TotalEntries   int
	ExpiredEntries int
	RevokedEntries int
	HitRate        float64
	LastSyncTime   int64
	StorageBackend string
	SizeBytes      int64
}

// Cache is the offline credential store: a namespaced key/value layer
// over an Adapter, with TTL eviction, a capacity cap, optional AEAD, and
// hit/miss counters for Stats.
type Cache struct {
	mu      sync.Mutex
	adapter Adapter
	cfg     Config
	sink    events.Sink

	hits   int64
	misses int64
}

// New constructs a Cache over adapter. sink may be nil, in which case
// events.NopSink is used.
func New(adapter Adapter, cfg Config, sink events.Sink) (*Cache, error) {
	normalized, err := cfg.normalized()
	if err != nil {
		return nil, err
	}
	if sink == nil {
		sink = events.NopSink{}
	}
	return &Cache{adapter: adapter, cfg: normalized, sink: sink}, nil
}

type wireEnvelope struct {
	IV  string `json:"iv"`
	CT  string `json:"ct"`
	Tag string `json:"tag"`
}

func (c *Cache) encode(v interface{}) ([]byte, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Newf(errors.CodeCacheWriteFailed, "marshal cache entry: %v", err)
	}
	if c.cfg.EncryptionKey == nil {
		return plaintext, nil
	}
	env, err := xcrypto.EncryptAESGCM(plaintext, c.cfg.EncryptionKey, nil)
	if err != nil {
		return nil, errors.Newf(errors.CodeCacheWriteFailed, "encrypt cache entry: %v", err)
	}
	wire := wireEnvelope{
		IV:  xcrypto.HexEncode(env.IV),
		CT:  xcrypto.HexEncode(env.Ciphertext),
		Tag: xcrypto.HexEncode(env.Tag),
	}
	out, err := json.Marshal(wire)
	if err != nil {
		return nil, errors.Newf(errors.CodeCacheWriteFailed, "marshal cache envelope: %v", err)
	}
	return out, nil
}

// decode reverses encode. A decryption failure is fatal for that entry
// only — it is reported through the event sink and treated by the
// caller as a miss, never propagated as a hard read error.
func (c *Cache) decode(raw []byte, v interface{}) error {
	if c.cfg.EncryptionKey == nil {
		return json.Unmarshal(raw, v)
	}
	var wire wireEnvelope
	if err := json.Unmarshal(raw, &wire); err != nil {
		return errors.Newf(errors.CodeCacheReadFailed, "unmarshal cache envelope: %v", err)
	}
	iv, err1 := xcrypto.HexDecode(wire.IV)
	ct, err2 := xcrypto.HexDecode(wire.CT)
	tag, err3 := xcrypto.HexDecode(wire.Tag)
	if err1 != nil || err2 != nil || err3 != nil {
		return errors.New(errors.CodeCacheReadFailed, "malformed cache envelope")
	}
	plaintext, err := xcrypto.DecryptAESGCM(&xcrypto.AEADEnvelope{IV: iv, Ciphertext: ct, Tag: tag}, c.cfg.EncryptionKey, nil)
	if err != nil {
		c.sink.Emit(events.Error, map[string]interface{}{"reason": "decryption_failed"})
		return errors.New(errors.CodeCacheReadFailed, "decryption failed")
	}
	return json.Unmarshal(plaintext, v)
}

// listCredentials decodes every credential: namespace entry, expired
// ones included (CleanExpired and GetStats depend on seeing them). Used
// by Set's eviction check and by getStats/cleanExpired, which all need
// to scan the whole namespace anyway.
func (c *Cache) listCredentials() (map[string]*models.CachedCredential, error) {
	keys, err := c.adapter.Keys()
	if err != nil {
		return nil, errors.Newf(errors.CodeCacheReadFailed, "list cache keys: %v", err)
	}
	out := make(map[string]*models.CachedCredential)
	for _, key := range keys {
		if !strings.HasPrefix(key, credentialPrefix) {
			continue
		}
		raw, ok, err := c.adapter.Get(key)
		if err != nil {
			return nil, errors.Newf(errors.CodeCacheReadFailed, "read %s: %v", key, err)
		}
		if !ok {
			continue
		}
		var entry models.CachedCredential
		if err := c.decode(raw, &entry); err != nil {
			continue // corrupt/undecryptable entry: skip, don't fail the scan
		}
		out[key] = &entry
	}
	return out, nil
}

func credentialKey(vcID string) string { return credentialPrefix + vcID }
func revocationKey(merkleRoot string) string { return revocationPrefix + merkleRoot }

// Set stores entry under vcId, evicting the oldest-by-cachedAt entry
// first if the cache is already at capacity.
func (c *Cache) Set(vcID string, entry *models.CachedCredential) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().Unix()
	if entry.Metadata.CachedAt == 0 {
		entry.Metadata.CachedAt = now
	}
	if entry.Metadata.ExpiresAt == 0 {
		entry.Metadata.ExpiresAt = now + int64(c.cfg.MaxAge.Seconds())
	}
	entry.VCID = vcID

	existing, err := c.listCredentials()
	if err != nil {
		return err
	}
	if _, already := existing[credentialKey(vcID)]; !already && len(existing) >= c.cfg.MaxEntries {
		if victim := oldestKey(existing); victim != "" {
			if err := c.adapter.Delete(victim); err != nil {
				return errors.Newf(errors.CodeCacheWriteFailed, "evict %s: %v", victim, err)
			}
		}
	}

	raw, err := c.encode(entry)
	if err != nil {
		return err
	}
	if err := c.adapter.Set(credentialKey(vcID), raw); err != nil {
		return errors.Newf(errors.CodeCacheWriteFailed, "write %s: %v", vcID, err)
	}
	c.sink.Emit(events.CacheUpdate, map[string]interface{}{"vcId": vcID, "op": "set"})
	return nil
}

// oldestKey returns the credential: key with the smallest CachedAt,
// breaking ties lexicographically by key — grounded on
// jmgilman-go/oci/internal/cache/eviction.go's TTLEviction/SizeEviction
// candidate-ordering shape, specialized to a single oldest pick instead
// of a sorted eviction batch.
func oldestKey(entries map[string]*models.CachedCredential) string {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	best := ""
	var bestAt int64
	for _, k := range keys {
		at := entries[k].Metadata.CachedAt
		if best == "" || at < bestAt {
			best, bestAt = k, at
		}
	}
	return best
}

// Get fetches and decrypts the entry for vcId. A missing, expired, or
// undecryptable entry is reported as (nil, false, nil) — never an error —
// matching spec's "treated as a miss" failure model.
func (c *Cache) Get(vcID string) (*models.CachedCredential, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(vcID)
}

func (c *Cache) getLocked(vcID string) (*models.CachedCredential, bool, error) {
	raw, ok, err := c.adapter.Get(credentialKey(vcID))
	if err != nil {
		return nil, false, errors.Newf(errors.CodeCacheReadFailed, "read %s: %v", vcID, err)
	}
	if !ok {
		c.misses++
		return nil, false, nil
	}

	var entry models.CachedCredential
	if err := c.decode(raw, &entry); err != nil {
		c.misses++
		return nil, false, nil
	}

	if entry.Metadata.ExpiresAt <= time.Now().Unix() {
		_ = c.adapter.Delete(credentialKey(vcID))
		c.misses++
		return nil, false, nil
	}

	c.hits++
	return &entry, true, nil
}

// Has reports whether vcId resolves to a live (non-expired) entry.
func (c *Cache) Has(vcID string) bool {
	_, ok, _ := c.Get(vcID)
	return ok
}

func (c *Cache) Delete(vcID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.adapter.Delete(credentialKey(vcID)); err != nil {
		return errors.Newf(errors.CodeCacheWriteFailed, "delete %s: %v", vcID, err)
	}
	return nil
}

// Clear purges only the credential: namespace, leaving revocation lists
// and sync metadata untouched.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys, err := c.adapter.Keys()
	if err != nil {
		return errors.Newf(errors.CodeCacheReadFailed, "list keys: %v", err)
	}
	for _, key := range keys {
		if strings.HasPrefix(key, credentialPrefix) {
			if err := c.adapter.Delete(key); err != nil {
				return errors.Newf(errors.CodeCacheWriteFailed, "delete %s: %v", key, err)
			}
		}
	}
	return nil
}

// CleanExpired deletes every credential entry past its TTL and returns
// the number removed.
func (c *Cache) CleanExpired() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries, err := c.listCredentials()
	if err != nil {
		return 0, err
	}
	now := time.Now().Unix()
	removed := 0
	for key, entry := range entries {
		if entry.Metadata.ExpiresAt <= now {
			if err := c.adapter.Delete(key); err != nil {
				return removed, errors.Newf(errors.CodeCacheWriteFailed, "delete %s: %v", key, err)
			}
			removed++
		}
	}
	return removed, nil
}

func (c *Cache) SetRevocationList(merkleRoot string, list *models.RevocationList) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	list.MerkleRoot = merkleRoot
	raw, err := c.encode(list)
	if err != nil {
		return err
	}
	if err := c.adapter.Set(revocationKey(merkleRoot), raw); err != nil {
		return errors.Newf(errors.CodeCacheWriteFailed, "write revocation list %s: %v", merkleRoot, err)
	}
	return nil
}

func (c *Cache) GetRevocationList(merkleRoot string) (*models.RevocationList, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok, err := c.adapter.Get(revocationKey(merkleRoot))
	if err != nil {
		return nil, false, errors.Newf(errors.CodeCacheReadFailed, "read revocation list %s: %v", merkleRoot, err)
	}
	if !ok {
		return nil, false, nil
	}
	var list models.RevocationList
	if err := c.decode(raw, &list); err != nil {
		return nil, false, nil
	}
	return &list, true, nil
}

// IsRevoked consults the cached entry's own RevocationStatus first, then
// refines the answer against a cached bitmap (indexed by the entry's own
// Metadata.BitmapIndex) if one is recorded for the entry's merkle root.
// Returns nil when the cache has nothing to say.
func (c *Cache) IsRevoked(vcID string) (*bool, error) {
	c.mu.Lock()
	entry, ok, err := c.getLocked(vcID)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	revoked := entry.RevocationStatus.IsRevoked
	if entry.RevocationStatus.MerkleRoot != "" {
		if list, found, _ := c.GetRevocationList(entry.RevocationStatus.MerkleRoot); found {
			revoked = revoked || list.IsRevoked(entry.Metadata.BitmapIndex)
		}
	}
	return &revoked, nil
}

func (c *Cache) GetStats() (Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.listCredentials()
	if err != nil {
		return Stats{}, err
	}
	now := time.Now().Unix()
	expired, revoked := 0, 0
	for _, entry := range entries {
		if entry.Metadata.ExpiresAt <= now {
			expired++
		}
		if entry.RevocationStatus.IsRevoked {
			revoked++
		}
	}

	var hitRate float64
	if total := c.hits + c.misses; total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}

	var lastSync int64
	if raw, ok, _ := c.adapter.Get(metaLastSync); ok {
		lastSync, _ = strconv.ParseInt(string(raw), 10, 64)
	}

	size, err := c.adapter.SizeBytes()
	if err != nil {
		return Stats{}, errors.Newf(errors.CodeCacheReadFailed, "size: %v", err)
	}

	return Stats{
		TotalEntries:   len(entries),
		ExpiredEntries: expired,
		RevokedEntries: revoked,
		HitRate:        hitRate,
		LastSyncTime:   lastSync,
		StorageBackend: c.cfg.StorageBackend,
		SizeBytes:      size,
	}, nil
}

func (c *Cache) setLastSyncTime(unixMs int64) error {
	return c.adapter.Set(metaLastSync, []byte(strconv.FormatInt(unixMs, 10)))
}

// exportDoc is the opaque blob format export()/import() move across
// adapters in: every namespaced key/value pair, still in whatever
// (possibly encrypted) wire form encode() produced.
type exportDoc struct {
	Entries map[string]string `json:"entries"` // key -> base64(raw value)
}

func (c *Cache) Export() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys, err := c.adapter.Keys()
	if err != nil {
		return "", errors.Newf(errors.CodeCacheReadFailed, "list keys: %v", err)
	}
	doc := exportDoc{Entries: make(map[string]string, len(keys))}
	for _, key := range keys {
		raw, ok, err := c.adapter.Get(key)
		if err != nil {
			return "", errors.Newf(errors.CodeCacheReadFailed, "read %s: %v", key, err)
		}
		if !ok {
			continue
		}
		doc.Entries[key] = xcrypto.Base64Encode(raw)
	}
	// meta:lastSyncTime isn't hex/base64-framed like envelopes, but
	// xcrypto.Base64Encode round-trips arbitrary bytes just fine.
	out, err := json.Marshal(doc)
	if err != nil {
		return "", errors.Newf(errors.CodeCacheWriteFailed, "marshal export: %v", err)
	}
	return string(out), nil
}

func (c *Cache) Import(blob string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var doc exportDoc
	if err := json.Unmarshal([]byte(blob), &doc); err != nil {
		return errors.Newf(errors.CodeCacheReadFailed, "malformed export blob: %v", err)
	}
	for key, encoded := range doc.Entries {
		raw, err := xcrypto.Base64Decode(encoded)
		if err != nil {
			return errors.Newf(errors.CodeCacheReadFailed, "malformed export entry %s: %v", key, err)
		}
		if err := c.adapter.Set(key, raw); err != nil {
			return errors.Newf(errors.CodeCacheWriteFailed, "restore %s: %v", key, err)
		}
	}
	return nil
}
