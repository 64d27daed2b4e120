// Package cache implements the offline credential store and its
// registry-backed synchronizer: a small key/value layer (pluggable
// in-memory, file, or host-local backends) holding cached credentials and
// revocation bitmaps so verification can proceed without a live network
// round trip.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/aura-id/verifier-go/pkg/errors"
)

// Adapter is the storage capability every cache backend implements.
// Keys and values are opaque byte strings; the Cache layer owns
// namespacing, serialization, and encryption on top of this.
type Adapter interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Clear() error
	Keys() ([]string, error)
	SizeBytes() (int64, error)
}

// MemoryAdapter is the default backend: a mutex-guarded map, used for
// tests and as the fallback when persistToDisk is false. Locking follows
// the same read-for-lookup, write-for-mutate discipline the teacher's
// DID key cache used (sync.RWMutex guarding a plain map).
type MemoryAdapter struct {
	mu    sync.RWMutex
	store map[string][]byte
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{store: make(map[string][]byte)}
}

func (a *MemoryAdapter) Get(key string) ([]byte, bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.store[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (a *MemoryAdapter) Set(key string, value []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	a.store[key] = cp
	return nil
}

func (a *MemoryAdapter) Delete(key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.store, key)
	return nil
}

func (a *MemoryAdapter) Clear() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.store = make(map[string][]byte)
	return nil
}

func (a *MemoryAdapter) Keys() ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	keys := make([]string, 0, len(a.store))
	for k := range a.store {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (a *MemoryAdapter) SizeBytes() (int64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var total int64
	for k, v := range a.store {
		total += int64(len(k) + len(v))
	}
	return total, nil
}

// FileAdapter stores each entry as a file under a base directory, named
// hex(sha256(key)) + ".json" per spec — opaque filenames so the
// namespaced keys (credential:<vcId>, revocation:<merkleRoot>, ...) never
// leak into the filesystem layout. The directory is created on
// construction, generalizing the teacher's map-based DID key cache to a
// filesystem-backed map of the same shape.
type FileAdapter struct {
	mu  sync.Mutex
	dir string
	// index tracks key -> filename so Keys() doesn't need to read every
	// file's contents back out; rebuilt from a sidecar on construction
	// would be another option, but a fresh index matches "no stable
	// ordering or globbing is promised" for persisted state.
	index map[string]string
}

func NewFileAdapter(dir string) (*FileAdapter, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Newf(errors.CodeCacheWriteFailed, "create cache directory: %v", err)
	}
	return &FileAdapter{dir: dir, index: make(map[string]string)}, nil
}

func (a *FileAdapter) pathFor(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(a.dir, hex.EncodeToString(sum[:])+".json")
}

func (a *FileAdapter) Get(key string) ([]byte, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, err := os.ReadFile(a.pathFor(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Newf(errors.CodeCacheReadFailed, "read cache entry: %v", err)
	}
	return data, true, nil
}

func (a *FileAdapter) Set(key string, value []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := os.WriteFile(a.pathFor(key), value, 0o600); err != nil {
		return errors.Newf(errors.CodeCacheWriteFailed, "write cache entry: %v", err)
	}
	a.index[key] = a.pathFor(key)
	return nil
}

func (a *FileAdapter) Delete(key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.index, key)
	err := os.Remove(a.pathFor(key))
	if err != nil && !os.IsNotExist(err) {
		return errors.Newf(errors.CodeCacheWriteFailed, "delete cache entry: %v", err)
	}
	return nil
}

func (a *FileAdapter) Clear() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, path := range a.index {
		_ = os.Remove(path)
	}
	a.index = make(map[string]string)
	return nil
}

func (a *FileAdapter) Keys() ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	keys := make([]string, 0, len(a.index))
	for k := range a.index {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (a *FileAdapter) SizeBytes() (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var total int64
	for _, path := range a.index {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}
