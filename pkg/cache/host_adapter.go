package cache

import (
	"sort"
	"sync"

	"github.com/aura-id/verifier-go/pkg/errors"
)

// HostStore is the minimal key/value capability a host environment (a
// mobile keychain, a browser's localStorage, a desktop app's settings
// store) provides. It is intentionally smaller than Adapter: hosts don't
// promise byte-size accounting or fast key enumeration, so HostAdapter
// does that bookkeeping itself.
type HostStore interface {
	Get(key string) (string, bool)
	Set(key string, value string) error
	Delete(key string)
	Keys() []string
}

// MemoryHostStore is a HostStore that simulates a quota-bounded host
// store in memory, for exercising HostAdapter's quota-exceeded path
// without a real browser or device under test.
type MemoryHostStore struct {
	mu       sync.Mutex
	data     map[string]string
	maxBytes int64
	used     int64
}

func NewMemoryHostStore(maxBytes int64) *MemoryHostStore {
	return &MemoryHostStore{data: make(map[string]string), maxBytes: maxBytes}
}

func (s *MemoryHostStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *MemoryHostStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delta := int64(len(value))
	if old, ok := s.data[key]; ok {
		delta -= int64(len(old))
	}
	if s.maxBytes > 0 && s.used+delta > s.maxBytes {
		return errors.New(errors.CodeQuotaExceeded, "host store quota exceeded")
	}
	s.used += delta
	s.data[key] = value
	return nil
}

func (s *MemoryHostStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.data[key]; ok {
		s.used -= int64(len(old))
		delete(s.data, key)
	}
}

func (s *MemoryHostStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// HostAdapter wraps a HostStore with a key prefix, so several caches (or
// a cache alongside unrelated host application state) can share one
// underlying store without colliding.
type HostAdapter struct {
	store  HostStore
	prefix string
}

func NewHostAdapter(store HostStore, prefix string) *HostAdapter {
	return &HostAdapter{store: store, prefix: prefix}
}

func (a *HostAdapter) prefixed(key string) string { return a.prefix + key }

func (a *HostAdapter) Get(key string) ([]byte, bool, error) {
	v, ok := a.store.Get(a.prefixed(key))
	if !ok {
		return nil, false, nil
	}
	return []byte(v), true, nil
}

func (a *HostAdapter) Set(key string, value []byte) error {
	if err := a.store.Set(a.prefixed(key), string(value)); err != nil {
		return err
	}
	return nil
}

func (a *HostAdapter) Delete(key string) error {
	a.store.Delete(a.prefixed(key))
	return nil
}

func (a *HostAdapter) Clear() error {
	for _, k := range a.store.Keys() {
		if len(k) >= len(a.prefix) && k[:len(a.prefix)] == a.prefix {
			a.store.Delete(k)
		}
	}
	return nil
}

func (a *HostAdapter) Keys() ([]string, error) {
	var keys []string
	for _, k := range a.store.Keys() {
		if len(k) >= len(a.prefix) && k[:len(a.prefix)] == a.prefix {
			keys = append(keys, k[len(a.prefix):])
		}
	}
	return keys, nil
}

func (a *HostAdapter) SizeBytes() (int64, error) {
	var total int64
	for _, k := range a.store.Keys() {
		if len(k) >= len(a.prefix) && k[:len(a.prefix)] == a.prefix {
			if v, ok := a.store.Get(k); ok {
				total += int64(len(k) + len(v))
			}
		}
	}
	return total, nil
}
