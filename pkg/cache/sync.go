package cache

import (
	"sync"
	"time"

	"github.com/aura-id/verifier-go/pkg/events"
	"github.com/aura-id/verifier-go/pkg/models"
	"github.com/aura-id/verifier-go/pkg/registry"
)

// SyncResult is sync()'s one-shot report: how many cached entries were
// refreshed, which ones failed, and how long the pass took. A sync
// failure is always per-item — it never poisons entries that succeeded.
type SyncResult struct {
	Success     bool
	SyncedItems int
	Errors      []string
	DurationMs  int64
}

// AutoSyncOptions configures startAutoSync.
type AutoSyncOptions struct {
	SyncOnStartup bool
	WifiOnly      bool
	// WifiHint reports whether the host currently believes it's on wifi.
	// nil means "no hint available", which is treated as wifi (never
	// blocks a sync the host gave no signal about).
	WifiHint func() bool
}

// CacheSync owns a handle to a registry.Client and a Cache, and refreshes
// cached credentials' revocation/status state against the live network
// on demand or on a schedule. Grounded on the teacher's staged-pipeline
// style (pkg/vp/service.go's per-item continue-on-error collection),
// generalized here from "validate N JWT VPs" to "resync N cached
// credentials, collecting one error per failing item".
type CacheSync struct {
	cache  *Cache
	client registry.Client
	sink   events.Sink

	mu     sync.Mutex
	ticker *time.Ticker
	stopCh chan struct{}
}

func NewCacheSync(cache *Cache, client registry.Client, sink events.Sink) *CacheSync {
	if sink == nil {
		sink = events.NopSink{}
	}
	return &CacheSync{cache: cache, client: client, sink: sink}
}

// Sync runs one synchronization pass over every cached credential.
func (s *CacheSync) Sync() SyncResult {
	start := time.Now()
	result := SyncResult{Success: true}

	entries, err := s.cache.listCredentials()
	if err != nil {
		result.Success = false
		result.Errors = append(result.Errors, err.Error())
		result.DurationMs = time.Since(start).Milliseconds()
		return result
	}

	for key, entry := range entries {
		if err := s.syncOne(entry); err != nil {
			result.Success = false
			result.Errors = append(result.Errors, entry.VCID+": "+err.Error())
			continue
		}
		result.SyncedItems++
		_ = key
	}

	_ = s.cache.setLastSyncTime(time.Now().UnixMilli())
	result.DurationMs = time.Since(start).Milliseconds()
	s.sink.Emit(events.Sync, map[string]interface{}{
		"syncedItems": result.SyncedItems,
		"errors":      len(result.Errors),
		"durationMs":  result.DurationMs,
	})
	return result
}

func (s *CacheSync) syncOne(entry *models.CachedCredential) error {
	status, err := s.client.CheckVCStatus(entry.VCID)
	if err != nil {
		return err
	}

	entry.Credential.Status = status.Status
	entry.RevocationStatus.IsRevoked = status.Revoked
	entry.RevocationStatus.CheckedAt = time.Now().Unix()

	if entry.RevocationStatus.MerkleRoot != "" {
		if list, err := s.client.FetchRevocationList(entry.RevocationStatus.MerkleRoot); err == nil {
			if err := s.cache.SetRevocationList(entry.RevocationStatus.MerkleRoot, list); err != nil {
				return err
			}
		}
	}

	return s.cache.Set(entry.VCID, entry)
}

// StartAutoSync schedules periodic Sync() calls every interval. If
// opts.SyncOnStartup is set, one pass runs immediately before the first
// tick. A tick is skipped (not merely delayed) when opts.WifiOnly is set
// and the wifi hint reports a non-wifi connection.
func (s *CacheSync) StartAutoSync(interval time.Duration, opts AutoSyncOptions) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticker != nil {
		return // already running
	}

	if opts.SyncOnStartup {
		s.Sync()
	}

	s.ticker = time.NewTicker(interval)
	s.stopCh = make(chan struct{})
	ticker, stopCh := s.ticker, s.stopCh

	go func() {
		for {
			select {
			case <-ticker.C:
				if opts.WifiOnly && opts.WifiHint != nil && !opts.WifiHint() {
					continue
				}
				s.Sync()
			case <-stopCh:
				return
			}
		}
	}()
}

// StopAutoSync cancels a schedule started by StartAutoSync. A no-op if
// none is running.
func (s *CacheSync) StopAutoSync() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stopCh)
	s.ticker = nil
	s.stopCh = nil
}
