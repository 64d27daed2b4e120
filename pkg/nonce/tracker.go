// Package nonce implements the replay-resistant, time-windowed
// at-most-once tracker for presentation (holderDid, nonce) pairs.
// Grounded on other_examples'
// 3ee12346_plexsphere-plexd__internal-api-verifier.go's NonceStore:
// a mutex-guarded map with lazy cleanup gated on an interval. Unlike that
// store, ValidateNonce checks and records the nonce in one step, and
// pkg/verifier calls it before signature verification, so a presentation
// that later fails its signature check has still consumed its nonce.
package nonce

import (
	"sync"
	"time"

	"github.com/aura-id/verifier-go/pkg/errors"
)

// Tracker is the contract both backends satisfy.
type Tracker interface {
	// ValidateNonce checks (nonceKey, timestampMs) against the window and,
	// if acceptable and unused, records it and returns nil. Returns a
	// QR_VALIDATION_ERROR-coded error for a timestamp outside the window,
	// or QR_NONCE_ERROR for a replay.
	ValidateNonce(nonceKey string, timestampMs int64) error
	// HasBeenUsed reports whether nonceKey has been recorded. May return
	// a false positive (never a false negative) on the bloom backend.
	HasBeenUsed(nonceKey string) bool
	// Cleanup removes entries that have expired as of nowMs and returns
	// the number removed (0 for backends that use structural rotation
	// instead of deletion).
	Cleanup(nowMs int64) int
	Size() int
	Clear()
}

// DefaultNonceWindow, DefaultClockSkew and DefaultCleanupInterval match
// spec §4.3's defaults.
const (
	DefaultNonceWindow    = 5 * time.Minute
	DefaultClockSkew      = 30 * time.Second
	DefaultCleanupInterval = 5 * time.Minute
)

// ExactTracker is the default backend: an exact mapping nonceKey ->
// expiresAt, guarded by a single sync.Mutex that every method, lookups
// included, holds for its whole duration.
type ExactTracker struct {
	mu               sync.Mutex
	entries          map[string]int64
	window           time.Duration
	clockSkew        time.Duration
	cleanupInterval  time.Duration
	lastCleanupMs    int64
}

// NewExactTracker constructs an ExactTracker with the given window and
// clock skew tolerance; zero values fall back to the spec defaults.
func NewExactTracker(window, clockSkew time.Duration) *ExactTracker {
	if window <= 0 {
		window = DefaultNonceWindow
	}
	if clockSkew <= 0 {
		clockSkew = DefaultClockSkew
	}
	return &ExactTracker{
		entries:         make(map[string]int64),
		window:          window,
		clockSkew:       clockSkew,
		cleanupInterval: DefaultCleanupInterval,
	}
}

func (t *ExactTracker) ValidateNonce(nonceKey string, timestampMs int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	nowMs := time.Now().UnixMilli()

	if timestampMs < nowMs-t.window.Milliseconds() || timestampMs > nowMs+t.clockSkew.Milliseconds() {
		return errors.New(errors.CodeValidationError, "nonce timestamp outside the acceptance window")
	}

	if expiresAt, ok := t.entries[nonceKey]; ok && expiresAt > nowMs {
		return errors.New(errors.CodeNonceError, "nonce has already been used")
	}

	t.entries[nonceKey] = timestampMs + t.window.Milliseconds()

	// Lazy cleanup: if the window has advanced by more than 10% since the
	// last sweep, piggyback a cleanup pass on this insertion. The tracker
	// starts no background cleanup task; apart from these passes, expired
	// entries are removed only by an explicit Cleanup call.
	if nowMs-t.lastCleanupMs > t.window.Milliseconds()/10 {
		t.cleanupLocked(nowMs)
	}

	return nil
}

func (t *ExactTracker) HasBeenUsed(nonceKey string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	expiresAt, ok := t.entries[nonceKey]
	return ok && expiresAt > time.Now().UnixMilli()
}

func (t *ExactTracker) Cleanup(nowMs int64) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cleanupLocked(nowMs)
}

func (t *ExactTracker) cleanupLocked(nowMs int64) int {
	removed := 0
	for key, expiresAt := range t.entries {
		if expiresAt <= nowMs {
			delete(t.entries, key)
			removed++
		}
	}
	t.lastCleanupMs = nowMs
	return removed
}

func (t *ExactTracker) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *ExactTracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]int64)
	t.lastCleanupMs = 0
}
