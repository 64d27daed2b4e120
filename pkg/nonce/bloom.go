package nonce

import (
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/aura-id/verifier-go/pkg/crypto"
	"github.com/aura-id/verifier-go/pkg/errors"
)

// BloomTracker is the approximate, fixed-capacity backend. No bloom
// filter library exists anywhere in the retrieval pack, and the hash
// family is fully specified by spec §4.3 (two independent SHA-256-
// derived values combined by the standard double-hashing trick), so it
// is hand-rolled here directly atop pkg/crypto.DoubleSha256 and a plain
// []uint64 bitset.
//
// A bloom filter has no delete operation, so time-windowing is modeled
// as two generations (current/previous) that rotate every window
// duration — the same current/previous key-generation shape
// other_examples' plexsphere Ed25519Verifier uses for key rotation,
// applied here to filter generations instead of signing keys. An entry
// is considered used if it is set in either generation, so it is
// remembered for somewhere between window and 2*window — a documented
// approximation, not an exact TTL.
type BloomTracker struct {
	mu sync.Mutex

	m uint64 // bits per generation
	k uint64 // hash functions

	current  []uint64
	previous []uint64

	window        time.Duration
	clockSkew     time.Duration
	lastRotateMs  int64
}

// NewBloomTracker sizes the filter for expectedCount entries at
// targetFPR false-positive rate using the standard optimal-m/k formulas.
func NewBloomTracker(expectedCount int, targetFPR float64, window, clockSkew time.Duration) *BloomTracker {
	if expectedCount <= 0 {
		expectedCount = 10_000
	}
	if targetFPR <= 0 || targetFPR >= 1 {
		targetFPR = 0.01
	}
	if window <= 0 {
		window = DefaultNonceWindow
	}
	if clockSkew <= 0 {
		clockSkew = DefaultClockSkew
	}

	n := float64(expectedCount)
	m := uint64(math.Ceil(-n * math.Log(targetFPR) / (math.Ln2 * math.Ln2)))
	if m < 64 {
		m = 64
	}
	k := uint64(math.Round((float64(m) / n) * math.Ln2))
	if k < 1 {
		k = 1
	}

	words := (m + 63) / 64
	return &BloomTracker{
		m:            m,
		k:            k,
		current:      make([]uint64, words),
		previous:     make([]uint64, words),
		window:       window,
		clockSkew:    clockSkew,
		lastRotateMs: time.Now().UnixMilli(),
	}
}

func (t *BloomTracker) indices(key string) []uint64 {
	h := crypto.DoubleSha256([]byte(key))
	h1 := binary.BigEndian.Uint64(h[0:8])
	h2 := binary.BigEndian.Uint64(h[8:16])
	if h2 == 0 {
		h2 = 1
	}

	idx := make([]uint64, t.k)
	for i := uint64(0); i < t.k; i++ {
		idx[i] = (h1 + i*h2) % t.m
	}
	return idx
}

func setBit(bits []uint64, pos uint64) {
	bits[pos/64] |= 1 << (pos % 64)
}

func testBit(bits []uint64, pos uint64) bool {
	return bits[pos/64]&(1<<(pos%64)) != 0
}

func (t *BloomTracker) setAllLocked(bits []uint64, key string) {
	for _, pos := range t.indices(key) {
		setBit(bits, pos)
	}
}

func (t *BloomTracker) testAnyLocked(bits []uint64, key string) bool {
	for _, pos := range t.indices(key) {
		if !testBit(bits, pos) {
			return false
		}
	}
	return true
}

func (t *BloomTracker) hasBeenUsedLocked(key string) bool {
	return t.testAnyLocked(t.current, key) || t.testAnyLocked(t.previous, key)
}

func (t *BloomTracker) ValidateNonce(nonceKey string, timestampMs int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	nowMs := time.Now().UnixMilli()
	t.rotateIfDueLocked(nowMs)

	if timestampMs < nowMs-t.window.Milliseconds() || timestampMs > nowMs+t.clockSkew.Milliseconds() {
		return errors.New(errors.CodeValidationError, "nonce timestamp outside the acceptance window")
	}

	if t.hasBeenUsedLocked(nonceKey) {
		return errors.New(errors.CodeNonceError, "nonce has already been used (bloom filter)")
	}

	t.setAllLocked(t.current, nonceKey)
	return nil
}

func (t *BloomTracker) HasBeenUsed(nonceKey string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hasBeenUsedLocked(nonceKey)
}

// Cleanup rotates generations if the window has elapsed since the last
// rotation. It never removes individual keys, so it always returns 0.
func (t *BloomTracker) Cleanup(nowMs int64) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rotateIfDueLocked(nowMs)
	return 0
}

func (t *BloomTracker) rotateIfDueLocked(nowMs int64) {
	if nowMs-t.lastRotateMs < t.window.Milliseconds() {
		return
	}
	t.previous = t.current
	t.current = make([]uint64, len(t.current))
	t.lastRotateMs = nowMs
}

// Size returns the number of set bits in the current generation, not a
// distinct key count — bloom filters cannot report exact membership counts.
func (t *BloomTracker) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	count := 0
	for _, word := range t.current {
		count += popcount(word)
	}
	return count
}

func (t *BloomTracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.current {
		t.current[i] = 0
		t.previous[i] = 0
	}
	t.lastRotateMs = time.Now().UnixMilli()
}

func popcount(x uint64) int {
	count := 0
	for x != 0 {
		x &= x - 1
		count++
	}
	return count
}
