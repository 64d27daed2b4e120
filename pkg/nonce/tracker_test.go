package nonce

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aura-id/verifier-go/pkg/errors"
)

func TestExactTracker_FirstUseOk(t *testing.T) {
	tr := NewExactTracker(5*time.Minute, 30*time.Second)
	now := time.Now().UnixMilli()

	if err := tr.ValidateNonce("holder1:7", now); err != nil {
		t.Fatalf("expected first use to succeed, got %v", err)
	}
}

func TestExactTracker_ReplayRejected(t *testing.T) {
	tr := NewExactTracker(5*time.Minute, 30*time.Second)
	now := time.Now().UnixMilli()

	if err := tr.ValidateNonce("holder1:7", now); err != nil {
		t.Fatalf("first use: %v", err)
	}
	err := tr.ValidateNonce("holder1:7", now)
	if err == nil {
		t.Fatal("expected replay to be rejected")
	}
	if errors.CodeOf(err) != errors.CodeNonceError {
		t.Errorf("got code %s, want %s", errors.CodeOf(err), errors.CodeNonceError)
	}
}

func TestExactTracker_WindowRejectsStaleTimestamp(t *testing.T) {
	tr := NewExactTracker(5*time.Minute, 30*time.Second)
	now := time.Now().UnixMilli()
	stale := now - 10*time.Minute.Milliseconds()

	err := tr.ValidateNonce("holder1:7", stale)
	if err == nil {
		t.Fatal("expected stale timestamp to be rejected")
	}
	if errors.CodeOf(err) != errors.CodeValidationError {
		t.Errorf("got code %s, want %s", errors.CodeOf(err), errors.CodeValidationError)
	}
}

func TestExactTracker_NonceKeyZeroIsDistinct(t *testing.T) {
	tr := NewExactTracker(5*time.Minute, 30*time.Second)
	now := time.Now().UnixMilli()

	if err := tr.ValidateNonce("0", now); err != nil {
		t.Fatalf("expected literal \"0\" key to be valid: %v", err)
	}
	if err := tr.ValidateNonce("0", now); err == nil {
		t.Fatal("expected second use of \"0\" to be a replay")
	}
}

func TestExactTracker_CleanupRemovesExpired(t *testing.T) {
	tr := NewExactTracker(1*time.Millisecond, 30*time.Second)
	now := time.Now().UnixMilli()
	if err := tr.ValidateNonce("key", now); err != nil {
		t.Fatalf("ValidateNonce: %v", err)
	}

	removed := tr.Cleanup(now + 100)
	if removed != 1 {
		t.Errorf("expected 1 entry removed, got %d", removed)
	}
	if tr.Size() != 0 {
		t.Errorf("expected tracker to be empty after cleanup, got size %d", tr.Size())
	}
}

func TestExactTracker_ConcurrentValidateAtMostOnceWins(t *testing.T) {
	tr := NewExactTracker(5*time.Minute, 30*time.Second)
	now := time.Now().UnixMilli()

	const attempts = 50
	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx] = tr.ValidateNonce("shared-key", now)
		}(i)
	}
	wg.Wait()

	oks := 0
	for _, err := range results {
		if err == nil {
			oks++
		}
	}
	if oks != 1 {
		t.Errorf("expected exactly 1 successful validateNonce, got %d", oks)
	}
}

func TestBloomTracker_SoundnessNoFalseNegatives(t *testing.T) {
	bt := NewBloomTracker(1000, 0.01, 5*time.Minute, 30*time.Second)
	now := time.Now().UnixMilli()

	for i := 0; i < 500; i++ {
		key := fmt.Sprintf("nonce-%d", i)
		if err := bt.ValidateNonce(key, now); err != nil {
			t.Fatalf("ValidateNonce(%s): %v", key, err)
		}
		if !bt.HasBeenUsed(key) {
			t.Fatalf("expected HasBeenUsed(%s) to be true immediately after insertion", key)
		}
	}
}

func TestBloomTracker_FalsePositiveRateBounded(t *testing.T) {
	bt := NewBloomTracker(1000, 0.01, 5*time.Minute, 30*time.Second)
	now := time.Now().UnixMilli()

	for i := 0; i < 1000; i++ {
		_ = bt.ValidateNonce(fmt.Sprintf("used-%d", i), now)
	}

	falsePositives := 0
	const probes = 2000
	for i := 0; i < probes; i++ {
		if bt.HasBeenUsed(fmt.Sprintf("unused-%d", i)) {
			falsePositives++
		}
	}

	rate := float64(falsePositives) / float64(probes)
	if rate > 0.1 {
		t.Errorf("observed false-positive rate %.4f far exceeds configured 0.01 target", rate)
	}
}

func TestBloomTracker_ReplayRejected(t *testing.T) {
	bt := NewBloomTracker(1000, 0.01, 5*time.Minute, 30*time.Second)
	now := time.Now().UnixMilli()

	if err := bt.ValidateNonce("k", now); err != nil {
		t.Fatalf("first use: %v", err)
	}
	if err := bt.ValidateNonce("k", now); err == nil {
		t.Fatal("expected replay to be rejected")
	}
}
