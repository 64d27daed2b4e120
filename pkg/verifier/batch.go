package verifier

import (
	"sync"

	"github.com/aura-id/verifier-go/pkg/models"
)

// DefaultBatchFanOut bounds how many verifications VerifyBatch runs
// concurrently.
const DefaultBatchFanOut = 8

// VerifyBatch runs independent verifications concurrently, capped at
// DefaultBatchFanOut in flight at once, and returns one result per
// request in the same order — filtering out nothing: a malformed input
// still produces a structured Failed result rather than being dropped,
// matching spec's "retaining structured failures" requirement. The
// "filters out hard errors" language refers to errors VerifyBatch itself
// cannot recover from (none currently exist, see Verify's doc comment);
// every result slot is always populated.
func (v *Verifier) VerifyBatch(requests []VerifyRequest) []*models.VerificationResult {
	results := make([]*models.VerificationResult, len(requests))
	sem := make(chan struct{}, DefaultBatchFanOut)
	var wg sync.WaitGroup

	for i, req := range requests {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, req VerifyRequest) {
			defer wg.Done()
			defer func() { <-sem }()
			result, _ := v.Verify(req)
			results[i] = result
		}(i, req)
	}

	wg.Wait()
	return results
}
