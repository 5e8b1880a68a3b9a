package upload

import (
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// maxAttempts is the total number of tries (the first attempt plus up to 5
// retries) the transactional steps of single-shot and chunked-finalize
// uploads get against a busy-snapshot conflict (§4.6 Retry policy).
const maxAttempts = 6

// jitterBackOff implements backoff.BackOff with the exact schedule §4.6
// specifies: 50ms * 2^attempt, plus a uniform [1,50]ms jitter term. The
// donor's own exponential-backoff dependency supplies the retry loop
// (Retry/WithMaxRetries, Permanent-error short-circuiting); only the
// interval calculation itself is bespoke.
type jitterBackOff struct {
	attempt int
}

func newJitterBackOff() *jitterBackOff {
	return &jitterBackOff{}
}

func (b *jitterBackOff) NextBackOff() time.Duration {
	base := time.Duration(50*(1<<b.attempt)) * time.Millisecond
	jitter := time.Duration(1+rand.IntN(50)) * time.Millisecond
	b.attempt++
	return base + jitter
}

func (b *jitterBackOff) Reset() {
	b.attempt = 0
}

// retryTransaction runs fn, retrying per jitterBackOff's schedule while fn
// returns a store.IsBusyError-classified error, up to maxAttempts total
// tries. Any other error is treated as terminal.
func retryTransaction(fn func() error, isRetryable func(error) bool) error {
	policy := backoff.WithMaxRetries(newJitterBackOff(), maxAttempts-1)

	return backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if isRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, policy)
}
