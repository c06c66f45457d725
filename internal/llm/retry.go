package llm

import (
	"time"
)

// DefaultDelays is the fixed backoff table for rate-limited calls. The
// last delay is reused if retries outrun the table.
var DefaultDelays = []time.Duration{3 * time.Second, 6 * time.Second, 9 * time.Second, 12 * time.Second}

// DefaultMaxRetries is the number of retries after the first attempt.
const DefaultMaxRetries = 4

// RetryPolicy retries a fallible blocking operation when its failure is
// retryable per the predicate. Zero fields take defaults.
type RetryPolicy struct {
	MaxRetries int
	Delays     []time.Duration
	Retryable  func(error) bool
	Sleep      func(time.Duration)
	// OnRetry is called before each backoff sleep (metrics/logging hook).
	OnRetry func(attempt int, delay time.Duration)
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxRetries == 0 {
		p.MaxRetries = DefaultMaxRetries
	}
	if p.Delays == nil {
		p.Delays = DefaultDelays
	}
	if p.Retryable == nil {
		p.Retryable = IsRateLimit
	}
	if p.Sleep == nil {
		p.Sleep = time.Sleep
	}
	return p
}

// Retry runs op up to 1+MaxRetries times. Non-retryable failures
// propagate immediately; exhausting the retries re-raises the final
// retryable failure.
func Retry[T any](policy RetryPolicy, op func() (T, error)) (T, error) {
	p := policy.withDefaults()
	var zero T
	for attempt := 0; ; attempt++ {
		v, err := op()
		if err == nil {
			return v, nil
		}
		if !p.Retryable(err) || attempt == p.MaxRetries {
			return zero, err
		}
		delay := p.Delays[min(attempt, len(p.Delays)-1)]
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, delay)
		}
		p.Sleep(delay)
	}
}
