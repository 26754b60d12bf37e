package resilience

import (
	"sync"
	"time"
)

const (
	// DefaultBackoffBase is the delay before the first reconnect attempt.
	DefaultBackoffBase = 1000 * time.Millisecond

	// DefaultBackoffAttempts is the reconnect attempt ceiling. Once reached,
	// no further automatic attempts occur until the policy is reset.
	DefaultBackoffAttempts = 5
)

// Backoff computes bounded exponential reconnect delays: base * 2^attempt,
// up to a fixed number of attempts. The zero value is not usable; construct
// with NewBackoff.
type Backoff struct {
	base        time.Duration
	maxAttempts int

	mu      sync.Mutex
	attempt int
}

// NewBackoff creates a backoff policy. Non-positive arguments fall back to
// the package defaults.
func NewBackoff(base time.Duration, maxAttempts int) *Backoff {
	if base <= 0 {
		base = DefaultBackoffBase
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultBackoffAttempts
	}
	return &Backoff{base: base, maxAttempts: maxAttempts}
}

// Next returns the delay for the next attempt and advances the counter.
// ok is false once the attempt ceiling has been reached; the returned delay
// is zero in that case.
func (b *Backoff) Next() (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attempt >= b.maxAttempts {
		return 0, false
	}
	delay := b.base << uint(b.attempt)
	b.attempt++
	return delay, true
}

// Attempt returns the number of attempts consumed so far.
func (b *Backoff) Attempt() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempt
}

// Reset clears the attempt counter. Called after a successful connect.
func (b *Backoff) Reset() {
	b.mu.Lock()
	b.attempt = 0
	b.mu.Unlock()
}
