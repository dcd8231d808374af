// Package backoff implements capped exponential backoff with full
// jitter for reconnection scheduling. Randomizing the delay up to the
// current exponential bound keeps a fleet of clients recovering from
// the same outage from reconnecting in lockstep.
package backoff

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Policy tracks reconnection attempts and produces the delay before the
// next one. Zero attempts and base delay after New or Reset.
type Policy struct {
	mu          sync.Mutex
	base        time.Duration
	max         time.Duration
	maxAttempts int

	attempts int
	current  time.Duration

	rng *rand.Rand
}

// New creates a policy with the given base delay, delay cap, and
// attempt cap.
func New(base, max time.Duration, maxAttempts int) *Policy {
	return &Policy{
		base:        base,
		max:         max,
		maxAttempts: maxAttempts,
		current:     base,
		rng:         rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Next records one more attempt and returns the delay to wait before
// it. Returns false without recording when the attempt cap is already
// reached. The delay is current + random jitter in [0, min(current, max)),
// capped at max; the deterministic component doubles after every call,
// also capped at max.
func (p *Policy) Next() (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.attempts >= p.maxAttempts {
		return 0, false
	}
	p.attempts++

	delay := p.current
	if bound := min(p.current, p.max); bound > 0 {
		delay += time.Duration(p.rng.Int64N(int64(bound)))
	}
	if delay > p.max {
		delay = p.max
	}

	p.current = min(p.current*2, p.max)
	return delay, true
}

// Reset returns the policy to zero attempts and the base delay. Called
// on every successful open and on explicit disconnect.
func (p *Policy) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts = 0
	p.current = p.base
}

// Attempts returns the number of attempts recorded since the last Reset.
func (p *Policy) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

// Current returns the deterministic delay component for the next attempt.
func (p *Policy) Current() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}
