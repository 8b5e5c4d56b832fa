package httpclient

import (
	"sync"
	"time"
)

// circuitState is the lifecycle of one provider's breaker.
type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

const (
	bucketCount     = 10
	bucketWidth     = time.Second
	failureRatio    = 0.5
	minSamples      = 10
	openDuration    = 30 * time.Second
)

type bucket struct {
	successes int
	failures  int
	start     time.Time
}

// CircuitBreaker is a per-provider rolling-window failure detector, hand
// rolled on the same 10-bucket-of-1-second rolling window idiom that most
// off-the-shelf breakers (e.g. Netflix Hystrix, sony/gobreaker) implement,
// just without the extra dependency.
type CircuitBreaker struct {
	mu      sync.Mutex
	buckets [bucketCount]bucket
	state   circuitState
	openedAt time.Time
}

// NewCircuitBreaker returns a breaker starting in the closed state.
func NewCircuitBreaker() *CircuitBreaker {
	cb := &CircuitBreaker{state: circuitClosed}
	now := time.Now()
	for i := range cb.buckets {
		cb.buckets[i].start = now
	}
	return cb
}

func (cb *CircuitBreaker) currentBucket(now time.Time) *bucket {
	idx := int(now.Unix()) % bucketCount
	b := &cb.buckets[idx]
	if now.Sub(b.start) >= bucketCount*bucketWidth {
		b.successes = 0
		b.failures = 0
	}
	b.start = now
	return b
}

// Allow reports whether a call should proceed. When the breaker is open
// past its cooldown it transitions to half-open and allows exactly one
// probe call through.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case circuitOpen:
		if time.Since(cb.openedAt) >= openDuration {
			cb.state = circuitHalfOpen
			return true
		}
		return false
	case circuitHalfOpen:
		return false
	default:
		return true
	}
}

// RecordSuccess registers a successful call outcome.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	now := time.Now()
	cb.currentBucket(now).successes++
	if cb.state == circuitHalfOpen {
		cb.state = circuitClosed
	}
}

// RecordFailure registers a failed call outcome and trips the breaker open
// once the rolling-window failure ratio crosses the threshold.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	now := time.Now()
	cb.currentBucket(now).failures++

	if cb.state == circuitHalfOpen {
		cb.trip(now)
		return
	}

	total, failures := 0, 0
	for _, b := range cb.buckets {
		if now.Sub(b.start) > bucketCount*bucketWidth {
			continue
		}
		total += b.successes + b.failures
		failures += b.failures
	}
	if total >= minSamples && float64(failures)/float64(total) >= failureRatio {
		cb.trip(now)
	}
}

func (cb *CircuitBreaker) trip(now time.Time) {
	cb.state = circuitOpen
	cb.openedAt = now
}

// State reports the breaker's current lifecycle state, exposed for
// metrics/debug endpoints.
func (cb *CircuitBreaker) State() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case circuitOpen:
		return "open"
	case circuitHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}
