// Package idgen generates lexicographically sortable request ids, used by
// the proxy to correlate a request across log lines and, where upstream
// permits, as an idempotency/trace hint.
package idgen

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// entropySource wraps crypto/rand behind ulid's expected io.Reader shape,
// guarded by a mutex since ulid.MonotonicEntropy is not safe for
// concurrent use.
type entropySource struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

var global = &entropySource{entropy: ulid.Monotonic(rand.Reader, 0)}

// New returns a new request id, monotonically increasing within the same
// millisecond so concurrently generated ids still sort in call order.
func New() string {
	global.mu.Lock()
	defer global.mu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), global.entropy)
	return id.String()
}
