package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotCountsRequests(t *testing.T) {
	r := New()
	r.RecordRequest(true)
	r.RecordRequest(false)
	r.RecordError()

	snap := r.Snapshot()
	assert.Equal(t, int64(2), snap.Requests.Total)
	assert.Equal(t, int64(1), snap.Requests.Streaming)
	assert.Equal(t, int64(1), snap.Requests.NonStreaming)
	assert.Equal(t, int64(1), snap.Requests.Errors)
	assert.InDelta(t, 0.5, snap.Performance.ErrorRate, 1e-9)
}

func TestSnapshotCacheHitRate(t *testing.T) {
	r := New()
	r.RecordCacheHit()
	r.RecordCacheHit()
	r.RecordCacheMiss()

	snap := r.Snapshot()
	assert.Equal(t, int64(2), snap.Cache.Hits)
	assert.Equal(t, int64(1), snap.Cache.Misses)
	assert.InDelta(t, 2.0/3.0, snap.Cache.HitRate, 1e-9)
}

func TestSnapshotAverageLatency(t *testing.T) {
	r := New()
	r.RecordLatency(100 * time.Millisecond)
	r.RecordLatency(200 * time.Millisecond)

	snap := r.Snapshot()
	assert.InDelta(t, 150, snap.Performance.AvgLatencyMs, 1)
}

func TestSnapshotZeroStateHasNoDivideByZero(t *testing.T) {
	r := New()
	snap := r.Snapshot()
	assert.Equal(t, int64(0), snap.Requests.Total)
	assert.Equal(t, float64(0), snap.Performance.ErrorRate)
	assert.Equal(t, float64(0), snap.Cache.HitRate)
}

func TestRecordRequestIsSafeForConcurrentUse(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.RecordRequest(false)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(200), r.Snapshot().Requests.Total)
}
