// Package metrics implements the proxy's in-process counters, exposed as
// JSON by the /metrics and /debug/metrics endpoints. Every counter is
// updated with an atomic increment rather than a mutex, since the request
// hot path should never block on metrics bookkeeping.
package metrics

import (
	"sync/atomic"
	"time"
)

// Registry holds the proxy's request, cache, and latency counters. All
// fields are accessed exclusively through atomic operations so handlers
// never need to take a lock on the request hot path.
type Registry struct {
	startedAt time.Time

	requestsTotal        int64
	requestsStreaming    int64
	requestsNonStreaming int64
	requestsErrors       int64

	cacheHits   int64
	cacheMisses int64

	latencySumMs   int64
	latencyCount   int64
}

func New() *Registry {
	return &Registry{startedAt: time.Now()}
}

func (r *Registry) RecordRequest(streaming bool) {
	atomic.AddInt64(&r.requestsTotal, 1)
	if streaming {
		atomic.AddInt64(&r.requestsStreaming, 1)
	} else {
		atomic.AddInt64(&r.requestsNonStreaming, 1)
	}
}

func (r *Registry) RecordError() {
	atomic.AddInt64(&r.requestsErrors, 1)
}

func (r *Registry) RecordLatency(d time.Duration) {
	atomic.AddInt64(&r.latencySumMs, d.Milliseconds())
	atomic.AddInt64(&r.latencyCount, 1)
}

func (r *Registry) RecordCacheHit() {
	atomic.AddInt64(&r.cacheHits, 1)
}

func (r *Registry) RecordCacheMiss() {
	atomic.AddInt64(&r.cacheMisses, 1)
}

// Requests is the "requests" block of the JSON metrics snapshot.
type Requests struct {
	Total        int64 `json:"total"`
	Streaming    int64 `json:"streaming"`
	NonStreaming int64 `json:"nonStreaming"`
	Errors       int64 `json:"errors"`
}

// Performance mirrors the "performance.*" JSON block.
type Performance struct {
	AvgLatencyMs      float64 `json:"avgLatencyMs"`
	RequestsPerSecond float64 `json:"requestsPerSecond"`
	ErrorRate         float64 `json:"errorRate"`
}

// CacheStats mirrors the "cache.*" JSON block.
type CacheStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hitRate"`
}

// Snapshot is the full JSON document exposed at GET /metrics.
type Snapshot struct {
	Requests      Requests    `json:"requests"`
	Performance   Performance `json:"performance"`
	Cache         CacheStats  `json:"cache"`
	UptimeSeconds float64     `json:"uptimeSeconds"`
}

func (r *Registry) Snapshot() Snapshot {
	total := atomic.LoadInt64(&r.requestsTotal)
	streaming := atomic.LoadInt64(&r.requestsStreaming)
	nonStreaming := atomic.LoadInt64(&r.requestsNonStreaming)
	errors := atomic.LoadInt64(&r.requestsErrors)
	hits := atomic.LoadInt64(&r.cacheHits)
	misses := atomic.LoadInt64(&r.cacheMisses)
	latencySum := atomic.LoadInt64(&r.latencySumMs)
	latencyCount := atomic.LoadInt64(&r.latencyCount)

	uptime := time.Since(r.startedAt).Seconds()

	var avgLatency float64
	if latencyCount > 0 {
		avgLatency = float64(latencySum) / float64(latencyCount)
	}

	var rps float64
	if uptime > 0 {
		rps = float64(total) / uptime
	}

	var errorRate float64
	if total > 0 {
		errorRate = float64(errors) / float64(total)
	}

	var hitRate float64
	if hits+misses > 0 {
		hitRate = float64(hits) / float64(hits+misses)
	}

	return Snapshot{
		Requests:      Requests{Total: total, Streaming: streaming, NonStreaming: nonStreaming, Errors: errors},
		Performance:   Performance{AvgLatencyMs: avgLatency, RequestsPerSecond: rps, ErrorRate: errorRate},
		Cache:         CacheStats{Hits: hits, Misses: misses, HitRate: hitRate},
		UptimeSeconds: uptime,
	}
}
