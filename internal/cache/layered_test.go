package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/universal-claude-router/ucr/internal/logging"
)

func TestLayeredCacheGetMiss(t *testing.T) {
	c := NewLayeredCache()
	_, ok := c.Get("x")
	assert.False(t, ok)
}

func TestLayeredCachePromotesL2HitToL1(t *testing.T) {
	c := NewLayeredCache()
	c.Set(Layer2, "x", "value")

	v, ok := c.l1.get("x")
	assert.False(t, ok)
	_ = v

	got, ok := c.Get("x")
	assert.True(t, ok)
	assert.Equal(t, "value", got)

	v, ok = c.l1.get("x")
	assert.True(t, ok, "L2 hit should be promoted into L1")
	assert.Equal(t, "value", v)
}

func TestLayeredCacheL1PreferredOverL2(t *testing.T) {
	c := NewLayeredCache()
	c.Set(Layer1, "x", "fromL1")
	c.Set(Layer2, "x", "fromL2")
	got, ok := c.Get("x")
	assert.True(t, ok)
	assert.Equal(t, "fromL1", got)
}

func TestLayeredCacheFlushL2Only(t *testing.T) {
	c := NewLayeredCache()
	c.Set(Layer1, "a", 1)
	c.Set(Layer2, "b", 2)
	c.FlushL2()
	stats := c.Stats()
	assert.Equal(t, 1, stats.L1Entries)
	assert.Equal(t, 0, stats.L2Entries)
}

func TestWatchdogStopIsIdempotent(t *testing.T) {
	layered := NewLayeredCache()
	layered.Set(Layer2, "a", 1)
	response := NewResponseCache(10, 1<<20, time.Minute)

	w := NewWatchdog(logging.Nop(), layered, response)
	// the flush decision depends on live heap statistics and the real 10s
	// ticker, so this test does not exercise it; it only checks that Stop
	// is safe to call twice and doesn't panic/deadlock.
	w.Stop()
	w.Stop()
}
