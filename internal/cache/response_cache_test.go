package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/universal-claude-router/ucr/internal/canon"
)

func TestResponseCacheSetGet(t *testing.T) {
	c := NewResponseCache(10, 1<<20, time.Minute)
	c.Set("a", canon.CachedResponse{Response: canon.CanonicalResponse{ID: "r1"}, Size: 10})
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "r1", v.Response.ID)
}

func TestResponseCacheMissUnknownKey(t *testing.T) {
	c := NewResponseCache(10, 1<<20, time.Minute)
	_, ok := c.Get("nope")
	assert.False(t, ok)
}

func TestResponseCacheEvictsByCapacity(t *testing.T) {
	c := NewResponseCache(2, 1<<20, time.Minute)
	c.Set("a", canon.CachedResponse{Size: 1})
	c.Set("b", canon.CachedResponse{Size: 1})
	c.Set("c", canon.CachedResponse{Size: 1})
	_, ok := c.Get("a")
	assert.False(t, ok, "oldest entry should have been evicted")
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestResponseCacheEvictsByByteSize(t *testing.T) {
	c := NewResponseCache(100, 25, time.Minute)
	c.Set("a", canon.CachedResponse{Size: 20})
	c.Set("b", canon.CachedResponse{Size: 20})
	assert.Equal(t, 1, c.Stats().Entries)
}

func TestResponseCacheExpiresByTTL(t *testing.T) {
	c := NewResponseCache(10, 1<<20, time.Millisecond)
	c.Set("a", canon.CachedResponse{Size: 1})
	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestResponseCacheFlush(t *testing.T) {
	c := NewResponseCache(10, 1<<20, time.Minute)
	c.Set("a", canon.CachedResponse{Size: 1})
	c.Flush()
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestFingerprintDeterministic(t *testing.T) {
	temp := 0.7
	maxTok := 256
	req := &canon.CanonicalRequest{
		Model: "claude-3-5-sonnet",
		Messages: []canon.Message{
			{Role: canon.RoleUser, Content: canon.MessageContent{Parts: []canon.ContentPart{{Type: canon.PartText, Text: "hi"}}}},
		},
		Sampling: canon.SamplingParams{Temperature: &temp, MaxTokens: &maxTok},
	}
	f1 := Fingerprint(req)
	f2 := Fingerprint(req)
	assert.Equal(t, f1, f2)
	assert.NotEmpty(t, f1)

	req.Model = "gpt-4o"
	f3 := Fingerprint(req)
	assert.NotEqual(t, f1, f3)
}
