package idgen

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewProducesUniqueSortableIDs(t *testing.T) {
	seen := make(map[string]bool)
	var prev string
	for i := 0; i < 100; i++ {
		id := New()
		assert.Len(t, id, 26)
		assert.False(t, seen[id])
		seen[id] = true
		if prev != "" {
			assert.True(t, id >= prev, "ids should sort monotonically")
		}
		prev = id
	}
}

func TestNewIsSafeForConcurrentUse(t *testing.T) {
	var wg sync.WaitGroup
	ids := make([]string, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = New()
		}(i)
	}
	wg.Wait()
	seen := make(map[string]bool)
	for _, id := range ids {
		assert.False(t, seen[id])
		seen[id] = true
	}
}
