package cache

import (
	"container/list"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultL1Capacity = 100
	DefaultL1TTL      = 1 * time.Minute
	DefaultL2Capacity = 1000
	DefaultL2TTL      = 5 * time.Minute

	watchdogInterval    = 10 * time.Second
	heapPressureRatio   = 0.8
	Layer1           int = 1
	Layer2           int = 2
)

type genericEntry struct {
	key       string
	value     interface{}
	expiresAt time.Time
}

// plainLRU is a minimal size/TTL-bounded LRU used for both layers of
// LayeredCache. Deliberately unexported and simpler than ResponseCache
// (no byte-size accounting): this general-purpose cache bounds purely by
// entry count.
type plainLRU struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	ll       *list.List
	items    map[string]*list.Element
}

func newPlainLRU(capacity int, ttl time.Duration) *plainLRU {
	return &plainLRU{capacity: capacity, ttl: ttl, ll: list.New(), items: make(map[string]*list.Element)}
}

func (l *plainLRU) get(key string) (interface{}, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	el, ok := l.items[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*genericEntry)
	if time.Now().After(entry.expiresAt) {
		l.removeLocked(el)
		return nil, false
	}
	l.ll.MoveToFront(el)
	return entry.value, true
}

func (l *plainLRU) set(key string, value interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if el, ok := l.items[key]; ok {
		entry := el.Value.(*genericEntry)
		entry.value = value
		entry.expiresAt = time.Now().Add(l.ttl)
		l.ll.MoveToFront(el)
		return
	}
	entry := &genericEntry{key: key, value: value, expiresAt: time.Now().Add(l.ttl)}
	el := l.ll.PushFront(entry)
	l.items[key] = el
	for l.ll.Len() > l.capacity {
		back := l.ll.Back()
		if back == nil {
			break
		}
		l.removeLocked(back)
	}
}

func (l *plainLRU) removeLocked(el *list.Element) {
	entry := el.Value.(*genericEntry)
	l.ll.Remove(el)
	delete(l.items, entry.key)
}

func (l *plainLRU) flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ll.Init()
	l.items = make(map[string]*list.Element)
}

func (l *plainLRU) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ll.Len()
}

// LayeredCache is a two-layer general-purpose cache: L1 is small and
// short-lived, L2 larger and longer-lived; a get probes L1 then L2,
// promoting an L2 hit into L1.
type LayeredCache struct {
	l1 *plainLRU
	l2 *plainLRU
}

func NewLayeredCache() *LayeredCache {
	return &LayeredCache{
		l1: newPlainLRU(DefaultL1Capacity, DefaultL1TTL),
		l2: newPlainLRU(DefaultL2Capacity, DefaultL2TTL),
	}
}

// Get probes L1 first, then L2; an L2 hit is promoted into L1.
func (c *LayeredCache) Get(key string) (interface{}, bool) {
	if v, ok := c.l1.get(key); ok {
		return v, true
	}
	if v, ok := c.l2.get(key); ok {
		c.l1.set(key, v)
		return v, true
	}
	return nil, false
}

// Set writes to the explicitly named layer; callers choose L1 or L2
// themselves rather than have the cache infer it.
func (c *LayeredCache) Set(layer int, key string, value interface{}) {
	switch layer {
	case Layer1:
		c.l1.set(key, value)
	case Layer2:
		c.l2.set(key, value)
	}
}

func (c *LayeredCache) FlushL2() {
	c.l2.flush()
}

func (c *LayeredCache) Flush() {
	c.l1.flush()
	c.l2.flush()
}

type LayeredStats struct {
	L1Entries int `json:"l1Entries"`
	L2Entries int `json:"l2Entries"`
}

func (c *LayeredCache) Stats() LayeredStats {
	return LayeredStats{L1Entries: c.l1.len(), L2Entries: c.l2.len()}
}

// Watchdog samples heap usage every 10s and, on crossing the 0.8
// heap-used/heap-total ratio, drops L2 and flushes the response cache —
// the cheapest available way back under pressure without touching the
// hotter, smaller L1 layer.
type Watchdog struct {
	log      *zap.Logger
	layered  *LayeredCache
	response *ResponseCache

	stop chan struct{}
	once sync.Once
}

func NewWatchdog(log *zap.Logger, layered *LayeredCache, response *ResponseCache) *Watchdog {
	return &Watchdog{log: log, layered: layered, response: response, stop: make(chan struct{})}
}

// Start runs the sampling loop until Stop is called. Call in its own
// goroutine.
func (w *Watchdog) Start() {
	ticker := time.NewTicker(watchdogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.sample()
		case <-w.stop:
			return
		}
	}
}

func (w *Watchdog) sample() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	if mem.HeapSys == 0 {
		return
	}
	ratio := float64(mem.HeapAlloc) / float64(mem.HeapSys)
	if ratio <= heapPressureRatio {
		return
	}
	w.log.Warn("memory pressure detected, dropping L2 cache and flushing response cache",
		zap.Float64("heapRatio", ratio))
	w.layered.FlushL2()
	w.response.Flush()
}

func (w *Watchdog) Stop() {
	w.once.Do(func() { close(w.stop) })
}
