package config

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const debounceWindow = 750 * time.Millisecond

// Watch starts viper's filesystem watcher (which wires fsnotify
// internally) and re-runs the full Load pipeline on change, coalescing
// bursts of events behind a debounce timer: viper/fsnotify fire once per
// underlying write syscall, and editors commonly issue several per save
// (truncate + write + rename), so a naive reload-per-event would re-run
// the pipeline multiple times for one logical edit.
//
// Stop the watch by calling the returned stop function; it is safe to
// call more than once.
func (m *Manager) Watch() (stop func()) {
	debounced := newDebouncer(debounceWindow, func() {
		if err := m.Load(); err != nil {
			m.log.Error("config reload failed, keeping previous snapshot", zap.Error(err))
		} else {
			m.log.Info("config reloaded")
		}
	})

	m.v.OnConfigChange(func(_ fsnotify.Event) {
		debounced.trigger()
	})
	m.v.WatchConfig()

	return debounced.stop
}

// debouncer coalesces repeated trigger calls arriving within window into a
// single fn invocation, fired `window` after the last trigger.
type debouncer struct {
	mu     sync.Mutex
	window time.Duration
	timer  *time.Timer
	fn     func()
	active bool
}

func newDebouncer(window time.Duration, fn func()) *debouncer {
	return &debouncer{window: window, fn: fn, active: true}
}

func (d *debouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.active {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.fn)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active = false
	if d.timer != nil {
		d.timer.Stop()
	}
}
