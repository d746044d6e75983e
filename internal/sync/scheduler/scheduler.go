// Package scheduler coalesces bursts of local writes into single sync
// runs. Every mutating workflow calls Notify; the debounce window
// collapses a burst into one run, and an in-progress flag prevents
// overlapping syncs from the same process: a run requested while one
// is in flight is deferred, not dropped.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/wordstash/wordstash/internal/logging"
)

// SyncFunc performs one full sync.
type SyncFunc func(ctx context.Context) error

// Debouncer triggers fn once per burst of Notify calls.
type Debouncer struct {
	fn      SyncFunc
	window  time.Duration
	timeout time.Duration
	log     *logging.Logger

	mu       sync.Mutex
	timer    *time.Timer
	inFlight bool
	pending  bool
	stopped  bool
	wg       sync.WaitGroup
}

// NewDebouncer creates a Debouncer. A zero window defaults to 2s; a nil
// logger stays silent.
func NewDebouncer(fn SyncFunc, window time.Duration, log *logging.Logger) *Debouncer {
	if window == 0 {
		window = 2 * time.Second
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Debouncer{
		fn:      fn,
		window:  window,
		timeout: 2 * time.Minute,
		log:     log,
	}
}

// Notify records a local write. The sync fires once the window elapses
// without further notifications.
func (d *Debouncer) Notify() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer == nil {
		d.timer = time.AfterFunc(d.window, d.fire)
		return
	}
	d.timer.Reset(d.window)
}

// fire runs when the debounce window elapses.
func (d *Debouncer) fire() {
	d.mu.Lock()
	d.timer = nil
	if d.stopped {
		d.mu.Unlock()
		return
	}
	if d.inFlight {
		// A sync is running; remember to go again when it finishes.
		d.pending = true
		d.mu.Unlock()
		return
	}
	d.inFlight = true
	d.wg.Add(1)
	d.mu.Unlock()

	go d.run()
}

// run executes one sync and re-arms when writes arrived mid-run.
func (d *Debouncer) run() {
	defer d.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.fn(ctx); err != nil {
		d.log.Error("debounced sync failed", err)
	}

	d.mu.Lock()
	d.inFlight = false
	rerun := d.pending && !d.stopped
	d.pending = false
	d.mu.Unlock()

	if rerun {
		d.Notify()
	}
}

// InFlight reports whether a sync is currently running.
func (d *Debouncer) InFlight() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inFlight
}

// Stop cancels any armed trigger and waits for an in-flight sync.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	d.wg.Wait()
}
