package watch

import (
	"sort"
	"sync"
	"time"
)

// Debouncer collects paths and hands them to a callback once no new path
// has arrived for the configured duration. Callbacks never overlap: paths
// that arrive while one runs are delivered in a later batch.
type Debouncer struct {
	duration time.Duration
	timer    *time.Timer
	files    map[string]struct{}
	mutex    sync.Mutex
	callback func([]string)
	running  bool
	stopped  bool
}

// NewDebouncer creates a debouncer with the given quiet period.
func NewDebouncer(duration time.Duration) *Debouncer {
	return &Debouncer{
		duration: duration,
		files:    make(map[string]struct{}),
	}
}

// Add records a path and restarts the quiet period.
func (d *Debouncer) Add(file string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.stopped {
		return
	}

	d.files[file] = struct{}{}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, d.flush)
}

// flush hands the accumulated paths, sorted, to the callback.
// The callback runs without the lock held so it may call Add. A flush that
// fires while a callback is running leaves its paths pending; the running
// flush re-arms the timer for them when it finishes.
func (d *Debouncer) flush() {
	d.mutex.Lock()
	if d.stopped || d.running || len(d.files) == 0 {
		d.mutex.Unlock()
		return
	}

	files := make([]string, 0, len(d.files))
	for file := range d.files {
		files = append(files, file)
	}
	sort.Strings(files)
	d.files = make(map[string]struct{})
	callback := d.callback
	d.running = true
	d.mutex.Unlock()

	if callback != nil {
		callback(files)
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.running = false
	if d.stopped || len(d.files) == 0 {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, d.flush)
}

// SetCallback sets the function invoked after each quiet period.
func (d *Debouncer) SetCallback(callback func([]string)) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.callback = callback
}

// Stop cancels any pending flush. Paths added afterwards are dropped.
func (d *Debouncer) Stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.stopped = true
	d.files = make(map[string]struct{})
}
