package presence

import (
	"sync"
	"time"
)

// Debouncer collapses the viewer's keystrokes into a single typing
// publish and fires a stop publish after an idle window. It is a
// single-owner resettable timer, not a polling loop: each keystroke
// resets the deadline, and only the idle expiry (or Cancel) fires stop.
type Debouncer struct {
	mu     sync.Mutex
	idle   time.Duration
	timer  *time.Timer
	active bool
	start  func()
	stop   func()
}

// NewDebouncer creates a debouncer. start is invoked on the first
// keystroke of a burst, stop when the idle window elapses.
func NewDebouncer(idle time.Duration, start, stop func()) *Debouncer {
	return &Debouncer{idle: idle, start: start, stop: stop}
}

// Keystroke notes viewer input. The first call of a burst fires start;
// every call pushes the stop deadline out by the idle window.
func (d *Debouncer) Keystroke() {
	d.mu.Lock()
	wasActive := d.active
	d.active = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.idle, d.expire)
	d.mu.Unlock()

	if !wasActive && d.start != nil {
		d.start()
	}
}

func (d *Debouncer) expire() {
	d.mu.Lock()
	if !d.active {
		d.mu.Unlock()
		return
	}
	d.active = false
	d.timer = nil
	d.mu.Unlock()

	if d.stop != nil {
		d.stop()
	}
}

// Cancel stops the timer and, if a burst was active, fires stop
// immediately. Used when the viewer switches conversation or the
// engine shuts down.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	wasActive := d.active
	d.active = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	if wasActive && d.stop != nil {
		d.stop()
	}
}

// Active reports whether a typing burst is in progress.
func (d *Debouncer) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}
