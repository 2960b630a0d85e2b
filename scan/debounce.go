/*
debounce.go - Trailing-edge debouncer for scanner input

PURPOSE:
  Handheld barcode scanners type a whole code in a burst. Submitting on
  every change would fire a lookup per character, so input is held until
  it has been quiet for the window, then the latest value is delivered.

DESIGN:
  - One background goroutine owns the timer and the pending value
  - Trigger restarts the window; only the last value is kept
  - Flush delivers the pending value now and returns once delivered
  - Stop cancels anything pending; later calls are no-ops
  - The callback runs on the debouncer goroutine, so Trigger blocks
    while a delivery is in progress

USAGE:
  d := scan.NewDebouncer(300*time.Millisecond, func(v string) { submit(v) })
  d.Trigger("PTQF3")
  d.Trigger("PTQF31083")   // only this one is delivered
  ...
  d.Stop()

SEE ALSO:
  - session.go: Feeds scan-mode input through a Debouncer
*/
package scan

import (
	"sync"
	"time"
)

// DefaultWindow is the quiet period before scanned input is submitted.
const DefaultWindow = 300 * time.Millisecond

// Debouncer delivers the last triggered value after Window of quiet.
type Debouncer struct {
	Window time.Duration

	fire  func(string)
	input chan string
	flush chan chan bool
	stop  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

// NewDebouncer creates and starts a debouncer. A non-positive window uses
// DefaultWindow.
func NewDebouncer(window time.Duration, fire func(string)) *Debouncer {
	if window <= 0 {
		window = DefaultWindow
	}
	d := &Debouncer{
		Window: window,
		fire:   fire,
		input:  make(chan string),
		flush:  make(chan chan bool),
		stop:   make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Trigger records value as pending and restarts the window.
func (d *Debouncer) Trigger(value string) {
	select {
	case d.input <- value:
	case <-d.stop:
	}
}

// Flush delivers the pending value immediately, if any, and waits for
// the callback to return. It reports whether a value was delivered.
func (d *Debouncer) Flush() bool {
	done := make(chan bool, 1)
	select {
	case d.flush <- done:
		return <-done
	case <-d.stop:
		return false
	}
}

// Stop cancels any pending value and waits for the goroutine to exit.
func (d *Debouncer) Stop() {
	d.once.Do(func() { close(d.stop) })
	d.wg.Wait()
}

func (d *Debouncer) run() {
	defer d.wg.Done()

	var (
		timer   *time.Timer
		timeout <-chan time.Time
		pending string
		has     bool
	)
	halt := func() {
		if timer != nil {
			timer.Stop()
		}
		timeout = nil
	}

	for {
		select {
		case v := <-d.input:
			pending, has = v, true
			halt()
			timer = time.NewTimer(d.Window)
			timeout = timer.C
		case <-timeout:
			timeout = nil
			if has {
				has = false
				d.fire(pending)
			}
		case done := <-d.flush:
			halt()
			delivered := has
			if has {
				has = false
				d.fire(pending)
			}
			done <- delivered
		case <-d.stop:
			halt()
			return
		}
	}
}
