package reactive

import (
	"sync"
	"time"
)

// Debounce returns a function that calls fn with the latest argument once d
// has passed since the last call, and a stop function that cancels any
// pending call. Calls after stop are ignored.
func Debounce[A any](fn func(A), d time.Duration) (debounced func(A), stop func()) {
	var (
		mu      sync.Mutex
		timer   *time.Timer
		stopped bool
	)

	debounced = func(arg A) {
		mu.Lock()
		defer mu.Unlock()

		if stopped {
			return
		}
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(d, func() { fn(arg) })
	}

	stop = func() {
		mu.Lock()
		defer mu.Unlock()

		stopped = true
		if timer != nil {
			timer.Stop()
			timer = nil
		}
	}

	return debounced, stop
}
