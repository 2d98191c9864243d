package resource

import "sync"

// executor runs posted functions one at a time in FIFO order. The goroutine
// that finds it idle drains the queue, so Do from inside a posted function
// only enqueues.
type executor struct {
	mu       sync.Mutex
	queue    []func()
	draining bool
}

// Do posts fn and drains the queue unless another goroutine is draining.
func (e *executor) Do(fn func()) {
	e.mu.Lock()
	e.queue = append(e.queue, fn)
	if e.draining {
		e.mu.Unlock()
		return
	}
	e.draining = true
	e.mu.Unlock()

	e.drain()
}

func (e *executor) drain() {
	defer func() {
		if rec := recover(); rec != nil {
			e.mu.Lock()
			e.draining = false
			e.mu.Unlock()
			panic(rec)
		}
	}()

	for {
		e.mu.Lock()
		if len(e.queue) == 0 {
			e.draining = false
			e.mu.Unlock()
			return
		}
		next := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		e.mu.Unlock()

		next()
	}
}
