package reactive

import (
	"sync"
	"sync/atomic"
)

// Effect is a reactive side effect that re-runs when its dependencies change.
//
// Effects run once when created. Every signal or memo read during a run
// becomes a dependency for the next one. A Cleanup returned by the function
// is called before the next run and when the effect is disposed.
type Effect struct {
	id uint64

	fn      func() Cleanup
	cleanup Cleanup

	sources   []*signalBase
	sourcesMu sync.Mutex

	owner *Owner

	// immediate effects re-run inline even when they have an owner.
	immediate bool

	// pending is set while the effect sits in its owner's queue.
	pending atomic.Bool

	disposed atomic.Bool

	// runMu guards running and rerun. A dirty mark that arrives while the
	// effect is running is folded into one more run by the running goroutine.
	runMu   sync.Mutex
	running bool
	rerun   bool
}

// EffectOption configures an Effect.
type EffectOption func(*Effect)

// Immediate makes the effect re-run synchronously on the goroutine that
// changed a dependency, instead of waiting for its owner to flush.
func Immediate() EffectOption {
	return func(e *Effect) {
		e.immediate = true
	}
}

// CreateEffect creates and runs a new effect within the current owner.
//
//	reactive.CreateEffect(func() reactive.Cleanup {
//	    fmt.Println("Count is:", count.Get())
//	    return func() { fmt.Println("Cleanup") }
//	})
func CreateEffect(fn func() Cleanup, opts ...EffectOption) *Effect {
	owner := CurrentOwner()

	e := &Effect{
		id:    nextID(),
		fn:    fn,
		owner: owner,
	}

	for _, opt := range opts {
		opt(e)
	}

	if owner != nil {
		owner.registerEffect(e)
	}

	e.execute()

	return e
}

// MarkDirty schedules the effect to re-run.
func (e *Effect) MarkDirty() {
	if e.disposed.Load() {
		return
	}

	if e.owner != nil && !e.immediate {
		if e.pending.CompareAndSwap(false, true) {
			e.owner.scheduleEffect(e)
		}
		return
	}

	e.execute()
}

// ID returns the unique identifier for this effect.
func (e *Effect) ID() uint64 {
	return e.id
}

// Dispose stops the effect, runs its cleanup and drops its subscriptions.
func (e *Effect) Dispose() {
	if e.disposed.Swap(true) {
		return
	}

	e.runMu.Lock()
	cleanup := e.cleanup
	e.cleanup = nil
	e.runMu.Unlock()

	if cleanup != nil {
		cleanup()
	}

	e.dropSources()
}

// Disposed reports whether Dispose has been called.
func (e *Effect) Disposed() bool {
	return e.disposed.Load()
}

// execute runs the effect, coalescing concurrent requests into a single
// follow-up run.
func (e *Effect) execute() {
	e.runMu.Lock()
	if e.running {
		e.rerun = true
		e.runMu.Unlock()
		return
	}
	e.running = true
	e.runMu.Unlock()

	for {
		e.run()

		e.runMu.Lock()
		if !e.rerun || e.disposed.Load() {
			e.running = false
			e.rerun = false
			e.runMu.Unlock()
			return
		}
		e.rerun = false
		e.runMu.Unlock()
	}
}

func (e *Effect) run() {
	if e.disposed.Load() {
		return
	}

	e.pending.Store(false)

	if e.cleanup != nil {
		e.cleanup()
		e.cleanup = nil
	}

	e.dropSources()

	var cleanup Cleanup
	WithListener(e, func() {
		cleanup = e.fn()
	})

	if e.disposed.Load() {
		// Disposed from inside its own body.
		if cleanup != nil {
			cleanup()
		}
		e.dropSources()
		return
	}
	e.cleanup = cleanup
}

func (e *Effect) addSource(source *signalBase) {
	e.sourcesMu.Lock()
	defer e.sourcesMu.Unlock()

	for _, s := range e.sources {
		if s == source {
			return
		}
	}
	e.sources = append(e.sources, source)
}

func (e *Effect) dropSources() {
	e.sourcesMu.Lock()
	sources := e.sources
	e.sources = nil
	e.sourcesMu.Unlock()

	for _, source := range sources {
		source.unsubscribe(e)
	}
}

// OnCleanup registers fn to run when the current owner is disposed.
// It is a no-op outside an owner.
func OnCleanup(fn func()) {
	if owner := CurrentOwner(); owner != nil {
		owner.OnCleanup(fn)
	}
}
