package resource

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync/atomic"

	"github.com/djarekg/tampa-taffy/internal/errors"
	"github.com/djarekg/tampa-taffy/pkg/element"
	"github.com/djarekg/tampa-taffy/pkg/reactive"
)

// Resource is an async value loaded from reactive params.
type Resource[P, V any] struct {
	name     string
	params   func() P
	loader   Loader[P, V]
	host     element.Host
	parent   context.Context
	observer Observer
	logger   *slog.Logger

	value  *reactive.Signal[V]
	status *reactive.Signal[Status]
	err    *reactive.Signal[error]

	hasValue  atomic.Bool
	destroyed atomic.Bool
	snapshot  atomic.Pointer[Snapshot[V]]

	tick       *reactive.Tick
	effect     *reactive.Effect
	controller *controller[P, V]
	exec       executor

	// Run state. Only touched on exec.
	activeRun   uint64
	cancel      context.CancelFunc
	previous    V
	hasPrevious bool
	connected   bool
	started     bool
	lastParams  P
	lastTick    uint64
}

// New creates a resource and starts its first run when there is work to do.
func New[P, V any](opts Options[P, V]) (*Resource[P, V], error) {
	if opts.Loader == nil {
		return nil, errors.New(errors.CodeLoaderRequired).
			WithDetailf("resource %q has no loader", opts.Name)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Name != "" {
		logger = logger.With("resource", opts.Name)
	}

	parent := opts.Context
	if parent == nil {
		parent = context.Background()
	}

	value := reactive.NewSignal(opts.DefaultValue)
	if opts.Equal != nil {
		value = value.WithEquals(opts.Equal)
	}

	r := &Resource[P, V]{
		name:     opts.Name,
		params:   opts.Params,
		loader:   opts.Loader,
		host:     opts.Host,
		parent:   parent,
		observer: opts.Observer,
		logger:   logger,
		value:    value,
		status:   reactive.NewSignal(Idle),
		err: reactive.NewSignal[error](nil).WithEquals(func(a, b error) bool {
			return a == nil && b == nil
		}),
		tick:      reactive.NewTick(),
		previous:  opts.DefaultValue,
		connected: true,
	}

	r.publish()

	if opts.Host != nil {
		if cr, ok := opts.Host.(element.ConnectionReporter); ok {
			r.connected = cr.IsConnected()
		}
	}

	r.effect = reactive.CreateEffect(r.track, reactive.Immediate())

	if opts.Host != nil {
		r.controller = &controller[P, V]{r: r}
		opts.Host.AddController(r.controller)
	}
	reactive.OnCleanup(r.Destroy)

	return r, nil
}

// MustNew is New that panics on error.
func MustNew[P, V any](opts Options[P, V]) *Resource[P, V] {
	r, err := New(opts)
	if err != nil {
		panic(err)
	}
	return r
}

// Name returns the resource name.
func (r *Resource[P, V]) Name() string {
	return r.name
}

// Value returns the last resolved value, or the default, and subscribes the
// current listener.
func (r *Resource[P, V]) Value() V {
	return r.value.Get()
}

// Status returns the current status and subscribes the current listener.
func (r *Resource[P, V]) Status() Status {
	return r.status.Get()
}

// Err returns the error of the latest run, and subscribes the current
// listener. It is non-nil exactly when Status is Error.
func (r *Resource[P, V]) Err() error {
	return r.err.Get()
}

// Snapshot returns status, value and error as one consistent triple and
// subscribes the current listener to all three. Separate reads of Status and
// Err from another goroutine may straddle a transition.
func (r *Resource[P, V]) Snapshot() Snapshot[V] {
	r.status.Get()
	r.value.Get()
	r.err.Get()
	return *r.snapshot.Load()
}

// PeekSnapshot is Snapshot without subscribing.
func (r *Resource[P, V]) PeekSnapshot() Snapshot[V] {
	return *r.snapshot.Load()
}

// PeekValue returns the value without subscribing.
func (r *Resource[P, V]) PeekValue() V {
	return r.value.Peek()
}

// PeekStatus returns the status without subscribing.
func (r *Resource[P, V]) PeekStatus() Status {
	return r.status.Peek()
}

// PeekErr returns the error without subscribing.
func (r *Resource[P, V]) PeekErr() error {
	return r.err.Peek()
}

// HasValue reports whether a run has resolved or a value was set locally.
func (r *Resource[P, V]) HasValue() bool {
	return r.hasValue.Load()
}

// IsLoading reports whether a run is in flight. It subscribes the current
// listener to the status.
func (r *Resource[P, V]) IsLoading() bool {
	return r.status.Get().Pending()
}

// Reload forces a new run with the current params. It returns false once the
// resource has been destroyed.
func (r *Resource[P, V]) Reload() bool {
	if r.destroyed.Load() {
		return false
	}
	r.tick.Bump()
	return true
}

// Destroy cancels the in-flight run and stops the resource. Status and value
// keep their last state.
func (r *Resource[P, V]) Destroy() {
	if r.destroyed.Swap(true) {
		return
	}

	r.effect.Dispose()
	r.exec.Do(r.abort)

	if r.controller != nil {
		if rc, ok := r.host.(interface{ RemoveController(element.Controller) }); ok {
			rc.RemoveController(r.controller)
		}
	}
	r.logger.Debug("resource destroyed")
}

// Set writes a local value. Any in-flight run is superseded and the status
// becomes Local.
func (r *Resource[P, V]) Set(v V) {
	r.exec.Do(func() { r.setLocal(v) })
}

// Update writes fn applied to the current value, like Set.
func (r *Resource[P, V]) Update(fn func(V) V) {
	r.exec.Do(func() { r.setLocal(fn(r.value.Peek())) })
}

// track is the body of the resource effect. Dependencies are read here,
// synchronously, and the transition is handed to the executor.
func (r *Resource[P, V]) track() reactive.Cleanup {
	var p P
	if r.params != nil {
		p = r.params()
	}
	tick := r.tick.Get()

	reactive.Untracked(func() {
		r.exec.Do(func() { r.schedule(p, tick) })
	})
	return nil
}

func (r *Resource[P, V]) schedule(p P, tick uint64) {
	if r.destroyed.Load() {
		return
	}
	if !r.connected || (r.params != nil && isNil(p)) {
		r.abort()
		r.setIdle()
		return
	}

	reload := r.started && tick != r.lastTick && reflect.DeepEqual(r.lastParams, p)
	r.started = true
	r.lastParams = p
	r.lastTick = tick

	r.abort()
	r.activeRun++
	run := r.activeRun

	ctx, cancel := context.WithCancel(r.parent)
	r.cancel = cancel

	finish := func(Outcome, error) {}
	if r.observer != nil {
		ctx, finish = r.observer.StartRun(ctx, RunInfo{Resource: r.name, Run: run, Reload: reload})
	}

	next := Loading
	if reload {
		next = Reloading
	}
	old := r.status.Peek()
	reactive.Batch(func() {
		r.status.Set(next)
		r.err.Set(nil)
		r.publish()
	})
	r.requestUpdate(old)

	r.logger.Debug("resource run started", "run", run, "reload", reload)

	req := Request[P, V]{Params: p, Previous: r.previous, HasPrevious: r.hasPrevious}
	go r.load(ctx, run, req, finish)
}

func (r *Resource[P, V]) load(ctx context.Context, run uint64, req Request[P, V], finish func(Outcome, error)) {
	v, err := r.callLoader(ctx, req)
	r.exec.Do(func() { r.complete(ctx, run, v, err, finish) })
}

func (r *Resource[P, V]) callLoader(ctx context.Context, req Request[P, V]) (v V, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("resource %q: loader panic: %v", r.name, rec)
		}
	}()
	return r.loader(ctx, req)
}

func (r *Resource[P, V]) complete(ctx context.Context, run uint64, v V, err error, finish func(Outcome, error)) {
	if r.destroyed.Load() || run != r.activeRun || ctx.Err() != nil {
		finish(OutcomeSuperseded, err)
		r.logger.Debug("resource run superseded", "run", run, "active", r.activeRun)
		return
	}

	r.cancel()
	r.cancel = nil

	old := r.status.Peek()
	if err != nil {
		reactive.Batch(func() {
			r.err.Set(err)
			r.status.Set(Error)
			r.publish()
		})
		finish(OutcomeError, err)
		r.logger.Warn("resource run failed", "run", run, "error", err)
	} else {
		r.previous = v
		r.hasPrevious = true
		r.hasValue.Store(true)
		reactive.Batch(func() {
			r.value.Set(v)
			r.status.Set(Resolved)
			r.publish()
		})
		finish(OutcomeResolved, nil)
		r.logger.Debug("resource run resolved", "run", run)
	}
	r.requestUpdate(old)
}

func (r *Resource[P, V]) setLocal(v V) {
	if r.destroyed.Load() {
		return
	}

	r.abort()
	r.activeRun++
	r.previous = v
	r.hasPrevious = true
	r.hasValue.Store(true)

	old := r.status.Peek()
	reactive.Batch(func() {
		r.value.Set(v)
		r.status.Set(Local)
		r.err.Set(nil)
		r.publish()
	})
	r.requestUpdate(old)
}

// publish records the current signal values as the snapshot. It runs inside
// the transition's batch, before any listener is notified.
func (r *Resource[P, V]) publish() {
	r.snapshot.Store(&Snapshot[V]{
		Status: r.status.Peek(),
		Value:  r.value.Peek(),
		Err:    r.err.Peek(),
	})
}

func (r *Resource[P, V]) abort() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

func (r *Resource[P, V]) setIdle() {
	old := r.status.Peek()
	reactive.Batch(func() {
		r.status.Set(Idle)
		r.err.Set(nil)
		r.publish()
	})
	r.requestUpdate(old)
}

func (r *Resource[P, V]) requestUpdate(old Status) {
	if r.host != nil {
		r.host.RequestUpdate(r.name, old)
	}
}

// controller connects a resource to its host lifecycle.
type controller[P, V any] struct {
	r *Resource[P, V]
}

// HostConnected resumes a paused resource with a new run.
func (c *controller[P, V]) HostConnected() {
	r := c.r
	r.exec.Do(func() {
		if r.destroyed.Load() || r.connected {
			return
		}
		r.connected = true
		r.tick.Bump()
	})
}

// HostDisconnected cancels the in-flight run and sets Idle.
func (c *controller[P, V]) HostDisconnected() {
	r := c.r
	r.exec.Do(func() {
		if r.destroyed.Load() {
			return
		}
		r.connected = false
		r.abort()
		r.setIdle()
	})
}

// isNil reports whether p holds a nil pointer, map, slice, func, chan or
// interface.
func isNil[P any](p P) bool {
	v := reflect.ValueOf(&p).Elem()
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}
