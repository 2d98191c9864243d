package reactive

import (
	"sync"

	"github.com/petermattis/goid"
)

// trackingContext holds the reactive state for a goroutine.
type trackingContext struct {
	// owner receives effects and cleanups created while it is current.
	owner *Owner

	// listener is what's currently tracking dependencies.
	// nil means reads don't create subscriptions.
	listener Listener

	// batchDepth tracks nested Batch calls.
	batchDepth int

	// pendingUpdates accumulates listeners to notify when the batch completes.
	pendingUpdates []Listener
}

// trackingContexts stores per-goroutine tracking contexts keyed by goroutine id.
var trackingContexts sync.Map

// getTrackingContext returns the tracking context for the current goroutine,
// creating one if needed.
func getTrackingContext() *trackingContext {
	gid := goid.Get()

	if ctx, ok := trackingContexts.Load(gid); ok {
		return ctx.(*trackingContext)
	}

	ctx := &trackingContext{}
	trackingContexts.Store(gid, ctx)
	return ctx
}

// releaseTrackingContext drops the context of the current goroutine once it
// holds no state.
func releaseTrackingContext(ctx *trackingContext) {
	if ctx.owner == nil && ctx.listener == nil && ctx.batchDepth == 0 && len(ctx.pendingUpdates) == 0 {
		trackingContexts.Delete(goid.Get())
	}
}

func getCurrentListener() Listener {
	if ctx, ok := trackingContexts.Load(goid.Get()); ok {
		return ctx.(*trackingContext).listener
	}
	return nil
}

// setCurrentListener returns the previous listener so it can be restored.
func setCurrentListener(l Listener) Listener {
	ctx := getTrackingContext()
	old := ctx.listener
	ctx.listener = l
	if l == nil {
		releaseTrackingContext(ctx)
	}
	return old
}

// CurrentOwner returns the owner for the current goroutine, or nil.
func CurrentOwner() *Owner {
	if ctx, ok := trackingContexts.Load(goid.Get()); ok {
		return ctx.(*trackingContext).owner
	}
	return nil
}

func setCurrentOwner(o *Owner) *Owner {
	ctx := getTrackingContext()
	old := ctx.owner
	ctx.owner = o
	if o == nil {
		releaseTrackingContext(ctx)
	}
	return old
}

func getBatchDepth() int {
	if ctx, ok := trackingContexts.Load(goid.Get()); ok {
		return ctx.(*trackingContext).batchDepth
	}
	return 0
}

func incrementBatchDepth() {
	getTrackingContext().batchDepth++
}

// decrementBatchDepth reports whether the outermost batch just ended.
func decrementBatchDepth() bool {
	ctx := getTrackingContext()
	ctx.batchDepth--
	return ctx.batchDepth == 0
}

func queuePendingUpdate(l Listener) {
	ctx := getTrackingContext()
	ctx.pendingUpdates = append(ctx.pendingUpdates, l)
}

func drainPendingUpdates() []Listener {
	ctx := getTrackingContext()
	updates := ctx.pendingUpdates
	ctx.pendingUpdates = nil
	releaseTrackingContext(ctx)
	return updates
}

// WithOwner runs fn with owner as the current owner.
// Goroutines that create effects on behalf of a host use it to attach them.
//
//	go func() {
//	    reactive.WithOwner(owner, func() {
//	        reactive.CreateEffect(...)
//	    })
//	}()
func WithOwner(owner *Owner, fn func()) {
	old := setCurrentOwner(owner)
	defer setCurrentOwner(old)
	fn()
}

// WithListener runs fn with l as the tracking listener.
func WithListener(l Listener, fn func()) {
	old := setCurrentListener(l)
	defer setCurrentListener(old)
	fn()
}
