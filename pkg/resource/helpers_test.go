package resource

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/djarekg/tampa-taffy/pkg/reactive"
)

type result[V any] struct {
	v   V
	err error
}

// call is one loader invocation that waits for the test to resolve it.
type call[P, V any] struct {
	ctx     context.Context
	req     Request[P, V]
	resolve chan result[V]
}

func (c *call[P, V]) succeed(v V) { c.resolve <- result[V]{v: v} }

func (c *call[P, V]) fail(err error) { c.resolve <- result[V]{err: err} }

// deferredLoader hands every call to the test. Calls ignore cancellation so
// tests can deliver late results.
type deferredLoader[P, V any] struct {
	calls chan *call[P, V]
}

func newDeferredLoader[P, V any]() *deferredLoader[P, V] {
	return &deferredLoader[P, V]{calls: make(chan *call[P, V], 16)}
}

func (d *deferredLoader[P, V]) load(ctx context.Context, req Request[P, V]) (V, error) {
	c := &call[P, V]{ctx: ctx, req: req, resolve: make(chan result[V], 1)}
	d.calls <- c
	res := <-c.resolve
	return res.v, res.err
}

func (d *deferredLoader[P, V]) next(t *testing.T) *call[P, V] {
	t.Helper()
	select {
	case c := <-d.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a loader call")
		return nil
	}
}

func (d *deferredLoader[P, V]) none(t *testing.T) {
	t.Helper()
	select {
	case c := <-d.calls:
		t.Fatalf("unexpected loader call with params %v", c.req.Params)
	case <-time.After(30 * time.Millisecond):
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// statusLog records every status notification.
type statusLog struct {
	mu   sync.Mutex
	seen []Status
	e    *reactive.Effect
}

func watchStatus[P, V any](r *Resource[P, V]) *statusLog {
	l := &statusLog{}
	l.e = reactive.CreateEffect(func() reactive.Cleanup {
		s := r.Status()
		l.mu.Lock()
		l.seen = append(l.seen, s)
		l.mu.Unlock()
		return nil
	}, reactive.Immediate())
	return l
}

func (l *statusLog) statuses() []Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Status(nil), l.seen...)
}

func (l *statusLog) reset() {
	l.mu.Lock()
	l.seen = nil
	l.mu.Unlock()
}

func equalStatuses(a, b []Status) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// recordingObserver records run outcomes.
type recordingObserver struct {
	mu       sync.Mutex
	started  []RunInfo
	outcomes map[uint64]Outcome
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{outcomes: make(map[uint64]Outcome)}
}

func (o *recordingObserver) StartRun(ctx context.Context, info RunInfo) (context.Context, func(Outcome, error)) {
	o.mu.Lock()
	o.started = append(o.started, info)
	o.mu.Unlock()
	return ctx, func(out Outcome, _ error) {
		o.mu.Lock()
		o.outcomes[info.Run] = out
		o.mu.Unlock()
	}
}

func (o *recordingObserver) outcome(run uint64) Outcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.outcomes[run]
}

func (o *recordingObserver) runs() []RunInfo {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]RunInfo(nil), o.started...)
}
