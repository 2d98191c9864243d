package reactive

import (
	"sync"
	"testing"
)

// testListener records MarkDirty calls.
type testListener struct {
	id    uint64
	mu    sync.Mutex
	dirty int
}

func newTestListener() *testListener {
	return &testListener{id: nextID()}
}

func (l *testListener) MarkDirty() {
	l.mu.Lock()
	l.dirty++
	l.mu.Unlock()
}

func (l *testListener) ID() uint64 { return l.id }

func (l *testListener) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dirty
}

func TestSignalGetSet(t *testing.T) {
	s := NewSignal(1)
	if s.Get() != 1 {
		t.Fatalf("Get() = %d, want 1", s.Get())
	}

	s.Set(2)
	if s.Peek() != 2 {
		t.Errorf("Peek() = %d, want 2", s.Peek())
	}

	s.Update(func(n int) int { return n * 10 })
	if s.Peek() != 20 {
		t.Errorf("after Update, Peek() = %d, want 20", s.Peek())
	}
}

func TestSignalNotifiesOnlyOnChange(t *testing.T) {
	s := NewSignal("a")
	l := newTestListener()

	WithListener(l, func() { _ = s.Get() })

	s.Set("a")
	if l.count() != 0 {
		t.Errorf("equal write notified %d times", l.count())
	}

	s.Set("b")
	if l.count() != 1 {
		t.Errorf("changed write notified %d times, want 1", l.count())
	}
}

func TestSignalPeekDoesNotSubscribe(t *testing.T) {
	s := NewSignal(0)
	l := newTestListener()

	WithListener(l, func() { _ = s.Peek() })
	s.Set(1)

	if l.count() != 0 {
		t.Errorf("Peek subscribed listener, got %d notifications", l.count())
	}
	if n := s.base.subscriberCount(); n != 0 {
		t.Errorf("subscriberCount = %d, want 0", n)
	}
}

func TestSignalSubscribeDeduplicates(t *testing.T) {
	s := NewSignal(0)
	l := newTestListener()

	WithListener(l, func() {
		_ = s.Get()
		_ = s.Get()
	})

	if n := s.base.subscriberCount(); n != 1 {
		t.Errorf("subscriberCount = %d, want 1", n)
	}
}

func TestSignalWithEquals(t *testing.T) {
	type user struct {
		ID   int
		Name string
	}
	s := NewSignal(user{ID: 1, Name: "a"}).WithEquals(func(a, b user) bool {
		return a.ID == b.ID
	})
	l := newTestListener()
	WithListener(l, func() { _ = s.Get() })

	s.Set(user{ID: 1, Name: "renamed"})
	if l.count() != 0 {
		t.Error("custom equality should suppress same-ID write")
	}
	if s.Peek().Name != "a" {
		t.Errorf("suppressed write replaced value: %+v", s.Peek())
	}

	s.Set(user{ID: 2})
	if l.count() != 1 {
		t.Errorf("notifications = %d, want 1", l.count())
	}
}

func TestDefaultEqualsFallsBackToDeepEqual(t *testing.T) {
	if !DefaultEquals([]int{1, 2}, []int{1, 2}) {
		t.Error("equal slices should compare equal")
	}
	if DefaultEquals(map[string]int{"a": 1}, map[string]int{"a": 2}) {
		t.Error("different maps should not compare equal")
	}
	if !DefaultEquals(3.5, 3.5) {
		t.Error("equal floats should compare equal")
	}
}

func TestSignalConcurrentWrites(t *testing.T) {
	s := NewSignal(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Update(func(n int) int { return n + 1 })
		}()
	}
	wg.Wait()

	if s.Peek() != 50 {
		t.Errorf("Peek() = %d, want 50", s.Peek())
	}
}
