// Package reactive provides the signal runtime used by elements and resources.
//
// Dependencies are tracked automatically at runtime. Reading a signal while an
// effect or memo is running subscribes that effect or memo to the signal.
//
// # Core Types
//
// Signal[T] is a reactive value container:
//
//	count := reactive.NewSignal(0)
//	value := count.Get()  // Read (subscribes current listener)
//	count.Set(5)          // Write (notifies subscribers)
//	count.Update(func(n int) int { return n + 1 })
//
// Memo[T] is a cached derived computation:
//
//	doubled := reactive.NewMemo(func() int { return count.Get() * 2 })
//
// Effect runs side effects when dependencies change:
//
//	reactive.CreateEffect(func() reactive.Cleanup {
//	    fmt.Println("Count is:", count.Get())
//	    return nil
//	})
//
// Effects created inside an Owner are queued and run by Owner.RunPendingEffects,
// which is how hosts flush work once per update. Effects without an owner, or
// created with Immediate(), re-run synchronously on the goroutine that wrote
// the signal.
//
// # Thread Safety
//
// All primitives can be used from multiple goroutines. The tracking context is
// per-goroutine, so work started in a new goroutine is untracked unless it
// uses WithOwner/WithListener explicitly.
package reactive
