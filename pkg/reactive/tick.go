package reactive

// Tick is a numeric signal used to force re-computation without changing any
// other dependency. Reading it with Get subscribes the current listener.
type Tick struct {
	sig *Signal[uint64]
}

// NewTick creates a Tick starting at zero.
func NewTick() *Tick {
	return &Tick{sig: NewSignal[uint64](0)}
}

// Get returns the current tick and subscribes the current listener.
func (t *Tick) Get() uint64 {
	return t.sig.Get()
}

// Peek returns the current tick without subscribing.
func (t *Tick) Peek() uint64 {
	return t.sig.Peek()
}

// Bump increments the tick and notifies subscribers.
func (t *Tick) Bump() {
	t.sig.Update(func(n uint64) uint64 { return n + 1 })
}
