package resource

// Renderer maps each status to an output. Nil branches yield the zero R.
type Renderer[V, R any] struct {
	Idle     func() R
	Loading  func(previous V, reloading bool) R
	Resolved func(value V) R
	Error    func(err error) R

	// Local falls back to Resolved when nil.
	Local func(value V) R
}

// Render reads the resource status (tracked) and calls the matching branch.
func Render[P, V, R any](r *Resource[P, V], rr Renderer[V, R]) R {
	var zero R

	switch r.Status() {
	case Loading, Reloading:
		if rr.Loading != nil {
			return rr.Loading(r.Value(), r.PeekStatus() == Reloading)
		}
	case Resolved:
		if rr.Resolved != nil {
			return rr.Resolved(r.Value())
		}
	case Error:
		if rr.Error != nil {
			return rr.Error(r.Err())
		}
	case Local:
		if rr.Local != nil {
			return rr.Local(r.Value())
		}
		if rr.Resolved != nil {
			return rr.Resolved(r.Value())
		}
	default:
		if rr.Idle != nil {
			return rr.Idle()
		}
	}
	return zero
}
