package resource

import (
	"context"

	"github.com/djarekg/tampa-taffy/pkg/reactive"
)

// Await blocks until the resource settles on Resolved, Local or Error, or
// ctx is done. It returns the value and, for Error, the run's error.
func (r *Resource[P, V]) Await(ctx context.Context) (V, error) {
	settled := make(chan struct{}, 1)

	var e *reactive.Effect
	reactive.WithOwner(nil, func() {
		e = reactive.CreateEffect(func() reactive.Cleanup {
			switch r.Status() {
			case Resolved, Local, Error:
				select {
				case settled <- struct{}{}:
				default:
				}
			}
			return nil
		}, reactive.Immediate())
	})
	defer e.Dispose()

	select {
	case <-settled:
		return r.PeekValue(), r.PeekErr()
	case <-ctx.Done():
		return r.PeekValue(), ctx.Err()
	}
}
