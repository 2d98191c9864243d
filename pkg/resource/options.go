package resource

import (
	"context"
	"log/slog"

	"github.com/djarekg/tampa-taffy/pkg/element"
)

// Request is passed to a Loader.
type Request[P, V any] struct {
	Params P

	// Previous is the last resolved or locally set value, or DefaultValue
	// before the first one. HasPrevious is false until a run resolves or the
	// value is set locally.
	Previous    V
	HasPrevious bool
}

// Loader produces a value for a run. ctx is cancelled when the run is
// superseded, the host disconnects, or the resource is destroyed.
type Loader[P, V any] func(ctx context.Context, req Request[P, V]) (V, error)

// Options configures a Resource.
type Options[P, V any] struct {
	// Name identifies the resource in logs, metrics and host updates.
	Name string

	// Params is read inside a reactive effect. Signals it reads become
	// dependencies. A nil result (nil pointer, map, slice, func, chan or
	// interface) means there is nothing to load. Without Params the loader
	// runs once with the zero P.
	Params func() P

	// Loader is required.
	Loader Loader[P, V]

	// DefaultValue is the value before the first resolution.
	DefaultValue V

	// Equal suppresses value updates when a run resolves to an equivalent
	// value. Defaults to the signal equality.
	Equal func(a, b V) bool

	// Host ties the resource to a host lifecycle.
	Host element.Host

	// Context is the parent of every loader context.
	Context context.Context

	// Observer instruments runs.
	Observer Observer

	Logger *slog.Logger
}

// RunInfo describes a run to an Observer.
type RunInfo struct {
	Resource string
	Run      uint64
	Reload   bool
}

// Outcome is how a run ended.
type Outcome uint8

const (
	OutcomeResolved Outcome = iota + 1
	OutcomeError
	OutcomeSuperseded
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeResolved:
		return "resolved"
	case OutcomeError:
		return "error"
	case OutcomeSuperseded:
		return "superseded"
	default:
		return "unknown"
	}
}

// Observer is notified about runs. StartRun may return a derived context for
// the loader. The returned finish func is called once when the run's result
// is applied or discarded.
type Observer interface {
	StartRun(ctx context.Context, info RunInfo) (context.Context, func(Outcome, error))
}
