package element

import (
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/djarekg/tampa-taffy/internal/errors"
	"github.com/djarekg/tampa-taffy/pkg/reactive"
)

// Field is a reactive property or state binding. Until its host is
// initialized it is an inert marker that only records a default and any
// value assigned early.
type Field[T any] struct {
	decl Declaration
	def  T

	// mu guards early and the transition to bound.
	mu       sync.Mutex
	early    T
	assigned bool

	equal    func(a, b T) bool
	onChange func(old, next T)

	b atomic.Pointer[binding[T]]
}

// binding is the live state of a bound Field.
type binding[T any] struct {
	host   Host
	attrs  AttributeHost
	name   string
	decl   Declaration
	sig    *reactive.Signal[T]
	logger *slog.Logger

	// reflecting is set while the binding writes its own attribute.
	reflecting atomic.Bool
}

// binder is the type-erased view of *Field[T] used by Init.
type binder interface {
	declaration() Declaration
	bind(h Host, attrs AttributeHost, name string, decl Declaration, logger *slog.Logger) error
}

// Property declares an externally observable binding.
func Property[T any](def T, opts ...Option) *Field[T] {
	return newField(def, false, opts)
}

// State declares an internal binding. State never creates an attribute,
// whatever the options say.
func State[T any](def T, opts ...Option) *Field[T] {
	return newField(def, true, opts)
}

func newField[T any](def T, state bool, opts []Option) *Field[T] {
	var decl Declaration
	for _, opt := range opts {
		opt(&decl)
	}
	if decl.Type == KindAuto {
		decl.Type = kindOf(reflect.TypeOf((*T)(nil)).Elem())
	}
	if state {
		decl.State = true
		decl.Reflect = false
		decl.NoAttribute = true
		decl.Attribute = ""
	}
	return &Field[T]{decl: decl, def: def}
}

// WithEquals overrides the change check used by Set.
func (f *Field[T]) WithEquals(fn func(a, b T) bool) *Field[T] {
	f.equal = fn
	return f
}

// OnChange registers fn to run after every change of the bound value.
func (f *Field[T]) OnChange(fn func(old, next T)) *Field[T] {
	f.onChange = fn
	return f
}

// Get returns the value and subscribes the current listener once bound.
func (f *Field[T]) Get() T {
	if b := f.b.Load(); b != nil {
		return b.sig.Get()
	}
	return f.initial()
}

// Peek returns the value without subscribing.
func (f *Field[T]) Peek() T {
	if b := f.b.Load(); b != nil {
		return b.sig.Peek()
	}
	return f.initial()
}

// Set updates the value. Before binding the value is kept and wins over the
// default when the host initializes.
func (f *Field[T]) Set(v T) {
	f.set(v, false)
}

// Update sets the value to fn applied to the current value.
func (f *Field[T]) Update(fn func(T) T) {
	f.set(fn(f.Peek()), false)
}

// Name returns the property name, or "" before binding.
func (f *Field[T]) Name() string {
	if b := f.b.Load(); b != nil {
		return b.name
	}
	return ""
}

// Declaration returns the binding's declaration. Attribute is resolved only
// after binding.
func (f *Field[T]) Declaration() Declaration {
	if b := f.b.Load(); b != nil {
		return b.decl
	}
	return f.decl
}

// Attribute returns the attribute name, or "" when the binding has none or
// is not bound yet.
func (f *Field[T]) Attribute() string {
	if d := f.Declaration(); d.HasAttribute() {
		return d.Attribute
	}
	return ""
}

// IsState reports whether the field was declared with State.
func (f *Field[T]) IsState() bool {
	return f.decl.State
}

// IsBound reports whether the host has been initialized.
func (f *Field[T]) IsBound() bool {
	return f.b.Load() != nil
}

// Signal returns the backing signal, or nil before binding.
func (f *Field[T]) Signal() *reactive.Signal[T] {
	if b := f.b.Load(); b != nil {
		return b.sig
	}
	return nil
}

func (f *Field[T]) initial() T {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.assigned {
		return f.early
	}
	return f.def
}

func (f *Field[T]) equals(a, b T) bool {
	if f.equal != nil {
		return f.equal(a, b)
	}
	return reactive.DefaultEquals(a, b)
}

func (f *Field[T]) set(v T, fromAttribute bool) {
	f.mu.Lock()
	b := f.b.Load()
	if b == nil {
		f.early = v
		f.assigned = true
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()

	// No lock across the signal write: inline effects may set this field again.
	old := b.sig.Peek()
	if f.equals(old, v) {
		return
	}
	b.sig.Set(v)

	b.host.RequestUpdate(b.name, old)
	if b.decl.Reflect && b.decl.HasAttribute() && !fromAttribute {
		f.reflect(b, b.sig.Peek())
	}
	if f.onChange != nil {
		f.onChange(old, v)
	}
}

func (f *Field[T]) declaration() Declaration {
	return f.decl
}

func (f *Field[T]) bind(h Host, attrs AttributeHost, name string, decl Declaration, logger *slog.Logger) error {
	f.mu.Lock()

	if cur := f.b.Load(); cur != nil {
		f.mu.Unlock()
		if cur.host == h {
			return nil
		}
		return errors.New(errors.CodeInvalidHost).
			WithDetailf("property %q is already bound to another host", name)
	}

	if err := h.CreateProperty(name, decl); err != nil {
		f.mu.Unlock()
		return err
	}

	seed := f.def
	if f.assigned {
		seed = f.early
		f.early = f.def
		f.assigned = false
	}

	b := &binding[T]{
		host:   h,
		attrs:  attrs,
		name:   name,
		decl:   decl,
		sig:    reactive.NewSignal(seed).WithEquals(f.equals),
		logger: logger,
	}
	if decl.HasAttribute() {
		attrs.ObserveAttribute(decl.Attribute, func(value string, present bool) {
			f.fromAttribute(b, value, present)
		})
	}
	f.b.Store(b)
	f.mu.Unlock()

	if !decl.HasAttribute() {
		return nil
	}
	if raw, ok := attrs.Attribute(decl.Attribute); ok {
		f.fromAttribute(b, raw, true)
	} else if decl.Reflect {
		f.reflect(b, b.sig.Peek())
	}
	return nil
}

// fromAttribute pushes an external attribute mutation into the field.
func (f *Field[T]) fromAttribute(b *binding[T], raw string, present bool) {
	if b.reflecting.Load() {
		return
	}
	v, err := decodeAttribute(b.decl.Type, raw, present, f.def)
	if err != nil {
		b.logger.Warn("attribute conversion failed",
			"property", b.name,
			"attribute", b.decl.Attribute,
			"value", raw,
			"error", err)
		return
	}
	f.set(v, true)
}

// reflect writes v to the bound attribute.
func (f *Field[T]) reflect(b *binding[T], v T) {
	raw, present, err := encodeAttribute(b.decl.Type, v)
	if err != nil {
		b.logger.Warn("attribute reflection failed",
			"property", b.name,
			"attribute", b.decl.Attribute,
			"error", err)
		return
	}

	b.reflecting.Store(true)
	defer b.reflecting.Store(false)

	if present {
		b.attrs.SetAttribute(b.decl.Attribute, raw)
	} else {
		b.attrs.RemoveAttribute(b.decl.Attribute)
	}
}
