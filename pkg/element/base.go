package element

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/djarekg/tampa-taffy/internal/errors"
	"github.com/djarekg/tampa-taffy/pkg/reactive"
)

// Base is an embeddable host with string attributes, controllers and batched
// update requests. The zero value is ready to use.
//
// Updates are not rendered synchronously: RequestUpdate records the changed
// property and signals Updates(). The owner of the host calls Flush from its
// own loop to run queued effects and collect the changes.
type Base struct {
	mu sync.Mutex

	attrs     map[string]string
	observers map[string][]*attributeObserver

	props     map[string]Declaration
	propOrder []string

	controllers []Controller
	connected   bool

	changed  map[string]any
	updates  chan struct{}
	onUpdate func(changed map[string]any)

	owner  *reactive.Owner
	logger *slog.Logger
}

type attributeObserver struct {
	fn func(value string, present bool)
}

var (
	_ AttributeHost      = (*Base)(nil)
	_ ConnectionReporter = (*Base)(nil)
	_ lifecycle          = (*Base)(nil)
)

// SetLogger sets the logger used for binding diagnostics.
func (b *Base) SetLogger(logger *slog.Logger) {
	b.mu.Lock()
	b.logger = logger
	b.mu.Unlock()
}

// Logger returns the host logger, or nil.
func (b *Base) Logger() *slog.Logger {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.logger
}

// Owner returns the reactive owner for effects that belong to this host.
// Effects queued on it wake Updates().
func (b *Base) Owner() *reactive.Owner {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.owner == nil {
		b.owner = reactive.NewOwner(nil)
		b.owner.OnSchedule(b.wake)
	}
	return b.owner
}

// AddController registers c and connects it if the host is connected.
func (b *Base) AddController(c Controller) {
	b.mu.Lock()
	b.controllers = append(b.controllers, c)
	connected := b.connected
	b.mu.Unlock()

	if connected {
		c.HostConnected()
	}
}

// RemoveController unregisters c.
func (b *Base) RemoveController(c Controller) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, existing := range b.controllers {
		if existing == c {
			b.controllers = append(b.controllers[:i], b.controllers[i+1:]...)
			return
		}
	}
}

// RequestUpdate records a change. For each name the oldest value since the
// last Flush is kept.
func (b *Base) RequestUpdate(name string, old any) {
	b.mu.Lock()
	if b.changed == nil {
		b.changed = make(map[string]any)
	}
	if _, ok := b.changed[name]; !ok {
		b.changed[name] = old
	}
	b.mu.Unlock()

	b.wake()
}

// Updates returns a channel that receives a value whenever an update or an
// owned effect is pending. It has a buffer of one, so bursts coalesce.
func (b *Base) Updates() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.updatesLocked()
}

// OnUpdate sets the callback Flush invokes with the changed properties.
func (b *Base) OnUpdate(fn func(changed map[string]any)) {
	b.mu.Lock()
	b.onUpdate = fn
	b.mu.Unlock()
}

// Flush runs queued effects and hands the recorded changes to the update
// callback. It returns the changes, or nil when nothing changed.
func (b *Base) Flush() map[string]any {
	b.mu.Lock()
	owner := b.owner
	b.mu.Unlock()

	if owner != nil {
		owner.RunPendingEffects()
	}

	b.mu.Lock()
	changed := b.changed
	b.changed = nil
	fn := b.onUpdate
	b.mu.Unlock()

	if len(changed) == 0 {
		return nil
	}
	if fn != nil {
		fn(changed)
	}
	return changed
}

// CreateProperty registers a binding declaration.
func (b *Base) CreateProperty(name string, decl Declaration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, dup := b.props[name]; dup {
		return errors.New(errors.CodeDuplicateProperty).
			WithDetailf("property %q is already registered", name)
	}
	if b.props == nil {
		b.props = make(map[string]Declaration)
	}
	b.props[name] = decl
	b.propOrder = append(b.propOrder, name)
	return nil
}

// Properties returns registered property names in registration order.
func (b *Base) Properties() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.propOrder...)
}

// PropertyDeclaration returns the declaration registered under name.
func (b *Base) PropertyDeclaration(name string) (Declaration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.props[name]
	return d, ok
}

// Attribute returns the named attribute.
func (b *Base) Attribute(name string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.attrs[name]
	return v, ok
}

// HasAttribute reports whether the named attribute is present.
func (b *Base) HasAttribute(name string) bool {
	_, ok := b.Attribute(name)
	return ok
}

// Attributes returns a copy of all attributes.
func (b *Base) Attributes() map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]string, len(b.attrs))
	for k, v := range b.attrs {
		out[k] = v
	}
	return out
}

// AttributeNames returns the present attribute names, sorted.
func (b *Base) AttributeNames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	names := make([]string, 0, len(b.attrs))
	for k := range b.attrs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// SetAttribute sets the named attribute and notifies observers on change.
func (b *Base) SetAttribute(name, value string) {
	b.mu.Lock()
	old, had := b.attrs[name]
	if had && old == value {
		b.mu.Unlock()
		return
	}
	if b.attrs == nil {
		b.attrs = make(map[string]string)
	}
	b.attrs[name] = value
	observers := append([]*attributeObserver(nil), b.observers[name]...)
	b.mu.Unlock()

	for _, o := range observers {
		o.fn(value, true)
	}
}

// RemoveAttribute removes the named attribute and notifies observers if it
// was present.
func (b *Base) RemoveAttribute(name string) {
	b.mu.Lock()
	if _, had := b.attrs[name]; !had {
		b.mu.Unlock()
		return
	}
	delete(b.attrs, name)
	observers := append([]*attributeObserver(nil), b.observers[name]...)
	b.mu.Unlock()

	for _, o := range observers {
		o.fn("", false)
	}
}

// ObserveAttribute registers fn for changes of the named attribute.
func (b *Base) ObserveAttribute(name string, fn func(value string, present bool)) (stop func()) {
	o := &attributeObserver{fn: fn}

	b.mu.Lock()
	if b.observers == nil {
		b.observers = make(map[string][]*attributeObserver)
	}
	b.observers[name] = append(b.observers[name], o)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		list := b.observers[name]
		for i, existing := range list {
			if existing == o {
				b.observers[name] = append(list[:i], list[i+1:]...)
				return
			}
		}
	}
}

// ConnectedCallback marks the host connected and notifies controllers.
func (b *Base) ConnectedCallback() {
	b.mu.Lock()
	if b.connected {
		b.mu.Unlock()
		return
	}
	b.connected = true
	controllers := append([]Controller(nil), b.controllers...)
	b.mu.Unlock()

	for _, c := range controllers {
		c.HostConnected()
	}
}

// DisconnectedCallback marks the host disconnected and notifies controllers.
func (b *Base) DisconnectedCallback() {
	b.mu.Lock()
	if !b.connected {
		b.mu.Unlock()
		return
	}
	b.connected = false
	controllers := append([]Controller(nil), b.controllers...)
	b.mu.Unlock()

	for _, c := range controllers {
		c.HostDisconnected()
	}
}

// IsConnected reports whether the host is connected.
func (b *Base) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// Dispose disconnects the host, disposes its owner and drops observers.
func (b *Base) Dispose() {
	b.DisconnectedCallback()

	b.mu.Lock()
	owner := b.owner
	b.owner = nil
	b.observers = nil
	b.controllers = nil
	b.mu.Unlock()

	if owner != nil {
		owner.Dispose()
	}
}

func (b *Base) updatesLocked() chan struct{} {
	if b.updates == nil {
		b.updates = make(chan struct{}, 1)
	}
	return b.updates
}

func (b *Base) wake() {
	b.mu.Lock()
	ch := b.updatesLocked()
	b.mu.Unlock()

	select {
	case ch <- struct{}{}:
	default:
	}
}
