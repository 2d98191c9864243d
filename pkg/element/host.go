package element

// Controller receives host lifecycle notifications.
type Controller interface {
	HostConnected()
	HostDisconnected()
}

// Host is the minimum a struct needs to carry bindings and controllers.
type Host interface {
	// AddController registers c for lifecycle notifications. A host that is
	// already connected calls c.HostConnected immediately.
	AddController(c Controller)

	// RequestUpdate schedules a host update for a changed property.
	RequestUpdate(name string, old any)

	// CreateProperty registers a binding. Registering a name twice fails.
	CreateProperty(name string, decl Declaration) error
}

// AttributeHost is a Host with observable string attributes.
type AttributeHost interface {
	Host

	Attribute(name string) (value string, ok bool)
	SetAttribute(name, value string)
	RemoveAttribute(name string)

	// ObserveAttribute calls fn after each change of the named attribute.
	// present is false when the attribute was removed.
	ObserveAttribute(name string, fn func(value string, present bool)) (stop func())
}

// ConnectionReporter is implemented by hosts that know whether they are
// currently connected.
type ConnectionReporter interface {
	IsConnected() bool
}

// lifecycle is implemented by hosts that embed Base.
type lifecycle interface {
	ConnectedCallback()
	DisconnectedCallback()
}

var hostMethods = []string{"AddController", "RequestUpdate", "CreateProperty"}

var attributeHostMethods = []string{"Attribute", "SetAttribute", "RemoveAttribute", "ObserveAttribute"}
