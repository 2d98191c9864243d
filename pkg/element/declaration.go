package element

import (
	"reflect"
	"strings"
)

// Kind is the declared value type of a binding. It selects the attribute
// conversion.
type Kind uint8

const (
	// KindAuto infers the kind from the field's Go type.
	KindAuto Kind = iota
	String
	Number
	Boolean
	Object
	Array
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case String:
		return "String"
	case Number:
		return "Number"
	case Boolean:
		return "Boolean"
	case Object:
		return "Object"
	case Array:
		return "Array"
	default:
		return "Auto"
	}
}

// Declaration describes how a binding is registered with its host.
type Declaration struct {
	Type Kind

	// Reflect writes the value to the attribute whenever it changes.
	Reflect bool

	// Attribute is the attribute name. Empty with NoAttribute false means
	// the name is derived from the property name.
	Attribute string

	// NoAttribute suppresses the attribute entirely.
	NoAttribute bool

	// State marks an internal binding. State bindings never have an attribute.
	State bool
}

// HasAttribute reports whether the binding is tied to an attribute.
func (d Declaration) HasAttribute() bool {
	return !d.State && !d.NoAttribute && d.Attribute != ""
}

// Option configures a Declaration.
type Option func(*Declaration)

// Type sets the declared kind.
func Type(k Kind) Option {
	return func(d *Declaration) {
		d.Type = k
	}
}

// Reflect mirrors the value to the host attribute on every change.
func Reflect() Option {
	return func(d *Declaration) {
		d.Reflect = true
	}
}

// Attribute overrides the attribute name.
func Attribute(name string) Option {
	return func(d *Declaration) {
		d.Attribute = name
		d.NoAttribute = false
	}
}

// NoAttribute keeps the property out of attribute observation and reflection.
func NoAttribute() Option {
	return func(d *Declaration) {
		d.NoAttribute = true
		d.Attribute = ""
	}
}

// kindOf infers a Kind from a Go type.
func kindOf(t reflect.Type) Kind {
	switch t.Kind() {
	case reflect.Bool:
		return Boolean
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return Number
	case reflect.String:
		return String
	case reflect.Slice, reflect.Array:
		return Array
	default:
		return Object
	}
}

// propertyName lower-cases the first rune of a struct field name.
func propertyName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}
