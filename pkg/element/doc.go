// Package element binds reactive properties and internal state to host
// structs.
//
// Fields are declared with inert markers and bound when the host connects:
//
//	type Card struct {
//	    element.Base
//
//	    Title    *element.Field[string] `attr:"card-title"`
//	    Open     *element.Field[bool]
//	    expanded *element.Field[bool]
//	}
//
//	func NewCard() *Card {
//	    return &Card{
//	        Title:    element.Property("untitled", element.Reflect()),
//	        Open:     element.Property(false, element.Reflect()),
//	        expanded: element.State(false),
//	    }
//	}
//
//	card := NewCard()
//	if err := element.Connect(card); err != nil { ... }
//	card.Open.Set(true) // sets attribute open=""
//
// Property bindings participate in attribute reflection and can be driven by
// attribute mutations on the host. State bindings never create an attribute.
// A value set on a marker before the host connects wins over the declared
// default.
package element
