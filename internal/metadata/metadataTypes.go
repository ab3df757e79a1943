package metadata

import "nullgen/internal/nullability"

type Type struct {
	Name    string
	Methods []Method
}

type Method struct {
	Name   string
	Return *Parameter
	Params []Parameter
}

// Parameter describes one decoded slot of a method: a named parameter or the
// return value. Nodes holds the resolved nullability of every recorded node
// of the parameter's type shape, in pre-order.
type Parameter struct {
	Name  string
	Shape nullability.TypeNode
	Nodes []nullability.Annotated
}
