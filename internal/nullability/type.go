// The package implementing the nullable-annotation decoder for metadata type shapes.
package nullability

// Flag is one resolved (or raw encoded) nullability value.
// The byte values match the compiler encoding and must not be reordered.
type Flag byte

const (
	Unknown  Flag = 0
	NotNull  Flag = 1
	Nullable Flag = 2
)

func (f Flag) String() string {
	switch f {
	case NotNull:
		return "notnull"
	case Nullable:
		return "nullable"
	default:
		return "unknown"
	}
}

// TypeNode is one node of a type shape as read from metadata.
// A generic type owns its arguments in declaration order, an array owns
// exactly one element. Nodes are built by a shape provider and never
// modified by the decoder.
type TypeNode struct {
	// Name is the metadata name of the type, e.g. "System.String" or "List`1".
	// The decoder treats it as opaque identity.
	Name string

	ValueType bool
	Array     bool

	// NullableWrapper marks System.Nullable`1. Implies ValueType and a
	// single entry in Args.
	NullableWrapper bool

	Args []TypeNode
	Elem *TypeNode
}

// Generic reports whether the node has generic arguments.
func (t TypeNode) Generic() bool {
	return len(t.Args) > 0
}

// Annotated pairs a visited type node with its resolved nullability.
type Annotated struct {
	Type TypeNode
	Flag Flag
}
