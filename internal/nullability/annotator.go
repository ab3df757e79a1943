package nullability

// FlagSource supplies the recorded flag sequence and the context default for
// a member. Flags reports found=false when the member carries no nullable
// annotation at all.
type FlagSource interface {
	Flags(member string) (flags []Flag, found bool)
	Context(member string) Flag
}

// Annotator resolves per-node nullability for a member's type shape. The
// manual decoder below is the only implementation here; a platform that can
// answer the question directly could provide another one behind the same
// interface.
type Annotator interface {
	Annotate(member string, root TypeNode) ([]Annotated, error)
}

type flagDecoder struct {
	source FlagSource
}

// NewAnnotator returns the flat-buffer decoding Annotator backed by the
// given flag source.
func NewAnnotator(source FlagSource) Annotator {
	return &flagDecoder{source: source}
}

func (a *flagDecoder) Annotate(member string, root TypeNode) ([]Annotated, error) {
	flags, found := a.source.Flags(member)
	if !found {
		flags = nil
	}

	return Decode(member, root, flags, a.source.Context(member))
}
