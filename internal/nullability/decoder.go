package nullability

import "fmt"

// LengthMismatchError is returned when the recorded flag sequence was not
// produced for the shape that was walked. The walk still runs to completion
// so Consumed is the true required length.
type LengthMismatchError struct {
	Member   string
	Length   int
	Consumed int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf(
		"nullability flags for '%s' have length %d, the type shape consumes %d",
		e.Member, e.Length, e.Consumed)
}

// Decode resolves the nullability of every recorded node of the given type
// shape against the compiler-emitted flag sequence.
//
// flags is the flat sequence read from the member's nullable annotation, in
// the compiler's pre-order encoding over the whole type reference. A nil
// slice means no annotation was recorded, in which case every reference node
// gets the context default. A non-nil sequence must be consumed exactly:
// decoding fails with *LengthMismatchError when the shape consumes a
// different number of positions than the sequence holds.
//
// The result is ordered by pre-order traversal of the shape. Nullable`1
// wrappers are transparent: they contribute no entry of their own, and their
// underlying value type is reported nullable.
func Decode(member string, root TypeNode, flags []Flag, context Flag) ([]Annotated, error) {
	d := decoder{flags: flags, context: context}
	d.walk(root, false)

	if flags != nil && d.cursor != len(flags) {
		return nil, &LengthMismatchError{Member: member, Length: len(flags), Consumed: d.cursor}
	}

	return d.out, nil
}

type decoder struct {
	flags   []Flag
	context Flag
	cursor  int
	out     []Annotated
}

// walk records node and descends into its arguments. wrapped is true when
// node is the argument of a Nullable`1 wrapper. The cursor is global to the
// whole walk: the flag sequence is one flat encoding over the entire type
// reference, not one per subtree.
func (d *decoder) walk(node TypeNode, wrapped bool) {
	if node.ValueType {
		if node.NullableWrapper {
			// The wrapper itself has no nullability, it only marks its
			// argument. No entry, no flag slot.
			d.walk(node.Args[0], true)
			return
		}

		if node.Generic() {
			// Generic value types occupy a slot in the sequence, but the
			// compiler writes a placeholder there. Only the wrapper bit
			// decides the classification.
			d.cursor++
			d.record(node, valueTypeFlag(wrapped))
			for _, arg := range node.Args {
				d.walk(arg, false)
			}
			return
		}

		d.record(node, valueTypeFlag(wrapped))
		return
	}

	d.record(node, d.read())

	if node.Array {
		d.walk(*node.Elem, false)
		return
	}

	for _, arg := range node.Args {
		d.walk(arg, false)
	}
}

// read consumes one flag slot for a reference-type node, falling back to the
// context default when no annotation was recorded or the sequence ran out.
func (d *decoder) read() Flag {
	idx := d.cursor
	d.cursor++
	if d.flags == nil || idx >= len(d.flags) {
		return d.context
	}
	return d.flags[idx]
}

func (d *decoder) record(node TypeNode, flag Flag) {
	d.out = append(d.out, Annotated{Type: node, Flag: flag})
}

func valueTypeFlag(wrapped bool) Flag {
	if wrapped {
		return Nullable
	}
	return NotNull
}
