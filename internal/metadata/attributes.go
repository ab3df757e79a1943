package metadata

import (
	"encoding/binary"
	"fmt"
	"nullgen/internal"
	"nullgen/internal/nullability"

	"github.com/microsoft/go-winmd"
)

const nullableAttributeName = "System.Runtime.CompilerServices.NullableAttribute"
const nullableContextAttributeName = "System.Runtime.CompilerServices.NullableContextAttribute"

// The sentinel length of a null array in a custom attribute fixed argument
const nullArrayLength = 0xFFFFFFFF

// The HasCustomAttribute coded-index tags of the parent tables we attach
// nullable annotations to (ECMA-335 II.24.2.6)
const (
	hasCustomAttributeMethodDef = 0
	hasCustomAttributeTypeDef   = 3
	hasCustomAttributeParam     = 4
)

// The CustomAttributeType coded-index tags of an attribute constructor
// (ECMA-335 II.24.2.6)
const (
	customAttributeTypeMethodDef = 2
	customAttributeTypeMemberRef = 3
)

// attributeSource holds the nullable annotations of one method, keyed by
// member name, and the context default resolved for that method. It feeds
// the decoder through the nullability.FlagSource interface.
type attributeSource struct {
	flags   map[string][]nullability.Flag
	context nullability.Flag
}

func (source *attributeSource) Flags(member string) ([]nullability.Flag, bool) {
	flags, found := source.flags[member]
	return flags, found
}

func (source *attributeSource) Context(member string) nullability.Flag {
	return source.context
}

func (reader *WinMdReader) nullableSource(methodName string, methodIndex winmd.Index, returnRow *paramRow, paramRows []paramRow) *attributeSource {
	source := &attributeSource{flags: make(map[string][]nullability.Flag)}

	rows := paramRows
	if returnRow != nil {
		rows = append([]paramRow{*returnRow}, paramRows...)
	}

	for _, row := range rows {
		blob, found := reader.findAttributeBlob(row.index, hasCustomAttributeParam, nullableAttributeName)
		if !found {
			continue
		}
		flags, err := parseNullableBlob(blob)
		internal.PanicOnError(err)
		if flags != nil {
			source.flags[memberName(methodName, row.name)] = flags
		}
	}

	source.context = reader.contextDefault(methodIndex)
	return source
}

// contextDefault walks the declaring types from the outermost one inward and
// finally the method itself, so the most specific recorded default wins.
func (reader *WinMdReader) contextDefault(methodIndex winmd.Index) nullability.Flag {
	candidates := make([]*nullability.Flag, 0)
	for _, typeIndex := range reader.declaringChain(methodIndex) {
		candidates = append(candidates, reader.contextFlag(typeIndex, hasCustomAttributeTypeDef))
	}
	candidates = append(candidates, reader.contextFlag(methodIndex, hasCustomAttributeMethodDef))

	return resolveContext(candidates)
}

// resolveContext picks the most specific recorded default. Candidates are
// ordered outermost first; absent ones are nil and every recorded one
// overwrites the previous.
func resolveContext(candidates []*nullability.Flag) nullability.Flag {
	resolved := nullability.Unknown
	for _, candidate := range candidates {
		if candidate != nil {
			resolved = *candidate
		}
	}

	return resolved
}

// declaringChain returns the row indexes of the types declaring given
// method, outermost enclosing type first.
func (reader *WinMdReader) declaringChain(methodIndex winmd.Index) []winmd.Index {
	typeDef, typeIndex := reader.declaringTypeDef(methodIndex)
	if typeDef == nil {
		return nil
	}

	chain := []winmd.Index{typeIndex}
	for {
		nested, _ := findElementInTable(
			reader.metadata.Tables.NestedClass,
			func(candidate *winmd.NestedClass) bool { return candidate.NestedClass == chain[0] })
		if nested == nil {
			break
		}
		chain = append([]winmd.Index{nested.EnclosingClass}, chain...)
	}

	return chain
}

func (reader *WinMdReader) contextFlag(parent winmd.Index, parentTag uint8) *nullability.Flag {
	blob, found := reader.findAttributeBlob(parent, parentTag, nullableContextAttributeName)
	if !found {
		return nil
	}

	flag, err := parseContextBlob(blob)
	internal.PanicOnError(err)
	return &flag
}

// findAttributeBlob scans the custom attribute table for an attribute of
// given type attached to given row. The row value of the attribute is the
// already-decoded blob, so it is returned as is.
func (reader *WinMdReader) findAttributeBlob(parent winmd.Index, parentTag uint8, attributeName string) ([]byte, bool) {
	table := reader.metadata.Tables.CustomAttribute
	for i := uint32(0); i < table.Len; i++ {
		attribute, err := table.Record(winmd.Index(i))
		internal.PanicOnError(err)

		if !attributeRowMatches(attribute.Parent, parent, parentTag) {
			continue
		}
		if reader.attributeTypeName(attribute.Type) != attributeName {
			continue
		}

		return attribute.Value, true
	}

	return nil, false
}

// attributeRowMatches reports whether a custom attribute row is attached to
// given parent row. The tag has to match as well, the same row index means
// different rows in different parent tables.
func attributeRowMatches(attributeParent winmd.CodedIndex, parent winmd.Index, parentTag uint8) bool {
	return attributeParent.Index == parent && uint8(attributeParent.Tag) == parentTag
}

// attributeTypeName resolves the full name of the attribute type behind a
// constructor reference. Compiler-embedded attributes like NullableAttribute
// are defined in the annotated assembly itself, so their constructors are
// method definitions rather than member references.
func (reader *WinMdReader) attributeTypeName(constructor winmd.CodedIndex) string {
	switch uint8(constructor.Tag) {
	case customAttributeTypeMethodDef:
		typeDef, _ := reader.declaringTypeDef(constructor.Index)
		if typeDef == nil {
			return ""
		}
		return fullName(typeDef.Namespace.String(), typeDef.Name.String())

	case customAttributeTypeMemberRef:
		memberRef, err := reader.metadata.Tables.MemberRef.Record(constructor.Index)
		if err != nil {
			return ""
		}
		typeRef, err := reader.metadata.Tables.TypeRef.Record(memberRef.Class.Index)
		if err != nil {
			return ""
		}
		return fullName(typeRef.Namespace.String(), typeRef.Name.String())
	}

	return ""
}

// declaringTypeDef finds the type definition whose method list contains
// given method row.
func (reader *WinMdReader) declaringTypeDef(methodIndex winmd.Index) (*winmd.TypeDef, winmd.Index) {
	return findElementInTable(
		reader.metadata.Tables.TypeDef,
		func(candidate *winmd.TypeDef) bool {
			return candidate.MethodList.Start <= methodIndex && methodIndex < candidate.MethodList.End
		})
}

// parseNullableBlob reads the fixed argument of a NullableAttribute row: a
// prolog, then either a single flag byte or a counted byte array, then the
// named-argument count (always zero for this attribute).
func parseNullableBlob(blob []byte) ([]nullability.Flag, error) {
	rest, err := readProlog(blob)
	if err != nil {
		return nil, err
	}

	// single byte constructor: one flag plus the two named-argument count bytes
	if len(rest) == 3 {
		flag, err := checkFlag(rest[0])
		if err != nil {
			return nil, err
		}
		return []nullability.Flag{flag}, nil
	}

	if len(rest) < 6 {
		return nil, fmt.Errorf("nullable attribute blob is truncated at %d bytes", len(blob))
	}

	count := binary.LittleEndian.Uint32(rest)
	if count == nullArrayLength {
		return nil, nil
	}

	rest = rest[4:]
	if len(rest) != int(count)+2 {
		return nil, fmt.Errorf("nullable attribute blob declares %d flags but carries %d bytes", count, len(rest)-2)
	}

	flags := make([]nullability.Flag, count)
	for i := uint32(0); i < count; i++ {
		flag, err := checkFlag(rest[i])
		if err != nil {
			return nil, err
		}
		flags[i] = flag
	}

	return flags, nil
}

// parseContextBlob reads the fixed argument of a NullableContextAttribute
// row, which is always a single flag byte.
func parseContextBlob(blob []byte) (nullability.Flag, error) {
	rest, err := readProlog(blob)
	if err != nil {
		return nullability.Unknown, err
	}

	if len(rest) != 3 {
		return nullability.Unknown, fmt.Errorf("nullable context blob has unexpected length %d", len(blob))
	}

	return checkFlag(rest[0])
}

func readProlog(blob []byte) ([]byte, error) {
	if len(blob) < 2 || blob[0] != 0x01 || blob[1] != 0x00 {
		return nil, fmt.Errorf("custom attribute blob has unexpected prolog")
	}

	return blob[2:], nil
}

func checkFlag(value byte) (nullability.Flag, error) {
	if value > byte(nullability.Nullable) {
		return nullability.Unknown, fmt.Errorf("value %d is outside the nullable flag range", value)
	}

	return nullability.Flag(value), nil
}
