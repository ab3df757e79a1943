package nullability_test

import (
	"testing"

	"nullgen/internal/nullability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func refType(name string, args ...nullability.TypeNode) nullability.TypeNode {
	return nullability.TypeNode{Name: name, Args: args}
}

func valType(name string, args ...nullability.TypeNode) nullability.TypeNode {
	return nullability.TypeNode{Name: name, ValueType: true, Args: args}
}

func arrayOf(elem nullability.TypeNode) nullability.TypeNode {
	return nullability.TypeNode{Name: elem.Name + "[]", Array: true, Elem: &elem}
}

func nullableOf(elem nullability.TypeNode) nullability.TypeNode {
	return nullability.TypeNode{
		Name:            "System.Nullable`1",
		ValueType:       true,
		NullableWrapper: true,
		Args:            []nullability.TypeNode{elem},
	}
}

func TestDecode(t *testing.T) {
	str := refType("System.String")
	int32Type := valType("System.Int32")

	cases := []struct {
		desc     string
		shape    nullability.TypeNode
		flags    []nullability.Flag
		context  nullability.Flag
		expected []nullability.Annotated
	}{
		{
			desc:    "reference type falls back to context when no flags are recorded",
			shape:   str,
			flags:   nil,
			context: nullability.Nullable,
			expected: []nullability.Annotated{
				{Type: str, Flag: nullability.Nullable},
			},
		},
		{
			desc:    "generic reference type annotates itself and its argument in declaration order",
			shape:   refType("System.Collections.Generic.List`1", str),
			flags:   []nullability.Flag{nullability.NotNull, nullability.Nullable},
			context: nullability.Unknown,
			expected: []nullability.Annotated{
				{Type: refType("System.Collections.Generic.List`1", str), Flag: nullability.NotNull},
				{Type: str, Flag: nullability.Nullable},
			},
		},
		{
			desc:    "array annotates itself and then its element",
			shape:   arrayOf(str),
			flags:   []nullability.Flag{nullability.Nullable, nullability.NotNull},
			context: nullability.Unknown,
			expected: []nullability.Annotated{
				{Type: arrayOf(str), Flag: nullability.Nullable},
				{Type: str, Flag: nullability.NotNull},
			},
		},
		{
			desc:    "nullable wrapper is transparent and marks the wrapped value type",
			shape:   nullableOf(int32Type),
			flags:   nil,
			context: nullability.NotNull,
			expected: []nullability.Annotated{
				{Type: int32Type, Flag: nullability.Nullable},
			},
		},
		{
			desc:    "plain value type consumes nothing and is not nullable",
			shape:   int32Type,
			flags:   []nullability.Flag{},
			context: nullability.Nullable,
			expected: []nullability.Annotated{
				{Type: int32Type, Flag: nullability.NotNull},
			},
		},
		{
			desc:    "generic value type ignores its flag slot",
			shape:   valType("Pair`1", int32Type),
			flags:   []nullability.Flag{nullability.Nullable},
			context: nullability.Unknown,
			expected: []nullability.Annotated{
				{Type: valType("Pair`1", int32Type), Flag: nullability.NotNull},
				{Type: int32Type, Flag: nullability.NotNull},
			},
		},
		{
			desc:    "wrapped generic value type is nullable, its arguments are not",
			shape:   nullableOf(valType("Pair`1", int32Type)),
			flags:   []nullability.Flag{nullability.Unknown},
			context: nullability.Unknown,
			expected: []nullability.Annotated{
				{Type: valType("Pair`1", int32Type), Flag: nullability.Nullable},
				{Type: int32Type, Flag: nullability.NotNull},
			},
		},
		{
			desc: "nested generics and arrays keep pre-order and one global cursor",
			shape: refType("System.Collections.Generic.Dictionary`2",
				str,
				refType("System.Collections.Generic.List`1", arrayOf(int32Type))),
			flags: []nullability.Flag{
				nullability.Nullable, nullability.NotNull, nullability.Nullable, nullability.NotNull,
			},
			context: nullability.Unknown,
			expected: []nullability.Annotated{
				{
					Type: refType("System.Collections.Generic.Dictionary`2",
						str,
						refType("System.Collections.Generic.List`1", arrayOf(int32Type))),
					Flag: nullability.Nullable,
				},
				{Type: str, Flag: nullability.NotNull},
				{Type: refType("System.Collections.Generic.List`1", arrayOf(int32Type)), Flag: nullability.Nullable},
				{Type: arrayOf(int32Type), Flag: nullability.NotNull},
				{Type: int32Type, Flag: nullability.NotNull},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			result, err := nullability.Decode("param", tc.shape, tc.flags, tc.context)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestDecodeLengthMismatch(t *testing.T) {
	str := refType("System.String")

	cases := []struct {
		desc     string
		shape    nullability.TypeNode
		flags    []nullability.Flag
		length   int
		consumed int
	}{
		{
			desc:     "too few flags for the shape",
			shape:    refType("System.Collections.Generic.List`1", str),
			flags:    []nullability.Flag{nullability.NotNull},
			length:   1,
			consumed: 2,
		},
		{
			desc:     "too many flags for the shape",
			shape:    str,
			flags:    []nullability.Flag{nullability.NotNull, nullability.NotNull},
			length:   2,
			consumed: 1,
		},
		{
			desc:     "present but empty flags still fail for a consuming shape",
			shape:    str,
			flags:    []nullability.Flag{},
			length:   0,
			consumed: 1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			result, err := nullability.Decode("Frobnicate.arg0", tc.shape, tc.flags, nullability.Unknown)
			require.Error(t, err)
			assert.Nil(t, result)

			var mismatch *nullability.LengthMismatchError
			require.ErrorAs(t, err, &mismatch)
			assert.Equal(t, "Frobnicate.arg0", mismatch.Member)
			assert.Equal(t, tc.length, mismatch.Length)
			assert.Equal(t, tc.consumed, mismatch.Consumed)
			assert.Contains(t, err.Error(), "Frobnicate.arg0")
		})
	}
}

func TestDecodeIsIdempotent(t *testing.T) {
	shape := refType("System.Collections.Generic.List`1",
		nullableOf(valType("System.Int32")))
	flags := []nullability.Flag{nullability.Nullable}

	first, err := nullability.Decode("p", shape, flags, nullability.Unknown)
	require.NoError(t, err)
	second, err := nullability.Decode("p", shape, flags, nullability.Unknown)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

type mapFlagSource struct {
	flags    map[string][]nullability.Flag
	contexts map[string]nullability.Flag
}

func (s mapFlagSource) Flags(member string) ([]nullability.Flag, bool) {
	flags, found := s.flags[member]
	return flags, found
}

func (s mapFlagSource) Context(member string) nullability.Flag {
	return s.contexts[member]
}

func TestAnnotator(t *testing.T) {
	str := refType("System.String")
	source := mapFlagSource{
		flags: map[string][]nullability.Flag{
			"annotated": {nullability.Nullable},
		},
		contexts: map[string]nullability.Flag{
			"annotated": nullability.NotNull,
			"bare":      nullability.NotNull,
		},
	}
	annotator := nullability.NewAnnotator(source)

	result, err := annotator.Annotate("annotated", str)
	require.NoError(t, err)
	assert.Equal(t, []nullability.Annotated{{Type: str, Flag: nullability.Nullable}}, result)

	result, err = annotator.Annotate("bare", str)
	require.NoError(t, err)
	assert.Equal(t, []nullability.Annotated{{Type: str, Flag: nullability.NotNull}}, result)
}
