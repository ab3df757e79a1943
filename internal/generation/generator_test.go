package generation_test

import (
	"fmt"
	"testing"

	"nullgen/internal/generation"
	"nullgen/internal/metadata"
	"nullgen/internal/nullability"

	"github.com/stretchr/testify/assert"
)

func annotated(shape nullability.TypeNode, flag nullability.Flag) metadata.Parameter {
	return metadata.Parameter{
		Name:  "value",
		Shape: shape,
		Nodes: []nullability.Annotated{{Type: shape, Flag: flag}},
	}
}

func TestParameterType(t *testing.T) {
	str := nullability.TypeNode{Name: "System.String"}
	int32Type := nullability.TypeNode{Name: "System.Int32", ValueType: true}
	strArray := nullability.TypeNode{Name: "System.String[]", Array: true, Elem: &str}
	widget := nullability.TypeNode{Name: "Contoso.Widget"}

	cases := []struct {
		desc     string
		param    metadata.Parameter
		expected string
	}{
		{
			desc:     "not-null reference type stays a plain value",
			param:    annotated(str, nullability.NotNull),
			expected: "string",
		},
		{
			desc:     "nullable reference type becomes a pointer",
			param:    annotated(str, nullability.Nullable),
			expected: "*string",
		},
		{
			desc:     "unknown nullability stays a plain value",
			param:    annotated(str, nullability.Unknown),
			expected: "string",
		},
		{
			desc:     "nullable array stays a slice, nil covers the null case",
			param:    annotated(strArray, nullability.Nullable),
			expected: "[]string",
		},
		{
			desc:     "custom type keeps its sanitized name",
			param:    annotated(widget, nullability.NotNull),
			expected: "Widget",
		},
		{
			desc: "wrapped value type becomes a pointer",
			param: metadata.Parameter{
				Name: "value",
				Shape: nullability.TypeNode{
					Name:            "System.Nullable`1",
					ValueType:       true,
					NullableWrapper: true,
					Args:            []nullability.TypeNode{int32Type},
				},
				Nodes: []nullability.Annotated{{Type: int32Type, Flag: nullability.Nullable}},
			},
			expected: "*int32",
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.expected, fmt.Sprintf("%#v", generation.ParameterType(tc.param)))
		})
	}
}
