// The package used for reading type shapes and nullable annotations from
// ECMA-335 metadata files.
package metadata

import (
	"debug/pe"
	"fmt"
	"nullgen/internal"
	"nullgen/internal/nullability"

	"github.com/microsoft/go-winmd"
	"github.com/microsoft/go-winmd/flags"
)

type WinMdReader struct {
	metadata winmd.Metadata
}

// The map of element types with a fixed encoding. Note that String and
// Object are reference types even though they have their own element kind.
var builtInElementTypes map[flags.ElementType]nullability.TypeNode = map[flags.ElementType]nullability.TypeNode{
	flags.ElementType_BOOLEAN: {Name: "System.Boolean", ValueType: true},
	flags.ElementType_CHAR:    {Name: "System.Char", ValueType: true},
	flags.ElementType_I1:      {Name: "System.SByte", ValueType: true},
	flags.ElementType_U1:      {Name: "System.Byte", ValueType: true},
	flags.ElementType_I2:      {Name: "System.Int16", ValueType: true},
	flags.ElementType_U2:      {Name: "System.UInt16", ValueType: true},
	flags.ElementType_I4:      {Name: "System.Int32", ValueType: true},
	flags.ElementType_U4:      {Name: "System.UInt32", ValueType: true},
	flags.ElementType_I8:      {Name: "System.Int64", ValueType: true},
	flags.ElementType_U8:      {Name: "System.UInt64", ValueType: true},
	flags.ElementType_R4:      {Name: "System.Single", ValueType: true},
	flags.ElementType_R8:      {Name: "System.Double", ValueType: true},
	flags.ElementType_I:       {Name: "System.IntPtr", ValueType: true},
	flags.ElementType_U:       {Name: "System.UIntPtr", ValueType: true},
	flags.ElementType_STRING:  {Name: "System.String"},
	flags.ElementType_OBJECT:  {Name: "System.Object"},
}

const nullableWrapperName = "System.Nullable`1"

// Generates a new metadata reader based on the assembly under given path
func NewReader(assemblyPath string) WinMdReader {
	peFile, err := pe.Open(assemblyPath)
	internal.PanicOnError(err)
	defer peFile.Close()

	winmdMetadata, err := winmd.New(peFile)
	internal.PanicOnError(err)

	return WinMdReader{
		*winmdMetadata,
	}
}

// Tries to get method with given name. A found method can still fail to
// decode, e.g. when its signature uses shapes go-winmd does not read yet;
// such methods are reported through the error so the caller can skip them.
func (reader *WinMdReader) TryGetMethod(name string) (element Method, found bool, err error) {
	methodDef, methodIndex := reader.tryGetMethodDef(name)
	if methodDef == nil {
		return Method{}, false, nil
	}

	method, err := reader.getMethod(methodDef, methodIndex)
	if err != nil {
		return Method{}, true, err
	}

	return method, true, nil
}

// Tries to get type with given name, with all of its methods decoded
func (reader *WinMdReader) TryGetType(name string) (element Type, found bool, err error) {
	typeDef, _ := reader.tryGetTypeDef(name)
	if typeDef == nil {
		return Type{}, false, nil
	}

	retType := Type{Name: fullName(typeDef.Namespace.String(), typeDef.Name.String())}
	for i := typeDef.MethodList.Start; i < typeDef.MethodList.End; i++ {
		methodDef, err := reader.metadata.Tables.MethodDef.Record(i)
		internal.PanicOnError(err)
		method, err := reader.getMethod(methodDef, i)
		if err != nil {
			return Type{}, true, err
		}
		retType.Methods = append(retType.Methods, method)
	}

	return retType, true, nil
}

func (reader *WinMdReader) getMethod(methodDef *winmd.MethodDef, methodIndex winmd.Index) (Method, error) {
	methodSignature, err := reader.metadata.MethodDefSignature(methodDef.Signature)
	if err != nil {
		return Method{}, fmt.Errorf("could not read signature of method '%s': %w", methodDef.Name.String(), err)
	}

	method := Method{Name: methodDef.Name.String()}

	paramRows := make([]paramRow, 0)
	for idx := methodDef.ParamList.Start; idx < methodDef.ParamList.End; idx++ {
		param, err := reader.metadata.Tables.Param.Record(idx)
		internal.PanicOnError(err)
		paramRows = append(paramRows, paramRow{index: idx, name: param.Name.String()})
	}

	// When the row range is longer than the signature's parameter list, the
	// leading row describes the return value.
	var returnRow *paramRow
	if len(paramRows) > len(methodSignature.Param) {
		returnRow = &paramRows[0]
		returnRow.name = "return"
		paramRows = paramRows[1:]
	}

	annotator := nullability.NewAnnotator(reader.nullableSource(method.Name, methodIndex, returnRow, paramRows))

	if methodSignature.RetType.Type.Kind != flags.ElementType_VOID {
		returnShape, err := reader.getTypeNode(methodSignature.RetType.Type)
		if err != nil {
			return Method{}, fmt.Errorf("could not decode return type of method '%s': %w", method.Name, err)
		}
		nodes, err := annotator.Annotate(memberName(method.Name, "return"), returnShape)
		if err != nil {
			return Method{}, err
		}
		method.Return = &Parameter{Name: "return", Shape: returnShape, Nodes: nodes}
	}

	for i, methodParam := range methodSignature.Param {
		paramShape, err := reader.getTypeNode(methodParam.Type)
		if err != nil {
			return Method{}, fmt.Errorf("could not decode parameter %d of method '%s': %w", i, method.Name, err)
		}

		paramName := fmt.Sprintf("arg%d", i)
		if i < len(paramRows) {
			paramName = paramRows[i].name
		}

		nodes, err := annotator.Annotate(memberName(method.Name, paramName), paramShape)
		if err != nil {
			return Method{}, err
		}
		method.Params = append(
			method.Params,
			Parameter{
				Name:  paramName,
				Shape: paramShape,
				Nodes: nodes,
			})
	}

	return method, nil
}

func (reader *WinMdReader) getTypeNode(sigType winmd.SigType) (nullability.TypeNode, error) {
	builtInType, found := builtInElementTypes[sigType.Kind]
	if found {
		return builtInType, nil
	}

	if sigType.Kind == flags.ElementType_PTR || sigType.Kind == flags.ElementType_BYREF {
		// Unmanaged pointers and by-ref passing carry no nullability of
		// their own, both pass through to the pointee.
		innerSigType, ok := sigType.Value.(winmd.SigType)
		if !ok {
			return nullability.TypeNode{}, fmt.Errorf("indirected type signature does not carry an inner type")
		}
		return reader.getTypeNode(innerSigType)
	}

	if sigType.Kind == flags.ElementType_ARRAY || sigType.Kind == flags.ElementType_SZARRAY {
		innerSigType, ok := sigType.Value.(winmd.SigType)
		if !ok {
			return nullability.TypeNode{}, fmt.Errorf("array type signature does not carry an element type")
		}
		elementType, err := reader.getTypeNode(innerSigType)
		if err != nil {
			return nullability.TypeNode{}, err
		}
		return nullability.TypeNode{Name: elementType.Name + "[]", Array: true, Elem: &elementType}, nil
	}

	typeDef, err := reader.getTypeDef(sigType)
	if err != nil {
		return nullability.TypeNode{}, fmt.Errorf("no matching type definition for type was found: %w", err)
	}

	retType := nullability.TypeNode{
		Name:      fullName(typeDef.Namespace.String(), typeDef.Name.String()),
		ValueType: sigType.Kind == flags.ElementType_VALUETYPE,
	}
	if retType.ValueType && retType.Name == nullableWrapperName {
		retType.NullableWrapper = true
	}

	return retType, nil
}

func (reader *WinMdReader) getTypeDef(sigType winmd.SigType) (winmd.TypeDef, error) {
	sigTypeIndex, ok := sigType.Value.(winmd.CodedIndex)
	if !ok {
		return winmd.TypeDef{}, fmt.Errorf("type signature of kind %#x does not carry a type reference", uint8(sigType.Kind))
	}
	retTypeRef, err := reader.metadata.Tables.TypeRef.Record(sigTypeIndex.Index)
	if err != nil {
		return winmd.TypeDef{}, fmt.Errorf("did not find matching type reference: %w", err)
	}

	typeDef, _ := findElementInTable(
		reader.metadata.Tables.TypeDef,
		func(candidate *winmd.TypeDef) bool {
			return candidate.Name.String() == retTypeRef.Name.String() &&
				candidate.Namespace.String() == retTypeRef.Namespace.String()
		})
	if typeDef == nil {
		return winmd.TypeDef{}, fmt.Errorf("did not find matching type definition for '%s'", retTypeRef.Name.String())
	}

	return *typeDef, nil
}

func (reader *WinMdReader) tryGetTypeDef(name string) (*winmd.TypeDef, winmd.Index) {
	return findElementInTable(
		reader.metadata.Tables.TypeDef,
		func(typeDef *winmd.TypeDef) bool {
			return typeDef.Name.String() == name || fullName(typeDef.Namespace.String(), typeDef.Name.String()) == name
		})
}

func (reader *WinMdReader) tryGetMethodDef(name string) (*winmd.MethodDef, winmd.Index) {
	return findElementInTable(
		reader.metadata.Tables.MethodDef,
		func(methodDef *winmd.MethodDef) bool { return methodDef.Name.String() == name })
}

type paramRow struct {
	index winmd.Index
	name  string
}

func memberName(method string, param string) string {
	return fmt.Sprintf("%s.%s", method, param)
}

func fullName(namespace string, name string) string {
	if namespace == "" {
		return name
	}
	return fmt.Sprintf("%s.%s", namespace, name)
}

// Finds element in given table and returns it with its row index. If element
// is not found then `nil` is returned.
func findElementInTable[T any, TP winmd.Record[T]](table winmd.Table[T, TP], match func(TP) bool) (TP, winmd.Index) {
	for idx := uint32(0); idx < table.Len; idx++ {
		element, err := table.Record(winmd.Index(idx))
		internal.PanicOnError(err) // It returns an error only when creating return value and for out of scope file
		if match(element) {
			return element, winmd.Index(idx)
		}
	}

	var missing TP
	return missing, 0
}
