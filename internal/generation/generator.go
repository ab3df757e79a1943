package generation

import (
	"errors"
	"fmt"
	"io/fs"
	"nullgen/internal"
	"nullgen/internal/metadata"
	"nullgen/internal/nullability"
	"os"
	"strings"

	"github.com/dave/jennifer/jen"
)

type Generator struct {
	Methods     []metadata.Method
	Types       map[string]nullability.TypeNode
	PackageName string
	OutputPath  string
}

func NewGenerator(packageName string, outputPath string) Generator {
	return Generator{
		make([]metadata.Method, 0),
		make(map[string]nullability.TypeNode, 0),
		packageName,
		outputPath,
	}
}

func (generator *Generator) RegisterMethod(element metadata.Method) {
	generator.Methods = append(generator.Methods, element)
}

func (generator *Generator) RegisterType(element metadata.Type) {
	for _, method := range element.Methods {
		generator.RegisterMethod(method)
	}
}

func (generator *Generator) Generate(path string) {
	generator.addTypesFromMethods()

	err := os.Mkdir(path, os.ModePerm)
	if err != nil && !errors.Is(err, fs.ErrExist) {
		panic(err)
	}

	generator.generateTypes()
	generator.generateMethods()
}

// generateTypes emits a placeholder declaration for every non-builtin type
// seen in a registered signature, so the generated file is self contained.
func (generator *Generator) generateTypes() {
	for _, typeToGenerate := range generator.Types {
		file := jen.NewFile(generator.PackageName)

		file.Comment(fmt.Sprintf("Placeholder for metadata type %s.", typeToGenerate.Name))
		file.Type().Id(sanitizeName(typeToGenerate.Name)).Struct()

		err := file.Save(fmt.Sprintf("%s/%s.go", generator.OutputPath, sanitizeName(typeToGenerate.Name)))
		internal.PanicOnError(err)
	}
}

func (generator *Generator) generateMethods() {
	file := jen.NewFile(generator.PackageName)

	for _, method := range generator.Methods {
		funcHeader := file.Func().Id(method.Name).ParamsFunc(func(g *jen.Group) {
			for _, param := range method.Params {
				g.Id(param.Name).Add(ParameterType(param))
			}
		})

		if method.Return != nil {
			funcHeader.Add(ParameterType(*method.Return))
		}

		funcHeader.
			BlockFunc(func(g *jen.Group) {
				g.Panic(jen.Lit("not implemented"))
			}).
			Line()
	}

	err := file.Save(fmt.Sprintf("%s/%s.go", generator.OutputPath, generator.PackageName))
	internal.PanicOnError(err)
}

// ParameterType renders the Go type of a decoded parameter. A parameter
// whose outermost recorded node is nullable becomes a pointer, except for
// arrays, where a nil slice already expresses the null case.
func ParameterType(param metadata.Parameter) jen.Code {
	code := jen.Null()
	if len(param.Nodes) > 0 && param.Nodes[0].Flag == nullability.Nullable && !param.Shape.Array {
		code = code.Op("*")
	}

	return code.Add(shapeType(param.Shape))
}

func shapeType(shape nullability.TypeNode) jen.Code {
	if shape.Array {
		return jen.Index().Add(shapeType(*shape.Elem))
	}
	if shape.NullableWrapper {
		return shapeType(shape.Args[0])
	}
	if goType, found := builtInGoTypes[shape.Name]; found {
		return jen.Id(goType)
	}

	return jen.Id(sanitizeName(shape.Name))
}

func (generator *Generator) addTypesFromMethods() {
	registerShape := func(shape nullability.TypeNode) {
		for shape.Array {
			shape = *shape.Elem
		}
		if shape.NullableWrapper {
			shape = shape.Args[0]
		}
		if _, builtIn := builtInGoTypes[shape.Name]; builtIn {
			return
		}
		generator.Types[shape.Name] = shape
	}

	for _, method := range generator.Methods {
		if method.Return != nil {
			registerShape(method.Return.Shape)
		}
		for _, param := range method.Params {
			registerShape(param.Shape)
		}
	}
}

func sanitizeName(name string) string {
	base := name
	if idx := strings.LastIndex(base, "."); idx >= 0 {
		base = base[idx+1:]
	}

	return strings.ReplaceAll(base, "`", "_")
}

// The map of basic metadata types to Go equivalents
var builtInGoTypes map[string]string = map[string]string{
	"System.Boolean": "bool",
	"System.Char":    "rune",
	"System.String":  "string",
	"System.Object":  "any",
	"System.SByte":   "int8",
	"System.Int16":   "int16",
	"System.Int32":   "int32",
	"System.Int64":   "int64",
	"System.Byte":    "uint8",
	"System.UInt16":  "uint16",
	"System.UInt32":  "uint32",
	"System.UInt64":  "uint64",
	"System.Single":  "float32",
	"System.Double":  "float64",
	"System.IntPtr":  "uintptr",
	"System.UIntPtr": "uintptr",
}
