// Package witimport builds a declaration surface from WIT type definitions.
//
// Records become shared structs, enums become enums, and resources become
// opaque types owned by the importing side. own<T> maps to Unique<T>,
// borrow<T> to a shared reference, list, string and option to the matching
// containers, and a result return marks the function fallible. The error
// payload of a result is not carried: failures cross as message text.
// Variants, flags, and tuples have no bridge representation and are
// rejected.
package witimport

import (
	"strings"
	"unicode"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/bridgegen/abi"
	"github.com/wippyai/bridgegen/errors"
	"github.com/wippyai/bridgegen/surface"
)

// Param is a named function parameter.
type Param struct {
	Name string
	Type wit.Type
}

// Func is an interface function. A first parameter named self holding a
// borrow<T> makes the function a receiver function of T.
type Func struct {
	Name   string
	Params []Param
	// Result is nil for functions without a result.
	Result wit.Type
}

// Interface is the set of definitions to import.
type Interface struct {
	// Module names the resulting surface; empty keeps the surface default.
	Module string
	// Side implements the functions and owns the resources.
	Side     abi.Side
	Types    []*wit.TypeDef
	Funcs    []Func
	Includes []string
}

type importer struct {
	side string
}

// Import converts iface into a surface file.
func Import(iface Interface) (*surface.File, error) {
	if iface.Side != abi.SideManaged && iface.Side != abi.SideNative {
		return nil, errors.InvalidInput(errors.PhaseImport, "interface side must be managed or native")
	}

	im := &importer{side: iface.Side.String()}
	f := &surface.File{Name: "wit", Module: iface.Module}

	for _, td := range iface.Types {
		d, err := im.typeDef(td)
		if err != nil {
			return nil, err
		}
		if d != nil {
			f.Items = append(f.Items, d)
		}
	}

	if len(iface.Funcs) > 0 || len(iface.Includes) > 0 {
		ext := &surface.Decl{
			Kind:     surface.KindExtern,
			Side:     surface.Tags{im.side},
			Includes: iface.Includes,
		}
		for _, fn := range iface.Funcs {
			fd, err := im.function(fn)
			if err != nil {
				return nil, err
			}
			ext.Functions = append(ext.Functions, fd)
		}
		f.Items = append(f.Items, ext)
	}
	return f, nil
}

// typeDef declares a named definition. Aliases and anonymous container
// definitions declare nothing; references expand them in place.
func (im *importer) typeDef(td *wit.TypeDef) (*surface.Decl, error) {
	if td == nil {
		return nil, errors.InvalidInput(errors.PhaseImport, "nil type definition")
	}
	if td.Name == nil {
		return nil, nil
	}
	name := TypeName(*td.Name)

	switch k := td.Kind.(type) {
	case *wit.Record:
		d := &surface.Decl{Kind: surface.KindStruct, Name: name}
		for _, f := range k.Fields {
			t, err := im.typeExpr(f.Type, []string{name, f.Name})
			if err != nil {
				return nil, err
			}
			d.Fields = append(d.Fields, &surface.FieldDecl{Name: FieldName(f.Name), Type: t})
		}
		return d, nil

	case *wit.Enum:
		d := &surface.Decl{Kind: surface.KindEnum, Name: name}
		for _, c := range k.Cases {
			d.Variants = append(d.Variants, &surface.VariantDecl{Name: TypeName(c.Name)})
		}
		return d, nil

	case *wit.Resource:
		return &surface.Decl{Kind: surface.KindOpaque, Name: name, Side: surface.Tags{im.side}}, nil

	case *wit.Variant:
		return nil, unsupported(name, "variant")
	case *wit.Flags:
		return nil, unsupported(name, "flags")
	case *wit.Tuple:
		return nil, unsupported(name, "tuple")

	default:
		return nil, nil
	}
}

func unsupported(name, what string) *errors.Error {
	err := errors.Unsupported(errors.PhaseImport, what+" types have no bridge representation")
	err.Path = []string{name}
	return err
}

// primitive spells the scalar WIT types. char crosses as its code point.
func primitive(t wit.Type) (string, bool) {
	switch t.(type) {
	case wit.Bool:
		return "bool", true
	case wit.U8:
		return "u8", true
	case wit.S8:
		return "i8", true
	case wit.U16:
		return "u16", true
	case wit.S16:
		return "i16", true
	case wit.U32, wit.Char:
		return "u32", true
	case wit.S32:
		return "i32", true
	case wit.U64:
		return "u64", true
	case wit.S64:
		return "i64", true
	case wit.F32:
		return "f32", true
	case wit.F64:
		return "f64", true
	case wit.String:
		return "String", true
	}
	return "", false
}

// typeExpr spells t. Result types are spelled as Result so the normalizer
// reports them where they are not allowed.
func (im *importer) typeExpr(t wit.Type, path []string) (*surface.TypeExpr, error) {
	if name, ok := primitive(t); ok {
		return surface.Type(name), nil
	}
	td, ok := t.(*wit.TypeDef)
	if !ok || td == nil {
		return nil, errors.Unsupported(errors.PhaseImport, "unknown WIT type at "+strings.Join(path, "."))
	}

	switch k := td.Kind.(type) {
	case *wit.Record, *wit.Enum, *wit.Resource:
		if td.Name == nil {
			return nil, errors.Unsupported(errors.PhaseImport, "anonymous definition at "+strings.Join(path, "."))
		}
		return surface.Type(TypeName(*td.Name)), nil

	case *wit.List:
		elem, err := im.typeExpr(k.Type, path)
		if err != nil {
			return nil, err
		}
		return surface.Type("Vec", elem), nil

	case *wit.Option:
		elem, err := im.typeExpr(k.Type, path)
		if err != nil {
			return nil, err
		}
		return surface.Type("Option", elem), nil

	case *wit.Own:
		res, err := im.resource(k.Type, path)
		if err != nil {
			return nil, err
		}
		return surface.Type("Unique", res), nil

	case *wit.Borrow:
		res, err := im.resource(k.Type, path)
		if err != nil {
			return nil, err
		}
		return surface.Ref(res, false), nil

	case *wit.Result:
		if k.OK == nil {
			return surface.Type("Result"), nil
		}
		ok, err := im.typeExpr(k.OK, path)
		if err != nil {
			return nil, err
		}
		return surface.Type("Result", ok), nil

	case *wit.Variant, *wit.Flags, *wit.Tuple:
		return nil, unsupported(strings.Join(path, "."), "anonymous variant, flags, or tuple")

	case wit.Type:
		return im.typeExpr(k, path)

	default:
		return nil, errors.Unsupported(errors.PhaseImport, "unknown WIT definition at "+strings.Join(path, "."))
	}
}

func (im *importer) resource(td *wit.TypeDef, path []string) (*surface.TypeExpr, error) {
	if td == nil || td.Name == nil {
		return nil, errors.Unsupported(errors.PhaseImport, "handle to an anonymous resource at "+strings.Join(path, "."))
	}
	return surface.Type(TypeName(*td.Name)), nil
}

func (im *importer) function(fn Func) (*surface.FuncDecl, error) {
	fd := &surface.FuncDecl{Name: FieldName(fn.Name)}
	for i, p := range fn.Params {
		t, err := im.typeExpr(p.Type, []string{fn.Name, p.Name})
		if err != nil {
			return nil, err
		}
		pd := &surface.ParamDecl{Name: FieldName(p.Name), Type: t}
		if i == 0 && p.Name == "self" && t.Ref != nil {
			pd.Mode = "receiver"
		}
		fd.Params = append(fd.Params, pd)
	}

	if fn.Result == nil {
		return fd, nil
	}
	if td, ok := fn.Result.(*wit.TypeDef); ok {
		if r, ok := td.Kind.(*wit.Result); ok {
			fd.Fallible = true
			if r.OK != nil {
				t, err := im.typeExpr(r.OK, []string{fn.Name, "result"})
				if err != nil {
					return nil, err
				}
				fd.Returns = t
			}
			return fd, nil
		}
	}
	t, err := im.typeExpr(fn.Result, []string{fn.Name, "result"})
	if err != nil {
		return nil, err
	}
	fd.Returns = t
	return fd, nil
}

// TypeName converts a kebab-case WIT name to a type name.
func TypeName(s string) string {
	var b strings.Builder
	upper := true
	for _, r := range s {
		if r == '-' {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// FieldName converts a kebab-case WIT name to a field or function name.
func FieldName(s string) string {
	return strings.ReplaceAll(s, "-", "_")
}
