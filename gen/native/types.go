package native

import (
	"strings"

	"github.com/wippyai/bridgegen/abi"
	"github.com/wippyai/bridgegen/gen/internal/plan"
	"github.com/wippyai/bridgegen/model"
)

var keywords = map[string]bool{
	"alignas": true, "alignof": true, "and": true, "asm": true, "auto": true,
	"bool": true, "break": true, "case": true, "catch": true, "char": true,
	"class": true, "const": true, "constexpr": true, "continue": true,
	"decltype": true, "default": true, "delete": true, "do": true,
	"double": true, "else": true, "enum": true, "explicit": true,
	"export": true, "extern": true, "false": true, "float": true, "for": true,
	"friend": true, "goto": true, "if": true, "inline": true, "int": true,
	"long": true, "mutable": true, "namespace": true, "new": true,
	"noexcept": true, "not": true, "nullptr": true, "operator": true,
	"or": true, "private": true, "protected": true, "public": true,
	"register": true, "return": true, "short": true, "signed": true,
	"sizeof": true, "static": true, "struct": true, "switch": true,
	"template": true, "this": true, "throw": true, "true": true, "try": true,
	"typedef": true, "typename": true, "union": true, "unsigned": true,
	"using": true, "virtual": true, "void": true, "volatile": true,
	"while": true, "xor": true,
}

// ident returns name as a usable C++ identifier.
func ident(name string) string {
	if keywords[name] {
		return name + "_"
	}
	return name
}

// value spells t as a C++ value type.
func (g *generator) value(t model.TypeRef) string {
	switch v := t.(type) {
	case model.Primitive:
		return v.Kind.NativeName()
	case model.EnumRef:
		return ident(v.Name)
	case model.SharedStructRef:
		return ident(v.Name)
	case model.OpaqueRef:
		switch v.Indirection {
		case model.Borrowed:
			return g.reference(ident(v.Name), v.Mutable)
		case model.Owning:
			return "Unique<" + ident(v.Name) + ">"
		case model.Shared:
			return "Shared<" + ident(v.Name) + ">"
		}
	case model.Borrow:
		return g.reference(g.value(v.Elem), v.Mutable)
	case model.Container:
		return g.handle(v)
	}
	g.fail("no native spelling for %v", t)
	return "void"
}

func (g *generator) reference(elem string, mutable bool) string {
	if mutable {
		return elem + " &"
	}
	return "const " + elem + " &"
}

// handle spells the handle class of container c.
func (g *generator) handle(c model.Container) string {
	switch c.Kind {
	case abi.DynString:
		return "String"
	case abi.DynSequence:
		return "Vec<" + g.value(c.Elem) + ">"
	case abi.Optional:
		return "Option<" + g.value(c.Elem) + ">"
	case abi.OwningUnique:
		return "Unique<" + g.pointee(c.Elem) + ">"
	case abi.OwningShared:
		return "Shared<" + g.pointee(c.Elem) + ">"
	}
	g.fail("unknown container family %v", c.Kind)
	return "void"
}

// pointee spells the target of an owning handle.
func (g *generator) pointee(t model.TypeRef) string {
	if o, ok := t.(model.OpaqueRef); ok {
		return ident(o.Name)
	}
	return g.value(t)
}

// rawRef spells a borrowed type as the pointer crossing a raw symbol.
func (g *generator) rawRef(t model.TypeRef) string {
	switch v := t.(type) {
	case model.OpaqueRef:
		if v.Mutable {
			return ident(v.Name) + " *"
		}
		return "const " + ident(v.Name) + " *"
	case model.Borrow:
		if v.Mutable {
			return g.value(v.Elem) + " *"
		}
		return "const " + g.value(v.Elem) + " *"
	}
	g.fail("%v is not a borrow", t)
	return "void *"
}

// raw spells t as it crosses a raw symbol.
func (g *generator) raw(t model.TypeRef) string {
	switch plan.PassingOf(t) {
	case plan.Scalar:
		return g.value(t)
	case plan.ByRef:
		return g.rawRef(t)
	default:
		return g.value(t) + " *"
	}
}

// param is a named C++ parameter.
type param struct {
	typ  string
	name string
}

func (p param) String() string {
	if strings.HasSuffix(p.typ, "*") || strings.HasSuffix(p.typ, "&") {
		return p.typ + p.name
	}
	return p.typ + " " + p.name
}

func joinParams(ps []param) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.String()
	}
	return strings.Join(parts, ", ")
}
