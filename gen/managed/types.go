package managed

import (
	"fmt"

	"github.com/wippyai/bridgegen/abi"
	"github.com/wippyai/bridgegen/gen/internal/plan"
	"github.com/wippyai/bridgegen/model"
)

var keywords = map[string]bool{
	"as": true, "async": true, "await": true, "break": true, "const": true,
	"continue": true, "dyn": true, "else": true, "enum": true, "extern": true,
	"false": true, "fn": true, "for": true, "if": true, "impl": true,
	"in": true, "let": true, "loop": true, "match": true, "mod": true,
	"move": true, "mut": true, "pub": true, "ref": true, "return": true,
	"static": true, "struct": true, "trait": true, "true": true, "type": true,
	"unsafe": true, "use": true, "where": true, "while": true, "abstract": true,
	"become": true, "box": true, "do": true, "final": true, "macro": true,
	"override": true, "priv": true, "try": true, "typeof": true,
	"unsized": true, "virtual": true, "yield": true,
}

// Identifiers that cannot be raw.
var reserved = map[string]bool{"self": true, "Self": true, "super": true, "crate": true, "_": true}

// ident returns name as a usable Rust identifier.
func ident(name string) string {
	switch {
	case reserved[name]:
		return name + "_"
	case keywords[name]:
		return "r#" + name
	}
	return name
}

// reprAttr spells an enum representation as a repr attribute argument.
func (g *generator) reprAttr(p abi.Prim) string {
	bits := p.Layout(g.r.Target).Size * 8
	if p.IsSigned() {
		return fmt.Sprintf("i%d", bits)
	}
	return fmt.Sprintf("u%d", bits)
}

// value spells t as a Rust type. lt is the lifetime for borrows, empty for
// elided ones.
func (g *generator) value(t model.TypeRef, lt string) string {
	switch v := t.(type) {
	case model.Primitive:
		return v.Kind.ManagedName()
	case model.EnumRef:
		return ident(v.Name)
	case model.SharedStructRef:
		return ident(v.Name)
	case model.OpaqueRef:
		switch v.Indirection {
		case model.Borrowed:
			ref := borrow(ident(v.Name), v.Mutable, lt)
			if plan.Pinned(v) {
				return "core::pin::Pin<" + ref + ">"
			}
			return ref
		case model.Owning:
			return "rt::Unique<" + ident(v.Name) + ">"
		case model.Shared:
			return "rt::Shared<" + ident(v.Name) + ">"
		}
	case model.Borrow:
		return borrow(g.value(v.Elem, lt), v.Mutable, lt)
	case model.Container:
		return g.handle(v)
	}
	g.fail("no managed spelling for %v", t)
	return "()"
}

func borrow(elem string, mutable bool, lt string) string {
	ref := "&"
	if lt != "" {
		ref += lt + " "
	}
	if mutable {
		ref += "mut "
	}
	return ref + elem
}

// handle spells the fixed representation of container c.
func (g *generator) handle(c model.Container) string {
	switch c.Kind {
	case abi.DynString:
		return "rt::Text"
	case abi.DynSequence:
		return "rt::Vector<" + g.value(c.Elem, "") + ">"
	case abi.Optional:
		return "rt::Optional<" + g.value(c.Elem, "") + ">"
	case abi.OwningUnique:
		return "rt::Unique<" + g.pointee(c.Elem) + ">"
	case abi.OwningShared:
		return "rt::Shared<" + g.pointee(c.Elem) + ">"
	}
	g.fail("unknown container family %v", c.Kind)
	return "()"
}

func (g *generator) pointee(t model.TypeRef) string {
	if o, ok := t.(model.OpaqueRef); ok {
		return ident(o.Name)
	}
	return g.value(t, "")
}

// rawRef spells a borrowed type as a raw pointer.
func (g *generator) rawRef(t model.TypeRef) string {
	switch v := t.(type) {
	case model.OpaqueRef:
		return pointer(ident(v.Name), v.Mutable)
	case model.Borrow:
		return pointer(g.value(v.Elem, ""), v.Mutable)
	}
	g.fail("%v is not a borrow", t)
	return "*mut core::ffi::c_void"
}

func pointer(elem string, mutable bool) string {
	if mutable {
		return "*mut " + elem
	}
	return "*const " + elem
}

// raw spells t as it crosses a raw symbol.
func (g *generator) raw(t model.TypeRef) string {
	switch plan.PassingOf(t) {
	case plan.Scalar:
		return g.value(t, "")
	case plan.ByRef:
		return g.rawRef(t)
	default:
		return "*mut " + g.value(t, "")
	}
}
