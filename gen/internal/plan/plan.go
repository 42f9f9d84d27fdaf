// Package plan holds the decisions both generators must make identically:
// how each parameter crosses the boundary, which side calls which symbol,
// and in what order declarations are emitted.
package plan

import (
	"github.com/wippyai/bridgegen/abi"
	"github.com/wippyai/bridgegen/model"
)

// Passing is how a value crosses a raw symbol.
type Passing uint8

const (
	// Scalar values travel in registers.
	Scalar Passing = iota + 1
	// ByRef passes a pointer the callee must not retain.
	ByRef
	// ByMove passes a pointer to a value whose ownership moves to the
	// callee. The caller must not drop it afterwards.
	ByMove
)

// PassingOf returns how t crosses a raw symbol.
func PassingOf(t model.TypeRef) Passing {
	switch v := t.(type) {
	case model.Primitive, model.EnumRef:
		return Scalar
	case model.OpaqueRef:
		if v.Indirection == model.Borrowed {
			return ByRef
		}
		return ByMove
	case model.Borrow:
		return ByRef
	default:
		return ByMove
	}
}

// Borrowed reports whether t is a borrowed view.
func Borrowed(t model.TypeRef) bool {
	return PassingOf(t) == ByRef
}

// Pinned reports whether t is a mutable borrow of a native-origin opaque
// type. The managed side may only hold such borrows pinned.
func Pinned(t model.TypeRef) bool {
	o, ok := t.(model.OpaqueRef)
	return ok && o.Indirection == model.Borrowed && o.Mutable && o.Side == model.SideNative
}

// Call is one bridged function together with the symbol it crosses
// through.
type Call struct {
	Fn     *model.Function
	Side   model.Side
	Symbol string
	// Receiver is the receiver type name, empty for free functions.
	Receiver string
}

// Calls lists every bridged function in declaration order.
func Calls(r *model.Resolved) []Call {
	var out []Call
	for _, it := range r.Module.Items {
		b, ok := it.(*model.ExternBlock)
		if !ok {
			continue
		}
		for _, fn := range b.Functions {
			c := Call{Fn: fn, Side: b.Side}
			if p, ok := fn.Receiver(); ok {
				c.Receiver = ReceiverName(p.Type)
			}
			if c.Receiver != "" {
				c.Symbol = r.Mangler.Method(c.Receiver, fn.Name)
			} else {
				c.Symbol = r.Mangler.Function(fn.Name)
			}
			out = append(out, c)
		}
	}
	return out
}

// ReceiverName returns the type a receiver parameter borrows.
func ReceiverName(t model.TypeRef) string {
	switch v := t.(type) {
	case model.OpaqueRef:
		return v.Name
	case model.Borrow:
		if s, ok := v.Elem.(model.SharedStructRef); ok {
			return s.Name
		}
	}
	return ""
}

// Includes returns the include requests of every extern block in
// declaration order, without duplicates.
func Includes(r *model.Resolved) []string {
	seen := make(map[string]bool)
	var out []string
	for _, it := range r.Module.Items {
		b, ok := it.(*model.ExternBlock)
		if !ok {
			continue
		}
		for _, inc := range b.Includes {
			if !seen[inc] {
				seen[inc] = true
				out = append(out, inc)
			}
		}
	}
	return out
}

// Opaques returns the opaque types of side s in declaration order.
func Opaques(r *model.Resolved, s model.Side) []*model.OpaqueType {
	var out []*model.OpaqueType
	for _, it := range r.Module.Items {
		if o, ok := it.(*model.OpaqueType); ok && o.Side == s {
			out = append(out, o)
		}
	}
	return out
}

// StructOrder returns the shared structs in declaration order, except that
// a struct always follows the structs it contains by value, directly or as
// an optional payload.
func StructOrder(r *model.Resolved) []*model.SharedStruct {
	var decl []*model.SharedStruct
	for _, it := range r.Module.Items {
		if s, ok := it.(*model.SharedStruct); ok {
			decl = append(decl, s)
		}
	}

	done := make(map[string]bool, len(decl))
	out := make([]*model.SharedStruct, 0, len(decl))
	var visit func(s *model.SharedStruct)
	visit = func(s *model.SharedStruct) {
		if done[s.Name] {
			return
		}
		done[s.Name] = true
		for _, f := range s.Fields {
			if dep, ok := r.Index.Struct(inlineStruct(f.Type)); ok {
				visit(dep)
			}
		}
		out = append(out, s)
	}
	for _, s := range decl {
		visit(s)
	}
	return out
}

// inlineStruct returns the struct t stores in place, if any.
func inlineStruct(t model.TypeRef) string {
	switch v := t.(type) {
	case model.SharedStructRef:
		return v.Name
	case model.Container:
		if v.Kind == abi.Optional {
			return inlineStruct(v.Elem)
		}
	}
	return ""
}

// Trivial reports whether values of t can be copied bitwise and need no
// destructor.
func Trivial(r *model.Resolved, t model.TypeRef) bool {
	switch v := t.(type) {
	case model.Primitive, model.EnumRef:
		return true
	case model.SharedStructRef:
		s, ok := r.Index.Struct(v.Name)
		if !ok {
			return false
		}
		for _, f := range s.Fields {
			if !Trivial(r, f.Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Fallible reports whether any bridged function is fallible. The resolver
// always instantiates the string glue for such modules.
func Fallible(r *model.Resolved) bool {
	for _, c := range Calls(r) {
		if c.Fn.Fallible {
			return true
		}
	}
	return false
}

// Containers maps the canonical key of every container reachable from the
// module's types to its resolved reference.
func Containers(r *model.Resolved) map[string]model.Container {
	out := make(map[string]model.Container)
	var walk func(t model.TypeRef)
	walk = func(t model.TypeRef) {
		switch v := t.(type) {
		case model.Container:
			out[model.Canonical(v)] = v
			if v.Elem != nil {
				walk(v.Elem)
			}
		case model.Borrow:
			walk(v.Elem)
		}
	}
	for _, it := range r.Module.Items {
		switch v := it.(type) {
		case *model.SharedStruct:
			for _, f := range v.Fields {
				walk(f.Type)
			}
		case *model.ExternBlock:
			for _, fn := range v.Functions {
				for _, p := range fn.Params {
					walk(p.Type)
				}
				if fn.Return != nil {
					walk(fn.Return)
				}
			}
		}
	}
	return out
}
