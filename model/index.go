package model

import "github.com/wippyai/bridgegen/abi"

// Index maps type names to their declarations. It is built fresh for every
// generation run and passed explicitly; there is no process-wide registry.
type Index struct {
	types map[string]Item
	order []string
}

// NewIndex indexes the type declarations of m. Later duplicates do not
// replace earlier ones; the normalizer has already rejected them.
func NewIndex(m *Module) *Index {
	idx := &Index{types: make(map[string]Item)}
	for _, it := range m.Items {
		switch v := it.(type) {
		case *OpaqueType, *SharedStruct, *Enum:
			name := v.ItemName()
			if _, dup := idx.types[name]; !dup {
				idx.types[name] = v
				idx.order = append(idx.order, name)
			}
		case *ExternBlock:
		}
	}
	return idx
}

// Lookup returns the declaration of name.
func (x *Index) Lookup(name string) (Item, bool) {
	it, ok := x.types[name]
	return it, ok
}

// Opaque returns the opaque type declaration of name.
func (x *Index) Opaque(name string) (*OpaqueType, bool) {
	o, ok := x.types[name].(*OpaqueType)
	return o, ok
}

// Struct returns the shared struct declaration of name.
func (x *Index) Struct(name string) (*SharedStruct, bool) {
	s, ok := x.types[name].(*SharedStruct)
	return s, ok
}

// Enum returns the enum declaration of name.
func (x *Index) Enum(name string) (*Enum, bool) {
	e, ok := x.types[name].(*Enum)
	return e, ok
}

// Names returns the indexed names in declaration order.
func (x *Index) Names() []string {
	out := make([]string, len(x.order))
	copy(out, x.order)
	return out
}

// Len returns the number of indexed types.
func (x *Index) Len() int {
	return len(x.order)
}

// Resolved is the validated model both generators read. It is never mutated
// after the resolver returns it.
type Resolved struct {
	Module  *Module
	Index   *Index
	Target  abi.Target
	Mangler abi.Mangler
	// Structs holds the layout of every shared struct by name.
	Structs map[string]abi.StructLayout
	// Opaque holds side-supplied layouts of opaque types, when known.
	Opaque map[string]abi.Layout
	// Instantiations is deduplicated and sorted by (kind, element).
	Instantiations []abi.Glue
}

// Glue returns the instantiation for container c.
func (r *Resolved) Glue(c Container) (abi.Glue, bool) {
	key := Canonical(c)
	for _, g := range r.Instantiations {
		if g.Key() == key {
			return g, true
		}
	}
	return abi.Glue{}, false
}

// LayoutOf returns the by-value layout of t. Opaque types behind an
// indirection and borrows are one pointer wide; owning indirections use
// their container handle.
func (r *Resolved) LayoutOf(t TypeRef) (abi.Layout, bool) {
	switch v := t.(type) {
	case Primitive:
		return v.Kind.Layout(r.Target), true
	case EnumRef:
		e, ok := r.Index.Enum(v.Name)
		if !ok {
			return abi.Layout{}, false
		}
		return e.EffectiveRepr().Layout(r.Target), true
	case SharedStructRef:
		sl, ok := r.Structs[v.Name]
		return sl.Layout, ok
	case OpaqueRef:
		switch v.Indirection {
		case Borrowed:
			return r.Target.Pointer(), true
		case Owning:
			return abi.ContractFor(abi.OwningUnique, r.Target).Layout, true
		case Shared:
			return abi.ContractFor(abi.OwningShared, r.Target).Layout, true
		}
		return abi.Layout{}, false
	case Borrow:
		return r.Target.Pointer(), true
	case Container:
		if g, ok := r.Glue(v); ok {
			return g.Handle, true
		}
		return abi.Layout{}, false
	case Named, ErrorCarrying:
		return abi.Layout{}, false
	default:
		return abi.Layout{}, false
	}
}
