package abi

// Symbol binds a contract operation to its link name.
type Symbol struct {
	Op   Op
	Name string
}

// Glue is one container instantiation: the family contract with the element
// substituted. Both generators and the runtime model read it, so the two
// artifacts always agree on symbol names and layouts.
type Glue struct {
	Kind ContainerKind
	// Elem is the canonical element name; empty for DynString.
	Elem       string
	ElemLayout Layout
	Handle     Layout
	// Impl is the side that implements the operations; the other side
	// imports them.
	Impl Side
	// ElemDrop is the destructor callback of the element, empty when the
	// element is trivially destructible.
	ElemDrop      string
	Symbols       []Symbol
	PayloadOffset uint32
}

// Key is the canonical name of the instantiation itself, used when it is
// the element of another container.
func (g Glue) Key() string {
	if g.Elem == "" {
		return g.Kind.String()
	}
	return g.Kind.String() + "_" + g.Elem
}

// Symbol returns the link name of op, or "" if the family has no such op.
func (g Glue) Symbol(op Op) string {
	for _, s := range g.Symbols {
		if s.Op == op {
			return s.Name
		}
	}
	return ""
}

// Instantiate substitutes an element into contract c.
func Instantiate(c Contract, m Mangler, elem string, elemLayout Layout, elemDrop string, impl Side) Glue {
	g := Glue{
		Kind:       c.Kind,
		Elem:       elem,
		ElemLayout: elemLayout,
		Handle:     c.Layout,
		Impl:       impl,
		ElemDrop:   elemDrop,
		Symbols:    make([]Symbol, len(c.Ops)),
	}
	if c.Kind == DynString {
		g.Elem = ""
		g.ElemLayout = Layout{Size: 1, Align: 1}
	}
	if c.Kind == Optional {
		g.Handle, g.PayloadOffset = OptionLayout(elemLayout)
	}
	for i, op := range c.Ops {
		g.Symbols[i] = Symbol{Op: op, Name: m.Op(c.Kind, g.Elem, op)}
	}
	return g
}
