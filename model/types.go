package model

import (
	"github.com/wippyai/bridgegen/abi"
)

// TypeRef is a reference to a type in a field, parameter, or return
// position.
type TypeRef interface {
	String() string
	typeRef()
}

// Indirection is how an opaque type is reached.
type Indirection uint8

const (
	Borrowed Indirection = iota + 1
	Owning
	Shared
)

func (i Indirection) String() string {
	switch i {
	case Borrowed:
		return "borrowed"
	case Owning:
		return "owning"
	case Shared:
		return "shared"
	default:
		return "invalid"
	}
}

// Primitive is a fixed-width scalar.
type Primitive struct {
	Kind abi.Prim
}

// OpaqueRef reaches an opaque type through an indirection.
type OpaqueRef struct {
	Name        string
	Side        Side
	Indirection Indirection
	Mutable     bool
}

// SharedStructRef names a shared struct by value.
type SharedStructRef struct {
	Name string
}

// EnumRef names an enum by value.
type EnumRef struct {
	Name string
}

// Container is an instantiation of a built-in container family. Elem is nil
// for DynString.
type Container struct {
	Kind abi.ContainerKind
	Elem TypeRef
}

// Borrow is a non-owning view of a non-opaque value.
type Borrow struct {
	Elem    TypeRef
	Mutable bool
}

// Named is a reference the resolver has not bound yet.
type Named struct {
	Name string
}

// ErrorCarrying is a Result type spelled in the surface. Fallibility is a
// function flag, so the validator rejects every ErrorCarrying it sees.
type ErrorCarrying struct {
	Elem TypeRef
}

func (Primitive) typeRef()       {}
func (OpaqueRef) typeRef()       {}
func (SharedStructRef) typeRef() {}
func (EnumRef) typeRef()         {}
func (Container) typeRef()       {}
func (Borrow) typeRef()          {}
func (Named) typeRef()           {}
func (ErrorCarrying) typeRef()   {}

func (p Primitive) String() string { return p.Kind.String() }

func (o OpaqueRef) String() string {
	switch o.Indirection {
	case Borrowed:
		if o.Mutable {
			return "&mut " + o.Name
		}
		return "&" + o.Name
	case Owning:
		return "Unique<" + o.Name + ">"
	case Shared:
		return "Shared<" + o.Name + ">"
	default:
		return o.Name
	}
}

func (s SharedStructRef) String() string { return s.Name }
func (e EnumRef) String() string         { return e.Name }
func (n Named) String() string           { return n.Name }

func (c Container) String() string {
	name := containerSurfaceNames[c.Kind]
	if c.Elem == nil {
		return name
	}
	// Owning opaque elements already print as Unique<T>/Shared<T>.
	if o, ok := c.Elem.(OpaqueRef); ok && c.Kind.Indirect() {
		return o.String()
	}
	return name + "<" + c.Elem.String() + ">"
}

func (b Borrow) String() string {
	if b.Mutable {
		return "&mut " + b.Elem.String()
	}
	return "&" + b.Elem.String()
}

func (e ErrorCarrying) String() string {
	return "Result<" + e.Elem.String() + ">"
}

var containerSurfaceNames = map[abi.ContainerKind]string{
	abi.OwningUnique: "Unique",
	abi.OwningShared: "Shared",
	abi.DynString:    "String",
	abi.DynSequence:  "Vec",
	abi.Optional:     "Option",
}

// ContainerKindByName maps surface generic names to container families.
func ContainerKindByName(name string) (abi.ContainerKind, bool) {
	for k, n := range containerSurfaceNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// ContainerSurfaceName is the surface spelling of family k.
func ContainerSurfaceName(k abi.ContainerKind) string {
	return containerSurfaceNames[k]
}

// Canonical returns the name an instantiation uses for t as its element.
// It is stable across runs and independent of declaration order.
func Canonical(t TypeRef) string {
	switch v := t.(type) {
	case Primitive:
		return v.Kind.String()
	case OpaqueRef:
		return v.Name
	case SharedStructRef:
		return v.Name
	case EnumRef:
		return v.Name
	case Named:
		return v.Name
	case Container:
		if v.Elem == nil {
			return v.Kind.String()
		}
		return v.Kind.String() + "_" + Canonical(v.Elem)
	case Borrow:
		return "ref_" + Canonical(v.Elem)
	case ErrorCarrying:
		return "result_" + Canonical(v.Elem)
	default:
		return "invalid"
	}
}
