package model

import (
	"github.com/wippyai/bridgegen/abi"
	"github.com/wippyai/bridgegen/errors"
)

// Side identifies the implementing or originating toolchain.
type Side = abi.Side

const (
	SideManaged = abi.SideManaged
	SideNative  = abi.SideNative
)

// Module is an ordered bridge declaration. Item order determines output
// order.
type Module struct {
	Name  string
	Items []Item
}

// Item is a top-level declaration.
type Item interface {
	ItemName() string
	Loc() errors.Location
	item()
}

// OpaqueType is a type whose layout is known only to its side of origin.
type OpaqueType struct {
	Name     string
	Side     Side
	Location errors.Location
}

// SharedStruct is a value type with identical layout on both sides.
type SharedStruct struct {
	Name     string
	Fields   []Field
	Location errors.Location
}

// Field is a shared struct member.
type Field struct {
	Name     string
	Type     TypeRef
	Location errors.Location
}

// Enum is a C-like enumeration with a fixed-width discriminant.
type Enum struct {
	Name     string
	Variants []Variant
	// Repr is the explicit representation, PrimInvalid when the width is
	// derived from the discriminant range.
	Repr     abi.Prim
	Location errors.Location
}

// Variant is one enum discriminant.
type Variant struct {
	Name     string
	Value    int64
	Location errors.Location
}

// ExternBlock groups functions implemented by Side and callable from the
// other side.
type ExternBlock struct {
	Side      Side
	Functions []*Function
	Includes  []string
	Location  errors.Location
}

// Function is a bridged function signature.
type Function struct {
	Name     string
	Params   []Param
	Return   TypeRef // nil means no return value
	Fallible bool
	Location errors.Location
}

// Receiver returns the receiver parameter, if any.
func (f *Function) Receiver() (Param, bool) {
	if len(f.Params) > 0 && f.Params[0].Mode == PassReceiver {
		return f.Params[0], true
	}
	return Param{}, false
}

// PassingMode is how a parameter is handed across.
type PassingMode uint8

const (
	PassValue PassingMode = iota
	PassReceiver
	PassPinned
)

func (m PassingMode) String() string {
	switch m {
	case PassValue:
		return "value"
	case PassReceiver:
		return "receiver"
	case PassPinned:
		return "pinned"
	default:
		return "invalid"
	}
}

// ParsePassingMode parses a surface passing mode; empty means PassValue.
func ParsePassingMode(s string) (PassingMode, bool) {
	switch s {
	case "", "value":
		return PassValue, true
	case "receiver", "self":
		return PassReceiver, true
	case "pinned":
		return PassPinned, true
	default:
		return 0, false
	}
}

// Param is a function parameter.
type Param struct {
	Name     string
	Type     TypeRef
	Mode     PassingMode
	Location errors.Location
}

func (o *OpaqueType) ItemName() string { return o.Name }
func (o *OpaqueType) Loc() errors.Location { return o.Location }
func (*OpaqueType) item() {}
func (s *SharedStruct) ItemName() string { return s.Name }
func (s *SharedStruct) Loc() errors.Location { return s.Location }
func (*SharedStruct) item() {}
func (e *Enum) ItemName() string { return e.Name }
func (e *Enum) Loc() errors.Location { return e.Location }
func (*Enum) item() {}
func (b *ExternBlock) ItemName() string { return "extern " + b.Side.String() }
func (b *ExternBlock) Loc() errors.Location { return b.Location }
func (*ExternBlock) item() {}

// Range returns the smallest and largest discriminant.
func (e *Enum) Range() (lo, hi int64) {
	for i, v := range e.Variants {
		if i == 0 || v.Value < lo {
			lo = v.Value
		}
		if i == 0 || v.Value > hi {
			hi = v.Value
		}
	}
	return lo, hi
}

// EffectiveRepr returns the explicit representation or the narrowest one
// holding every discriminant.
func (e *Enum) EffectiveRepr() abi.Prim {
	if e.Repr != abi.PrimInvalid {
		return e.Repr
	}
	return abi.EnumRepr(e.Range())
}
