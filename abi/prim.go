package abi

import "math"

// Prim is a primitive type whose representation is identical on both sides.
type Prim uint8

const (
	PrimInvalid Prim = iota
	Bool
	U8
	U16
	U32
	U64
	Usize
	I8
	I16
	I32
	I64
	Isize
	F32
	F64
	CChar
	CInt
	CLong
	CULong
)

type primInfo struct {
	name    string
	managed string
	native  string
	size    uint32 // 0 means pointer width
	signed  bool
	integer bool
	// standard primitives are enabled unless configuration says otherwise
	standard bool
}

var prims = [...]primInfo{
	PrimInvalid: {name: "invalid"},
	Bool:        {name: "bool", managed: "bool", native: "bool", size: 1, standard: true},
	U8:          {name: "u8", managed: "u8", native: "::std::uint8_t", size: 1, integer: true, standard: true},
	U16:         {name: "u16", managed: "u16", native: "::std::uint16_t", size: 2, integer: true, standard: true},
	U32:         {name: "u32", managed: "u32", native: "::std::uint32_t", size: 4, integer: true, standard: true},
	U64:         {name: "u64", managed: "u64", native: "::std::uint64_t", size: 8, integer: true, standard: true},
	Usize:       {name: "usize", managed: "usize", native: "::std::size_t", integer: true, standard: true},
	I8:          {name: "i8", managed: "i8", native: "::std::int8_t", size: 1, signed: true, integer: true, standard: true},
	I16:         {name: "i16", managed: "i16", native: "::std::int16_t", size: 2, signed: true, integer: true, standard: true},
	I32:         {name: "i32", managed: "i32", native: "::std::int32_t", size: 4, signed: true, integer: true, standard: true},
	I64:         {name: "i64", managed: "i64", native: "::std::int64_t", size: 8, signed: true, integer: true, standard: true},
	Isize:       {name: "isize", managed: "isize", native: "::std::ptrdiff_t", signed: true, integer: true, standard: true},
	F32:         {name: "f32", managed: "f32", native: "float", size: 4, signed: true, standard: true},
	F64:         {name: "f64", managed: "f64", native: "double", size: 8, signed: true, standard: true},
	CChar:       {name: "c_char", managed: "::std::os::raw::c_char", native: "char", size: 1, signed: true, integer: true},
	CInt:        {name: "c_int", managed: "::std::os::raw::c_int", native: "int", size: 4, signed: true, integer: true},
	CLong:       {name: "c_long", managed: "::std::os::raw::c_long", native: "long", signed: true, integer: true},
	CULong:      {name: "c_ulong", managed: "::std::os::raw::c_ulong", native: "unsigned long", integer: true},
}

var primsByName = func() map[string]Prim {
	m := make(map[string]Prim, len(prims))
	for p := Bool; int(p) < len(prims); p++ {
		m[prims[p].name] = p
	}
	return m
}()

// ParsePrim looks up a primitive by its surface name.
func ParsePrim(name string) (Prim, bool) {
	p, ok := primsByName[name]
	return p, ok
}

// AllPrims returns every known primitive in declaration order.
func AllPrims() []Prim {
	out := make([]Prim, 0, len(prims)-1)
	for p := Bool; int(p) < len(prims); p++ {
		out = append(out, p)
	}
	return out
}

// StandardPrims returns the primitives enabled by default.
func StandardPrims() []Prim {
	var out []Prim
	for _, p := range AllPrims() {
		if prims[p].standard {
			out = append(out, p)
		}
	}
	return out
}

func (p Prim) valid() bool {
	return p > PrimInvalid && int(p) < len(prims)
}

func (p Prim) String() string {
	if p.valid() {
		return prims[p].name
	}
	return "invalid"
}

// ManagedName is the spelling used in the managed artifact.
func (p Prim) ManagedName() string {
	if p.valid() {
		return prims[p].managed
	}
	return ""
}

// NativeName is the spelling used in the native artifact.
func (p Prim) NativeName() string {
	if p.valid() {
		return prims[p].native
	}
	return ""
}

// IsInteger reports whether p can serve as an enum representation.
func (p Prim) IsInteger() bool {
	return p.valid() && prims[p].integer
}

// IsSigned reports whether p has a sign.
func (p Prim) IsSigned() bool {
	return p.valid() && prims[p].signed
}

// Layout returns the size and alignment of p on target t.
func (p Prim) Layout(t Target) Layout {
	if !p.valid() {
		return Layout{Size: 0, Align: 1}
	}
	size := prims[p].size
	if size == 0 {
		size = t.pointerWidth()
	}
	return Layout{Size: size, Align: size}
}

// Range returns the inclusive value range of an integer primitive on t.
func (p Prim) Range(t Target) (lo int64, hi uint64) {
	if !p.IsInteger() {
		return 0, 0
	}
	bits := p.Layout(t).Size * 8
	if p.IsSigned() {
		if bits >= 64 {
			return math.MinInt64, math.MaxInt64
		}
		return -(int64(1) << (bits - 1)), uint64(1)<<(bits-1) - 1
	}
	if bits >= 64 {
		return 0, math.MaxUint64
	}
	return 0, uint64(1)<<bits - 1
}

// Fits reports whether v is representable by p on target t.
func (p Prim) Fits(v int64, t Target) bool {
	lo, hi := p.Range(t)
	if v < lo {
		return false
	}
	return v < 0 || uint64(v) <= hi
}

// EnumRepr picks the narrowest standard integer able to hold every
// discriminant in [lo, hi].
func EnumRepr(lo, hi int64) Prim {
	t := Target{PointerWidth: 8}
	candidates := []Prim{U8, U16, U32, U64}
	if lo < 0 {
		candidates = []Prim{I8, I16, I32, I64}
	}
	for _, c := range candidates {
		if c.Fits(lo, t) && c.Fits(hi, t) {
			return c
		}
	}
	return I64
}
