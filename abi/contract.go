package abi

// Side identifies one of the two toolchains sharing the boundary.
type Side uint8

const (
	SideManaged Side = iota + 1
	SideNative
)

func (s Side) String() string {
	switch s {
	case SideManaged:
		return "managed"
	case SideNative:
		return "native"
	default:
		return "unknown"
	}
}

// Other returns the opposite side.
func (s Side) Other() Side {
	if s == SideManaged {
		return SideNative
	}
	return SideManaged
}

// ParseSide parses a side tag.
func ParseSide(s string) (Side, bool) {
	switch s {
	case "managed":
		return SideManaged, true
	case "native":
		return SideNative, true
	default:
		return 0, false
	}
}

// ContainerKind enumerates the built-in container families.
type ContainerKind uint8

const (
	OwningUnique ContainerKind = iota + 1
	OwningShared
	DynString
	DynSequence
	Optional
)

var containerNames = [...]string{
	OwningUnique: "unique",
	OwningShared: "shared",
	DynString:    "string",
	DynSequence:  "vec",
	Optional:     "option",
}

func (k ContainerKind) String() string {
	if k >= OwningUnique && int(k) < len(containerNames) {
		return containerNames[k]
	}
	return "invalid"
}

// Generic reports whether the family takes an element type.
func (k ContainerKind) Generic() bool {
	return k != DynString
}

// Indirect reports whether the element is stored behind a pointer owned by
// the handle, so the element itself never crosses by value.
func (k ContainerKind) Indirect() bool {
	return k == OwningUnique || k == OwningShared
}

// Op is an operation of a container contract.
type Op string

const (
	OpNew          Op = "new"
	OpFromRawParts Op = "from_raw_parts"
	OpLen          Op = "len"
	OpGet          Op = "get"
	OpPush         Op = "push"
	OpRelease      Op = "release"
	OpClone        Op = "clone"
	OpDrop         Op = "drop"
)

// Field is a fixed-width field of a contract's handle.
type Field struct {
	Name   string
	Offset uint32
	Size   uint32
}

// Contract is the ABI-stable definition of one container family. It does not
// depend on the element type: an instantiation only substitutes the element
// size, alignment, and destructor callback.
type Contract struct {
	Kind   ContainerKind
	Fields []Field
	Ops    []Op
	Layout Layout
}

// Field returns the named field.
func (c Contract) Field(name string) Field {
	for _, f := range c.Fields {
		if f.Name == name {
			return f
		}
	}
	return Field{}
}

// ContractFor returns the contract of family k on target t. The Optional
// family has a fixed discriminant cell; its payload offset depends on the
// element and is computed by OptionLayout.
func ContractFor(k ContainerKind, t Target) Contract {
	w := t.pointerWidth()
	words := func(names ...string) []Field {
		out := make([]Field, len(names))
		for i, n := range names {
			out[i] = Field{Name: n, Offset: uint32(i) * w, Size: w}
		}
		return out
	}

	switch k {
	case OwningUnique:
		return Contract{
			Kind:   k,
			Fields: words("ptr", "drop"),
			Ops:    []Op{OpNew, OpGet, OpRelease, OpDrop},
			Layout: Layout{Size: 2 * w, Align: w},
		}
	case OwningShared:
		return Contract{
			Kind:   k,
			Fields: words("ptr", "ctrl"),
			Ops:    []Op{OpNew, OpClone, OpGet, OpDrop},
			Layout: Layout{Size: 2 * w, Align: w},
		}
	case DynString, DynSequence:
		return Contract{
			Kind:   k,
			Fields: words("ptr", "cap", "len"),
			Ops:    []Op{OpNew, OpFromRawParts, OpLen, OpGet, OpPush, OpDrop},
			Layout: Layout{Size: 3 * w, Align: w},
		}
	case Optional:
		return Contract{
			Kind:   k,
			Fields: []Field{{Name: "present", Offset: 0, Size: 1}},
			Ops:    []Op{OpDrop},
			Layout: Layout{Size: 1, Align: 1},
		}
	default:
		return Contract{}
	}
}

// OptionLayout places the payload after the discriminant cell.
func OptionLayout(elem Layout) (layout Layout, payloadOffset uint32) {
	align := elem.Align
	if align < 1 {
		align = 1
	}
	payloadOffset = AlignTo(1, align)
	return Layout{Size: AlignTo(payloadOffset+elem.Size, align), Align: align}, payloadOffset
}

// ControlBlock is the shared-ownership control block. The reference count is
// a 64-bit atomic at offset 0 on every target; both sides increment and
// decrement it in place.
type ControlBlock struct {
	Fields []Field
	Layout Layout
}

// ControlBlockFor returns the control block layout on target t.
func ControlBlockFor(t Target) ControlBlock {
	w := t.pointerWidth()
	return ControlBlock{
		Fields: []Field{
			{Name: "count", Offset: 0, Size: 8},
			{Name: "drop", Offset: 8, Size: w},
			{Name: "ptr", Offset: 8 + w, Size: w},
		},
		Layout: Layout{Size: AlignTo(8+2*w, 8), Align: 8},
	}
}

// Field returns the named control block field.
func (c ControlBlock) Field(name string) Field {
	for _, f := range c.Fields {
		if f.Name == name {
			return f
		}
	}
	return Field{}
}

// Outcome is the fallible calling convention: a discriminant cell followed by
// a dynamic string carrying the failure message. Tag 0 means success.
type Outcome struct {
	Tag     Field
	Message Field
	Layout  Layout
}

const (
	OutcomeOK  = 0
	OutcomeErr = 1
)

// OutcomeFor returns the Outcome layout on target t.
func OutcomeFor(t Target) Outcome {
	str := ContractFor(DynString, t)
	msgOff := AlignTo(1, str.Layout.Align)
	return Outcome{
		Tag:     Field{Name: "tag", Offset: 0, Size: 1},
		Message: Field{Name: "msg", Offset: msgOff, Size: str.Layout.Size},
		Layout:  Layout{Size: AlignTo(msgOff+str.Layout.Size, str.Layout.Align), Align: str.Layout.Align},
	}
}
