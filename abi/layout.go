package abi

import "fmt"

// Target describes the machine properties the contract depends on.
type Target struct {
	PointerWidth uint32
}

// DefaultTarget is a 64-bit target.
var DefaultTarget = Target{PointerWidth: 8}

func (t Target) pointerWidth() uint32 {
	if t.PointerWidth == 0 {
		return 8
	}
	return t.PointerWidth
}

// Pointer returns the layout of one pointer-sized word.
func (t Target) Pointer() Layout {
	w := t.pointerWidth()
	return Layout{Size: w, Align: w}
}

// Layout is the size and alignment of a value crossing the boundary.
type Layout struct {
	Size  uint32
	Align uint32
}

// Validate checks that a side-supplied layout is usable: the alignment must
// be a power of two and the size a multiple of it.
func (l Layout) Validate() error {
	if l.Align == 0 || l.Align&(l.Align-1) != 0 {
		return fmt.Errorf("alignment %d is not a power of two", l.Align)
	}
	if l.Size%l.Align != 0 {
		return fmt.Errorf("size %d is not a multiple of alignment %d", l.Size, l.Align)
	}
	return nil
}

func (l Layout) String() string {
	return fmt.Sprintf("size=%d align=%d", l.Size, l.Align)
}

// AlignTo rounds offset up to the next multiple of align.
func AlignTo(offset, align uint32) uint32 {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

// FieldLayout is a field placed inside an aggregate.
type FieldLayout struct {
	Name   string
	Offset uint32
	Layout
}

// StructLayout is the layout of a shared struct; fields keep declaration order.
type StructLayout struct {
	Fields []FieldLayout
	Layout
}

// Offset returns the offset of the named field.
func (s StructLayout) Offset(name string) (uint32, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Offset, true
		}
	}
	return 0, false
}

// LayoutStruct lays out fields sequentially with natural alignment, the rule
// both the managed repr(C) and the native aggregate follow.
func LayoutStruct(names []string, fields []Layout) StructLayout {
	if len(fields) == 0 {
		return StructLayout{Layout: Layout{Size: 0, Align: 1}}
	}

	out := StructLayout{Fields: make([]FieldLayout, len(fields))}
	maxAlign := uint32(1)
	offset := uint32(0)

	for i, fl := range fields {
		offset = AlignTo(offset, fl.Align)
		out.Fields[i] = FieldLayout{Name: names[i], Offset: offset, Layout: fl}
		if fl.Align > maxAlign {
			maxAlign = fl.Align
		}
		offset += fl.Size
	}

	out.Size = AlignTo(offset, maxAlign)
	out.Align = maxAlign
	return out
}

// LayoutSource supplies layouts of opaque types measured by their side of
// origin. The core consumes these values; it never computes them.
type LayoutSource interface {
	OpaqueLayout(name string) (Layout, bool)
}

// Layouts is a map-backed LayoutSource.
type Layouts map[string]Layout

// OpaqueLayout implements LayoutSource.
func (m Layouts) OpaqueLayout(name string) (Layout, bool) {
	l, ok := m[name]
	return l, ok
}
