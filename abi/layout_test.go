package abi

import "testing"

func TestPrimLayout(t *testing.T) {
	t64 := Target{PointerWidth: 8}
	t32 := Target{PointerWidth: 4}

	tests := []struct {
		prim  Prim
		tgt   Target
		size  uint32
		align uint32
	}{
		{Bool, t64, 1, 1},
		{U8, t64, 1, 1},
		{I16, t64, 2, 2},
		{U32, t64, 4, 4},
		{I64, t64, 8, 8},
		{F32, t64, 4, 4},
		{F64, t64, 8, 8},
		{Usize, t64, 8, 8},
		{Usize, t32, 4, 4},
		{CLong, t32, 4, 4},
	}

	for _, tc := range tests {
		t.Run(tc.prim.String(), func(t *testing.T) {
			l := tc.prim.Layout(tc.tgt)
			if l.Size != tc.size {
				t.Errorf("size: got %d, want %d", l.Size, tc.size)
			}
			if l.Align != tc.align {
				t.Errorf("align: got %d, want %d", l.Align, tc.align)
			}
		})
	}
}

func TestParsePrim(t *testing.T) {
	for _, p := range AllPrims() {
		got, ok := ParsePrim(p.String())
		if !ok || got != p {
			t.Errorf("ParsePrim(%q) = %v, %v", p.String(), got, ok)
		}
	}
	if _, ok := ParsePrim("Widget"); ok {
		t.Error("ParsePrim accepted a non-primitive")
	}
}

func TestStandardPrims(t *testing.T) {
	std := StandardPrims()
	for _, p := range std {
		if p == CLong || p == CChar {
			t.Errorf("%v should not be standard", p)
		}
	}
	if len(std) != 13 {
		t.Errorf("got %d standard primitives, want 13", len(std))
	}
}

func TestPrimFits(t *testing.T) {
	tests := []struct {
		prim Prim
		v    int64
		want bool
	}{
		{U8, 255, true},
		{U8, 256, false},
		{U8, -1, false},
		{I8, -128, true},
		{I8, 128, false},
		{U64, 1 << 62, true},
		{I64, -1 << 63, true},
		{F32, 1, false},
	}
	for _, tc := range tests {
		if got := tc.prim.Fits(tc.v, DefaultTarget); got != tc.want {
			t.Errorf("%v.Fits(%d) = %v, want %v", tc.prim, tc.v, got, tc.want)
		}
	}
}

func TestEnumRepr(t *testing.T) {
	tests := []struct {
		lo, hi int64
		want   Prim
	}{
		{0, 3, U8},
		{0, 255, U8},
		{0, 256, U16},
		{0, 70000, U32},
		{-1, 5, I8},
		{-200, 5, I16},
	}
	for _, tc := range tests {
		if got := EnumRepr(tc.lo, tc.hi); got != tc.want {
			t.Errorf("EnumRepr(%d, %d) = %v, want %v", tc.lo, tc.hi, got, tc.want)
		}
	}
}

func TestLayoutStruct(t *testing.T) {
	tests := []struct {
		name    string
		fields  []Layout
		offsets []uint32
		size    uint32
		align   uint32
	}{
		{"empty", nil, nil, 0, 1},
		{"u8 u32", []Layout{{1, 1}, {4, 4}}, []uint32{0, 4}, 8, 4},
		{"u32 u8", []Layout{{4, 4}, {1, 1}}, []uint32{0, 4}, 8, 4},
		{"u8 u64 u16", []Layout{{1, 1}, {8, 8}, {2, 2}}, []uint32{0, 8, 16}, 24, 8},
		{"bools", []Layout{{1, 1}, {1, 1}, {1, 1}}, []uint32{0, 1, 2}, 3, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			names := make([]string, len(tc.fields))
			for i := range names {
				names[i] = string(rune('a' + i))
			}
			sl := LayoutStruct(names, tc.fields)
			if sl.Size != tc.size || sl.Align != tc.align {
				t.Errorf("got size=%d align=%d, want size=%d align=%d", sl.Size, sl.Align, tc.size, tc.align)
			}
			for i, want := range tc.offsets {
				if sl.Fields[i].Offset != want {
					t.Errorf("field %d offset: got %d, want %d", i, sl.Fields[i].Offset, want)
				}
			}
		})
	}
}

func TestLayoutValidate(t *testing.T) {
	tests := []struct {
		l  Layout
		ok bool
	}{
		{Layout{Size: 16, Align: 8}, true},
		{Layout{Size: 0, Align: 1}, true},
		{Layout{Size: 12, Align: 8}, false},
		{Layout{Size: 12, Align: 3}, false},
		{Layout{Size: 8, Align: 0}, false},
	}
	for _, tc := range tests {
		err := tc.l.Validate()
		if (err == nil) != tc.ok {
			t.Errorf("Validate(%v) = %v, want ok=%v", tc.l, err, tc.ok)
		}
	}
}

func TestAlignTo(t *testing.T) {
	tests := []struct{ off, align, want uint32 }{
		{0, 4, 0},
		{1, 4, 4},
		{4, 4, 4},
		{5, 8, 8},
		{7, 0, 7},
	}
	for _, tc := range tests {
		if got := AlignTo(tc.off, tc.align); got != tc.want {
			t.Errorf("AlignTo(%d, %d) = %d, want %d", tc.off, tc.align, got, tc.want)
		}
	}
}
