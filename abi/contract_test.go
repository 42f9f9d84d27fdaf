package abi

import (
	"testing"

	"github.com/Masterminds/semver/v3"
)

func TestContractFieldOrder(t *testing.T) {
	tests := []struct {
		kind   ContainerKind
		fields []string
		size   uint32
	}{
		{OwningUnique, []string{"ptr", "drop"}, 16},
		{OwningShared, []string{"ptr", "ctrl"}, 16},
		{DynString, []string{"ptr", "cap", "len"}, 24},
		{DynSequence, []string{"ptr", "cap", "len"}, 24},
	}

	for _, tc := range tests {
		t.Run(tc.kind.String(), func(t *testing.T) {
			c := ContractFor(tc.kind, DefaultTarget)
			if len(c.Fields) != len(tc.fields) {
				t.Fatalf("got %d fields, want %d", len(c.Fields), len(tc.fields))
			}
			for i, name := range tc.fields {
				if c.Fields[i].Name != name {
					t.Errorf("field %d: got %q, want %q", i, c.Fields[i].Name, name)
				}
				if c.Fields[i].Offset != uint32(i)*8 {
					t.Errorf("field %q offset: got %d", name, c.Fields[i].Offset)
				}
			}
			if c.Layout.Size != tc.size {
				t.Errorf("size: got %d, want %d", c.Layout.Size, tc.size)
			}
		})
	}
}

func TestContract32Bit(t *testing.T) {
	c := ContractFor(DynSequence, Target{PointerWidth: 4})
	if c.Layout.Size != 12 || c.Layout.Align != 4 {
		t.Errorf("vec on 32-bit: %v", c.Layout)
	}
	if c.Field("len").Offset != 8 {
		t.Errorf("len offset: %d", c.Field("len").Offset)
	}
}

func TestControlBlock(t *testing.T) {
	for _, w := range []uint32{4, 8} {
		cb := ControlBlockFor(Target{PointerWidth: w})
		count := cb.Field("count")
		if count.Offset != 0 || count.Size != 8 {
			t.Errorf("width %d: count field %+v", w, count)
		}
		if cb.Layout.Align != 8 {
			t.Errorf("width %d: control block align %d", w, cb.Layout.Align)
		}
	}
}

func TestOptionLayout(t *testing.T) {
	tests := []struct {
		elem    Layout
		size    uint32
		payload uint32
	}{
		{Layout{1, 1}, 2, 1},
		{Layout{4, 4}, 8, 4},
		{Layout{8, 8}, 16, 8},
		{Layout{24, 8}, 32, 8},
	}
	for _, tc := range tests {
		l, off := OptionLayout(tc.elem)
		if l.Size != tc.size || off != tc.payload {
			t.Errorf("OptionLayout(%v) = %v, %d; want size %d payload %d", tc.elem, l, off, tc.size, tc.payload)
		}
	}
}

func TestOutcomeLayout(t *testing.T) {
	o := OutcomeFor(DefaultTarget)
	if o.Tag.Offset != 0 || o.Message.Offset != 8 {
		t.Errorf("outcome fields: tag@%d msg@%d", o.Tag.Offset, o.Message.Offset)
	}
	if o.Layout.Size != 32 {
		t.Errorf("outcome size %d, want 32", o.Layout.Size)
	}
}

func TestInstantiate(t *testing.T) {
	m := NewMangler(semver.MustParse("0.1.0"), "org::demo")
	c := ContractFor(DynSequence, DefaultTarget)
	g := Instantiate(c, m, "i32", I32.Layout(DefaultTarget), "", SideManaged)

	if g.Key() != "vec_i32" {
		t.Errorf("Key = %q", g.Key())
	}
	if got := g.Symbol(OpLen); got != "bridge01$org$demo$vec$i32$len" {
		t.Errorf("len symbol = %q", got)
	}
	if g.Symbol(OpClone) != "" {
		t.Error("vec should not have a clone op")
	}
	if len(g.Symbols) != len(c.Ops) {
		t.Errorf("symbols %d, ops %d", len(g.Symbols), len(c.Ops))
	}

	s := Instantiate(ContractFor(DynString, DefaultTarget), m, "ignored", Layout{}, "", SideManaged)
	if s.Key() != "string" || s.Symbol(OpDrop) != "bridge01$org$demo$string$drop" {
		t.Errorf("string glue: key %q drop %q", s.Key(), s.Symbol(OpDrop))
	}

	o := Instantiate(ContractFor(Optional, DefaultTarget), m, "u64", U64.Layout(DefaultTarget), "", SideManaged)
	if o.Handle.Size != 16 || o.PayloadOffset != 8 {
		t.Errorf("option glue: %v payload %d", o.Handle, o.PayloadOffset)
	}
}

func TestVersionPrefix(t *testing.T) {
	tests := []struct {
		version string
		prefix  string
		ok      bool
	}{
		{"0.1.0", "bridge01", true},
		{"0.3.7", "bridge03", true},
		{"1.2.0", "bridge12", true},
		{"2.0.0", "", false},
		{"0.0.9", "", false},
		{"not-a-version", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.version, func(t *testing.T) {
			v, err := ParseVersion(tc.version)
			if (err == nil) != tc.ok {
				t.Fatalf("ParseVersion err = %v, want ok=%v", err, tc.ok)
			}
			if tc.ok && PrefixFor(v) != tc.prefix {
				t.Errorf("PrefixFor = %q, want %q", PrefixFor(v), tc.prefix)
			}
		})
	}
}

func TestManglerSymbols(t *testing.T) {
	m := Mangler{Prefix: "bridge01"}
	if got := m.Function("greet"); got != "bridge01$greet" {
		t.Errorf("Function = %q", got)
	}
	if got := m.Method("Widget", "len"); got != "bridge01$Widget$len" {
		t.Errorf("Method = %q", got)
	}
	if got := m.Deleter("Widget"); got != "bridge01$drop$Widget" {
		t.Errorf("Deleter = %q", got)
	}
}

func TestIdentifiers(t *testing.T) {
	tests := []struct {
		name     string
		ident    bool
		reserved bool
	}{
		{"Engine", true, false},
		{"_x9", true, false},
		{"new_engine", true, false},
		{"9lives", false, false},
		{"my-point", false, false},
		{"x y", false, false},
		{"a$b", false, false},
		{"", false, false},
		{"string", true, true},
		{"vec", true, true},
		{"drop", true, true},
		{"String", true, false},
	}
	for _, tt := range tests {
		if got := IsIdentifier(tt.name); got != tt.ident {
			t.Errorf("IsIdentifier(%q) = %v, want %v", tt.name, got, tt.ident)
		}
		if got := ReservedSegment(tt.name); got != tt.reserved {
			t.Errorf("ReservedSegment(%q) = %v, want %v", tt.name, got, tt.reserved)
		}
	}
}

func TestSymbolShapesDistinct(t *testing.T) {
	m := Mangler{Prefix: "bridge01", Namespace: []string{"demo"}}
	// Method types are never reserved segments, so the first segment after
	// the namespace tells a method from a deleter or a container op.
	seen := make(map[string]string)
	add := func(what, sym string) {
		if prev, dup := seen[sym]; dup {
			t.Errorf("%s and %s share symbol %s", prev, what, sym)
		}
		seen[sym] = what
	}
	add("function len", m.Function("len"))
	add("function drop", m.Function("drop"))
	add("method Str.len", m.Method("Str", "len"))
	add("method Widget.drop", m.Method("Widget", "drop"))
	add("deleter Widget", m.Deleter("Widget"))
	add("deleter Str", m.Deleter("Str"))
	for _, op := range []Op{OpNew, OpLen, OpDrop} {
		add("string "+string(op), m.Op(DynString, "", op))
		add("vec<Widget> "+string(op), m.Op(DynSequence, "Widget", op))
	}
}

func TestSide(t *testing.T) {
	s, ok := ParseSide("native")
	if !ok || s != SideNative || s.Other() != SideManaged {
		t.Errorf("ParseSide(native) = %v %v", s, ok)
	}
	if _, ok := ParseSide("both"); ok {
		t.Error("ParseSide accepted an unknown side")
	}
}
