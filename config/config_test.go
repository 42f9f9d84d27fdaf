package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wippyai/bridgegen/abi"
	"github.com/wippyai/bridgegen/errors"
)

func TestDefault(t *testing.T) {
	c := Default()

	if c.Target().PointerWidth != 8 {
		t.Errorf("pointer width = %d, want 8", c.Target().PointerWidth)
	}
	if got := c.Mangler().Prefix; got != "bridge01" {
		t.Errorf("prefix = %q, want bridge01", got)
	}
	for _, p := range abi.StandardPrims() {
		if _, ok := c.Primitive(p.String()); !ok {
			t.Errorf("%s should be enabled by default", p)
		}
	}
	if _, ok := c.Primitive("c_long"); ok {
		t.Error("c_long should be disabled by default")
	}
}

func TestParse(t *testing.T) {
	src := `
abi_version = "1.2.3"
namespace = "org::demo"
pointer_width = 4
primitives = ["bool", "i32", "c_long"]

[layouts.Engine]
size = 48
align = 8
`
	c, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if got := c.Mangler().Symbol("f"); got != "bridge12$org$demo$f" {
		t.Errorf("symbol = %q", got)
	}
	if c.Target().PointerWidth != 4 {
		t.Errorf("pointer width = %d, want 4", c.PointerWidth)
	}
	p, ok := c.Primitive("c_long")
	if !ok || p != abi.CLong {
		t.Errorf("Primitive(c_long) = %v, %v", p, ok)
	}
	if _, ok := c.Primitive("u8"); ok {
		t.Error("u8 was not enumerated and must be disabled")
	}
	l, ok := c.OpaqueLayout("Engine")
	if !ok || l != (abi.Layout{Size: 48, Align: 8}) {
		t.Errorf("OpaqueLayout(Engine) = %v, %v", l, ok)
	}
	if names := c.LayoutNames(); len(names) != 1 || names[0] != "Engine" {
		t.Errorf("LayoutNames() = %v", names)
	}
}

func TestParseDefaults(t *testing.T) {
	c, err := Parse([]byte(`namespace = "x"`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if c.ABIVersion != abi.DefaultVersion || c.PointerWidth != 8 {
		t.Errorf("defaults not applied: %+v", c)
	}
	if _, ok := c.Primitive("usize"); !ok {
		t.Error("standard primitives should be enabled when none are listed")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind errors.Kind
	}{
		{"syntax", `abi_version = `, errors.KindInvalidInput},
		{"bad version", `abi_version = "banana"`, errors.KindInvalidInput},
		{"unsupported version", `abi_version = "3.0.0"`, errors.KindInvalidInput},
		{"pointer width", `pointer_width = 2`, errors.KindInvalidInput},
		{"unknown primitive", `primitives = ["u128"]`, errors.KindInvalidInput},
		{"layout align", "[layouts.X]\nsize = 8\nalign = 3", errors.KindInvalidLayout},
		{"layout size", "[layouts.X]\nsize = 6\nalign = 4", errors.KindInvalidLayout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			if err == nil {
				t.Fatal("expected error")
			}
			e, ok := err.(*errors.Error)
			if !ok {
				t.Fatalf("error type = %T", err)
			}
			if e.Phase != errors.PhaseConfig || e.Kind != tt.kind {
				t.Errorf("error = %v, want kind %s", e, tt.kind)
			}
		})
	}
}

func TestLoadAndEncode(t *testing.T) {
	c := Default()
	c.Namespace = "a::b"
	c.Layouts = map[string]LayoutConfig{"W": {Size: 16, Align: 8}}

	path := filepath.Join(t.TempDir(), "bridge.toml")
	if err := os.WriteFile(path, []byte(c.String()), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Namespace != "a::b" {
		t.Errorf("namespace = %q", got.Namespace)
	}
	if l, ok := got.OpaqueLayout("W"); !ok || l.Size != 16 {
		t.Errorf("OpaqueLayout(W) = %v, %v", l, ok)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}
