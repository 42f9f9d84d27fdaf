package native

import (
	"regexp"
	"strings"
	"testing"

	"github.com/wippyai/bridgegen/abi"
	"github.com/wippyai/bridgegen/errors"
	"github.com/wippyai/bridgegen/gen/internal/gentest"
	"github.com/wippyai/bridgegen/model"
)

func generate(t *testing.T, r *model.Resolved) string {
	t.Helper()
	out, err := Generate(r)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	return out
}

func TestGenerateDemo(t *testing.T) {
	out := generate(t, gentest.Resolve(t, gentest.Demo))

	snippets := []string{
		"#pragma once",
		`#include "demo/engine.h"`,
		"namespace demo {",
		"enum class Mode : ::std::uint8_t {",
		"  Fast = 0,",
		"  Slow = 1,",
		"struct Point {",
		"  double x;",
		"  ::bridge01::RawUnique raw_;",
		"class String final {",
		`static_assert(sizeof(Tagged) == 56, "Tagged size");`,
		`static_assert(offsetof(Tagged, label) == 24, "Tagged.label offset");`,
		`static_assert(sizeof(Option<String>) == 32, "option_string size");`,
		`extern "C" void bridge01$demo$drop$Engine(void *ptr) noexcept;`,
		`extern "C" void bridge01$demo$drop$Sink(void *ptr) noexcept;`,
		"Unique<Engine> new_engine(Mode mode);",
		"Shared<Engine> share(Unique<Engine> e);",
		`extern "C" ::bridge01::Outcome bridge01$demo$Engine$feed(Engine *self, Vec<::std::uint8_t> *data, ::std::size_t *ret_) noexcept {`,
		"new (ret_) ::std::size_t(self->feed(std::move(*data)));",
		"inline Vec<Vec<::std::uint8_t>> collect(const Sink &sink, Vec<Point> points) noexcept {",
		"::bridge01::Slot<Vec<Point>> points_arg(std::move(points));",
		"bridge01$demo$collect(&sink, points_arg.get(), ret_.get());",
		"inline String describe(const Point &p) {",
		"detail::check(out_);",
		"#ifdef BRIDGE01_DEMO_IMPLEMENTATION",
	}
	for _, s := range snippets {
		if !strings.Contains(out, s) {
			t.Errorf("output is missing %q", s)
		}
	}
}

func TestSectionOrder(t *testing.T) {
	out := generate(t, gentest.Resolve(t, gentest.Demo))

	markers := []string{
		"// Code generated by bridgegen",
		"#pragma once",
		"#include <atomic>",
		`#include "demo/engine.h"`,
		"#ifndef BRIDGE01_PRELUDE",
		"namespace demo {",
		"struct Point;",
		"enum class Mode : ::std::uint8_t {",
		"// Container glue.",
		"// Implemented by managed code.",
		"// Layout assertions.",
		"} // namespace demo",
		"#ifdef BRIDGE01_DEMO_IMPLEMENTATION",
	}
	last := -1
	for _, m := range markers {
		i := strings.Index(out, m)
		if i < 0 {
			t.Fatalf("marker %q not found", m)
		}
		if i < last {
			t.Errorf("marker %q is out of order", m)
		}
		last = i
	}
}

func TestDeterministic(t *testing.T) {
	r := gentest.Resolve(t, gentest.Demo)
	first := generate(t, r)
	for i := 0; i < 5; i++ {
		if got := generate(t, r); got != first {
			t.Fatal("output differs between runs")
		}
	}
}

func TestTrampolines(t *testing.T) {
	out := generate(t, gentest.Resolve(t, gentest.Demo))
	impl := out[strings.Index(out, "#ifdef BRIDGE01_DEMO_IMPLEMENTATION"):]

	tests := []struct {
		name string
		want string
	}{
		{"deleter", "delete static_cast<Engine *>(ptr);"},
		{"unique adopts", "out->drop = &bridge01$demo$drop$Engine;"},
		{"shared count", "ctrl->count.store(1, std::memory_order_relaxed);"},
		{"shared release", "if (self->ctrl != nullptr && self->ctrl->count.fetch_sub(1, std::memory_order_acq_rel) == 1) {"},
		{"infallible", "new (ret_) Unique<Engine>(new_engine(mode));"},
		{"fallible catch", "return detail::fail(e.what());"},
		{"unknown exception", `return detail::fail("unknown native exception");`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if !strings.Contains(impl, tc.want) {
				t.Errorf("implementation section is missing %q", tc.want)
			}
		})
	}

	if strings.Contains(impl, "bridge01$demo$vec$u8$push(") {
		t.Error("managed-implemented glue must not be defined natively")
	}
}

func TestManagedOpaqueLayout(t *testing.T) {
	r := gentest.Resolve(t, gentest.Demo)
	r.Opaque = map[string]abi.Layout{"Sink": {Size: 16, Align: 8}}
	out := generate(t, r)

	for _, s := range []string{
		"struct alignas(8) Sink final {",
		"  unsigned char opaque_[16];",
		`static_assert(sizeof(Sink) == 16, "Sink size");`,
	} {
		if !strings.Contains(out, s) {
			t.Errorf("output is missing %q", s)
		}
	}
}

func TestMemberFunctions(t *testing.T) {
	r := gentest.Resolve(t, `
module: shapes
items:
  - kind: struct
    name: Rect
    fields:
      - {name: w, type: f32}
      - {name: h, type: f32}
  - kind: extern
    side: managed
    functions:
      - name: area
        params: [{name: self, type: {ref: Rect}, mode: receiver}]
        returns: f32
  - kind: extern
    side: native
    functions:
      - name: scale
        params:
          - {name: self, type: {ref: Rect, mut: true}, mode: receiver}
          - {name: by, type: f32}
`)
	out := generate(t, r)

	for _, s := range []string{
		"  float area() const noexcept;",
		"  void scale(float by);",
		"inline float Rect::area() const noexcept {",
		"bridge01$demo$Rect$area(this, ret_.get());",
		"self->scale(by);",
	} {
		if !strings.Contains(out, s) {
			t.Errorf("output is missing %q", s)
		}
	}
}

func TestKeywordIdentifiers(t *testing.T) {
	r := gentest.Resolve(t, `
module: kw
items:
  - kind: struct
    name: Item
    fields:
      - {name: class, type: i32}
      - {name: new, type: i32}
`)
	out := generate(t, r)
	if !strings.Contains(out, "::std::int32_t class_;") || !strings.Contains(out, "offsetof(Item, new_)") {
		t.Error("keyword field names were not sanitized")
	}
}

func TestNamespace(t *testing.T) {
	r := gentest.Resolve(t, gentest.Demo)
	r.Mangler = abi.Mangler{Prefix: "bridge01", Namespace: []string{"org", "demo"}}
	out := generate(t, r)

	if !strings.Contains(out, "namespace org::demo {") {
		t.Error("nested namespace not used")
	}
	if got := ImplementationMacro(r); got != "BRIDGE01_ORG_DEMO_IMPLEMENTATION" {
		t.Errorf("ImplementationMacro() = %q", got)
	}
}

func TestInternalInvariant(t *testing.T) {
	r := gentest.Resolve(t, gentest.Demo)
	for _, it := range r.Module.Items {
		if b, ok := it.(*model.ExternBlock); ok {
			b.Functions[0].Params[0].Type = model.Named{Name: "Mode"}
			break
		}
	}

	_, err := Generate(r)
	if err == nil {
		t.Fatal("Generate() accepted an unresolved reference")
	}
	if !errors.HasClass(err, errors.ClassInternal) {
		t.Errorf("error class = %v, want %s", err, errors.ClassInternal)
	}

	if _, err := Generate(nil); !errors.HasClass(err, errors.ClassInternal) {
		t.Errorf("Generate(nil) error = %v", err)
	}
}

func TestMissingGlue(t *testing.T) {
	r := gentest.Resolve(t, gentest.Demo)
	r.Instantiations = append(r.Instantiations, abi.Glue{Kind: abi.DynSequence, Elem: "Ghost"})
	if _, err := Generate(r); !errors.HasClass(err, errors.ClassInternal) {
		t.Errorf("Generate() error = %v, want %s", err, errors.ClassInternal)
	}
}

var (
	memberDef    = regexp.MustCompile(`^inline (.*[^\w])(\w+)::(\w+)\((.*)\)((?: const)?(?: noexcept)?) \{$`)
	externSymbol = regexp.MustCompile(`^extern "C" .*?(bridge01\$[\w$]+)\(.*\)(?: noexcept)? ([{;])$`)
)

func TestMemberQualifiersMatch(t *testing.T) {
	out := generate(t, gentest.Resolve(t, gentest.Methods))

	checked := 0
	for _, line := range strings.Split(out, "\n") {
		m := memberDef.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		decl := m[1] + m[3] + "(" + m[4] + ")" + m[5] + ";"
		if !strings.Contains(out, "  "+decl+"\n") {
			t.Errorf("definition %q has no matching in-class declaration %q", line, decl)
		}
		checked++
	}
	if checked == 0 {
		t.Fatal("no member definitions found")
	}

	for _, s := range []string{
		"  Option<::std::uint8_t> peek(P p) const noexcept;",
		"  void poke(Vec<::std::uint8_t> data);",
		"  ::std::size_t len() const noexcept;",
		"  void drop() noexcept;",
	} {
		if !strings.Contains(out, s) {
			t.Errorf("output is missing %q", s)
		}
	}
}

func TestSymbolsDefinedOnce(t *testing.T) {
	for name, src := range map[string]string{"demo": gentest.Demo, "methods": gentest.Methods} {
		t.Run(name, func(t *testing.T) {
			out := generate(t, gentest.Resolve(t, src))
			defined := make(map[string]int)
			for _, line := range strings.Split(out, "\n") {
				m := externSymbol.FindStringSubmatch(line)
				if m != nil && m[2] == "{" {
					defined[m[1]]++
				}
			}
			if len(defined) == 0 {
				t.Fatal("no symbol definitions found")
			}
			for sym, n := range defined {
				if n > 1 {
					t.Errorf("%s is defined %d times", sym, n)
				}
			}
		})
	}
}
