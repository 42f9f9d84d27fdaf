package managed

import (
	"regexp"
	"sort"
	"strings"
	"testing"

	"github.com/wippyai/bridgegen/abi"
	"github.com/wippyai/bridgegen/errors"
	"github.com/wippyai/bridgegen/gen/internal/gentest"
	"github.com/wippyai/bridgegen/gen/native"
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
		"use super::*;",
		"pub mod rt {",
		"#[repr(u8)]",
		"pub enum Mode {",
		"    Fast = 0,",
		"pub struct Engine {",
		"const DROP: rt::DropFn = ffi::bridge01__demo__drop__Engine;",
		"#[repr(C)]\n#[derive(Clone, Copy)]\npub struct Point {",
		"    pub x: f64,",
		"    pub label: rt::Optional<rt::Text>,",
		`#[export_name = "bridge01$demo$drop$Sink"]`,
		"unsafe impl rt::UniqueTarget for Sink {",
		`#[link_name = "bridge01$demo$Engine$feed"]`,
		"pub fn bridge01__demo__Engine__feed(self_: *mut Engine, data: *mut rt::Vector<u8>, ret_: *mut usize) -> rt::Outcome;",
		"pub fn new_engine(mode: Mode) -> rt::Unique<Engine> {",
		"impl Engine {",
		"pub fn feed(self: core::pin::Pin<&mut Self>, data: rt::Vector<u8>) -> Result<usize, rt::Error> {",
		"ffi::bridge01__demo__Engine__feed(self.get_unchecked_mut() as *mut Self, &mut *data as *mut rt::Vector<u8>, ret_.as_mut_ptr()).into_result()?;",
		"let mut e = core::mem::ManuallyDrop::new(e);",
		`#[export_name = "bridge01$demo$collect"]`,
		"unsafe extern \"C\" fn bridge01__demo__collect(sink: *const Sink, points: *mut rt::Vector<Point>, ret_: *mut rt::Vector<rt::Vector<u8>>) {",
		"let value = super::collect(&*sink, core::ptr::read(points));",
		"match super::describe(&*p) {",
		"Err(e) => rt::Outcome::err(e.to_string()),",
		"rt::abort_on_panic(|| unsafe { (&mut *this).push(core::ptr::read(value as *const Point)); })",
		`#[link_name = "bridge01$demo$unique$Engine$new"]`,
		"const _: () = assert!(core::mem::size_of::<Tagged>() == 56);",
		"const _: () = assert!(core::mem::offset_of!(Tagged, label) == 24);",
	}
	for _, s := range snippets {
		if !strings.Contains(out, s) {
			t.Errorf("output is missing %q", s)
		}
	}

	if strings.Contains(out, `#[export_name = "bridge01$demo$unique$Engine$new"]`) {
		t.Error("natively implemented glue must not be exported")
	}
	if strings.Contains(out, "#[repr(C)]\n#[derive(Clone, Copy)]\npub struct Tagged") {
		t.Error("Tagged owns a string and must not be Copy")
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

var (
	symbolRe    = regexp.MustCompile(`bridge01\$[A-Za-z0-9_$]+`)
	exportRe    = regexp.MustCompile(`#\[export_name = "([^"]+)"\]`)
	nativeDefRe = regexp.MustCompile(`extern "C" [^\n]*?(bridge01\$[A-Za-z0-9_$]+)\([^\n]*\) noexcept \{`)
)

func symbols(re *regexp.Regexp, s string, group int) []string {
	seen := make(map[string]bool)
	for _, m := range re.FindAllStringSubmatch(s, -1) {
		seen[m[group]] = true
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Every raw symbol must be named by both artifacts and defined by exactly
// one of them.
func TestArtifactsAgree(t *testing.T) {
	r := gentest.Resolve(t, gentest.Demo)
	rust := generate(t, r)
	cpp, err := native.Generate(r)
	if err != nil {
		t.Fatalf("native.Generate() error = %v", err)
	}

	all := symbols(symbolRe, cpp, 0)
	if got := symbols(symbolRe, rust, 0); strings.Join(got, " ") != strings.Join(all, " ") {
		t.Fatalf("symbol sets differ\nnative:  %v\nmanaged: %v", all, got)
	}

	defined := make(map[string]string)
	for _, s := range symbols(exportRe, rust, 1) {
		defined[s] = "managed"
	}
	for _, s := range symbols(nativeDefRe, cpp, 1) {
		if side, dup := defined[s]; dup {
			t.Errorf("%s is defined by both sides (first %s)", s, side)
		}
		defined[s] = "native"
	}
	for _, s := range all {
		if _, ok := defined[s]; !ok {
			t.Errorf("%s is declared but never defined", s)
		}
	}
}

func TestIdentifiers(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"x", "x"},
		{"type", "r#type"},
		{"self", "self_"},
		{"crate", "crate_"},
	}
	for _, tc := range tests {
		if got := ident(tc.in); got != tc.want {
			t.Errorf("ident(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
	if got := symbolIdent("bridge01$demo$f"); got != "bridge01__demo__f" {
		t.Errorf("symbolIdent() = %q", got)
	}
}

func TestEnumRepr(t *testing.T) {
	r := gentest.Resolve(t, `
module: e
items:
  - kind: enum
    name: Level
    variants:
      - {name: Low, value: -1}
      - {name: High, value: 200}
`)
	out := generate(t, r)
	if !strings.Contains(out, "#[repr(i16)]\n#[derive(Clone, Copy, Debug, PartialEq, Eq, Hash)]\npub enum Level {") {
		t.Error("Level should be represented as i16")
	}
	if !strings.Contains(out, "    Low = -1,") {
		t.Error("negative discriminant not rendered")
	}
}

func TestBorrowedReturn(t *testing.T) {
	r := gentest.Resolve(t, `
module: b
items:
  - kind: extern
    side: native
    types: [Store]
    functions:
      - name: pick
        params:
          - {name: a, type: {ref: Store}}
          - {name: b, type: {ref: Store}}
        returns: {ref: Store}
`)
	out := generate(t, r)
	for _, s := range []string{
		"pub fn pick<'a>(a: &'a Store, b: &'a Store) -> &'a Store {",
		"let mut ret_: *const Store = core::ptr::null_mut();",
		"&*ret_",
	} {
		if !strings.Contains(out, s) {
			t.Errorf("output is missing %q", s)
		}
	}
}

func TestOpaqueLayoutAssertion(t *testing.T) {
	r := gentest.Resolve(t, gentest.Demo)
	r.Opaque = map[string]abi.Layout{"Sink": {Size: 16, Align: 8}}
	out := generate(t, r)
	if !strings.Contains(out, "const _: () = assert!(core::mem::size_of::<Sink>() == 16);") {
		t.Error("supplied opaque layout is not asserted")
	}
}

func TestInternalInvariant(t *testing.T) {
	r := gentest.Resolve(t, gentest.Demo)
	r.Instantiations = append(r.Instantiations, abi.Glue{Kind: abi.DynSequence, Elem: "Ghost"})
	if _, err := Generate(r); !errors.HasClass(err, errors.ClassInternal) {
		t.Errorf("Generate() error = %v, want %s", err, errors.ClassInternal)
	}
	if _, err := Generate(nil); !errors.HasClass(err, errors.ClassInternal) {
		t.Errorf("Generate(nil) error = %v", err)
	}
}

var (
	exportedSymbol = regexp.MustCompile(`#\[export_name = "([^"]+)"\]`)
	importedSymbol = regexp.MustCompile(`#\[link_name = "([^"]+)"\]`)
)

func TestSymbolsExportedOrImportedOnce(t *testing.T) {
	for name, src := range map[string]string{"demo": gentest.Demo, "methods": gentest.Methods} {
		t.Run(name, func(t *testing.T) {
			out := generate(t, gentest.Resolve(t, src))
			exported := make(map[string]int)
			for _, m := range exportedSymbol.FindAllStringSubmatch(out, -1) {
				exported[m[1]]++
			}
			imported := make(map[string]int)
			for _, m := range importedSymbol.FindAllStringSubmatch(out, -1) {
				imported[m[1]]++
			}
			if len(exported) == 0 || len(imported) == 0 {
				t.Fatalf("exported %d, imported %d symbols", len(exported), len(imported))
			}
			for sym, n := range exported {
				if n > 1 {
					t.Errorf("%s is exported %d times", sym, n)
				}
				if imported[sym] > 0 {
					t.Errorf("%s is both exported and imported", sym)
				}
			}
			for sym, n := range imported {
				if n > 1 {
					t.Errorf("%s is imported %d times", sym, n)
				}
			}
		})
	}
}

func TestNoImplicitAutorefThroughRawPointers(t *testing.T) {
	out := generate(t, gentest.Resolve(t, gentest.Demo))
	for _, s := range []string{"(*this).", "&(*this)[", "(*self.ctrl).count.", "(*ctrl).count."} {
		if strings.Contains(out, s) {
			t.Errorf("output dereferences a raw pointer with an implicit autoref: %q", s)
		}
	}
	for _, s := range []string{
		"(&*this).len()",
		"&(&*this)[index] as *const Point as *const core::ffi::c_void",
		"(&*this).as_bytes().len()",
	} {
		if !strings.Contains(out, s) {
			t.Errorf("output is missing %q", s)
		}
	}
}
