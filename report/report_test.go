package report

import (
	"bytes"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/wippyai/bridgegen/errors"
	"github.com/wippyai/bridgegen/normalize"
	"github.com/wippyai/bridgegen/surface"
)

func TestRender(t *testing.T) {
	loc := func(line, col int) errors.Location {
		return errors.Location{File: "bridge.yaml", Line: line, Column: col}
	}
	err := errors.Append(nil,
		errors.OpaqueByValue(loc(9, 7), []string{"Holder", "e"}, "Engine"),
		errors.DuplicateName(loc(4, 3), "type", "Point", loc(2, 3)),
		errors.Signature(errors.KindFallibility, loc(12, 5), []string{"run"}, "Result may only appear as the return of a fallible function"),
		errors.Unresolved(loc(7, 9), []string{"Holder", "p"}, "Pointt"),
		errors.Internal(errors.PhaseGenerate, "native: no glue for vec_u8"),
	)

	want := `5 diagnostics

DeclarationError
  bridge.yaml:4:3: [normalize] duplicate_name at Point: type "Point" is declared more than once (first declared at bridge.yaml:2:3)

TypeResolutionError
  bridge.yaml:7:9: [resolve] unresolved_type at Holder.p: unknown type "Pointt"
  bridge.yaml:9:7: [resolve] opaque_by_value at Holder.e: opaque type "Engine" cannot cross the boundary by value; use a reference or an owning pointer

SignatureError
  bridge.yaml:12:5: [validate] fallibility_mismatch at run: Result may only appear as the return of a fallible function

InternalInvariantViolation
  [generate] internal_invariant: native: no glue for vec_u8
`
	if got := Render(err, Options{}); got != want {
		t.Errorf("Render() =\n%s\nwant\n%s", got, want)
	}
}

func TestRenderEmpty(t *testing.T) {
	if got := Render(nil, Options{}); got != "" {
		t.Errorf("Render(nil) = %q", got)
	}
}

func TestRenderForeignError(t *testing.T) {
	got := Render(stderrors.New("disk full"), Options{})
	want := "1 diagnostic\n\nError\n  [generate] invalid_input (caused by: disk full)\n"
	if got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestRenderColorKeepsText(t *testing.T) {
	err := errors.Unresolved(errors.Location{File: "a.yaml", Line: 1}, []string{"S", "f"}, "X")
	got := Render(err, Options{Color: true})
	for _, s := range []string{"1 diagnostic", "TypeResolutionError", "a.yaml:1", "S.f", `unknown type "X"`} {
		if !strings.Contains(got, s) {
			t.Errorf("colored output lacks %q:\n%s", s, got)
		}
	}
}

func TestWriteToBuffer(t *testing.T) {
	f, err := surface.Parse([]byte(`
items:
  - kind: struct
    name: Point
    fields: [{name: x, type: f64}]
  - kind: enum
    name: Point
    variants: [A]
`), "dup.yaml")
	if err != nil {
		t.Fatal(err)
	}
	_, err = normalize.Normalize(f, nil)
	if err == nil {
		t.Fatal("Normalize() accepted a duplicate name")
	}

	var buf bytes.Buffer
	if ColorFor(&buf) {
		t.Error("ColorFor(buffer) = true")
	}
	if werr := Write(&buf, err); werr != nil {
		t.Fatal(werr)
	}
	out := buf.String()
	if !strings.Contains(out, "DeclarationError") || !strings.Contains(out, "dup.yaml:6:") {
		t.Errorf("Write() output =\n%s", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("output to a buffer is styled")
	}
}
