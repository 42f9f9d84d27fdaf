package emit

import "testing"

func TestWriter(t *testing.T) {
	w := New("  ")
	w.Line("a {")
	w.Indent()
	w.Line("b = %d;", 1)
	w.Block("if (x) {", "}", func() {
		w.Line("c();")
	})
	w.Dedent()
	w.Line("}")
	w.Blank()
	w.Blank()
	w.Comment("//", "one\n\ntwo")

	want := "a {\n  b = 1;\n  if (x) {\n    c();\n  }\n}\n\n// one\n//\n// two\n"
	if got := w.String(); got != want {
		t.Errorf("output:\n%q\nwant:\n%q", got, want)
	}
}

func TestLineWithoutArgs(t *testing.T) {
	w := New("\t")
	w.Indent()
	w.Line("{}")
	if got := w.String(); got != "\t{}\n" {
		t.Errorf("got %q", got)
	}
}

func TestDedup(t *testing.T) {
	got := Dedup([]string{"b.h", "a.h", "b.h", "c.h", "a.h"})
	want := []string{"b.h", "a.h", "c.h"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
		}
	}
}

func TestJoin(t *testing.T) {
	if got := Join("a", "", "b"); got != "a, b" {
		t.Errorf("Join() = %q", got)
	}
	if got := Join(); got != "" {
		t.Errorf("Join() = %q", got)
	}
}
