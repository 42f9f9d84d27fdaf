// Package emit is a small indenting text writer shared by the generators.
package emit

import (
	"fmt"
	"strings"
)

// Writer accumulates generated source. It never fails; generators check
// their own invariants before writing.
type Writer struct {
	b      strings.Builder
	unit   string
	indent int
}

// New returns a Writer indenting with unit.
func New(unit string) *Writer {
	return &Writer{unit: unit}
}

// Line writes one indented line. Arguments are applied with fmt.Sprintf
// when present.
func (w *Writer) Line(format string, args ...any) {
	if format == "" && len(args) == 0 {
		w.b.WriteByte('\n')
		return
	}
	for i := 0; i < w.indent; i++ {
		w.b.WriteString(w.unit)
	}
	if len(args) > 0 {
		fmt.Fprintf(&w.b, format, args...)
	} else {
		w.b.WriteString(format)
	}
	w.b.WriteByte('\n')
}

// Blank writes an empty line unless the output already ends with one.
func (w *Writer) Blank() {
	s := w.b.String()
	if s == "" || strings.HasSuffix(s, "\n\n") {
		return
	}
	w.b.WriteByte('\n')
}

// Indent increases the indentation level.
func (w *Writer) Indent() { w.indent++ }

// Dedent decreases the indentation level.
func (w *Writer) Dedent() {
	if w.indent > 0 {
		w.indent--
	}
}

// Block writes open, the body one level deeper, then close.
func (w *Writer) Block(open, close string, body func()) {
	w.Line("%s", open)
	w.Indent()
	body()
	w.Dedent()
	w.Line("%s", close)
}

// Comment writes each line of text prefixed with marker.
func (w *Writer) Comment(marker, text string) {
	for _, l := range strings.Split(text, "\n") {
		if l == "" {
			w.Line("%s", marker)
			continue
		}
		w.Line("%s %s", marker, l)
	}
}

// String returns the accumulated output.
func (w *Writer) String() string {
	return w.b.String()
}

// Dedup returns items with later duplicates removed, keeping first-seen
// order.
func Dedup(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}

// Join renders a comma separated list, skipping empty entries.
func Join(parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}
