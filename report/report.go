// Package report renders pipeline diagnostics for people.
package report

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/wippyai/bridgegen/errors"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	classStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B"))

	locationStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	pathStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))
)

// classOrder is the order classes are listed in.
var classOrder = []errors.Class{
	errors.ClassDeclaration,
	errors.ClassResolution,
	errors.ClassSignature,
	errors.ClassInternal,
	errors.ClassOther,
}

// Options controls rendering.
type Options struct {
	// Color enables terminal styling.
	Color bool
}

// ColorFor reports whether output to w should be styled: w must be a
// terminal and NO_COLOR must be unset.
func ColorFor(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Write renders err to w, styled when w is a terminal.
func Write(w io.Writer, err error) error {
	_, werr := io.WriteString(w, Render(err, Options{Color: ColorFor(w)}))
	return werr
}

// Render lists every diagnostic in err grouped by class. Within a class,
// diagnostics are ordered by source location; diagnostics without one keep
// their original order after those with one.
func Render(err error, opts Options) string {
	diags := errors.All(err)
	if len(diags) == 0 {
		return ""
	}

	style := func(s lipgloss.Style, text string) string {
		if !opts.Color || text == "" {
			return text
		}
		return s.Render(text)
	}

	groups := make(map[errors.Class][]*errors.Error)
	for _, d := range diags {
		groups[d.Class()] = append(groups[d.Class()], d)
	}

	var b strings.Builder
	noun := "diagnostics"
	if len(diags) == 1 {
		noun = "diagnostic"
	}
	b.WriteString(style(headerStyle, fmt.Sprintf("%d %s", len(diags), noun)))
	b.WriteByte('\n')

	for _, c := range classOrder {
		group := groups[c]
		if len(group) == 0 {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool {
			return before(group[i].Location, group[j].Location)
		})

		b.WriteByte('\n')
		b.WriteString(style(classStyle, string(c)))
		b.WriteByte('\n')
		for _, d := range group {
			b.WriteString("  ")
			if loc := d.Location.String(); loc != "" {
				b.WriteString(style(locationStyle, loc))
				b.WriteString(": ")
			}
			b.WriteString(style(kindStyle, "["+string(d.Phase)+"] "+string(d.Kind)))
			if len(d.Path) > 0 {
				b.WriteString(" at ")
				b.WriteString(style(pathStyle, strings.Join(d.Path, ".")))
			}
			if d.Detail != "" {
				b.WriteString(": ")
				b.WriteString(d.Detail)
			}
			if d.Cause != nil {
				b.WriteString(" (caused by: ")
				b.WriteString(d.Cause.Error())
				b.WriteByte(')')
			}
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// before orders located diagnostics by file, line, and column, ahead of
// unlocated ones.
func before(a, b errors.Location) bool {
	switch {
	case a.IsZero() || b.IsZero():
		return !a.IsZero() && b.IsZero()
	case a.File != b.File:
		return a.File < b.File
	case a.Line != b.Line:
		return a.Line < b.Line
	default:
		return a.Column < b.Column
	}
}
