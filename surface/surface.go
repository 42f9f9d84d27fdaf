package surface

import (
	"strings"
)

// Pos is a 1-based line/column position. The zero value means unknown.
type Pos struct {
	Line   int
	Column int
}

// File is one declaration surface.
type File struct {
	Name   string  `yaml:"-"`
	Module string  `yaml:"module"`
	Items  []*Decl `yaml:"items"`
}

// Item kinds recognised by the normalizer.
const (
	KindOpaque = "opaque"
	KindStruct = "struct"
	KindEnum   = "enum"
	KindExtern = "extern"
)

// Decl is a top-level declaration. Which fields are meaningful depends on
// Kind; the normalizer rejects shapes outside the grammar.
type Decl struct {
	Kind      string         `yaml:"kind"`
	Name      string         `yaml:"name"`
	Side      Tags           `yaml:"side"`
	Repr      string         `yaml:"repr"`
	Fields    []*FieldDecl   `yaml:"fields"`
	Methods   []*FuncDecl    `yaml:"methods"`
	Variants  []*VariantDecl `yaml:"variants"`
	Types     []*TypeDecl    `yaml:"types"`
	Functions []*FuncDecl    `yaml:"functions"`
	Includes  []string       `yaml:"includes"`
	Pos       Pos            `yaml:"-"`
}

// TypeDecl declares an opaque type inside an extern block.
type TypeDecl struct {
	Name string `yaml:"name"`
	Pos  Pos    `yaml:"-"`
}

// FieldDecl is a struct field.
type FieldDecl struct {
	Name string    `yaml:"name"`
	Type *TypeExpr `yaml:"type"`
	Pos  Pos       `yaml:"-"`
}

// VariantDecl is an enum variant with an optional explicit discriminant.
type VariantDecl struct {
	Name  string `yaml:"name"`
	Value *int64 `yaml:"value"`
	Pos   Pos    `yaml:"-"`
}

// FuncDecl is a function signature.
type FuncDecl struct {
	Name     string       `yaml:"name"`
	Params   []*ParamDecl `yaml:"params"`
	Returns  *TypeExpr    `yaml:"returns"`
	Fallible bool         `yaml:"fallible"`
	Variadic bool         `yaml:"variadic"`
	Pos      Pos          `yaml:"-"`
}

// ParamDecl is a function parameter. Mode is empty for by-value passing.
type ParamDecl struct {
	Name string    `yaml:"name"`
	Type *TypeExpr `yaml:"type"`
	Mode string    `yaml:"mode"`
	Pos  Pos       `yaml:"-"`
}

// TypeExpr is a type as written. Exactly one of Name or Ref is set.
type TypeExpr struct {
	Name string      `yaml:"name"`
	Args []*TypeExpr `yaml:"args"`
	Ref  *TypeExpr   `yaml:"ref"`
	Mut  bool        `yaml:"mut"`
	Pos  Pos         `yaml:"-"`
}

// Tags is a list of tag values that may be written as a single scalar.
type Tags []string

// Type builds a named or generic type expression.
func Type(name string, args ...*TypeExpr) *TypeExpr {
	return &TypeExpr{Name: name, Args: args}
}

// Ref builds a borrowed reference expression.
func Ref(elem *TypeExpr, mut bool) *TypeExpr {
	return &TypeExpr{Ref: elem, Mut: mut}
}

func (t *TypeExpr) String() string {
	if t == nil {
		return "()"
	}
	if t.Ref != nil {
		if t.Mut {
			return "&mut " + t.Ref.String()
		}
		return "&" + t.Ref.String()
	}
	if len(t.Args) == 0 {
		return t.Name
	}
	args := make([]string, len(t.Args))
	for i, a := range t.Args {
		args[i] = a.String()
	}
	return t.Name + "<" + strings.Join(args, ", ") + ">"
}
