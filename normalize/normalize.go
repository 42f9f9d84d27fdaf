// Package normalize lowers a structured declaration surface into the
// interface model.
//
// The normalizer is strict: the first malformed declaration stops it and no
// partial model is returned. It checks shape only; name resolution and the
// cross-language type rules belong to package resolve.
package normalize

import (
	"math"

	"github.com/wippyai/bridgegen/abi"
	"github.com/wippyai/bridgegen/errors"
	"github.com/wippyai/bridgegen/model"
	"github.com/wippyai/bridgegen/surface"
)

// PrimitiveSet reports which primitive spellings are enabled. Names outside
// the set lower to unresolved references.
type PrimitiveSet interface {
	Primitive(name string) (abi.Prim, bool)
}

type standardPrims struct{}

func (standardPrims) Primitive(name string) (abi.Prim, bool) {
	for _, p := range abi.StandardPrims() {
		if p.String() == name {
			return p, true
		}
	}
	return abi.PrimInvalid, false
}

// StandardPrimitives enables bool, the fixed-width integers, usize, isize,
// f32, and f64.
var StandardPrimitives PrimitiveSet = standardPrims{}

// DefaultModuleName names modules whose surface does not.
const DefaultModuleName = "bridge"

type scope map[string]errors.Location

type normalizer struct {
	file    string
	prims   PrimitiveSet
	types   scope
	funcs   scope
	methods map[string]scope
}

// Normalize converts f into a Module. prims selects the enabled primitive
// set; nil means StandardPrimitives.
func Normalize(f *surface.File, prims PrimitiveSet) (*model.Module, error) {
	if f == nil {
		return nil, errors.InvalidInput(errors.PhaseNormalize, "nil surface")
	}
	if prims == nil {
		prims = StandardPrimitives
	}

	n := &normalizer{
		file:    f.Name,
		prims:   prims,
		types:   make(scope),
		funcs:   make(scope),
		methods: make(map[string]scope),
	}

	m := &model.Module{Name: f.Module}
	if m.Name == "" {
		m.Name = DefaultModuleName
	}
	if !abi.IsIdentifier(m.Name) {
		return nil, errors.Malformed(errors.Location{File: f.Name}, nil, "module name %q is not an identifier", m.Name)
	}

	for i, d := range f.Items {
		if d == nil {
			return nil, errors.Malformed(errors.Location{File: f.Name}, nil, "item %d is empty", i)
		}
		items, err := n.decl(d)
		if err != nil {
			return nil, err
		}
		m.Items = append(m.Items, items...)
	}
	return m, nil
}

func (n *normalizer) loc(p surface.Pos) errors.Location {
	return errors.Location{File: n.file, Line: p.Line, Column: p.Column}
}

// reserved reports whether name is spelled by the type grammar itself.
func (n *normalizer) reserved(name string) bool {
	if _, ok := model.ContainerKindByName(name); ok {
		return true
	}
	if name == "Result" {
		return true
	}
	_, ok := abi.ParsePrim(name)
	return ok
}

func (n *normalizer) declareType(name string, loc errors.Location) *errors.Error {
	if n.reserved(name) {
		return errors.Malformed(loc, path(name), "%q is a built-in type name", name)
	}
	if abi.ReservedSegment(name) {
		return errors.Malformed(loc, path(name), "%q is reserved for generated symbols", name)
	}
	return n.declare(n.types, "type", name, loc)
}

// declare records name in s. Every declared name must be an identifier on
// both sides, which also keeps '$' out of generated symbols.
func (n *normalizer) declare(s scope, what, name string, loc errors.Location) *errors.Error {
	if !abi.IsIdentifier(name) {
		return errors.Malformed(loc, path(name), "%s name %q is not an identifier", what, name)
	}
	if first, dup := s[name]; dup {
		return errors.DuplicateName(loc, what, name, first)
	}
	s[name] = loc
	return nil
}

func (n *normalizer) decl(d *surface.Decl) ([]model.Item, error) {
	loc := n.loc(d.Pos)
	switch d.Kind {
	case surface.KindOpaque:
		return n.opaque(d, loc)
	case surface.KindStruct:
		return n.sharedStruct(d, loc)
	case surface.KindEnum:
		return n.enum(d, loc)
	case surface.KindExtern:
		return n.extern(d, loc)
	case "":
		return nil, errors.Malformed(loc, path(d.Name), "item has no kind")
	default:
		return nil, errors.Malformed(loc, path(d.Name), "unknown item kind %q", d.Kind)
	}
}

func path(parts ...string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (n *normalizer) side(d *surface.Decl, loc errors.Location, what string) (model.Side, error) {
	switch len(d.Side) {
	case 0:
		return 0, errors.New(errors.PhaseNormalize, errors.KindMissingSide).
			At(loc).Path(path(d.Name)...).Detail("%s must carry a side tag (managed or native)", what).Build()
	case 1:
	default:
		return 0, errors.New(errors.PhaseNormalize, errors.KindDuplicateSide).
			At(loc).Path(path(d.Name)...).Detail("%s carries %d side tags, want exactly one", what, len(d.Side)).Build()
	}
	s, ok := abi.ParseSide(d.Side[0])
	if !ok {
		return 0, errors.Malformed(loc, path(d.Name), "unknown side %q", d.Side[0])
	}
	return s, nil
}

func (n *normalizer) reject(d *surface.Decl, loc errors.Location, allowed ...string) error {
	present := map[string]bool{
		"side":      len(d.Side) > 0,
		"repr":      d.Repr != "",
		"fields":    len(d.Fields) > 0,
		"methods":   len(d.Methods) > 0,
		"variants":  len(d.Variants) > 0,
		"types":     len(d.Types) > 0,
		"functions": len(d.Functions) > 0,
		"includes":  len(d.Includes) > 0,
	}
	for _, a := range allowed {
		delete(present, a)
	}
	for _, key := range []string{"side", "repr", "fields", "methods", "variants", "types", "functions", "includes"} {
		if present[key] {
			return errors.Malformed(loc, path(d.Name), "%s item cannot have %s", d.Kind, key)
		}
	}
	return nil
}

func (n *normalizer) opaque(d *surface.Decl, loc errors.Location) ([]model.Item, error) {
	if d.Name == "" {
		return nil, errors.Malformed(loc, nil, "opaque type has no name")
	}
	if err := n.reject(d, loc, "side"); err != nil {
		return nil, err
	}
	side, err := n.side(d, loc, "opaque type")
	if err != nil {
		return nil, err
	}
	if err := n.declareType(d.Name, loc); err != nil {
		return nil, err
	}
	return []model.Item{&model.OpaqueType{Name: d.Name, Side: side, Location: loc}}, nil
}

func (n *normalizer) sharedStruct(d *surface.Decl, loc errors.Location) ([]model.Item, error) {
	if d.Name == "" {
		return nil, errors.Malformed(loc, nil, "struct has no name")
	}
	if len(d.Methods) > 0 {
		return nil, errors.Malformed(n.loc(d.Methods[0].Pos), path(d.Name, d.Methods[0].Name),
			"shared struct cannot declare methods; declare them in an extern block with a receiver")
	}
	if err := n.reject(d, loc, "fields"); err != nil {
		return nil, err
	}
	if len(d.Fields) == 0 {
		return nil, errors.Malformed(loc, path(d.Name), "shared struct has no fields")
	}
	if err := n.declareType(d.Name, loc); err != nil {
		return nil, err
	}

	s := &model.SharedStruct{Name: d.Name, Location: loc}
	fields := make(scope, len(d.Fields))
	for _, fd := range d.Fields {
		if fd == nil {
			return nil, errors.Malformed(loc, path(d.Name), "empty field")
		}
		floc := n.loc(fd.Pos)
		if fd.Name == "" {
			return nil, errors.Malformed(floc, path(d.Name), "field has no name")
		}
		if err := n.declare(fields, "field", fd.Name, floc); err != nil {
			err.Path = path(d.Name, fd.Name)
			return nil, err
		}
		t, err := n.lower(fd.Type, floc, path(d.Name, fd.Name))
		if err != nil {
			return nil, err
		}
		s.Fields = append(s.Fields, model.Field{Name: fd.Name, Type: t, Location: floc})
	}
	return []model.Item{s}, nil
}

func (n *normalizer) enum(d *surface.Decl, loc errors.Location) ([]model.Item, error) {
	if d.Name == "" {
		return nil, errors.Malformed(loc, nil, "enum has no name")
	}
	if err := n.reject(d, loc, "repr", "variants"); err != nil {
		return nil, err
	}
	if len(d.Variants) == 0 {
		return nil, errors.Malformed(loc, path(d.Name), "enum has no variants")
	}

	e := &model.Enum{Name: d.Name, Location: loc}
	if d.Repr != "" {
		p, ok := n.prims.Primitive(d.Repr)
		if !ok || !p.IsInteger() {
			return nil, errors.Malformed(loc, path(d.Name), "enum representation %q is not an enabled integer primitive", d.Repr)
		}
		e.Repr = p
	}
	if err := n.declareType(d.Name, loc); err != nil {
		return nil, err
	}

	names := make(scope, len(d.Variants))
	values := make(map[int64]string, len(d.Variants))
	var next int64
	var exhausted bool
	for i, vd := range d.Variants {
		if vd == nil || vd.Name == "" {
			return nil, errors.Malformed(loc, path(d.Name), "variant %d has no name", i)
		}
		vloc := n.loc(vd.Pos)
		if err := n.declare(names, "variant", vd.Name, vloc); err != nil {
			err.Path = path(d.Name, vd.Name)
			return nil, err
		}
		v := next
		if vd.Value != nil {
			v = *vd.Value
		} else if exhausted {
			return nil, errors.Malformed(vloc, path(d.Name, vd.Name), "implicit discriminant overflows after %d", int64(math.MaxInt64))
		}
		if prev, dup := values[v]; dup {
			return nil, errors.Malformed(vloc, path(d.Name, vd.Name), "discriminant %d is already used by %s", v, prev)
		}
		if e.Repr != abi.PrimInvalid && !e.Repr.Fits(v, abi.DefaultTarget) {
			return nil, errors.Malformed(vloc, path(d.Name, vd.Name), "discriminant %d does not fit %s", v, e.Repr)
		}
		values[v] = vd.Name
		e.Variants = append(e.Variants, model.Variant{Name: vd.Name, Value: v, Location: vloc})
		next = v + 1
		exhausted = v == math.MaxInt64
	}
	return []model.Item{e}, nil
}

func (n *normalizer) extern(d *surface.Decl, loc errors.Location) ([]model.Item, error) {
	if d.Name != "" {
		return nil, errors.Malformed(loc, path(d.Name), "extern block cannot be named")
	}
	if err := n.reject(d, loc, "side", "types", "functions", "includes"); err != nil {
		return nil, err
	}
	side, err := n.side(d, loc, "extern block")
	if err != nil {
		return nil, err
	}

	var items []model.Item
	for _, td := range d.Types {
		if td == nil || td.Name == "" {
			return nil, errors.Malformed(loc, nil, "extern block type has no name")
		}
		tloc := n.loc(td.Pos)
		if err := n.declareType(td.Name, tloc); err != nil {
			return nil, err
		}
		items = append(items, &model.OpaqueType{Name: td.Name, Side: side, Location: tloc})
	}

	b := &model.ExternBlock{Side: side, Location: loc}
	b.Includes = append(b.Includes, d.Includes...)
	for _, fd := range d.Functions {
		if fd == nil {
			return nil, errors.Malformed(loc, nil, "empty function")
		}
		fn, err := n.function(fd)
		if err != nil {
			return nil, err
		}
		b.Functions = append(b.Functions, fn)
	}
	return append(items, b), nil
}

func (n *normalizer) function(fd *surface.FuncDecl) (*model.Function, error) {
	loc := n.loc(fd.Pos)
	if fd.Name == "" {
		return nil, errors.Malformed(loc, nil, "function has no name")
	}
	if fd.Variadic {
		return nil, errors.Malformed(loc, path(fd.Name), "variadic functions cannot cross the boundary")
	}

	fn := &model.Function{Name: fd.Name, Fallible: fd.Fallible, Location: loc}
	params := make(scope, len(fd.Params))
	for i, pd := range fd.Params {
		if pd == nil || pd.Name == "" {
			return nil, errors.Malformed(loc, path(fd.Name), "parameter %d has no name", i)
		}
		ploc := n.loc(pd.Pos)
		if err := n.declare(params, "parameter", pd.Name, ploc); err != nil {
			err.Path = path(fd.Name, pd.Name)
			return nil, err
		}
		mode, ok := model.ParsePassingMode(pd.Mode)
		if !ok {
			return nil, errors.New(errors.PhaseNormalize, errors.KindUnsupportedPass).
				At(ploc).Path(fd.Name, pd.Name).Detail("unknown passing mode %q", pd.Mode).Build()
		}
		t, err := n.lower(pd.Type, ploc, path(fd.Name, pd.Name))
		if err != nil {
			return nil, err
		}
		fn.Params = append(fn.Params, model.Param{Name: pd.Name, Type: t, Mode: mode, Location: ploc})
	}

	if fd.Returns != nil {
		t, err := n.lower(fd.Returns, loc, path(fd.Name, "return"))
		if err != nil {
			return nil, err
		}
		fn.Return = t
	}

	s, what := n.funcs, "function"
	if recv := receiverName(fd); recv != "" {
		if n.methods[recv] == nil {
			n.methods[recv] = make(scope)
		}
		s, what = n.methods[recv], "method of "+recv
	}
	if err := n.declare(s, what, fd.Name, loc); err != nil {
		return nil, err
	}
	return fn, nil
}

// receiverName returns the type a receiver function is scoped to, or "" for
// a free function.
func receiverName(fd *surface.FuncDecl) string {
	if len(fd.Params) == 0 || fd.Params[0] == nil {
		return ""
	}
	p := fd.Params[0]
	if m, _ := model.ParsePassingMode(p.Mode); m != model.PassReceiver || p.Type == nil {
		return ""
	}
	t := p.Type
	for t.Ref != nil {
		t = t.Ref
	}
	return t.Name
}

func (n *normalizer) lower(t *surface.TypeExpr, at errors.Location, p []string) (model.TypeRef, error) {
	if t == nil {
		return nil, errors.Malformed(at, p, "missing type")
	}
	loc := at
	if t.Pos.Line > 0 {
		loc = n.loc(t.Pos)
	}

	if t.Ref != nil {
		if t.Name != "" || len(t.Args) > 0 {
			return nil, errors.Malformed(loc, p, "reference cannot also be named")
		}
		if t.Ref.Ref != nil {
			return nil, errors.Malformed(loc, p, "reference to a reference")
		}
		elem, err := n.lower(t.Ref, loc, p)
		if err != nil {
			return nil, err
		}
		return model.Borrow{Elem: elem, Mutable: t.Mut}, nil
	}
	if t.Mut {
		return nil, errors.Malformed(loc, p, "mut applies to references only")
	}
	if t.Name == "" {
		return nil, errors.Malformed(loc, p, "type has no name")
	}

	arity := func(want int) error {
		if len(t.Args) != want {
			return errors.Malformed(loc, p, "%s takes %d type argument(s), got %d", t.Name, want, len(t.Args))
		}
		return nil
	}

	if kind, ok := model.ContainerKindByName(t.Name); ok {
		if !kind.Generic() {
			if err := arity(0); err != nil {
				return nil, err
			}
			return model.Container{Kind: kind}, nil
		}
		if err := arity(1); err != nil {
			return nil, err
		}
		elem, err := n.lower(t.Args[0], loc, p)
		if err != nil {
			return nil, err
		}
		return model.Container{Kind: kind, Elem: elem}, nil
	}

	if t.Name == "Result" {
		if err := arity(1); err != nil {
			return nil, err
		}
		elem, err := n.lower(t.Args[0], loc, p)
		if err != nil {
			return nil, err
		}
		return model.ErrorCarrying{Elem: elem}, nil
	}

	if err := arity(0); err != nil {
		return nil, err
	}
	if prim, ok := n.prims.Primitive(t.Name); ok {
		return model.Primitive{Kind: prim}, nil
	}
	return model.Named{Name: t.Name}, nil
}
