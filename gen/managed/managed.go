package managed

import (
	"strings"

	"github.com/wippyai/bridgegen/abi"
	"github.com/wippyai/bridgegen/errors"
	"github.com/wippyai/bridgegen/gen/internal/emit"
	"github.com/wippyai/bridgegen/gen/internal/plan"
	"github.com/wippyai/bridgegen/model"
)

type generator struct {
	r          *model.Resolved
	w          *emit.Writer
	containers map[string]model.Container
	err        error
}

// Generate renders the managed artifact for r. It fails only with an
// InternalInvariantViolation.
func Generate(r *model.Resolved) (string, error) {
	if r == nil || r.Module == nil || r.Index == nil {
		return "", errors.Internal(errors.PhaseGenerate, "managed: incomplete resolved model")
	}

	g := &generator{
		r:          r,
		w:          emit.New("    "),
		containers: plan.Containers(r),
	}

	g.banner()
	g.prelude()
	g.items()
	g.ffi()
	g.wrappers()
	g.exports()
	g.glue()
	g.assertions()

	if g.err != nil {
		return "", g.err
	}
	return g.w.String(), nil
}

func (g *generator) fail(format string, args ...any) {
	if g.err == nil {
		g.err = errors.Internal(errors.PhaseGenerate, "managed: "+format, args...)
	}
}

// symbolIdent spells a raw symbol as a Rust identifier.
func symbolIdent(sym string) string {
	return strings.ReplaceAll(sym, "$", "__")
}

func (g *generator) banner() {
	w := g.w
	w.Line("// Code generated by bridgegen from module %q. DO NOT EDIT.", g.r.Module.Name)
	w.Line("// ABI %s, %d-bit target.", g.r.Mangler.Prefix, g.r.Target.Pointer().Size*8)
	w.Blank()
	w.Line("#![allow(non_snake_case, non_camel_case_types, non_upper_case_globals, dead_code, unused_imports, unused_unsafe, clippy::all)]")
	w.Blank()
	w.Line("use super::*;")
}

type instance struct {
	abi.Glue
	c model.Container
}

func (g *generator) glues() []instance {
	out := make([]instance, 0, len(g.r.Instantiations))
	for _, gl := range g.r.Instantiations {
		c, ok := g.containers[gl.Key()]
		if !ok && gl.Kind == abi.DynString {
			c, ok = model.Container{Kind: abi.DynString}, true
		}
		if !ok {
			g.fail("instantiation %s is not referenced by any type", gl.Key())
			continue
		}
		out = append(out, instance{Glue: gl, c: c})
	}
	return out
}

func (g *generator) assertions() {
	w := g.w
	t := g.r.Target
	w.Blank()
	w.Line("// Layout assertions.")
	g.sizeAssert("rt::Vector<u8>", abi.ContractFor(abi.DynSequence, t).Layout)
	g.sizeAssert("rt::Unique<u8>", abi.ContractFor(abi.OwningUnique, t).Layout)
	g.sizeAssert("rt::Shared<u8>", abi.ContractFor(abi.OwningShared, t).Layout)
	g.sizeAssert("rt::ControlBlock", abi.ControlBlockFor(t).Layout)
	g.sizeAssert("rt::Outcome", abi.OutcomeFor(t).Layout)

	for _, s := range plan.StructOrder(g.r) {
		sl, ok := g.r.Structs[s.Name]
		if !ok {
			g.fail("struct %s has no layout", s.Name)
			continue
		}
		g.sizeAssert(ident(s.Name), sl.Layout)
		for _, f := range sl.Fields {
			w.Line("const _: () = assert!(core::mem::offset_of!(%s, %s) == %d);", ident(s.Name), ident(f.Name), f.Offset)
		}
	}
	for _, o := range plan.Opaques(g.r, model.SideManaged) {
		if l, ok := g.r.Opaque[o.Name]; ok {
			g.sizeAssert(ident(o.Name), l)
		}
	}
	for _, in := range g.glues() {
		g.sizeAssert(g.handle(in.c), in.Handle)
	}
}

func (g *generator) sizeAssert(typ string, l abi.Layout) {
	g.w.Line("const _: () = assert!(core::mem::size_of::<%s>() == %d);", typ, l.Size)
	g.w.Line("const _: () = assert!(core::mem::align_of::<%s>() == %d);", typ, l.Align)
}
