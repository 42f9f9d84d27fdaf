package native

import (
	"fmt"
	"strings"

	"github.com/wippyai/bridgegen/abi"
	"github.com/wippyai/bridgegen/errors"
	"github.com/wippyai/bridgegen/gen/internal/emit"
	"github.com/wippyai/bridgegen/gen/internal/plan"
	"github.com/wippyai/bridgegen/model"
)

var standardIncludes = []string{
	"<atomic>",
	"<cstddef>",
	"<cstdint>",
	"<cstring>",
	"<exception>",
	"<new>",
	"<stdexcept>",
	"<string>",
	"<utility>",
}

type generator struct {
	r          *model.Resolved
	w          *emit.Writer
	ns         string
	prefix     string
	containers map[string]model.Container
	err        error
}

// Generate renders the native artifact for r. It fails only with an
// InternalInvariantViolation, which means r did not come from a successful
// resolution.
func Generate(r *model.Resolved) (string, error) {
	if r == nil || r.Module == nil || r.Index == nil {
		return "", errors.Internal(errors.PhaseGenerate, "native: incomplete resolved model")
	}

	g := &generator{
		r:          r,
		w:          emit.New("  "),
		ns:         Namespace(r),
		prefix:     r.Mangler.Prefix,
		containers: plan.Containers(r),
	}

	g.banner()
	g.includes()
	g.prelude()
	g.w.Blank()
	g.w.Line("namespace %s {", g.ns)
	g.forward()
	g.items()
	g.glue()
	g.stubs()
	g.assertions()
	g.w.Blank()
	g.w.Line("} // namespace %s", g.ns)
	g.implementation()

	if g.err != nil {
		return "", g.err
	}
	return g.w.String(), nil
}

// Namespace returns the C++ namespace of the artifact.
func Namespace(r *model.Resolved) string {
	if len(r.Mangler.Namespace) > 0 {
		return strings.Join(r.Mangler.Namespace, "::")
	}
	return r.Module.Name
}

// ImplementationMacro is the macro that enables the implementation section.
func ImplementationMacro(r *model.Resolved) string {
	parts := append([]string{r.Mangler.Prefix}, strings.Split(Namespace(r), "::")...)
	parts = append(parts, "implementation")
	return strings.ToUpper(strings.Join(parts, "_"))
}

func (g *generator) fail(format string, args ...any) {
	if g.err == nil {
		g.err = errors.Internal(errors.PhaseGenerate, "native: "+format, args...)
	}
}

func (g *generator) banner() {
	g.w.Line("// Code generated by bridgegen from module %q. DO NOT EDIT.", g.r.Module.Name)
	g.w.Line("// ABI %s, %d-bit target.", g.prefix, g.r.Target.Pointer().Size*8)
	g.w.Line("// Define %s in exactly one translation unit.", ImplementationMacro(g.r))
	g.w.Line("#pragma once")
}

func (g *generator) includes() {
	g.w.Blank()
	for _, inc := range standardIncludes {
		g.w.Line("#include %s", inc)
	}

	user := plan.Includes(g.r)
	if len(user) == 0 {
		return
	}
	g.w.Blank()
	for _, inc := range user {
		if strings.HasPrefix(inc, "<") {
			g.w.Line("#include %s", inc)
		} else {
			g.w.Line("#include %q", inc)
		}
	}
}

func (g *generator) guard() string {
	return strings.ToUpper(g.prefix) + "_PRELUDE"
}

// prelude renders the contract types shared by every module built against
// the same ABI version.
func (g *generator) prelude() {
	t := g.r.Target
	unique := abi.ContractFor(abi.OwningUnique, t)
	shared := abi.ContractFor(abi.OwningShared, t)
	vec := abi.ContractFor(abi.DynSequence, t)
	ctrl := abi.ControlBlockFor(t)
	outcome := abi.OutcomeFor(t)
	w := g.w

	w.Blank()
	w.Line("#ifndef %s", g.guard())
	w.Line("#define %s", g.guard())
	w.Line("namespace %s {", g.prefix)
	w.Blank()
	w.Block("struct RawUnique {", "};", func() {
		w.Line("void *ptr;")
		w.Line("void (*drop)(void *) noexcept;")
	})
	w.Blank()
	w.Block("struct ControlBlock {", "};", func() {
		w.Line("std::atomic<std::uint64_t> count;")
		w.Line("void (*drop)(void *) noexcept;")
		w.Line("void *ptr;")
	})
	w.Blank()
	w.Block("struct RawShared {", "};", func() {
		w.Line("void *ptr;")
		w.Line("ControlBlock *ctrl;")
	})
	w.Blank()
	w.Block("struct RawVec {", "};", func() {
		w.Line("void *ptr;")
		w.Line("std::size_t cap;")
		w.Line("std::size_t len;")
	})
	w.Blank()
	w.Block("struct Outcome {", "};", func() {
		w.Line("std::uint8_t tag;")
		w.Line("RawVec msg;")
	})
	w.Blank()
	w.Line("class Error final : public std::exception {")
	w.Line(" public:")
	w.Indent()
	w.Line("explicit Error(std::string msg) : msg_(std::move(msg)) {}")
	w.Line("const char *what() const noexcept override { return msg_.c_str(); }")
	w.Dedent()
	w.Blank()
	w.Line(" private:")
	w.Indent()
	w.Line("std::string msg_;")
	w.Dedent()
	w.Line("};")
	w.Blank()
	w.Line("template <typename T>")
	w.Line("class Slot final {")
	w.Line(" public:")
	w.Indent()
	w.Line("Slot() noexcept = default;")
	w.Line("explicit Slot(T &&value) { new (storage_) T(std::move(value)); }")
	w.Line("Slot(const Slot &) = delete;")
	w.Line("Slot &operator=(const Slot &) = delete;")
	w.Line("T *get() noexcept { return reinterpret_cast<T *>(storage_); }")
	w.Block("T take() {", "}", func() {
		w.Line("T value(std::move(*get()));")
		w.Line("get()->~T();")
		w.Line("return value;")
	})
	w.Dedent()
	w.Blank()
	w.Line(" private:")
	w.Indent()
	w.Line("alignas(T) unsigned char storage_[sizeof(T)];")
	w.Dedent()
	w.Line("};")
	w.Blank()
	g.sizeAssert("RawUnique", unique.Layout, "unique handle")
	g.fieldAssert("RawUnique", unique.Field("drop"))
	g.sizeAssert("RawShared", shared.Layout, "shared handle")
	g.fieldAssert("RawShared", shared.Field("ctrl"))
	g.sizeAssert("ControlBlock", ctrl.Layout, "control block")
	g.fieldAssert("ControlBlock", ctrl.Field("count"))
	g.fieldAssert("ControlBlock", ctrl.Field("drop"))
	g.fieldAssert("ControlBlock", ctrl.Field("ptr"))
	g.sizeAssert("RawVec", vec.Layout, "string and sequence handle")
	g.fieldAssert("RawVec", vec.Field("cap"))
	g.fieldAssert("RawVec", vec.Field("len"))
	g.sizeAssert("Outcome", outcome.Layout, "outcome")
	g.fieldAssert("Outcome", outcome.Message)
	w.Blank()
	w.Line("} // namespace %s", g.prefix)
	w.Line("#endif // %s", g.guard())
}

func (g *generator) sizeAssert(typ string, l abi.Layout, what string) {
	g.w.Line("static_assert(sizeof(%s) == %d, %q);", typ, l.Size, what+" size")
	g.w.Line("static_assert(alignof(%s) == %d, %q);", typ, l.Align, what+" alignment")
}

func (g *generator) fieldAssert(typ string, f abi.Field) {
	g.w.Line("static_assert(offsetof(%s, %s) == %d, %q);", typ, f.Name, f.Offset, typ+"."+f.Name+" offset")
}

// rt is the prelude-qualified spelling of a contract type.
func (g *generator) rt(name string) string {
	return "::" + g.prefix + "::" + name
}

// glues returns the instantiations paired with their container references.
func (g *generator) glues() []instance {
	out := make([]instance, 0, len(g.r.Instantiations))
	for _, gl := range g.r.Instantiations {
		c, ok := g.containers[gl.Key()]
		if !ok && gl.Kind == abi.DynString {
			// Fallible functions carry their message in a string even when
			// no declared type mentions one.
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

type instance struct {
	abi.Glue
	c model.Container
}

func (g *generator) families() []abi.ContainerKind {
	seen := make(map[abi.ContainerKind]bool)
	var out []abi.ContainerKind
	for _, gl := range g.r.Instantiations {
		if !seen[gl.Kind] {
			seen[gl.Kind] = true
			out = append(out, gl.Kind)
		}
	}
	return out
}

func (g *generator) assertions() {
	g.w.Blank()
	g.w.Line("// Layout assertions.")
	for _, s := range plan.StructOrder(g.r) {
		sl, ok := g.r.Structs[s.Name]
		if !ok {
			g.fail("struct %s has no layout", s.Name)
			continue
		}
		g.sizeAssert(ident(s.Name), sl.Layout, s.Name)
		for _, f := range sl.Fields {
			g.w.Line("static_assert(offsetof(%s, %s) == %d, %q);", ident(s.Name), ident(f.Name), f.Offset, s.Name+"."+f.Name+" offset")
		}
	}
	for _, o := range plan.Opaques(g.r, model.SideManaged) {
		if l, ok := g.r.Opaque[o.Name]; ok {
			g.sizeAssert(ident(o.Name), l, o.Name)
		}
	}
	for _, in := range g.glues() {
		g.sizeAssert(g.handle(in.c), in.Handle, in.Key())
	}
}

func (g *generator) implementation() {
	g.w.Blank()
	g.w.Line("#ifdef %s", ImplementationMacro(g.r))
	g.w.Line("namespace %s {", g.ns)
	for _, o := range plan.Opaques(g.r, model.SideNative) {
		g.w.Blank()
		g.w.Block(fmt.Sprintf("extern \"C\" void %s(void *ptr) noexcept {", g.r.Mangler.Deleter(o.Name)), "}", func() {
			g.w.Line("delete static_cast<%s *>(ptr);", o.Name)
		})
	}
	for _, in := range g.glues() {
		if in.Impl == model.SideNative {
			g.nativeOps(in)
		}
	}
	for _, c := range plan.Calls(g.r) {
		if c.Side == model.SideNative {
			g.trampoline(c)
		}
	}
	g.w.Blank()
	g.w.Line("} // namespace %s", g.ns)
	g.w.Line("#endif // %s", ImplementationMacro(g.r))
}
