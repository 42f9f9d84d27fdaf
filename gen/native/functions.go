package native

import (
	"fmt"
	"strings"

	"github.com/wippyai/bridgegen/gen/internal/plan"
	"github.com/wippyai/bridgegen/model"
)

func (g *generator) fallible() bool {
	return plan.Fallible(g.r)
}

// definesType reports whether the artifact defines the C++ type name
// itself. Native-origin opaque types are defined by user code.
func (g *generator) definesType(name string) bool {
	if _, ok := g.r.Index.Struct(name); ok {
		return true
	}
	o, ok := g.r.Index.Opaque(name)
	return ok && o.Side == model.SideManaged
}

// methods returns the receiver functions of type name in declaration order.
func (g *generator) methods(name string) []plan.Call {
	var out []plan.Call
	for _, c := range plan.Calls(g.r) {
		if c.Receiver == name {
			out = append(out, c)
		}
	}
	return out
}

func (g *generator) returns(fn *model.Function) string {
	if fn.Return == nil {
		return "void"
	}
	return g.value(fn.Return)
}

// signature returns the user-facing parameters of fn, without the receiver.
func (g *generator) signature(fn *model.Function) []param {
	var out []param
	for _, p := range fn.Params {
		if p.Mode == model.PassReceiver {
			continue
		}
		out = append(out, param{g.value(p.Type), ident(p.Name)})
	}
	return out
}

func receiverMutable(fn *model.Function) bool {
	p, ok := fn.Receiver()
	if !ok {
		return false
	}
	switch v := p.Type.(type) {
	case model.OpaqueRef:
		return v.Mutable
	case model.Borrow:
		return v.Mutable
	}
	return false
}

// qualifiers is the trailing qualifier list of c. The in-class declaration
// and the out-of-class definition of a member must agree on it. Only stubs
// of managed-origin functions are noexcept; native code implements its own
// functions and may throw.
func qualifiers(c plan.Call, member bool) string {
	q := ""
	if member && !receiverMutable(c.Fn) {
		q += " const"
	}
	if c.Side == model.SideManaged && !c.Fn.Fallible {
		q += " noexcept"
	}
	return q
}

// memberDecl declares a receiver function inside its type definition.
func (g *generator) memberDecl(c plan.Call) {
	g.w.Line("%s(%s)%s;", declarator(g.returns(c.Fn), ident(c.Fn.Name)), joinParams(g.signature(c.Fn)), qualifiers(c, true))
}

func (g *generator) items() {
	w := g.w
	for _, it := range g.r.Module.Items {
		e, ok := it.(*model.Enum)
		if !ok {
			continue
		}
		w.Blank()
		w.Block(fmt.Sprintf("enum class %s : %s {", ident(e.Name), e.EffectiveRepr().NativeName()), "};", func() {
			for _, v := range e.Variants {
				w.Line("%s = %d,", ident(v.Name), v.Value)
			}
		})
	}

	for _, o := range plan.Opaques(g.r, model.SideManaged) {
		g.managedOpaque(o)
	}

	for _, s := range plan.StructOrder(g.r) {
		w.Blank()
		w.Block("struct "+ident(s.Name)+" {", "};", func() {
			for _, f := range s.Fields {
				w.Line("%s;", param{g.value(f.Type), ident(f.Name)})
			}
			if ms := g.methods(s.Name); len(ms) > 0 {
				w.Blank()
				for _, m := range ms {
					g.memberDecl(m)
				}
			}
		})
	}

	var opaques []*model.OpaqueType
	for _, it := range g.r.Module.Items {
		if o, ok := it.(*model.OpaqueType); ok {
			opaques = append(opaques, o)
		}
	}
	if len(opaques) > 0 {
		w.Blank()
		for _, o := range opaques {
			w.Line("extern \"C\" void %s(void *ptr) noexcept;", g.r.Mangler.Deleter(o.Name))
		}
	}

	first := true
	for _, c := range plan.Calls(g.r) {
		if c.Side != model.SideNative || c.Receiver != "" {
			continue
		}
		if first {
			w.Blank()
			w.Line("// Implemented by native code.")
			first = false
		}
		w.Line("%s(%s);", declarator(g.returns(c.Fn), ident(c.Fn.Name)), joinParams(g.signature(c.Fn)))
	}
}

func (g *generator) managedOpaque(o *model.OpaqueType) {
	w := g.w
	name := ident(o.Name)
	l, sized := g.r.Opaque[o.Name]
	open := "struct " + name + " final {"
	if sized {
		open = fmt.Sprintf("struct alignas(%d) %s final {", l.Align, name)
	}

	w.Blank()
	w.Block(open, "};", func() {
		w.Line("%s() = delete;", name)
		w.Line("~%s() = delete;", name)
		w.Line("%s(const %s &) = delete;", name, name)
		w.Line("%s &operator=(const %s &) = delete;", name, name)
		if ms := g.methods(o.Name); len(ms) > 0 {
			w.Blank()
			for _, m := range ms {
				g.memberDecl(m)
			}
		}
		if sized {
			w.Dedent()
			w.Blank()
			w.Line(" private:")
			w.Indent()
			w.Line("unsigned char opaque_[%d];", l.Size)
		}
	})
}

// rawParams returns the parameters of the raw symbol for fn.
func (g *generator) rawParams(fn *model.Function) []param {
	out := make([]param, 0, len(fn.Params)+1)
	for _, p := range fn.Params {
		out = append(out, param{g.raw(p.Type), ident(p.Name)})
	}
	if fn.Return != nil {
		if plan.Borrowed(fn.Return) {
			out = append(out, param{g.rawRef(fn.Return) + "*", "ret_"})
		} else {
			out = append(out, param{g.value(fn.Return) + " *", "ret_"})
		}
	}
	return out
}

func (g *generator) rawReturn(fn *model.Function) string {
	if fn.Fallible {
		return g.rt("Outcome")
	}
	return "void"
}

func (g *generator) rawDecl(c plan.Call) string {
	return fmt.Sprintf("extern \"C\" %s(%s) noexcept;", declarator(g.rawReturn(c.Fn), c.Symbol), joinParams(g.rawParams(c.Fn)))
}

// stubs renders the native entry points of managed-origin functions.
func (g *generator) stubs() {
	var calls []plan.Call
	for _, c := range plan.Calls(g.r) {
		if c.Side == model.SideManaged {
			calls = append(calls, c)
		}
	}
	if len(calls) == 0 {
		return
	}

	w := g.w
	w.Blank()
	w.Line("// Implemented by managed code.")
	for _, c := range calls {
		w.Line("%s", g.rawDecl(c))
	}
	for _, c := range calls {
		w.Blank()
		g.stub(c)
	}
}

func (g *generator) stub(c plan.Call) {
	fn := c.Fn
	params := g.signature(fn)
	member := c.Receiver != "" && g.definesType(c.Receiver)

	var head string
	switch {
	case member:
		head = fmt.Sprintf("inline %s(%s)", declarator(g.returns(fn), ident(c.Receiver)+"::"+ident(fn.Name)), joinParams(params))
	case c.Receiver != "":
		recv, _ := fn.Receiver()
		self := param{g.value(recv.Type), ident(recv.Name)}
		head = fmt.Sprintf("inline %s(%s)", declarator(g.returns(fn), ident(fn.Name)), joinParams(append([]param{self}, params...)))
	default:
		head = fmt.Sprintf("inline %s(%s)", declarator(g.returns(fn), ident(fn.Name)), joinParams(params))
	}
	head += qualifiers(c, member)

	w := g.w
	w.Block(head+" {", "}", func() {
		var args []string
		for _, p := range fn.Params {
			name := ident(p.Name)
			switch {
			case p.Mode == model.PassReceiver && member:
				args = append(args, "this")
			case plan.PassingOf(p.Type) == plan.Scalar:
				args = append(args, name)
			case plan.PassingOf(p.Type) == plan.ByRef:
				args = append(args, "&"+name)
			default:
				w.Line("%s::Slot<%s> %s_arg(std::move(%s));", "::"+g.prefix, g.value(p.Type), name, name)
				args = append(args, name+"_arg.get()")
			}
		}

		switch {
		case fn.Return == nil:
		case plan.Borrowed(fn.Return):
			w.Line("%s ret_ = nullptr;", g.rawRef(fn.Return))
			args = append(args, "&ret_")
		default:
			w.Line("%s::Slot<%s> ret_;", "::"+g.prefix, g.value(fn.Return))
			args = append(args, "ret_.get()")
		}

		call := fmt.Sprintf("%s(%s)", c.Symbol, joinArgs(args))
		if fn.Fallible {
			w.Line("%s out_ = %s;", g.rt("Outcome"), call)
			w.Line("detail::check(out_);")
		} else {
			w.Line("%s;", call)
		}

		switch {
		case fn.Return == nil:
		case plan.Borrowed(fn.Return):
			w.Line("return *ret_;")
		default:
			w.Line("return ret_.take();")
		}
	})
}

// trampoline defines the exported symbol of a native-origin function.
func (g *generator) trampoline(c plan.Call) {
	fn := c.Fn
	var (
		recv string
		args []string
	)
	for _, p := range fn.Params {
		name := ident(p.Name)
		switch {
		case p.Mode == model.PassReceiver:
			recv = name
		case plan.PassingOf(p.Type) == plan.Scalar:
			args = append(args, name)
		case plan.PassingOf(p.Type) == plan.ByRef:
			args = append(args, "*"+name)
		default:
			args = append(args, "std::move(*"+name+")")
		}
	}

	call := fmt.Sprintf("%s(%s)", ident(fn.Name), joinArgs(args))
	if recv != "" {
		call = recv + "->" + call
	}
	var stmt string
	switch {
	case fn.Return == nil:
		stmt = call + ";"
	case plan.Borrowed(fn.Return):
		stmt = "*ret_ = &" + call + ";"
	default:
		stmt = fmt.Sprintf("new (ret_) %s(%s);", g.value(fn.Return), call)
	}

	w := g.w
	w.Blank()
	head := fmt.Sprintf("extern \"C\" %s(%s) noexcept {", declarator(g.rawReturn(fn), c.Symbol), joinParams(g.rawParams(fn)))
	w.Block(head, "}", func() {
		if !fn.Fallible {
			w.Line("%s", stmt)
			return
		}
		w.Line("try {")
		w.Indent()
		w.Line("%s", stmt)
		w.Line("return detail::ok();")
		w.Dedent()
		w.Line("} catch (const std::exception &e) {")
		w.Indent()
		w.Line("return detail::fail(e.what());")
		w.Dedent()
		w.Line("} catch (...) {")
		w.Indent()
		w.Line("return detail::fail(%q);", "unknown native exception")
		w.Dedent()
		w.Line("}")
	})
}

func joinArgs(args []string) string {
	return strings.Join(args, ", ")
}
