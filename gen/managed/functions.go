package managed

import (
	"fmt"
	"strings"

	"github.com/wippyai/bridgegen/gen/internal/plan"
	"github.com/wippyai/bridgegen/model"
)

func (g *generator) items() {
	w := g.w
	for _, it := range g.r.Module.Items {
		e, ok := it.(*model.Enum)
		if !ok {
			continue
		}
		w.Blank()
		w.Line("#[repr(%s)]", g.reprAttr(e.EffectiveRepr()))
		w.Line("#[derive(Clone, Copy, Debug, PartialEq, Eq, Hash)]")
		w.Block("pub enum "+ident(e.Name)+" {", "}", func() {
			for _, v := range e.Variants {
				w.Line("%s = %d,", ident(v.Name), v.Value)
			}
		})
	}

	for _, o := range plan.Opaques(g.r, model.SideNative) {
		name := ident(o.Name)
		w.Blank()
		w.Line("#[repr(C)]")
		w.Block("pub struct "+name+" {", "}", func() {
			w.Line("_private: [u8; 0],")
			w.Line("_pinned: core::marker::PhantomData<(*mut u8, core::marker::PhantomPinned)>,")
		})
		w.Blank()
		w.Block("unsafe impl rt::UniqueTarget for "+name+" {", "}", func() {
			w.Line("const DROP: rt::DropFn = ffi::%s;", symbolIdent(g.r.Mangler.Deleter(o.Name)))
		})
	}

	for _, s := range plan.StructOrder(g.r) {
		w.Blank()
		w.Line("#[repr(C)]")
		if plan.Trivial(g.r, model.SharedStructRef{Name: s.Name}) {
			w.Line("#[derive(Clone, Copy)]")
		}
		w.Block("pub struct "+ident(s.Name)+" {", "}", func() {
			for _, f := range s.Fields {
				w.Line("pub %s: %s,", ident(f.Name), g.value(f.Type, ""))
			}
		})
	}

	for _, o := range plan.Opaques(g.r, model.SideManaged) {
		name := ident(o.Name)
		sym := g.r.Mangler.Deleter(o.Name)
		w.Blank()
		w.Line("#[export_name = %q]", sym)
		w.Block(fmt.Sprintf("unsafe extern \"C\" fn %s(ptr: *mut core::ffi::c_void) {", symbolIdent(sym)), "}", func() {
			w.Line("rt::abort_on_panic(|| unsafe { drop(Box::from_raw(ptr as *mut %s)) })", name)
		})
		w.Blank()
		w.Block("unsafe impl rt::UniqueTarget for "+name+" {", "}", func() {
			w.Line("const DROP: rt::DropFn = %s;", symbolIdent(sym))
		})
	}
}

// rawParams returns the parameters of the raw symbol for fn.
func (g *generator) rawParams(fn *model.Function) []param {
	out := make([]param, 0, len(fn.Params)+1)
	for _, p := range fn.Params {
		out = append(out, param{ident(p.Name), g.raw(p.Type)})
	}
	if fn.Return != nil {
		if plan.Borrowed(fn.Return) {
			out = append(out, param{"ret_", "*mut " + g.rawRef(fn.Return)})
		} else {
			out = append(out, param{"ret_", "*mut " + g.value(fn.Return, "")})
		}
	}
	return out
}

func rawReturn(fn *model.Function) string {
	if fn.Fallible {
		return " -> rt::Outcome"
	}
	return ""
}

// ffi declares every symbol the native side defines.
func (g *generator) ffi() {
	w := g.w
	w.Blank()
	w.Block("mod ffi {", "}", func() {
		w.Line("use super::*;")
		w.Blank()
		w.Block("extern \"C\" {", "}", func() {
			for _, o := range plan.Opaques(g.r, model.SideNative) {
				sym := g.r.Mangler.Deleter(o.Name)
				w.Line("#[link_name = %q]", sym)
				w.Line("pub fn %s(ptr: *mut core::ffi::c_void);", symbolIdent(sym))
			}
			for _, in := range g.glues() {
				if in.Impl != model.SideNative {
					continue
				}
				for _, s := range in.Symbols {
					sig := g.signature(in, s.Op)
					w.Line("#[link_name = %q]", s.Name)
					w.Line("pub fn %s(%s)%s;", symbolIdent(s.Name), joinParams(sig.params), sig.arrow())
				}
			}
			for _, c := range plan.Calls(g.r) {
				if c.Side != model.SideNative {
					continue
				}
				w.Line("#[link_name = %q]", c.Symbol)
				w.Line("pub fn %s(%s)%s;", symbolIdent(c.Symbol), joinParams(g.rawParams(c.Fn)), rawReturn(c.Fn))
			}
		})
	})
}

func (g *generator) returns(fn *model.Function, lt string) string {
	var r string
	if fn.Return != nil {
		r = g.value(fn.Return, lt)
	}
	if fn.Fallible {
		if r == "" {
			r = "()"
		}
		return " -> Result<" + r + ", rt::Error>"
	}
	if r == "" {
		return ""
	}
	return " -> " + r
}

// lifetime returns the lifetime tying borrowed arguments to a borrowed
// return value, empty when elision suffices.
func lifetime(fn *model.Function) string {
	if fn.Return == nil || !plan.Borrowed(fn.Return) {
		return ""
	}
	if _, ok := fn.Receiver(); ok {
		return ""
	}
	return "'a"
}

// wrappers renders safe functions over native-origin symbols.
func (g *generator) wrappers() {
	var free []plan.Call
	methods := make(map[string][]plan.Call)
	var order []string
	for _, c := range plan.Calls(g.r) {
		if c.Side != model.SideNative {
			continue
		}
		if c.Receiver == "" {
			free = append(free, c)
			continue
		}
		if _, ok := methods[c.Receiver]; !ok {
			order = append(order, c.Receiver)
		}
		methods[c.Receiver] = append(methods[c.Receiver], c)
	}

	for _, c := range free {
		g.w.Blank()
		g.wrapper(c)
	}
	for _, recv := range order {
		g.w.Blank()
		g.w.Block("impl "+ident(recv)+" {", "}", func() {
			for i, c := range methods[recv] {
				if i > 0 {
					g.w.Blank()
				}
				g.wrapper(c)
			}
		})
	}
}

func (g *generator) wrapper(c plan.Call) {
	fn := c.Fn
	lt := lifetime(fn)
	var (
		params []string
		prep   []string
		args   []string
	)
	for _, p := range fn.Params {
		name := ident(p.Name)
		if p.Mode == model.PassReceiver {
			mutable := false
			switch v := p.Type.(type) {
			case model.OpaqueRef:
				mutable = v.Mutable
			case model.Borrow:
				mutable = v.Mutable
			}
			switch {
			case plan.Pinned(p.Type):
				params = append(params, "self: core::pin::Pin<&mut Self>")
				args = append(args, "self.get_unchecked_mut() as *mut Self")
			case mutable:
				params = append(params, "&mut self")
				args = append(args, "self as *mut Self")
			default:
				params = append(params, "&self")
				args = append(args, "self as *const Self")
			}
			continue
		}

		params = append(params, name+": "+g.value(p.Type, lt))
		switch plan.PassingOf(p.Type) {
		case plan.Scalar:
			args = append(args, name)
		case plan.ByRef:
			if plan.Pinned(p.Type) {
				args = append(args, fmt.Sprintf("%s.get_unchecked_mut() as %s", name, g.rawRef(p.Type)))
			} else {
				args = append(args, fmt.Sprintf("%s as %s", name, g.rawRef(p.Type)))
			}
		default:
			prep = append(prep, fmt.Sprintf("let mut %s = core::mem::ManuallyDrop::new(%s);", name, name))
			args = append(args, fmt.Sprintf("&mut *%s as %s", name, g.raw(p.Type)))
		}
	}

	var result string
	switch {
	case fn.Return == nil:
	case plan.Borrowed(fn.Return):
		prep = append(prep, fmt.Sprintf("let mut ret_: %s = core::ptr::null_mut();", g.rawRef(fn.Return)))
		args = append(args, "&mut ret_")
		result = g.deref(fn.Return)
	default:
		prep = append(prep, fmt.Sprintf("let mut ret_ = core::mem::MaybeUninit::<%s>::uninit();", g.value(fn.Return, "")))
		args = append(args, "ret_.as_mut_ptr()")
		result = "ret_.assume_init()"
	}

	generics := ""
	if lt != "" {
		generics = "<" + lt + ">"
	}
	w := g.w
	head := fmt.Sprintf("pub fn %s%s(%s)%s {", ident(fn.Name), generics, strings.Join(params, ", "), g.returns(fn, lt))
	w.Block(head, "}", func() {
		for _, l := range prep {
			w.Line("%s", l)
		}
		call := fmt.Sprintf("ffi::%s(%s)", symbolIdent(c.Symbol), strings.Join(args, ", "))
		w.Block("unsafe {", "}", func() {
			if fn.Fallible {
				w.Line("%s.into_result()?;", call)
				if result == "" {
					result = "()"
				}
				w.Line("Ok(%s)", result)
				return
			}
			if result == "" {
				w.Line("%s;", call)
				return
			}
			w.Line("%s;", call)
			w.Line("%s", result)
		})
	})
}

// deref turns the raw pointer in ret_ into the borrowed return value.
func (g *generator) deref(t model.TypeRef) string {
	switch {
	case plan.Pinned(t):
		return "core::pin::Pin::new_unchecked(&mut *ret_)"
	case isMutable(t):
		return "&mut *ret_"
	default:
		return "&*ret_"
	}
}

func isMutable(t model.TypeRef) bool {
	switch v := t.(type) {
	case model.OpaqueRef:
		return v.Mutable
	case model.Borrow:
		return v.Mutable
	}
	return false
}

// exports renders the exported symbols of managed-origin functions.
func (g *generator) exports() {
	for _, c := range plan.Calls(g.r) {
		if c.Side == model.SideManaged {
			g.w.Blank()
			g.export(c)
		}
	}
}

func (g *generator) export(c plan.Call) {
	fn := c.Fn
	var (
		recv string
		args []string
	)
	for _, p := range fn.Params {
		name := ident(p.Name)
		var arg string
		switch plan.PassingOf(p.Type) {
		case plan.Scalar:
			arg = name
		case plan.ByRef:
			switch {
			case plan.Pinned(p.Type):
				arg = "core::pin::Pin::new_unchecked(&mut *" + name + ")"
			case isMutable(p.Type):
				arg = "&mut *" + name
			default:
				arg = "&*" + name
			}
		default:
			arg = "core::ptr::read(" + name + ")"
		}
		if p.Mode == model.PassReceiver {
			recv = ident(c.Receiver)
		}
		args = append(args, arg)
	}

	callee := "super::" + ident(fn.Name)
	if recv != "" {
		callee = recv + "::" + ident(fn.Name)
	}
	call := fmt.Sprintf("%s(%s)", callee, strings.Join(args, ", "))

	store := ""
	switch {
	case fn.Return == nil:
	case plan.Pinned(fn.Return):
		store = fmt.Sprintf("core::ptr::write(ret_, core::pin::Pin::into_inner_unchecked(value) as %s);", g.rawRef(fn.Return))
	case plan.Borrowed(fn.Return):
		store = fmt.Sprintf("core::ptr::write(ret_, value as %s);", g.rawRef(fn.Return))
	default:
		store = "core::ptr::write(ret_, value);"
	}

	w := g.w
	w.Line("#[export_name = %q]", c.Symbol)
	head := fmt.Sprintf("unsafe extern \"C\" fn %s(%s)%s {", symbolIdent(c.Symbol), joinParams(g.rawParams(fn)), rawReturn(fn))
	w.Block(head, "}", func() {
		w.Block("rt::abort_on_panic(|| unsafe {", "})", func() {
			switch {
			case fn.Fallible:
				ok := "Ok(_) => rt::Outcome::ok(),"
				if store != "" {
					ok = "Ok(value) => {"
				}
				w.Block(fmt.Sprintf("match %s {", call), "}", func() {
					if store != "" {
						w.Line("%s", ok)
						w.Indent()
						w.Line("%s", store)
						w.Line("rt::Outcome::ok()")
						w.Dedent()
						w.Line("}")
					} else {
						w.Line("%s", ok)
					}
					w.Line("Err(e) => rt::Outcome::err(e.to_string()),")
				})
			case store != "":
				w.Line("let value = %s;", call)
				w.Line("%s", store)
			default:
				w.Line("%s;", call)
			}
		})
	})
}
