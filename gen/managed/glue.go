package managed

import (
	"fmt"
	"strings"

	"github.com/wippyai/bridgegen/abi"
	"github.com/wippyai/bridgegen/model"
)

// param is a named Rust parameter.
type param struct {
	name string
	typ  string
}

func (p param) String() string { return p.name + ": " + p.typ }

func joinParams(ps []param) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.String()
	}
	return strings.Join(parts, ", ")
}

type opSig struct {
	params []param
	ret    string
}

func (s opSig) arrow() string {
	if s.ret == "" {
		return ""
	}
	return " -> " + s.ret
}

// opSignature returns the raw signature of op for the handle type h.
func opSignature(k abi.ContainerKind, op abi.Op, h string) (opSig, bool) {
	self := param{"this", "*const " + h}
	mut := param{"this", "*mut " + h}
	out := param{"out", "*mut " + h}

	switch op {
	case abi.OpNew:
		if k.Indirect() {
			return opSig{params: []param{out, {"value", "*mut core::ffi::c_void"}}}, true
		}
		return opSig{params: []param{out}}, true
	case abi.OpFromRawParts:
		return opSig{params: []param{out, {"ptr", "*const core::ffi::c_void"}, {"len", "usize"}}}, true
	case abi.OpLen:
		return opSig{params: []param{self}, ret: "usize"}, true
	case abi.OpGet:
		if k.Indirect() {
			return opSig{params: []param{self}, ret: "*mut core::ffi::c_void"}, true
		}
		return opSig{params: []param{self, {"index", "usize"}}, ret: "*const core::ffi::c_void"}, true
	case abi.OpPush:
		return opSig{params: []param{mut, {"value", "*mut core::ffi::c_void"}}}, true
	case abi.OpRelease:
		return opSig{params: []param{mut}, ret: "*mut core::ffi::c_void"}, true
	case abi.OpClone:
		return opSig{params: []param{self, out}}, true
	case abi.OpDrop:
		return opSig{params: []param{mut}}, true
	}
	return opSig{}, false
}

func (g *generator) signature(in instance, op abi.Op) opSig {
	sig, ok := opSignature(in.Kind, op, g.handle(in.c))
	if !ok {
		g.fail("unknown container operation %q", op)
	}
	return sig
}

// glue exports the container operations the managed side implements.
func (g *generator) glue() {
	var ins []instance
	for _, in := range g.glues() {
		if in.Impl == model.SideManaged {
			ins = append(ins, in)
		}
	}
	if len(ins) == 0 {
		return
	}

	w := g.w
	w.Blank()
	w.Line("// Container glue.")
	for _, in := range ins {
		for _, s := range in.Symbols {
			sig := g.signature(in, s.Op)
			body := g.opBody(in, s.Op)
			w.Blank()
			w.Line("#[export_name = %q]", s.Name)
			w.Block(fmt.Sprintf("unsafe extern \"C\" fn %s(%s)%s {", symbolIdent(s.Name), joinParams(sig.params), sig.arrow()), "}", func() {
				w.Line("rt::abort_on_panic(|| unsafe { %s })", body)
			})
		}
	}
}

// opBody is the expression implementing op for in.
func (g *generator) opBody(in instance, op abi.Op) string {
	h := g.handle(in.c)
	ctor := "rt::" + strings.SplitN(strings.TrimPrefix(h, "rt::"), "<", 2)[0]
	elem := "u8"
	if in.c.Elem != nil {
		elem = g.pointee(in.c.Elem)
	}
	_, opaque := in.c.Elem.(model.OpaqueRef)

	reset := fmt.Sprintf("core::ptr::drop_in_place(this); core::ptr::write(this, %s::null());", ctor)
	if in.Kind == abi.Optional {
		reset = "core::ptr::drop_in_place(this); core::ptr::write(this, rt::Optional::none());"
	}

	switch {
	case op == abi.OpDrop:
		return reset
	case op == abi.OpNew && !in.Kind.Indirect():
		return fmt.Sprintf("core::ptr::write(out, %s::new());", ctor)
	case op == abi.OpNew && in.Kind == abi.OwningUnique && opaque:
		return fmt.Sprintf("core::ptr::write(out, rt::Unique::adopt(value as *mut %s));", elem)
	case op == abi.OpNew && in.Kind == abi.OwningShared && opaque:
		return fmt.Sprintf("core::ptr::write(out, rt::Shared::from_raw(value as *mut %s, rt::release_box::<%s>));", elem, elem)
	case op == abi.OpNew:
		return fmt.Sprintf("core::ptr::write(out, %s::new(core::ptr::read(value as *const %s)));", ctor, elem)
	case op == abi.OpFromRawParts:
		return fmt.Sprintf("core::ptr::write(out, %s::from_raw_parts(ptr as *const %s, len));", ctor, elem)
	case op == abi.OpLen && in.Kind == abi.DynString:
		return "(&*this).as_bytes().len()"
	case op == abi.OpLen:
		return "(&*this).len()"
	case op == abi.OpGet && in.Kind == abi.DynString:
		return "&(&*this).as_bytes()[index] as *const u8 as *const core::ffi::c_void"
	case op == abi.OpGet && in.Kind.Indirect():
		return "(&*this).as_ptr() as *mut core::ffi::c_void"
	case op == abi.OpGet:
		return fmt.Sprintf("&(&*this)[index] as *const %s as *const core::ffi::c_void", elem)
	case op == abi.OpPush && in.Kind == abi.DynString:
		return "(&mut *this).push(*(value as *const u8));"
	case op == abi.OpPush:
		return fmt.Sprintf("(&mut *this).push(core::ptr::read(value as *const %s));", elem)
	case op == abi.OpRelease:
		return "(&mut *this).release() as *mut core::ffi::c_void"
	case op == abi.OpClone:
		return "core::ptr::write(out, (&*this).clone());"
	}
	g.fail("%s has no managed %s operation", in.Kind, op)
	return ""
}
