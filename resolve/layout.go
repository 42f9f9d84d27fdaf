package resolve

import (
	"sort"
	"strings"

	"github.com/wippyai/bridgegen/abi"
	"github.com/wippyai/bridgegen/errors"
	"github.com/wippyai/bridgegen/model"
)

func (r *resolver) layoutStructs(m *model.Module) {
	for _, it := range m.Items {
		if s, ok := it.(*model.SharedStruct); ok {
			r.structLayout(s.Name, nil)
		}
	}
}

// structLayout computes the layout of struct name. stack holds the structs
// currently being laid out; meeting one again means the struct contains
// itself by value.
func (r *resolver) structLayout(name string, stack []string) (abi.StructLayout, bool) {
	if sl, ok := r.structs[name]; ok {
		return sl, true
	}
	if r.failed[name] {
		return abi.StructLayout{}, false
	}

	for i, n := range stack {
		if n != name {
			continue
		}
		cycle := append(append([]string(nil), stack[i:]...), name)
		s, _ := r.idx.Struct(name)
		var loc errors.Location
		if s != nil {
			loc = s.Location
		}
		r.fail(errors.New(errors.PhaseResolve, errors.KindRecursiveType).
			At(loc).Path(name).Detail("struct contains itself by value: %s", strings.Join(cycle, " -> ")).Build())
		for _, c := range stack[i:] {
			r.failed[c] = true
		}
		return abi.StructLayout{}, false
	}

	s, ok := r.idx.Struct(name)
	if !ok {
		r.failed[name] = true
		return abi.StructLayout{}, false
	}

	stack = append(stack, name)
	names := make([]string, len(s.Fields))
	layouts := make([]abi.Layout, len(s.Fields))
	for i, f := range s.Fields {
		if f.Type == nil {
			r.failed[name] = true
			return abi.StructLayout{}, false
		}
		l, ok := r.valueLayout(f.Type, stack)
		if !ok {
			r.failed[name] = true
			return abi.StructLayout{}, false
		}
		names[i] = f.Name
		layouts[i] = l
	}

	sl := abi.LayoutStruct(names, layouts)
	r.structs[name] = sl
	return sl, true
}

// valueLayout returns the in-place layout of t. Only shared structs and
// optional payloads are stored inline; every other container keeps its
// element behind a pointer.
func (r *resolver) valueLayout(t model.TypeRef, stack []string) (abi.Layout, bool) {
	target := r.opts.Target
	switch v := t.(type) {
	case model.Primitive:
		return v.Kind.Layout(target), true
	case model.EnumRef:
		e, ok := r.idx.Enum(v.Name)
		if !ok {
			return abi.Layout{}, false
		}
		return e.EffectiveRepr().Layout(target), true
	case model.SharedStructRef:
		sl, ok := r.structLayout(v.Name, stack)
		return sl.Layout, ok
	case model.OpaqueRef:
		switch v.Indirection {
		case model.Owning:
			return abi.ContractFor(abi.OwningUnique, target).Layout, true
		case model.Shared:
			return abi.ContractFor(abi.OwningShared, target).Layout, true
		default:
			return target.Pointer(), true
		}
	case model.Borrow:
		return target.Pointer(), true
	case model.Container:
		if v.Kind == abi.Optional {
			elem, ok := r.valueLayout(v.Elem, stack)
			if !ok {
				return abi.Layout{}, false
			}
			l, _ := abi.OptionLayout(elem)
			return l, true
		}
		return abi.ContractFor(v.Kind, target).Layout, true
	default:
		return abi.Layout{}, false
	}
}

// instantiate builds the glue of every container seen, sorted by family and
// canonical element name.
func (r *resolver) instantiate() []abi.Glue {
	out := make([]abi.Glue, 0, len(r.containers))
	for _, c := range r.containers {
		if g, ok := r.glue(c); ok {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Elem < out[j].Elem
	})
	return out
}

func (r *resolver) glue(c model.Container) (abi.Glue, bool) {
	contract := abi.ContractFor(c.Kind, r.opts.Target)
	m := r.opts.Mangler
	if c.Elem == nil {
		return abi.Instantiate(contract, m, "", abi.Layout{}, "", model.SideManaged), true
	}

	elem := model.Canonical(c.Elem)
	impl := model.SideManaged
	var (
		layout abi.Layout
		drop   string
	)

	switch v := c.Elem.(type) {
	case model.OpaqueRef:
		impl = v.Side
		drop = m.Deleter(v.Name)
		if l, ok := r.opaque[v.Name]; ok {
			layout = l
		} else {
			layout = abi.Layout{Size: 0, Align: 1}
		}
	case model.Container:
		inner, ok := r.glue(v)
		if !ok {
			return abi.Glue{}, false
		}
		drop = inner.Symbol(abi.OpDrop)
		layout = inner.Handle
	default:
		l, ok := r.valueLayout(c.Elem, nil)
		if !ok {
			return abi.Glue{}, false
		}
		layout = l
	}

	return abi.Instantiate(contract, m, elem, layout, drop, impl), true
}
