package resolve

import (
	"github.com/wippyai/bridgegen/abi"
	"github.com/wippyai/bridgegen/errors"
	"github.com/wippyai/bridgegen/model"
)

type position uint8

const (
	posField position = iota
	posParam
	posReturn
	posElem
	posBorrowed
)

// use describes where a type reference appears.
type use struct {
	pos      position
	loc      errors.Location
	path     []string
	fallible bool
	// family is the enclosing container of an element.
	family abi.ContainerKind
}

func (u use) elem(k abi.ContainerKind) use {
	u.pos = posElem
	u.family = k
	return u
}

// resolve binds t in position u. It returns false when t could not be
// bound; the diagnostic has already been recorded.
func (r *resolver) resolve(t model.TypeRef, u use) (model.TypeRef, bool) {
	switch v := t.(type) {
	case nil:
		r.fail(errors.Internal(errors.PhaseResolve, "nil type reference at %v", u.path))
		return nil, false

	case model.Primitive:
		return v, true

	case model.Named:
		return r.named(v.Name, u)

	case model.SharedStructRef:
		return r.named(v.Name, u)

	case model.EnumRef:
		return r.named(v.Name, u)

	case model.OpaqueRef:
		o, ok := r.idx.Opaque(v.Name)
		if !ok {
			r.fail(errors.Unresolved(u.loc, u.path, v.Name))
			return nil, false
		}
		v.Side = o.Side
		return r.checkOpaqueRef(v, u)

	case model.Borrow:
		return r.borrow(v, u)

	case model.Container:
		return r.container(v, u)

	case model.ErrorCarrying:
		r.fallibility(u)
		return nil, false

	default:
		r.fail(errors.Internal(errors.PhaseResolve, "unknown type reference %T", t))
		return nil, false
	}
}

func (r *resolver) named(name string, u use) (model.TypeRef, bool) {
	it, ok := r.idx.Lookup(name)
	if !ok {
		r.fail(errors.Unresolved(u.loc, u.path, name))
		return nil, false
	}
	switch v := it.(type) {
	case *model.OpaqueType:
		r.fail(errors.OpaqueByValue(u.loc, u.path, v.Name))
		return nil, false
	case *model.SharedStruct:
		return model.SharedStructRef{Name: v.Name}, true
	case *model.Enum:
		return model.EnumRef{Name: v.Name}, true
	default:
		r.fail(errors.Internal(errors.PhaseResolve, "index holds %T for %q", it, name))
		return nil, false
	}
}

func (r *resolver) checkOpaqueRef(v model.OpaqueRef, u use) (model.TypeRef, bool) {
	if v.Indirection == model.Borrowed {
		switch u.pos {
		case posField:
			r.fail(errors.New(errors.PhaseResolve, errors.KindInvalidFieldType).
				At(u.loc).Path(u.path...).Detail("shared struct field cannot hold a borrowed view of %q", v.Name).Build())
			return nil, false
		case posElem:
			r.fail(errors.New(errors.PhaseResolve, errors.KindInvalidElement).
				At(u.loc).Path(u.path...).Detail("container element cannot be a borrowed view of %q", v.Name).Build())
			return nil, false
		}
	}
	return v, true
}

func (r *resolver) borrow(b model.Borrow, u use) (model.TypeRef, bool) {
	switch u.pos {
	case posField:
		r.fail(errors.New(errors.PhaseResolve, errors.KindInvalidFieldType).
			At(u.loc).Path(u.path...).Detail("shared struct field cannot hold a borrowed view %s", b).Build())
		return nil, false
	case posElem:
		r.fail(errors.New(errors.PhaseResolve, errors.KindInvalidElement).
			At(u.loc).Path(u.path...).Detail("%s cannot hold a borrowed view %s", model.ContainerSurfaceName(u.family), b).Build())
		return nil, false
	}

	if n, ok := b.Elem.(model.Named); ok {
		if o, ok := r.idx.Opaque(n.Name); ok {
			return model.OpaqueRef{Name: o.Name, Side: o.Side, Indirection: model.Borrowed, Mutable: b.Mutable}, true
		}
	}
	if _, ok := b.Elem.(model.Borrow); ok {
		r.fail(errors.New(errors.PhaseResolve, errors.KindInvalidElement).
			At(u.loc).Path(u.path...).Detail("borrowed view of a borrowed view").Build())
		return nil, false
	}

	inner := u
	inner.pos = posBorrowed
	elem, ok := r.resolve(b.Elem, inner)
	if !ok {
		return nil, false
	}
	return model.Borrow{Elem: elem, Mutable: b.Mutable}, true
}

func (r *resolver) container(c model.Container, u use) (model.TypeRef, bool) {
	if !c.Kind.Generic() {
		if c.Elem != nil {
			r.fail(errors.Internal(errors.PhaseResolve, "%s carries an element", c.Kind))
			return nil, false
		}
		r.register(c)
		return c, true
	}
	if c.Elem == nil {
		r.fail(errors.Internal(errors.PhaseResolve, "%s has no element", c.Kind))
		return nil, false
	}

	var (
		elem model.TypeRef
		ok   bool
	)
	if c.Kind.Indirect() {
		elem, ok = r.indirectElem(c, u)
	} else {
		elem, ok = r.resolve(c.Elem, u.elem(c.Kind))
	}
	if !ok {
		return nil, false
	}

	out := model.Container{Kind: c.Kind, Elem: elem}
	r.register(out)
	return out, true
}

// indirectElem resolves the element of an owning handle. Opaque elements are
// legal here because the handle stores them behind a pointer.
func (r *resolver) indirectElem(c model.Container, u use) (model.TypeRef, bool) {
	ind := model.Owning
	if c.Kind == abi.OwningShared {
		ind = model.Shared
	}

	name := ""
	switch v := c.Elem.(type) {
	case model.Named:
		name = v.Name
	case model.OpaqueRef:
		name = v.Name
	}
	if name != "" {
		if o, ok := r.idx.Opaque(name); ok {
			return model.OpaqueRef{Name: o.Name, Side: o.Side, Indirection: ind}, true
		}
	}
	return r.resolve(c.Elem, u.elem(c.Kind))
}

func (r *resolver) register(c model.Container) {
	key := model.Canonical(c)
	if _, ok := r.containers[key]; !ok {
		r.containers[key] = c
	}
}

func (r *resolver) fallibility(u use) {
	var detail string
	switch {
	case u.pos == posReturn && u.fallible:
		detail = "fallible function must return its success type; the error channel is implied"
	case u.pos == posReturn:
		detail = "function returning Result must be declared fallible and return its success type"
	default:
		detail = "Result may only appear as the return of a fallible function"
	}
	r.fail(errors.Signature(errors.KindFallibility, u.loc, u.path, "%s", detail))
}
