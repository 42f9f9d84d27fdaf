package resolve

import (
	"github.com/wippyai/bridgegen/errors"
	"github.com/wippyai/bridgegen/model"
)

// checkSignature enforces the passing-mode rules on a resolved function.
// Parameters whose type failed to resolve are skipped.
func (r *resolver) checkSignature(fn *model.Function) {
	borrowed := false
	for i, p := range fn.Params {
		if p.Type == nil {
			continue
		}
		path := []string{fn.Name, p.Name}

		switch p.Mode {
		case model.PassReceiver:
			if i != 0 {
				r.fail(errors.Signature(errors.KindUnsupportedPass, p.Location, path,
					"receiver must be the first parameter"))
				break
			}
			if !isReceiverType(p.Type) {
				r.fail(errors.Signature(errors.KindUnsupportedPass, p.Location, path,
					"receiver must be a borrowed opaque type or shared struct, got %s", p.Type))
			}
		case model.PassPinned:
			if !isPinnable(p.Type) {
				r.fail(errors.Signature(errors.KindUnsupportedPass, p.Location, path,
					"pinned applies only to a mutable borrow of a native opaque type, got %s", p.Type))
			}
		case model.PassValue:
			if isPinnable(p.Type) {
				r.fail(errors.Signature(errors.KindUnsupportedPass, p.Location, path,
					"mutable borrow of native type %s must be passed pinned", p.Type))
			}
		default:
			r.fail(errors.Signature(errors.KindUnsupportedPass, p.Location, path,
				"unknown passing mode %d", p.Mode))
		}

		if isBorrowed(p.Type) {
			borrowed = true
		}
	}

	if fn.Return != nil && isBorrowed(fn.Return) && !borrowed {
		r.fail(errors.Signature(errors.KindUnsupportedPass, fn.Location, []string{fn.Name, "return"},
			"returned borrow %s needs a borrowed parameter to outlive", fn.Return))
	}
}

func isReceiverType(t model.TypeRef) bool {
	switch v := t.(type) {
	case model.OpaqueRef:
		return v.Indirection == model.Borrowed
	case model.Borrow:
		_, ok := v.Elem.(model.SharedStructRef)
		return ok
	}
	return false
}

// isPinnable reports whether t is a mutable borrow of a native-origin opaque
// type. Native objects may hold self-references, so the managed side must
// not be able to move out of such a borrow.
func isPinnable(t model.TypeRef) bool {
	o, ok := t.(model.OpaqueRef)
	return ok && o.Indirection == model.Borrowed && o.Mutable && o.Side == model.SideNative
}

func isBorrowed(t model.TypeRef) bool {
	switch v := t.(type) {
	case model.OpaqueRef:
		return v.Indirection == model.Borrowed
	case model.Borrow:
		return true
	}
	return false
}
